package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/potlam/cloudprint/internal/core"
)

// InsertPendingOrders writes one print_pending row per admitted order in
// a single transaction.
func (s *Store) InsertPendingOrders(ctx context.Context, orders []*core.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, o := range orders {
		if _, err := tx.ExecContext(ctx, InsertOrder,
			o.UUID, strings.ToLower(o.RestaurantCode), o.CloudPrintID, o.OrderID, string(o.Status)); err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.UUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit orders: %w", err)
	}
	return nil
}

func (s *Store) MarkInProgress(ctx context.Context, uuid string) error {
	if _, err := s.db.ExecContext(ctx, UpdateOrderStatus, string(core.StatusPrintInProgress), uuid); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, restaurantCode, orderID string) error {
	if _, err := s.db.ExecContext(ctx, DeleteOrderByCode, strings.ToLower(restaurantCode), orderID); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

// DeleteOrderByUUID removes the durable record a cleanup token refers
// to. Deleting an already-absent row is not an error, which keeps the
// DELETE protocol call idempotent.
func (s *Store) DeleteOrderByUUID(ctx context.Context, uuid string) error {
	if _, err := s.db.ExecContext(ctx, DeleteOrderByUUID, uuid); err != nil {
		return fmt.Errorf("failed to delete order by uuid: %w", err)
	}
	return nil
}

func (s *Store) OrderExists(ctx context.Context, restaurantCode, orderID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, CountOrdersByCode, strings.ToLower(restaurantCode), orderID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count orders: %w", err)
	}
	return count > 0, nil
}

func (s *Store) HasPendingOrders(ctx context.Context, restaurantCode string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, CountOrdersByStatus,
		strings.ToLower(restaurantCode), string(core.StatusPrintPending)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count pending orders: %w", err)
	}
	return count > 0, nil
}

func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	var conditions []string
	var args []interface{}

	if filter.RestaurantCode != "" {
		conditions = append(conditions, "restaurant_code = ?")
		args = append(args, strings.ToLower(filter.RestaurantCode))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT uuid, restaurant_code, cloud_print_id, order_id, status, created_at FROM cp_orders"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"

	limit := 100
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o := &Order{}
		if err := rows.Scan(&o.UUID, &o.RestaurantCode, &o.CloudPrintID, &o.OrderID, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) GetSetting(ctx context.Context, key string) (*Setting, error) {
	setting := &Setting{Key: key}
	err := s.db.QueryRowContext(ctx, GetSetting, key).Scan(&setting.Value, &setting.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return setting, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, SetSetting, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
