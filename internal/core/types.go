package core

import (
	"context"
	"encoding/json"
	"fmt"
)

type OrderStatus string

const (
	StatusPrintPending    OrderStatus = "print_pending"
	StatusPrintInProgress OrderStatus = "print_in_progress"
)

// UpstreamOrder is one entry of the pending-print list returned by the
// POTLAM backend. PrintOrder is kept raw because the backend sends an
// empty string instead of an object for orders with nothing to print.
type UpstreamOrder struct {
	CloudPrintID      string            `json:"cloud_print_id"`
	OrderID           string            `json:"order_id"`
	RestaurantCode    string            `json:"restaurant_code"`
	RestaurantDetails RestaurantDetails `json:"restaurant_details"`
	PrintOrder        json.RawMessage   `json:"print_order"`
}

type RestaurantDetails struct {
	Name    string `json:"name"`
	LogoURL string `json:"logo_url"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Message string `json:"message"`
}

// Order is a queued restaurant order awaiting print. UUID is assigned at
// admission and is the primary key of the durable record.
type Order struct {
	UUID           string
	RestaurantCode string
	OrderID        string
	CloudPrintID   string
	Restaurant     RestaurantDetails
	PrintOrder     json.RawMessage
	Status         OrderStatus
}

// PrintOrder is the subset of the backend's order detail used to build
// the receipt.
type PrintOrder struct {
	OrderID      string        `json:"order_id"`
	OrderDate    string        `json:"orderdate"`
	OrderTime    string        `json:"ordertime"`
	OrderDetails []OrderDetail `json:"orderdetails"`
}

type OrderDetail struct {
	ItemName        string          `json:"item_name"`
	Quantity        string          `json:"quantity"`
	ToppingsDetails json.RawMessage `json:"toppingsdetails"`
}

// ToppingsDetail holds both topping groups. Elements are kept raw: the
// backend emits an empty array in place of a group object, so each entry
// is decoded individually and skipped on mismatch.
type ToppingsDetail struct {
	CommonToppings []json.RawMessage `json:"commontoppings"`
	NormalToppings []json.RawMessage `json:"normaltoppings"`
}

type ToppingEntry struct {
	Toppings Topping `json:"toppings"`
}

type Topping struct {
	ToppingName string `json:"toppingname"`
	Qty         string `json:"qty"`
}

// ParsePrintOrder decodes the raw print_order field. A missing field, a
// bare string or anything that is not a JSON object means the order is
// not printable.
func ParsePrintOrder(raw json.RawMessage) (*PrintOrder, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty print order")
	}

	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid print order: %w", err)
	}
	if _, ok := probe.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("print order is not an object")
	}

	po := &PrintOrder{}
	if err := json.Unmarshal(raw, po); err != nil {
		return nil, fmt.Errorf("failed to decode print order: %w", err)
	}

	return po, nil
}

// OrderStore is the durable record of each order's print status, used
// for crash recovery, never for queue ordering.
type OrderStore interface {
	InsertPendingOrders(ctx context.Context, orders []*Order) error
	MarkInProgress(ctx context.Context, uuid string) error
	DeleteOrder(ctx context.Context, restaurantCode, orderID string) error
	DeleteOrderByUUID(ctx context.Context, uuid string) error
	OrderExists(ctx context.Context, restaurantCode, orderID string) (bool, error)
	HasPendingOrders(ctx context.Context, restaurantCode string) (bool, error)
}

// OrderSource fetches orders awaiting print from the upstream backend.
type OrderSource interface {
	FetchPendingOrders(ctx context.Context) ([]UpstreamOrder, error)
}

// StatusNotifier reports print progress back to the upstream backend.
// Calls are best effort; a failure never blocks the print flow.
type StatusNotifier interface {
	UpdateStatus(ctx context.Context, cloudPrintID string, status OrderStatus) error
	BulkUpdateStatus(ctx context.Context, updates []StatusUpdate) error
}

type StatusUpdate struct {
	CloudPrintID string      `json:"cloud_print_id"`
	Status       OrderStatus `json:"status"`
}
