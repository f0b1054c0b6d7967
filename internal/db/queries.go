package db

const (
	InsertOrder = `
		INSERT INTO cp_orders (uuid, restaurant_code, cloud_print_id, order_id, status)
		VALUES (?, ?, ?, ?, ?)
	`

	UpdateOrderStatus = `
		UPDATE cp_orders SET status = ? WHERE uuid = ?
	`

	DeleteOrderByCode = `
		DELETE FROM cp_orders WHERE restaurant_code = ? AND order_id = ?
	`

	DeleteOrderByUUID = `DELETE FROM cp_orders WHERE uuid = ?`

	CountOrdersByCode = `
		SELECT COUNT(*) FROM cp_orders WHERE restaurant_code = ? AND order_id = ?
	`

	CountOrdersByStatus = `
		SELECT COUNT(*) FROM cp_orders WHERE restaurant_code = ? AND status = ?
	`

	GetSetting = `SELECT value, updated_at FROM settings WHERE key = ?`

	SetSetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
)
