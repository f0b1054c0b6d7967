package db

import "time"

type Order struct {
	UUID           string    `json:"uuid"`
	RestaurantCode string    `json:"restaurant_code"`
	CloudPrintID   string    `json:"cloud_print_id"`
	OrderID        string    `json:"order_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderFilter struct {
	RestaurantCode string
	Status         string
	Limit          int
	Offset         int
}
