package domain

import "time"

// OrderConfirmation is handed to the notification dispatcher once a checkout
// has committed.
type OrderConfirmation struct {
	OrderID    uint64    `json:"orderId"`
	Contact    string    `json:"contact"`
	TotalCents int64     `json:"totalCents"`
	CreatedAt  time.Time `json:"createdAt"`
}
