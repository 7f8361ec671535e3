package domain

import "time"

type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusPaid    OrderStatus = "paid"
	StatusShipped OrderStatus = "shipped"
)

type Order struct {
	ID         uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt  time.Time   `json:"created_at" gorm:"autoCreateTime"`
	Status     OrderStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	TotalCents int64       `json:"total_cents" gorm:"not null;default:0"`
	Items      []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderItem is a line of a committed order. PriceAtPurchase is the product
// price read under the checkout lock and is never recomputed.
type OrderItem struct {
	ID              uint64   `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID         uint64   `json:"order_id" gorm:"not null;index"`
	ProductID       uint64   `json:"product_id" gorm:"not null;index"`
	Product         *Product `json:"-" gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Quantity        int64    `json:"quantity" gorm:"not null"`
	PriceAtPurchase int64    `json:"price_at_purchase" gorm:"not null"`
}

func (i OrderItem) LineTotal() int64 {
	return i.PriceAtPurchase * i.Quantity
}

// SumItems returns the order total implied by its lines.
func SumItems(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.LineTotal()
	}
	return total
}
