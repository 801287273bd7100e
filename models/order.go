package models

import (
	"time"

	"gorm.io/gorm"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusProcessed = "processed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment methods
const (
	PaymentOnline = "online"
	PaymentCOD    = "cod"
)

// Order represents a customer order in the system.
//
// DeliveredByID is set exactly when the order has been dispatched: it is
// nil while the order is pending and holds the assigned delivery partner
// for processed, shipped and delivered orders. Assignment happens once
// per active lifecycle and only through the dispatch service's
// conditional update.
type Order struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	OrderNumber string      `gorm:"uniqueIndex" json:"order_number"` // ORD-YYYYMMDD-NNNN
	Items       []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	TotalAmount float64     `gorm:"not null;check:total_amount >= 0" json:"total_amount"`
	Payment     string      `gorm:"not null" json:"payment"`                   // "online" or "cod"
	Status      string      `gorm:"not null;default:'pending'" json:"status"` // pending, processed, shipped, delivered, cancelled

	CustomerID uint `gorm:"not null;index" json:"customer_id"` // foreign key to users table, immutable
	Customer   User `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	DeliveredByID *uint `gorm:"index" json:"delivered_by_id"` // nullable, set when a partner is assigned
	DeliveredBy   *User `gorm:"foreignKey:DeliveredByID" json:"delivered_by,omitempty"`

	DeliveryAddress string  `gorm:"not null" json:"delivery_address"`
	DeliveryLat     float64 `json:"delivery_lat"`
	DeliveryLng     float64 `json:"delivery_lng"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether the order has reached an absorbing state
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// OrderItem is a single line item on an order
type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   uint    `gorm:"not null;index" json:"order_id"`
	Product   string  `gorm:"not null" json:"product"`
	Thumbnail *string `json:"thumbnail,omitempty"` // S3 key for the product image
	Quantity  int     `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price     float64 `gorm:"not null;check:price >= 0" json:"price"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// OrderCounter holds the per-day order number sequence. One row per
// calendar day; Seq is bumped atomically and the row for a new day
// starts over at 1.
type OrderCounter struct {
	Day string `gorm:"primaryKey" json:"day"` // YYYYMMDD
	Seq int    `gorm:"not null" json:"seq"`
}

// TableName specifies the table name for the OrderCounter model
func (OrderCounter) TableName() string {
	return "order_counters"
}
