package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleDelivery = "delivery"
)

// User represents an account in the system (customer, admin or delivery partner)
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	Phone        string `gorm:"uniqueIndex;not null" json:"phone"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"not null;default:'customer'" json:"role"` // "customer", "admin" or "delivery"

	// IsAvailable marks a delivery partner as free to take an order.
	// A partner is unavailable while serving a non-terminal order.
	IsAvailable bool `gorm:"not null;default:true" json:"is_available"`

	// Latest known position of a delivery partner, updated on each location ping
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	RefreshToken string `json:"-"`

	Addresses []Address      `gorm:"foreignKey:UserID" json:"addresses,omitempty"`
	Favorites []FavoriteItem `gorm:"foreignKey:UserID" json:"favorites,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Address is a saved delivery address belonging to a user
type Address struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	UserID      uint    `gorm:"not null;index" json:"user_id"`
	Label       string  `gorm:"not null;default:'Home'" json:"label"` // e.g. Home, Work, Other
	FullAddress string  `gorm:"not null" json:"full_address"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// TableName specifies the table name for the Address model
func (Address) TableName() string {
	return "addresses"
}

// FavoriteItem is a product a user has saved for quick reordering
type FavoriteItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	UserID    uint    `gorm:"not null;index" json:"user_id"`
	Product   string  `gorm:"not null" json:"product"`
	Thumbnail *string `json:"thumbnail,omitempty"` // S3 key for the product image
	Price     float64 `gorm:"not null;check:price >= 0" json:"price"`
}

// TableName specifies the table name for the FavoriteItem model
func (FavoriteItem) TableName() string {
	return "favorite_items"
}
