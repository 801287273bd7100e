package services

import (
	"errors"

	"github.com/swiftdrop/swiftdrop-api/models"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound is returned when the order does not exist
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderAccessDenied is returned when the actor is neither the
	// customer who placed the order nor the currently assigned partner
	ErrOrderAccessDenied = errors.New("you are not allowed to access this order")
)

// ValidateOrderAccess checks whether a user may read or act on an order.
// Access is granted to the customer who placed the order and to the
// delivery partner currently assigned to it; everyone else is denied.
// Used before joining an order's realtime channel, relaying location
// updates and completing delivery.
func ValidateOrderAccess(db *gorm.DB, orderID uint, userID uint) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	isCustomer := order.CustomerID == userID
	isPartner := order.DeliveredByID != nil && *order.DeliveredByID == userID

	if !isCustomer && !isPartner {
		return nil, ErrOrderAccessDenied
	}

	return &order, nil
}
