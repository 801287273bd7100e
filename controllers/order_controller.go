package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/swiftdrop/swiftdrop-api/config"
	"github.com/swiftdrop/swiftdrop-api/middleware"
	"github.com/swiftdrop/swiftdrop-api/models"
	"github.com/swiftdrop/swiftdrop-api/services"
	"gorm.io/gorm"
)

// OrderItemRequest is one line item on an order creation request
type OrderItemRequest struct {
	Product   string  `json:"product" binding:"required"`
	Thumbnail *string `json:"thumbnail"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Price     float64 `json:"price" binding:"gte=0"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	TotalAmount     float64            `json:"total_amount" binding:"gte=0"`
	Payment         string             `json:"payment" binding:"required,oneof=online cod"`
	DeliveryAddress string             `json:"delivery_address" binding:"required"`
	DeliveryLat     float64            `json:"delivery_lat"`
	DeliveryLng     float64            `json:"delivery_lng"`
}

// ChangeStatusRequest represents the request body for an admin status change
type ChangeStatusRequest struct {
	OrderID   uint   `json:"order_id" binding:"required"`
	NewStatus string `json:"new_status" binding:"required,oneof=pending processed shipped delivered cancelled"`
}

// CreateOrder handles POST /api/v1/orders - creates a new order
// (customers only) and immediately tries to dispatch it to a free
// delivery partner. When no partner is free the order stays pending and
// the request still succeeds.
func CreateOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	db := config.GetDB()

	order := models.Order{
		TotalAmount:     req.TotalAmount,
		Payment:         req.Payment,
		Status:          models.OrderStatusPending,
		CustomerID:      userID,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryLat:     req.DeliveryLat,
		DeliveryLng:     req.DeliveryLng,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			Product:   item.Product,
			Thumbnail: item.Thumbnail,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	// Order number and order row are created in one transaction so a
	// failed insert does not consume a sequence value
	err = db.Transaction(func(tx *gorm.DB) error {
		number, err := services.NextOrderNumber(tx)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		return tx.Create(&order).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create order",
			},
		})
		return
	}

	// Immediate dispatch attempt. No free partner (or a lost race) is a
	// normal outcome: the order stays pending for the next trigger.
	dispatch := services.NewDispatchService(db, services.GetNotifier())
	if _, err := dispatch.AssignOrder(order.ID); err != nil &&
		!errors.Is(err, services.ErrNoPartnerFree) &&
		!errors.Is(err, services.ErrOrderNotAssignable) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DISPATCH_ERROR",
				"message": "Order was created but dispatch failed",
			},
		})
		return
	}

	// Reload to return the order's current state (assigned or pending)
	var created models.Order
	if err := db.Preload("Items").Preload("Customer").First(&created, order.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load order details",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    created,
	})
}

// ChangeStatus handles PATCH /api/v1/orders/status - admin-driven status
// change. Terminal orders cannot be changed, and a status that implies
// an assigned partner cannot be set on an unassigned order. Moving an
// assigned order to pending, delivered or cancelled releases its partner.
func ChangeStatus(c *gin.Context) {
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	db := config.GetDB()

	var updated models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, req.OrderID).Error; err != nil {
			return err
		}

		if order.IsTerminal() {
			return services.ErrOrderNotActive
		}

		assignedStatuses := map[string]bool{
			models.OrderStatusProcessed: true,
			models.OrderStatusShipped:   true,
			models.OrderStatusDelivered: true,
		}
		if assignedStatuses[req.NewStatus] && order.DeliveredByID == nil {
			return services.ErrOrderNotAssignable
		}

		// Any transition that detaches the partner or ends the order
		// releases the partner so they can be re-dispatched
		updates := map[string]interface{}{"status": req.NewStatus}
		releasePartner := false
		switch req.NewStatus {
		case models.OrderStatusCancelled:
			releasePartner = order.DeliveredByID != nil
			if releasePartner {
				updates["delivered_by_id"] = nil
			}
		case models.OrderStatusPending:
			releasePartner = order.DeliveredByID != nil
			updates["delivered_by_id"] = nil
		case models.OrderStatusDelivered:
			releasePartner = true
		}
		if releasePartner {
			if err := tx.Model(&models.User{}).
				Where("id = ?", *order.DeliveredByID).
				Update("is_available", true).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Preload("Items").Preload("Customer").First(&updated, order.ID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ORDER_NOT_FOUND",
					"message": "Order not found",
				},
			})
			return
		}
		if errors.Is(err, services.ErrOrderNotActive) || errors.Is(err, services.ErrOrderNotAssignable) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TRANSITION",
					"message": "The order cannot move to the requested status",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update order status",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    updated,
	})
}

// ListOrders handles GET /api/v1/orders - returns all orders, newest
// first (admins only)
func ListOrders(c *gin.Context) {
	db := config.GetDB()

	var orders []models.Order
	if err := db.Preload("Items").Preload("Customer").
		Order("created_at DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch orders",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// ListMyOrders handles GET /api/v1/orders/my - returns the
// authenticated customer's orders, newest first
func ListMyOrders(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	db := config.GetDB()

	var orders []models.Order
	if err := db.Preload("Items").
		Where("customer_id = ?", userID).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch orders",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// GetOrder handles GET /api/v1/orders/:id - returns one order, visible
// only to its customer or its assigned delivery partner
func GetOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Order ID must be numeric",
			},
		})
		return
	}

	db := config.GetDB()
	order, err := services.ValidateOrderAccess(db, uint(orderID), userID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ORDER_NOT_FOUND",
					"message": "Order not found",
				},
			})
			return
		}
		if errors.Is(err, services.ErrOrderAccessDenied) {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "You are not allowed to access this order",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch order",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}
