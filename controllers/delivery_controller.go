package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swiftdrop/swiftdrop-api/config"
	"github.com/swiftdrop/swiftdrop-api/middleware"
	"github.com/swiftdrop/swiftdrop-api/models"
	"github.com/swiftdrop/swiftdrop-api/realtime"
	"github.com/swiftdrop/swiftdrop-api/services"
)

// SetAvailabilityRequest represents the request body for an availability toggle
type SetAvailabilityRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

// UpdateLocationRequest represents the request body for an HTTP location ping
type UpdateLocationRequest struct {
	OrderID uint     `json:"order_id" binding:"required"`
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
}

// SetAvailability handles PATCH /api/v1/delivery/availability - a
// delivery partner opts in or out of receiving orders. Opting in
// triggers re-dispatch of the oldest pending order.
func SetAvailability(c *gin.Context) {
	partnerID, err := middleware.GetUserID(c)
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

	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "is_available must be true or false",
			},
		})
		return
	}

	db := config.GetDB()

	res := db.Model(&models.User{}).
		Where("id = ? AND role = ?", partnerID, models.RoleDelivery).
		Update("is_available", *req.IsAvailable)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update availability",
			},
		})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PARTNER_NOT_FOUND",
				"message": "Delivery partner not found",
			},
		})
		return
	}

	// Becoming available triggers a re-dispatch; an empty queue (or a
	// lost race against another partner) just leaves the partner free
	var assigned *models.Order
	if *req.IsAvailable {
		dispatch := services.NewDispatchService(db, services.GetNotifier())
		order, err := dispatch.AssignNextPending(partnerID)
		if err != nil && !errors.Is(err, services.ErrNoPendingOrder) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DISPATCH_ERROR",
					"message": "Availability was updated but dispatch failed",
				},
			})
			return
		}
		assigned = order
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"is_available":   *req.IsAvailable && assigned == nil,
			"assigned_order": assigned,
		},
	})
}

// CompleteDelivery handles PATCH /api/v1/delivery/orders/:id/complete -
// the assigned partner marks an order delivered. The partner is freed
// and the oldest pending order, if any, is dispatched to it.
func CompleteDelivery(c *gin.Context) {
	partnerID, err := middleware.GetUserID(c)
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
	dispatch := services.NewDispatchService(db, services.GetNotifier())

	delivered, next, err := dispatch.CompleteDelivery(uint(orderID), partnerID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ORDER_NOT_FOUND",
					"message": "Order not found",
				},
			})
		case errors.Is(err, services.ErrNotOrderPartner):
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "You are not allowed to complete this order",
				},
			})
		case errors.Is(err, services.ErrOrderNotActive):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ORDER_NOT_ACTIVE",
					"message": "Order is already delivered or cancelled",
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to complete delivery",
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"delivered_order":     delivered,
			"next_order_assigned": next != nil,
			"next_order":          next,
		},
	})
}

// UpdateLocation handles POST /api/v1/delivery/location - HTTP variant
// of the location ping. The partner's stored position is updated and the
// order's customer is notified on their personal channel.
func UpdateLocation(c *gin.Context) {
	partnerID, err := middleware.GetUserID(c)
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

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "order_id, lat and lng are required",
			},
		})
		return
	}

	db := config.GetDB()

	order, err := services.ValidateOrderAccess(db, req.OrderID, partnerID)
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
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You are not allowed to access this order",
			},
		})
		return
	}

	// Only the currently assigned partner may report positions
	if order.DeliveredByID == nil || *order.DeliveredByID != partnerID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You are not assigned to this order",
			},
		})
		return
	}

	if err := db.Model(&models.User{}).Where("id = ?", partnerID).
		Updates(map[string]interface{}{"lat": *req.Lat, "lng": *req.Lng}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update location",
			},
		})
		return
	}

	// Notify the customer directly on their personal channel
	if hub := realtime.GetHub(); hub != nil {
		hub.EmitToUser(order.CustomerID, realtime.EventDeliveryLocation, realtime.LocationBroadcast{
			OrderID:   order.ID,
			Lat:       *req.Lat,
			Lng:       *req.Lng,
			UpdatedAt: time.Now(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nil,
	})
}
