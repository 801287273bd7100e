package services

import (
	"errors"
	"log"

	"github.com/swiftdrop/swiftdrop-api/models"
	"gorm.io/gorm"
)

var (
	// ErrNoPartnerFree is returned when no delivery partner is available.
	// The order stays pending; this is not a user-visible failure.
	ErrNoPartnerFree = errors.New("no delivery partner is free")

	// ErrNoPendingOrder is returned by re-dispatch when the queue is
	// empty or every pending order was claimed by a competing partner
	ErrNoPendingOrder = errors.New("no pending order to assign")

	// ErrOrderNotAssignable is returned when the order lost its pending
	// state before the claim landed (already assigned or cancelled)
	ErrOrderNotAssignable = errors.New("order can no longer be assigned")

	// ErrNotOrderPartner is returned when someone other than the
	// assigned partner tries to complete a delivery
	ErrNotOrderPartner = errors.New("you are not allowed to complete this order")

	// ErrOrderNotActive is returned when completing an order that is
	// already delivered or cancelled
	ErrOrderNotActive = errors.New("order is not in an active delivery state")
)

// claimAttempts bounds how many pending orders a re-dispatch will compete
// for before giving up. Each lost race moves on to the next-oldest order
// instead of dropping the partner's availability announcement.
const claimAttempts = 3

// Notifier delivers dispatch events to connected parties. Implemented by
// the realtime hub; a nil Notifier turns notifications into no-ops.
type Notifier interface {
	NotifyOrderAssigned(partnerID uint, order *models.Order)
}

var notifierInstance Notifier

// InitNotifier registers the notifier used by dispatch operations
func InitNotifier(n Notifier) {
	notifierInstance = n
}

// GetNotifier returns the registered notifier (may be nil)
func GetNotifier() Notifier {
	return notifierInstance
}

// SetNotifier sets the notifier instance (primarily for testing)
func SetNotifier(n Notifier) {
	notifierInstance = n
}

// DispatchService matches pending orders to free delivery partners.
//
// All state transitions go through conditional updates (UPDATE ... WHERE
// precondition) inside a single transaction, so concurrent dispatch
// attempts racing on the same order or partner can never double-assign:
// exactly one wins, the rest see zero rows affected and back off.
type DispatchService struct {
	db       *gorm.DB
	notifier Notifier
}

// NewDispatchService creates a DispatchService. notifier may be nil.
func NewDispatchService(db *gorm.DB, notifier Notifier) *DispatchService {
	return &DispatchService{db: db, notifier: notifier}
}

// AssignOrder attempts immediate assignment of a newly created pending
// order to any free delivery partner. On success the partner is marked
// busy and the order moves to processed, atomically. When no partner is
// free the order simply stays pending (implicitly queued) and
// ErrNoPartnerFree is returned.
func (s *DispatchService) AssignOrder(orderID uint) (*models.Order, error) {
	var assigned models.Order
	var partnerID uint

	err := s.db.Transaction(func(tx *gorm.DB) error {
		pid, err := claimFreePartner(tx)
		if err != nil {
			return err
		}
		partnerID = pid

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND delivered_by_id IS NULL", orderID, models.OrderStatusPending).
			Updates(map[string]interface{}{
				"delivered_by_id": partnerID,
				"status":          models.OrderStatusProcessed,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race or the order left pending state; roll back
			// so the partner claim is undone too
			return ErrOrderNotAssignable
		}

		return tx.Preload("Items").Preload("Customer").First(&assigned, orderID).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifyAssigned(partnerID, &assigned)
	return &assigned, nil
}

// AssignNextPending re-dispatches when a partner becomes free: it claims
// the partner and the oldest pending order together. When a competing
// partner wins the race for an order, the next-oldest is tried instead
// (bounded by claimAttempts). Returns ErrNoPendingOrder when there is
// nothing to serve; the partner then simply stays free.
func (s *DispatchService) AssignNextPending(partnerID uint) (*models.Order, error) {
	var assigned models.Order

	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND role = ? AND is_available = ?", partnerID, models.RoleDelivery, true).
			Update("is_available", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Partner is busy or unknown; nothing to dispatch
			return ErrNoPendingOrder
		}

		var tried []uint
		for attempt := 0; attempt < claimAttempts; attempt++ {
			order, err := oldestPending(tx, tried)
			if err != nil {
				return err
			}
			if order == nil {
				return ErrNoPendingOrder
			}

			claim := tx.Model(&models.Order{}).
				Where("id = ? AND status = ? AND delivered_by_id IS NULL", order.ID, models.OrderStatusPending).
				Updates(map[string]interface{}{
					"delivered_by_id": partnerID,
					"status":          models.OrderStatusProcessed,
				})
			if claim.Error != nil {
				return claim.Error
			}
			if claim.RowsAffected == 1 {
				return tx.Preload("Items").Preload("Customer").First(&assigned, order.ID).Error
			}

			// A competing partner claimed this order between the scan
			// and the update; move on to the next-oldest
			tried = append(tried, order.ID)
		}

		return ErrNoPendingOrder
	})
	if err != nil {
		return nil, err
	}

	s.notifyAssigned(partnerID, &assigned)
	return &assigned, nil
}

// CompleteDelivery validates that partnerID is the order's assigned
// partner, transitions the order to delivered, frees the partner, then
// re-dispatches the oldest pending order to that partner. Returns the
// delivered order and the next assigned order (nil when the queue is
// empty).
func (s *DispatchService) CompleteDelivery(orderID uint, partnerID uint) (*models.Order, *models.Order, error) {
	var delivered models.Order

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if order.DeliveredByID == nil || *order.DeliveredByID != partnerID {
			return ErrNotOrderPartner
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND delivered_by_id = ? AND status IN ?",
				orderID, partnerID, []string{models.OrderStatusProcessed, models.OrderStatusShipped}).
			Update("status", models.OrderStatusDelivered)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already delivered or cancelled; completing twice is rejected
			return ErrOrderNotActive
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", partnerID).
			Update("is_available", true).Error; err != nil {
			return err
		}

		return tx.Preload("Items").Preload("Customer").First(&delivered, orderID).Error
	})
	if err != nil {
		return nil, nil, err
	}

	next, err := s.AssignNextPending(partnerID)
	if err != nil {
		if errors.Is(err, ErrNoPendingOrder) {
			return &delivered, nil, nil
		}
		// The delivery itself succeeded; a failed re-dispatch must not
		// undo it. The order stays pending for the next trigger.
		log.Printf("re-dispatch after delivery of order %d failed: %v", orderID, err)
		return &delivered, nil, nil
	}

	return &delivered, next, nil
}

// claimFreePartner marks one free delivery partner busy and returns its
// id. Candidates are tried in id order; a candidate that flips busy
// between the scan and the update is skipped.
func claimFreePartner(tx *gorm.DB) (uint, error) {
	var tried []uint
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var partner models.User
		q := tx.Where("role = ? AND is_available = ?", models.RoleDelivery, true)
		if len(tried) > 0 {
			q = q.Where("id NOT IN ?", tried)
		}
		if err := q.Order("id ASC").First(&partner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrNoPartnerFree
			}
			return 0, err
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND is_available = ?", partner.ID, true).
			Update("is_available", false)
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 1 {
			return partner.ID, nil
		}

		tried = append(tried, partner.ID)
	}
	return 0, ErrNoPartnerFree
}

// oldestPending returns the pending order with the lowest creation time,
// ties broken by id, skipping already-tried ids. Returns nil when the
// queue is empty.
func oldestPending(tx *gorm.DB, skip []uint) (*models.Order, error) {
	var order models.Order
	q := tx.Where("status = ? AND delivered_by_id IS NULL", models.OrderStatusPending)
	if len(skip) > 0 {
		q = q.Where("id NOT IN ?", skip)
	}
	if err := q.Order("created_at ASC, id ASC").First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (s *DispatchService) notifyAssigned(partnerID uint, order *models.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyOrderAssigned(partnerID, order)
}
