package realtime

import (
	"sync"

	"github.com/swiftdrop/swiftdrop-api/models"
)

// Event names exchanged over the websocket
const (
	EventJoinOrder        = "JOIN_ORDER"
	EventJoinOrderSuccess = "JOIN_ORDER_SUCCESS"
	EventJoinOrderError   = "JOIN_ORDER_ERROR"
	EventLocationUpdate   = "LOCATION_UPDATE"
	EventLocationError    = "LOCATION_ERROR"
	EventDeliveryLocation = "DELIVERY_LOCATION_UPDATE"
	EventNewOrderAssigned = "NEW_ORDER_ASSIGNED"
)

// Hub routes events to connected clients. Every client belongs to the
// personal channel of its user id; clients may additionally join
// per-order rooms after passing the order access check. Room membership
// is purely routing state: a dropped connection just disappears from the
// registries.
type Hub struct {
	mu    sync.RWMutex
	users map[uint]map[*Client]struct{} // connections per user id
	rooms map[uint]map[*Client]struct{} // connections per order id
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		users: make(map[uint]map[*Client]struct{}),
		rooms: make(map[uint]map[*Client]struct{}),
	}
}

var hubInstance *Hub

// InitHub initializes the global hub instance
func InitHub() *Hub {
	hubInstance = NewHub()
	return hubInstance
}

// GetHub returns the global hub instance
func GetHub() *Hub {
	return hubInstance
}

// SetHub sets the global hub instance (primarily for testing)
func SetHub(h *Hub) {
	hubInstance = h
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]struct{})
	}
	h.users[c.userID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[c.userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.userID)
		}
	}
	for orderID, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, orderID)
		}
	}
}

// joinRoom adds a client to an order room. Callers must have passed the
// order access check first.
func (h *Hub) joinRoom(orderID uint, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[orderID] == nil {
		h.rooms[orderID] = make(map[*Client]struct{})
	}
	h.rooms[orderID][c] = struct{}{}
}

// EmitToUser sends an event to every connection of the given user
func (h *Hub) EmitToUser(userID uint, event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		c.enqueue(Envelope{Event: event, Data: payload})
	}
}

// EmitToOrder sends an event to every connection joined to the order's room
func (h *Hub) EmitToOrder(orderID uint, event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[orderID] {
		c.enqueue(Envelope{Event: event, Data: payload})
	}
}

// NotifyOrderAssigned implements services.Notifier: the full order record
// goes to the newly assigned partner's personal channel
func (h *Hub) NotifyOrderAssigned(partnerID uint, order *models.Order) {
	h.EmitToUser(partnerID, EventNewOrderAssigned, order)
}

// RoomSize reports how many connections are joined to an order room
// (used by tests)
func (h *Hub) RoomSize(orderID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[orderID])
}
