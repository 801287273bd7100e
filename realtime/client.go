package realtime

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/swiftdrop/swiftdrop-api/config"
	"github.com/swiftdrop/swiftdrop-api/models"
	"github.com/swiftdrop/swiftdrop-api/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Envelope is the wire format for every event in both directions
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// inboundMessage is what clients send: an event name plus raw payload
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinOrderPayload struct {
	OrderID uint `json:"order_id"`
}

type locationUpdatePayload struct {
	OrderID uint    `json:"order_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// LocationBroadcast is the payload relayed to an order room on each
// location ping from the assigned partner
type LocationBroadcast struct {
	OrderID   uint      `json:"order_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client is one authenticated websocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Envelope
	connID string
	userID uint
	role   string
}

// NewClient wraps an upgraded connection with its authenticated identity
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, role string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan Envelope, sendBuffer),
		connID: uuid.NewString(),
		userID: userID,
		role:   role,
	}
}

// Run registers the client and starts its read and write pumps. Blocks
// until the connection closes.
func (c *Client) Run() {
	c.hub.register(c)
	go c.writePump()
	c.readPump()
}

// enqueue queues an event for delivery; a client whose buffer is full
// drops the event rather than blocking the hub
func (c *Client) enqueue(ev Envelope) {
	select {
	case c.send <- ev:
	default:
		log.Printf("websocket %s: send buffer full, dropping %s", c.connID, ev.Event)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket %s: read error: %v", c.connID, err)
			}
			return
		}

		switch msg.Event {
		case EventJoinOrder:
			c.handleJoinOrder(msg.Data)
		case EventLocationUpdate:
			c.handleLocationUpdate(msg.Data)
		default:
			// Unknown events are ignored
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleJoinOrder lets an authorized party (the order's customer or its
// assigned partner) into the order room. A failed check answers the
// requester with JOIN_ORDER_ERROR, never a disconnect.
func (c *Client) handleJoinOrder(data json.RawMessage) {
	var payload joinOrderPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.OrderID == 0 {
		c.enqueue(Envelope{Event: EventJoinOrderError, Data: map[string]string{
			"message": "order_id is required",
		}})
		return
	}

	db := config.GetDB()
	if _, err := services.ValidateOrderAccess(db, payload.OrderID, c.userID); err != nil {
		c.enqueue(Envelope{Event: EventJoinOrderError, Data: map[string]string{
			"message": accessErrorMessage(err),
		}})
		return
	}

	c.hub.joinRoom(payload.OrderID, c)
	c.enqueue(Envelope{Event: EventJoinOrderSuccess, Data: map[string]uint{
		"order_id": payload.OrderID,
	}})
}

// handleLocationUpdate relays a delivery partner's position to the order
// room. Only the partner currently assigned to the order may send one;
// anything else answers with LOCATION_ERROR and is not broadcast.
func (c *Client) handleLocationUpdate(data json.RawMessage) {
	var payload locationUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.OrderID == 0 {
		c.enqueue(Envelope{Event: EventLocationError, Data: map[string]string{
			"message": "order_id, lat and lng are required",
		}})
		return
	}

	if c.role != models.RoleDelivery {
		c.enqueue(Envelope{Event: EventLocationError, Data: map[string]string{
			"message": "only the delivery partner can send location",
		}})
		return
	}

	db := config.GetDB()
	order, err := services.ValidateOrderAccess(db, payload.OrderID, c.userID)
	if err != nil {
		c.enqueue(Envelope{Event: EventLocationError, Data: map[string]string{
			"message": accessErrorMessage(err),
		}})
		return
	}
	if order.DeliveredByID == nil || *order.DeliveredByID != c.userID {
		c.enqueue(Envelope{Event: EventLocationError, Data: map[string]string{
			"message": "you are not assigned to this order",
		}})
		return
	}

	// Persist the partner's latest known position
	if err := db.Model(&models.User{}).Where("id = ?", c.userID).
		Updates(map[string]interface{}{"lat": payload.Lat, "lng": payload.Lng}).Error; err != nil {
		log.Printf("websocket %s: failed to persist location: %v", c.connID, err)
	}

	c.hub.EmitToOrder(payload.OrderID, EventDeliveryLocation, LocationBroadcast{
		OrderID:   payload.OrderID,
		Lat:       payload.Lat,
		Lng:       payload.Lng,
		UpdatedAt: time.Now(),
	})
}

func accessErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return "order not found"
	case errors.Is(err, services.ErrOrderAccessDenied):
		return "you are not allowed to access this order"
	default:
		return "could not validate order access"
	}
}
