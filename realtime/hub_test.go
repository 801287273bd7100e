package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/swiftdrop-api/config"
	"github.com/swiftdrop/swiftdrop-api/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRealtimeTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	config.SetDB(db)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	user := models.User{
		Name:  name,
		Email: name + "@swiftdrop.test",
		Phone: name + "-phone",
		Role:  role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedAssignedOrder(t *testing.T, db *gorm.DB, customerID, partnerID uint) models.Order {
	t.Helper()
	order := models.Order{
		TotalAmount:     10,
		Payment:         models.PaymentOnline,
		Status:          models.OrderStatusProcessed,
		CustomerID:      customerID,
		DeliveredByID:   &partnerID,
		DeliveryAddress: "12 Test Lane",
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

// newTestClient builds a registered client without a live websocket;
// the handlers only touch the send channel, never the connection.
func newTestClient(hub *Hub, userID uint, role string) *Client {
	c := NewClient(hub, nil, userID, role)
	hub.register(c)
	return c
}

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Envelope{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("unexpected event %s", ev.Event)
	default:
	}
}

func TestEmitToUserReachesAllConnections(t *testing.T) {
	hub := NewHub()
	first := newTestClient(hub, 1, models.RoleCustomer)
	second := newTestClient(hub, 1, models.RoleCustomer)
	other := newTestClient(hub, 2, models.RoleCustomer)

	hub.EmitToUser(1, "TEST_EVENT", "hello")

	assert.Equal(t, "TEST_EVENT", receive(t, first).Event)
	assert.Equal(t, "TEST_EVENT", receive(t, second).Event)
	assertNoEvent(t, other)
}

func TestNotifyOrderAssigned(t *testing.T) {
	hub := NewHub()
	partner := newTestClient(hub, 5, models.RoleDelivery)

	order := &models.Order{OrderNumber: "ORD-20260831-0001"}
	hub.NotifyOrderAssigned(5, order)

	ev := receive(t, partner)
	assert.Equal(t, EventNewOrderAssigned, ev.Event)
	got, ok := ev.Data.(*models.Order)
	require.True(t, ok)
	assert.Equal(t, "ORD-20260831-0001", got.OrderNumber)
}

func TestJoinOrderGuard(t *testing.T) {
	db := setupRealtimeTestDB(t)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	stranger := seedUser(t, db, "bob", models.RoleCustomer)
	partner := seedUser(t, db, "dave", models.RoleDelivery)
	order := seedAssignedOrder(t, db, customer.ID, partner.ID)

	hub := NewHub()

	t.Run("customer joins their order", func(t *testing.T) {
		c := newTestClient(hub, customer.ID, models.RoleCustomer)
		c.handleJoinOrder(mustJSON(t, joinOrderPayload{OrderID: order.ID}))

		ev := receive(t, c)
		assert.Equal(t, EventJoinOrderSuccess, ev.Event)
		assert.Equal(t, 1, hub.RoomSize(order.ID))
	})

	t.Run("assigned partner joins the order", func(t *testing.T) {
		c := newTestClient(hub, partner.ID, models.RoleDelivery)
		c.handleJoinOrder(mustJSON(t, joinOrderPayload{OrderID: order.ID}))

		ev := receive(t, c)
		assert.Equal(t, EventJoinOrderSuccess, ev.Event)
	})

	t.Run("stranger is rejected without joining", func(t *testing.T) {
		before := hub.RoomSize(order.ID)
		c := newTestClient(hub, stranger.ID, models.RoleCustomer)
		c.handleJoinOrder(mustJSON(t, joinOrderPayload{OrderID: order.ID}))

		ev := receive(t, c)
		assert.Equal(t, EventJoinOrderError, ev.Event)
		assert.Equal(t, before, hub.RoomSize(order.ID))
	})

	t.Run("unknown order is rejected", func(t *testing.T) {
		c := newTestClient(hub, customer.ID, models.RoleCustomer)
		c.handleJoinOrder(mustJSON(t, joinOrderPayload{OrderID: 9999}))

		ev := receive(t, c)
		assert.Equal(t, EventJoinOrderError, ev.Event)
	})

	t.Run("missing order_id is rejected", func(t *testing.T) {
		c := newTestClient(hub, customer.ID, models.RoleCustomer)
		c.handleJoinOrder(json.RawMessage(`{}`))

		ev := receive(t, c)
		assert.Equal(t, EventJoinOrderError, ev.Event)
	})
}

func TestLocationUpdateBroadcast(t *testing.T) {
	db := setupRealtimeTestDB(t)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	partner := seedUser(t, db, "dave", models.RoleDelivery)
	order := seedAssignedOrder(t, db, customer.ID, partner.ID)

	hub := NewHub()
	watcher := newTestClient(hub, customer.ID, models.RoleCustomer)
	sender := newTestClient(hub, partner.ID, models.RoleDelivery)

	watcher.handleJoinOrder(mustJSON(t, joinOrderPayload{OrderID: order.ID}))
	require.Equal(t, EventJoinOrderSuccess, receive(t, watcher).Event)
	sender.handleJoinOrder(mustJSON(t, joinOrderPayload{OrderID: order.ID}))
	require.Equal(t, EventJoinOrderSuccess, receive(t, sender).Event)

	sender.handleLocationUpdate(mustJSON(t, locationUpdatePayload{
		OrderID: order.ID,
		Lat:     48.8566,
		Lng:     2.3522,
	}))

	ev := receive(t, watcher)
	require.Equal(t, EventDeliveryLocation, ev.Event)
	broadcast, ok := ev.Data.(LocationBroadcast)
	require.True(t, ok)
	assert.Equal(t, order.ID, broadcast.OrderID)
	assert.Equal(t, 48.8566, broadcast.Lat)
	assert.Equal(t, 2.3522, broadcast.Lng)

	// The sender is in the room too and hears its own broadcast
	ev = receive(t, sender)
	assert.Equal(t, EventDeliveryLocation, ev.Event)

	// The partner's latest position is persisted
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, partner.ID).Error)
	assert.Equal(t, 48.8566, reloaded.Lat)
	assert.Equal(t, 2.3522, reloaded.Lng)
}

func TestLocationUpdateRejections(t *testing.T) {
	db := setupRealtimeTestDB(t)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	partner := seedUser(t, db, "dave", models.RoleDelivery)
	outsider := seedUser(t, db, "erin", models.RoleDelivery)
	order := seedAssignedOrder(t, db, customer.ID, partner.ID)

	hub := NewHub()
	watcher := newTestClient(hub, customer.ID, models.RoleCustomer)
	watcher.handleJoinOrder(mustJSON(t, joinOrderPayload{OrderID: order.ID}))
	require.Equal(t, EventJoinOrderSuccess, receive(t, watcher).Event)

	t.Run("customer role cannot send location", func(t *testing.T) {
		c := newTestClient(hub, customer.ID, models.RoleCustomer)
		c.handleLocationUpdate(mustJSON(t, locationUpdatePayload{OrderID: order.ID, Lat: 1, Lng: 1}))
		assert.Equal(t, EventLocationError, receive(t, c).Event)
		assertNoEvent(t, watcher)
	})

	t.Run("partner not assigned to the order cannot send", func(t *testing.T) {
		c := newTestClient(hub, outsider.ID, models.RoleDelivery)
		c.handleLocationUpdate(mustJSON(t, locationUpdatePayload{OrderID: order.ID, Lat: 1, Lng: 1}))
		assert.Equal(t, EventLocationError, receive(t, c).Event)
		assertNoEvent(t, watcher)
	})

	t.Run("missing order_id is rejected", func(t *testing.T) {
		c := newTestClient(hub, partner.ID, models.RoleDelivery)
		c.handleLocationUpdate(json.RawMessage(`{"lat": 1, "lng": 1}`))
		assert.Equal(t, EventLocationError, receive(t, c).Event)
	})
}

func TestUnregisterLeavesRooms(t *testing.T) {
	db := setupRealtimeTestDB(t)
	customer := seedUser(t, db, "alice", models.RoleCustomer)
	partner := seedUser(t, db, "dave", models.RoleDelivery)
	order := seedAssignedOrder(t, db, customer.ID, partner.ID)

	hub := NewHub()
	c := newTestClient(hub, customer.ID, models.RoleCustomer)
	c.handleJoinOrder(mustJSON(t, joinOrderPayload{OrderID: order.ID}))
	require.Equal(t, EventJoinOrderSuccess, receive(t, c).Event)
	require.Equal(t, 1, hub.RoomSize(order.ID))

	hub.unregister(c)
	assert.Equal(t, 0, hub.RoomSize(order.ID))

	// Emits after disconnect go nowhere and do not panic
	hub.EmitToUser(customer.ID, "TEST_EVENT", nil)
	hub.EmitToOrder(order.ID, "TEST_EVENT", nil)
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
