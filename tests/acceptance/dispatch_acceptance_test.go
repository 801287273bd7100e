package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/swiftdrop/swiftdrop-api/config"
	"github.com/swiftdrop/swiftdrop-api/controllers"
	"github.com/swiftdrop/swiftdrop-api/middleware"
	"github.com/swiftdrop/swiftdrop-api/models"
	"github.com/swiftdrop/swiftdrop-api/realtime"
	"github.com/swiftdrop/swiftdrop-api/services"
	"github.com/swiftdrop/swiftdrop-api/tests/testutil"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DispatchAcceptanceTestSuite drives the whole delivery workflow as real
// HTTP clients would: accounts are created through the API, tokens come
// from the login response, and every step goes over the test server.
type DispatchAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	db     *gorm.DB
	cfg    *config.Config
}

func (suite *DispatchAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	testutil.MustSetTestEnvironment(suite.T())
	suite.cfg = testutil.TestConfig()
	config.SetConfig(suite.cfg)
}

func (suite *DispatchAcceptanceTestSuite) SetupTest() {
	testutil.RequireTestEnvironment(suite.T())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.NoError(err)
	suite.db = db

	err = db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.FavoriteItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderCounter{},
	)
	suite.NoError(err)
	config.SetDB(db)

	hub := realtime.NewHub()
	realtime.SetHub(hub)
	services.SetNotifier(hub)

	suite.server = httptest.NewServer(suite.createRouter())
}

func (suite *DispatchAcceptanceTestSuite) TearDownTest() {
	suite.server.Close()
	services.SetNotifier(nil)
	realtime.SetHub(nil)
	sqlDB, err := suite.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (suite *DispatchAcceptanceTestSuite) createRouter() *gin.Engine {
	router := gin.New()
	v1 := router.Group("/api/v1")

	v1.POST("/users/register", controllers.Register)
	v1.POST("/users/login", controllers.Login)

	auth := v1.Group("")
	auth.Use(middleware.RequireAuth(suite.cfg))
	{
		auth.GET("/orders/:id", controllers.GetOrder)

		customer := auth.Group("")
		customer.Use(middleware.RequireRole(models.RoleCustomer))
		{
			customer.POST("/orders", controllers.CreateOrder)
			customer.GET("/orders/my", controllers.ListMyOrders)
		}

		delivery := auth.Group("/delivery")
		delivery.Use(middleware.RequireRole(models.RoleDelivery))
		{
			delivery.PATCH("/availability", controllers.SetAvailability)
			delivery.PATCH("/orders/:id/complete", controllers.CompleteDelivery)
		}
	}

	return router
}

func (suite *DispatchAcceptanceTestSuite) call(method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		suite.NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, suite.server.URL+path, &buf)
	suite.NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	suite.NoError(err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	suite.NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// signup registers an account through the API and returns its id and token
func (suite *DispatchAcceptanceTestSuite) signup(name, role string) (uint, string) {
	resp, decoded := suite.call(http.MethodPost, "/api/v1/users/register", "", map[string]interface{}{
		"name":     name,
		"email":    name + "@swiftdrop.test",
		"password": "secret123",
		"phone":    name + "-phone",
		"role":     role,
	})
	suite.Equal(http.StatusCreated, resp.StatusCode)

	data := decoded["data"].(map[string]interface{})
	userID := uint(data["user"].(map[string]interface{})["id"].(float64))
	return userID, data["access_token"].(string)
}

func (suite *DispatchAcceptanceTestSuite) TestFullDeliveryWorkflow() {
	// A delivery partner signs up and goes online
	partnerID, partnerToken := suite.signup("dave", "delivery")
	resp, decoded := suite.call(http.MethodPatch, "/api/v1/delivery/availability", partnerToken,
		map[string]interface{}{"is_available": true})
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(true, decoded["data"].(map[string]interface{})["is_available"])

	// A customer signs up and places an order
	_, customerToken := suite.signup("alice", "")
	resp, decoded = suite.call(http.MethodPost, "/api/v1/orders", customerToken, map[string]interface{}{
		"items": []map[string]interface{}{
			{"product": "Margherita Pizza", "quantity": 2, "price": 12.75},
			{"product": "Tiramisu", "quantity": 1, "price": 6.50},
		},
		"total_amount":     32.00,
		"payment":          "online",
		"delivery_address": "12 Test Lane",
		"delivery_lat":     48.85,
		"delivery_lng":     2.35,
	})
	suite.Equal(http.StatusCreated, resp.StatusCode)

	order := decoded["data"].(map[string]interface{})
	orderID := order["id"].(float64)
	suite.Equal("processed", order["status"])
	suite.Equal(float64(partnerID), order["delivered_by_id"])
	suite.Len(order["items"].([]interface{}), 2)
	suite.Regexp(`^ORD-\d{8}-\d{4}$`, order["order_number"])

	// The customer can watch their order
	resp, decoded = suite.call(http.MethodGet, fmt.Sprintf("/api/v1/orders/%.0f", orderID), customerToken, nil)
	suite.Equal(http.StatusOK, resp.StatusCode)

	// A second customer cannot
	_, strangerToken := suite.signup("bob", "")
	resp, _ = suite.call(http.MethodGet, fmt.Sprintf("/api/v1/orders/%.0f", orderID), strangerToken, nil)
	suite.Equal(http.StatusForbidden, resp.StatusCode)

	// The partner delivers the order
	resp, decoded = suite.call(http.MethodPatch,
		fmt.Sprintf("/api/v1/delivery/orders/%.0f/complete", orderID), partnerToken, nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
	data := decoded["data"].(map[string]interface{})
	suite.Equal("delivered", data["delivered_order"].(map[string]interface{})["status"])
	suite.Equal(false, data["next_order_assigned"])

	// Delivered orders show up in the customer's history
	resp, decoded = suite.call(http.MethodGet, "/api/v1/orders/my", customerToken, nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
	orders := decoded["data"].([]interface{})
	suite.Len(orders, 1)
	suite.Equal("delivered", orders[0].(map[string]interface{})["status"])
}

func (suite *DispatchAcceptanceTestSuite) TestOrdersQueueWhenEveryoneIsBusy() {
	_, customerToken := suite.signup("alice", "")

	// No partner online: orders accumulate as pending
	for i := 0; i < 3; i++ {
		resp, decoded := suite.call(http.MethodPost, "/api/v1/orders", customerToken, map[string]interface{}{
			"items":            []map[string]interface{}{{"product": "Pad Thai", "quantity": 1, "price": 11.00}},
			"total_amount":     11.00,
			"payment":          "cod",
			"delivery_address": "12 Test Lane",
		})
		suite.Equal(http.StatusCreated, resp.StatusCode)
		suite.Equal("pending", decoded["data"].(map[string]interface{})["status"])
	}

	// The first partner to come online gets exactly one order, the oldest
	_, partnerToken := suite.signup("dave", "delivery")
	resp, decoded := suite.call(http.MethodPatch, "/api/v1/delivery/availability", partnerToken,
		map[string]interface{}{"is_available": true})
	suite.Equal(http.StatusOK, resp.StatusCode)
	data := decoded["data"].(map[string]interface{})
	suite.NotNil(data["assigned_order"])

	var pendingCount int64
	suite.db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending).Count(&pendingCount)
	suite.Equal(int64(2), pendingCount)
}

func (suite *DispatchAcceptanceTestSuite) TestCustomerCannotUseDeliveryEndpoints() {
	_, customerToken := suite.signup("alice", "")

	resp, _ := suite.call(http.MethodPatch, "/api/v1/delivery/availability", customerToken,
		map[string]interface{}{"is_available": true})
	suite.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestDispatchAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(DispatchAcceptanceTestSuite))
}
