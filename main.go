package main

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/swiftdrop/swiftdrop-api/config"
	"github.com/swiftdrop/swiftdrop-api/controllers"
	"github.com/swiftdrop/swiftdrop-api/middleware"
	"github.com/swiftdrop/swiftdrop-api/models"
	"github.com/swiftdrop/swiftdrop-api/realtime"
	"github.com/swiftdrop/swiftdrop-api/services"
)

func main() {
	// Basic logging
	log.Println("Starting SwiftDrop API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.FavoriteItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderCounter{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Thumbnail storage (optional; the API runs without it)
	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.InitS3Service()
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}
		services.InitThumbnailService(s3Service)
	} else {
		log.Println("AWS_S3_BUCKET not set, thumbnail uploads disabled")
	}

	// Realtime hub; dispatch notifications are relayed through it
	hub := realtime.InitHub()
	services.InitNotifier(hub)

	// Initialize Gin router
	router := gin.Default()
	router.Use(cors.Default())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		// Public auth endpoints
		v1.POST("/users/register", controllers.Register)
		v1.POST("/users/login", controllers.Login)

		// Realtime endpoint (authenticates during the handshake)
		v1.GET("/ws", realtime.ServeWS(hub, cfg))

		// Authenticated endpoints
		auth := v1.Group("")
		auth.Use(middleware.RequireAuth(cfg))
		{
			auth.POST("/users/logout", controllers.Logout)
			auth.GET("/users/me", controllers.GetProfile)
			auth.PATCH("/users/me", controllers.UpdateProfile)
			auth.POST("/users/me/addresses", controllers.AddAddress)
			auth.DELETE("/users/me/addresses/:id", controllers.DeleteAddress)
			auth.POST("/users/me/favorites", controllers.AddFavorite)
			auth.DELETE("/users/me/favorites/:id", controllers.RemoveFavorite)

			auth.GET("/orders/:id", controllers.GetOrder)

			customer := auth.Group("")
			customer.Use(middleware.RequireRole(models.RoleCustomer))
			{
				customer.POST("/orders", controllers.CreateOrder)
				customer.GET("/orders/my", controllers.ListMyOrders)
			}

			admin := auth.Group("")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/orders", controllers.ListOrders)
				admin.PATCH("/orders/status", controllers.ChangeStatus)
				admin.POST("/uploads/thumbnails", controllers.UploadThumbnail)
			}

			delivery := auth.Group("/delivery")
			delivery.Use(middleware.RequireRole(models.RoleDelivery))
			{
				delivery.PATCH("/availability", controllers.SetAvailability)
				delivery.PATCH("/orders/:id/complete", controllers.CompleteDelivery)
				delivery.POST("/location", controllers.UpdateLocation)
			}
		}
	}

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "SwiftDrop API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
