package realtime

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/swiftdrop/swiftdrop-api/config"
	"github.com/swiftdrop/swiftdrop-api/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set an Authorization header on a websocket, so the
	// token also rides on a query parameter; origin checking is handled
	// by the CORS policy of the surrounding deployment
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS handles GET /api/v1/ws - authenticates the handshake and hands
// the connection to the hub. The token comes from the Authorization
// header or, failing that, a "token" query parameter.
func ServeWS(hub *Hub, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := middleware.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing authentication token",
				},
			})
			return
		}

		claims, err := middleware.ParseToken(tokenStr, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Failed to validate JWT",
				},
			})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error
			log.Printf("websocket upgrade failed for user %d: %v", claims.UserID, err)
			return
		}

		client := NewClient(hub, conn, claims.UserID, claims.Role)
		go client.Run()
	}
}
