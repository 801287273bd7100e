package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/swiftdrop/swiftdrop-api/models"
)

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		role       string
		allowed    []string
		wantStatus int
	}{
		{"matching role passes", models.RoleAdmin, []string{models.RoleAdmin}, http.StatusOK},
		{"one of several roles passes", models.RoleDelivery, []string{models.RoleAdmin, models.RoleDelivery}, http.StatusOK},
		{"wrong role is forbidden", models.RoleCustomer, []string{models.RoleAdmin}, http.StatusForbidden},
		{"no role in context is unauthorized", "", []string{models.RoleAdmin}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			if tt.role != "" {
				router.Use(func(c *gin.Context) {
					c.Set("user_role", tt.role)
					c.Next()
				})
			}
			router.Use(RequireRole(tt.allowed...))
			router.GET("/admin", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"success": true})
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
