package controllers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/swiftdrop-api/models"
	"github.com/swiftdrop/swiftdrop-api/services"
)

func performUpload(t *testing.T, router *gin.Engine, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads/thumbnails", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadThumbnail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupUserTestDB(t)
	admin := seedTestUser(t, db, "root", models.RoleAdmin, "secret123")

	mock := services.NewMockThumbnailService()
	mock.SetAsMockForTesting()
	defer services.SetThumbnailService(nil)

	router := gin.New()
	router.POST("/uploads/thumbnails", mockAuthMiddleware(admin.ID, admin.Role), UploadThumbnail)

	t.Run("uploads a png and returns key and url", func(t *testing.T) {
		w := performUpload(t, router, "pizza.png", []byte("png-bytes"))
		assert.Equal(t, http.StatusCreated, w.Code)

		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "thumbnails/mock_pizza.png", data["thumbnail_key"])
		assert.Contains(t, data["thumbnail_url"], "thumbnails/mock_pizza.png")
		assert.True(t, mock.ThumbnailExists("thumbnails/mock_pizza.png"))
	})

	t.Run("rejects non-png files", func(t *testing.T) {
		w := performUpload(t, router, "pizza.jpg", []byte("jpg-bytes"))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeResponse(t, w)
		assert.Equal(t, "INVALID_FILE_FORMAT", resp["error"].(map[string]interface{})["code"])
	})

	t.Run("rejects requests without a file", func(t *testing.T) {
		w := performUpload(t, router, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeResponse(t, w)
		assert.Equal(t, "MISSING_FILE", resp["error"].(map[string]interface{})["code"])
	})
}

func TestUploadThumbnailServiceUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupUserTestDB(t)
	admin := seedTestUser(t, db, "root", models.RoleAdmin, "secret123")
	services.SetThumbnailService(nil)

	router := gin.New()
	router.POST("/uploads/thumbnails", mockAuthMiddleware(admin.ID, admin.Role), UploadThumbnail)

	w := performUpload(t, router, "pizza.png", []byte("png-bytes"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
