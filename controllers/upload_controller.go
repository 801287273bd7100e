package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swiftdrop/swiftdrop-api/services"
	"github.com/swiftdrop/swiftdrop-api/utils"
)

// UploadThumbnail handles POST /api/v1/uploads/thumbnails - uploads a
// product thumbnail (PNG only) and returns its storage key and a
// presigned URL
func UploadThumbnail(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "A file is required",
			},
		})
		return
	}

	thumbnailService := services.GetThumbnailService()
	if thumbnailService == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SERVICE_UNAVAILABLE",
				"message": "Thumbnail storage is not configured",
			},
		})
		return
	}

	key, err := thumbnailService.UploadThumbnail(fileHeader)
	if err != nil {
		if uploadErr, ok := err.(*utils.FileUploadError); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    uploadErr.Code,
					"message": uploadErr.Message,
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": "Failed to upload thumbnail",
			},
		})
		return
	}

	url, err := thumbnailService.GetThumbnailURL(key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "URL_GENERATION_FAILED",
				"message": "Failed to generate thumbnail URL",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"thumbnail_key": key,
			"thumbnail_url": url,
		},
	})
}
