package services

import (
	"fmt"
	"mime/multipart"

	"github.com/swiftdrop/swiftdrop-api/utils"
)

// ThumbnailService handles product thumbnail upload, retrieval and deletion
type ThumbnailService interface {
	// UploadThumbnail validates and uploads a thumbnail, returns the storage key
	UploadThumbnail(fileHeader *multipart.FileHeader) (string, error)

	// GetThumbnailURL generates a URL for accessing an uploaded thumbnail
	GetThumbnailURL(thumbnailKey string) (string, error)

	// DeleteThumbnail removes a thumbnail from storage
	DeleteThumbnail(thumbnailKey string) error
}

// S3ThumbnailService implements ThumbnailService using AWS S3 for storage
type S3ThumbnailService struct {
	s3Service S3Interface
}

var thumbnailServiceInstance ThumbnailService

// InitThumbnailService initializes the thumbnail service with S3 backend
func InitThumbnailService(s3Service S3Interface) ThumbnailService {
	thumbnailServiceInstance = &S3ThumbnailService{
		s3Service: s3Service,
	}
	return thumbnailServiceInstance
}

// GetThumbnailService returns the initialized thumbnail service instance
func GetThumbnailService() ThumbnailService {
	return thumbnailServiceInstance
}

// SetThumbnailService sets the thumbnail service instance (primarily for testing)
func SetThumbnailService(service ThumbnailService) {
	thumbnailServiceInstance = service
}

// UploadThumbnail validates and uploads a thumbnail to S3
func (s *S3ThumbnailService) UploadThumbnail(fileHeader *multipart.FileHeader) (string, error) {
	// Validate the image file
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	// Upload to S3
	s3Key, err := s.s3Service.UploadFile(fileHeader)
	if err != nil {
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	return s3Key, nil
}

// GetThumbnailURL generates a presigned URL for accessing a thumbnail
func (s *S3ThumbnailService) GetThumbnailURL(thumbnailKey string) (string, error) {
	if thumbnailKey == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(thumbnailKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate thumbnail URL: %w", err)
	}

	return url, nil
}

// DeleteThumbnail deletes a thumbnail from S3
func (s *S3ThumbnailService) DeleteThumbnail(thumbnailKey string) error {
	if err := s.s3Service.DeleteFile(thumbnailKey); err != nil {
		return fmt.Errorf("failed to delete thumbnail: %w", err)
	}
	return nil
}
