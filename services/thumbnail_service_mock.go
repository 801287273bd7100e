package services

import (
	"fmt"
	"mime/multipart"
	"sync"

	"github.com/swiftdrop/swiftdrop-api/utils"
)

// MockThumbnailService is a mock implementation of ThumbnailService for testing
type MockThumbnailService struct {
	uploadedThumbnails map[string][]byte // map of thumbnail key to file content
	mu                 sync.RWMutex
}

// NewMockThumbnailService creates a new mock thumbnail service
func NewMockThumbnailService() *MockThumbnailService {
	return &MockThumbnailService{
		uploadedThumbnails: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global thumbnail service instance for testing
func (m *MockThumbnailService) SetAsMockForTesting() {
	SetThumbnailService(m)
}

// UploadThumbnail simulates uploading a thumbnail
func (m *MockThumbnailService) UploadThumbnail(fileHeader *multipart.FileHeader) (string, error) {
	// Validate the image file
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	// Open and read the file
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Read file content
	content := make([]byte, fileHeader.Size)
	_, err = file.Read(content)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	// Generate mock thumbnail key
	thumbnailKey := fmt.Sprintf("thumbnails/mock_%s", fileHeader.Filename)

	// Store in mock storage
	m.mu.Lock()
	m.uploadedThumbnails[thumbnailKey] = content
	m.mu.Unlock()

	return thumbnailKey, nil
}

// GetThumbnailURL simulates generating a URL for a thumbnail
func (m *MockThumbnailService) GetThumbnailURL(thumbnailKey string) (string, error) {
	if thumbnailKey == "" {
		return "", nil
	}

	// Check if thumbnail exists in mock storage
	m.mu.RLock()
	_, exists := m.uploadedThumbnails[thumbnailKey]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("thumbnail not found in mock storage: %s", thumbnailKey)
	}

	// Return a mock URL
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", thumbnailKey), nil
}

// DeleteThumbnail simulates deleting a thumbnail
func (m *MockThumbnailService) DeleteThumbnail(thumbnailKey string) error {
	if thumbnailKey == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.uploadedThumbnails, thumbnailKey)
	m.mu.Unlock()

	return nil
}

// ThumbnailExists checks if a thumbnail exists in mock storage
func (m *MockThumbnailService) ThumbnailExists(thumbnailKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.uploadedThumbnails[thumbnailKey]
	return exists
}

// Clear removes all thumbnails from mock storage
func (m *MockThumbnailService) Clear() {
	m.mu.Lock()
	m.uploadedThumbnails = make(map[string][]byte)
	m.mu.Unlock()
}
