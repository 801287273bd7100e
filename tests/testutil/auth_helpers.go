package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/swiftdrop-api/config"
	"github.com/swiftdrop/swiftdrop-api/middleware"
)

// TestJWTSecret is the signing secret used by the test suites
const TestJWTSecret = "swiftdrop-test-secret"

// TestConfig returns a configuration suitable for issuing and validating
// tokens in tests
func TestConfig() *config.Config {
	return &config.Config{
		JWTSecret:          TestJWTSecret,
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		GoEnv:              "test",
	}
}

// IssueTestToken signs an access token for the given identity
func IssueTestToken(t *testing.T, userID uint, role, name string) string {
	t.Helper()
	token, err := middleware.GenerateAccessToken(TestConfig(), userID, role, name)
	require.NoError(t, err)
	return token
}
