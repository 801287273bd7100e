package testutil

import (
	"os"
	"testing"
)

// MustSetTestEnvironment forces GO_ENV=test. Call it from suite setup so
// config loading never reaches for a development or production .env file.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("failed to set GO_ENV=test: %v", err)
	}
}

// RequireTestEnvironment fails the test if GO_ENV is not "test". It guards
// suites that open database connections against running outside the test
// environment.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	if env := os.Getenv("GO_ENV"); env != "test" {
		t.Fatalf("tests must run with GO_ENV=test, got %q", env)
	}
}
