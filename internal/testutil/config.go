package testutil

import (
	"os"
	"strconv"
)

const (
	// Environment variable consulted by opt-in live API tests.
	TestEbayAppID = "TEST_EBAY_APP_ID"

	// Default credential used when the environment provides none.
	DefaultTestKey = "test-key"
)

// GetTestToken returns a test credential from the environment, or the
// default when unset.
func GetTestToken(envVar, defaultValue string) string {
	if token := os.Getenv(envVar); token != "" {
		return token
	}
	return defaultValue
}

// GetTestEbayAppID returns the Finding API app ID used by live tests.
func GetTestEbayAppID() string {
	return GetTestToken(TestEbayAppID, DefaultTestKey)
}

// IsTestMode reports whether tests should stay off the network. It
// defaults to true; set TEST_MODE=false to allow live API calls.
func IsTestMode() bool {
	testMode := os.Getenv("TEST_MODE")
	if testMode == "" {
		return true
	}

	enabled, _ := strconv.ParseBool(testMode)
	return enabled
}
