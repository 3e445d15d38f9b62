package config

import (
	"os"
	"strings"
	"time"
)

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}

// ReportCacheEnabled turns on the revision-keyed redis cache for aggregations.
//
// Set via env:
// - ENABLE_REPORT_CACHE=true
func ReportCacheEnabled() bool {
	return boolFromEnv("ENABLE_REPORT_CACHE")
}

// OutboxDispatchEnabled starts the in-process outbox dispatcher in server.go.
//
// Set via env:
// - OUTBOX_DISPATCH=true
func OutboxDispatchEnabled() bool {
	return boolFromEnv("OUTBOX_DISPATCH")
}

// ConfirmLockTTL bounds how long a confirmation holds the redis record lock.
// Env: CONFIRM_LOCK_TTL_SECONDS (default 15s)
func ConfirmLockTTL() time.Duration {
	return time.Duration(intFromEnv("CONFIRM_LOCK_TTL_SECONDS", 15)) * time.Second
}

// DefaultPhoneRegion is the libphonenumber region used when a party phone has no country prefix.
// Env: DEFAULT_PHONE_REGION (default IN)
func DefaultPhoneRegion() string {
	return strings.ToUpper(envOrDefault("DEFAULT_PHONE_REGION", "IN"))
}

// DefaultCurrency for new workbenches. Env: DEFAULT_CURRENCY (default INR)
func DefaultCurrency() string {
	return strings.ToUpper(envOrDefault("DEFAULT_CURRENCY", "INR"))
}
