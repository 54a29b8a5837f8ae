package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultCredentialChunkSize        = 500
	defaultCredentialChunkParallelism = 4
)

// CredentialChunkSize is how many transaction ids go into one credential lookup.
// Oversized IN lists are rejected by the backend outright.
//
// Set via env:
// - CREDENTIAL_CHUNK_SIZE=500
func CredentialChunkSize() int {
	n := IntFromEnv("CREDENTIAL_CHUNK_SIZE", defaultCredentialChunkSize)
	if n <= 0 {
		return defaultCredentialChunkSize
	}
	return n
}

// CredentialChunkParallelism bounds concurrent chunk requests.
//
// Set via env:
// - CREDENTIAL_CHUNK_PARALLELISM=4
func CredentialChunkParallelism() int {
	n := IntFromEnv("CREDENTIAL_CHUNK_PARALLELISM", defaultCredentialChunkParallelism)
	if n <= 0 {
		return defaultCredentialChunkParallelism
	}
	return n
}

// ReportCacheEnabled turns on the Redis financial report cache.
//
// Set via env:
// - ENABLE_REPORT_CACHE=true
func ReportCacheEnabled() bool {
	return BoolFromEnv("ENABLE_REPORT_CACHE")
}

// ReportCacheTTL defaults to 120s (REPORT_CACHE_TTL_SECONDS).
func ReportCacheTTL() time.Duration {
	ttl := IntFromEnv("REPORT_CACHE_TTL_SECONDS", 120)
	if ttl <= 0 {
		ttl = 120
	}
	return time.Duration(ttl) * time.Second
}

// ReportSlowThreshold defaults to 500ms (REPORT_SLOW_MS).
func ReportSlowThreshold() time.Duration {
	ms := IntFromEnv("REPORT_SLOW_MS", 500)
	if ms <= 0 {
		ms = 500
	}
	return time.Duration(ms) * time.Millisecond
}

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func BoolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}
