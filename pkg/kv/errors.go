package kv

import "errors"

var (
	// ErrNotFound indicates the key does not exist or has expired.
	ErrNotFound = errors.New("kv: key not found")

	// ErrFailedToParseConnString indicates the Redis connection URL is invalid.
	ErrFailedToParseConnString = errors.New("kv: failed to parse redis connection string")

	// ErrStoreNotReady indicates the store did not become reachable within
	// the configured retry window.
	ErrStoreNotReady = errors.New("kv: store did not become ready within the given time period")

	// ErrHealthcheckFailed indicates a ping against the store failed.
	ErrHealthcheckFailed = errors.New("kv: healthcheck failed")
)
