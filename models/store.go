package models

import (
	"context"
	"time"
)

// KeyValueStore is a key-value store with hash-per-key values, string values with expiry, and key enumeration by
// prefix. Single-field writes (HSet, HDel, SetEx) are atomic on every adapter. HSetAll and Del are atomic on the SQL and
// memory stores, but DynamoDB applies them in batches of 25 items, so readers may observe them partially applied.
type KeyValueStore interface {
	HSet(ctx context.Context, key, field, value string) error
	HSetAll(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key, field string) error
	// Get reports false when the key is absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
