// Package cache wraps Redis helpers for JSON payloads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSON stores JSON payloads with a fixed TTL. A nil *JSON or a nil client is a no-op cache.
type JSON struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a cache helper. A non-positive ttl disables caching.
func New(client *redis.Client, ttl time.Duration) *JSON {
	return &JSON{client: client, ttl: ttl}
}

func (c *JSON) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *JSON) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *JSON) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Version returns the current generation of namespace. Keys built from it go
// stale together when Bump is called.
func (c *JSON) Version(ctx context.Context, namespace string) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	v, err := c.client.Get(ctx, versionKey(namespace)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Bump invalidates every key derived from namespace's current version.
func (c *JSON) Bump(ctx context.Context, namespace string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(namespace)).Err()
}

func versionKey(namespace string) string {
	return "cachever:" + namespace
}

// Versioned joins namespace, version and parts into one key.
func Versioned(namespace string, version int64, parts ...string) string {
	key := namespace + ":v" + strconv.FormatInt(version, 10)
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
