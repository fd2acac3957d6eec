// Package cache memoizes pkg/matching.Score results in front of the pure
// core, keyed by the SHA-256 content hash of the two raw (not normalized)
// input occurrences — the same dedup strategy app.py applies to occurrence
// payloads via get_hash. The core itself holds no cache (spec §5).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/bitem-heg-geneve/occmatch/pkg/matching"
)

// Cache wraps a Redis client with content-hash memoization and
// single-flight request collapsing, so N concurrent requests for the same
// pair only ever compute the score once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// New builds a Cache against the given Redis connection string
// (redis://host:port/db).
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	return &Cache{client: redis.NewClient(opts), ttl: ttl}, nil
}

// NewWithClient builds a Cache around an already-constructed Redis client,
// used by tests to inject a miniredis-backed client without a URL round trip.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// pairKey returns the cache key for a subject/related pair: the SHA-256
// hash of the two occurrences' canonical JSON encodings, concatenated in
// call order (scoring is not assumed commutative at the cache layer even
// though most scorers are symmetric — $global need not be).
func pairKey(subject, related matching.Occurrence) (string, error) {
	subjectJSON, err := json.Marshal(subject)
	if err != nil {
		return "", fmt.Errorf("cache: encode subject: %w", err)
	}
	relatedJSON, err := json.Marshal(related)
	if err != nil {
		return "", fmt.Errorf("cache: encode related: %w", err)
	}
	sum := sha256.Sum256(append(subjectJSON, relatedJSON...))
	return "occmatch:score:" + hex.EncodeToString(sum[:]), nil
}

// Score returns the memoized result of matching.Score(subject, related),
// computing and storing it on a cache miss. Concurrent calls for the same
// pair are collapsed via singleflight so only one of them hits compute.
func (c *Cache) Score(ctx context.Context, subject, related matching.Occurrence, compute func() (matching.Result, error)) (matching.Result, error) {
	key, err := pairKey(subject, related)
	if err != nil {
		return nil, err
	}

	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var result matching.Result
		if jsonErr := json.Unmarshal([]byte(cached), &result); jsonErr == nil {
			return result, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(result); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttl).Err()
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(matching.Result), nil
}
