package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "effmap"

// MapCache stores serialized effective maps in Redis. Entries are never
// deleted on invalidation: each venue has a generation counter that is part
// of every key, so bumping it orphans all older entries until their TTL runs out.
type MapCache struct {
	client *redis.Client
}

// NewMapCache wraps an existing client.
func NewMapCache(client *redis.Client) *MapCache {
	return &MapCache{client: client}
}

// Connect creates a client for addr and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// GenerationKey is the counter bumped by Invalidate.
func GenerationKey(venueID string) string {
	return fmt.Sprintf("%s:%s:gen", keyPrefix, venueID)
}

// EntryKey identifies one cached effective map.
func EntryKey(venueID, eventID string, bucket time.Time, generation int64) string {
	if eventID == "" {
		eventID = "-"
	}
	return fmt.Sprintf("%s:%s:%d:%s:%d", keyPrefix, venueID, generation, eventID, bucket.UTC().Unix())
}

// Generation returns the current generation of a venue, 0 when never bumped.
func (c *MapCache) Generation(ctx context.Context, venueID string) (int64, error) {
	n, err := c.client.Get(ctx, GenerationKey(venueID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return n, nil
}

// Get returns the cached bytes and whether the key was present.
func (c *MapCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return val, true, nil
}

func (c *MapCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Invalidate bumps the venue generation.
func (c *MapCache) Invalidate(ctx context.Context, venueID string) error {
	if err := c.client.Incr(ctx, GenerationKey(venueID)).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}
