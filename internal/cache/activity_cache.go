// Package cache provides a Redis read-through cache for catalog activities.
// Only immutable activity fields are cached. Occupancy and rosters are always
// read from the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/carebook/internal/application"
)

const keyPrefix = "carebook:activity:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ActivityCache stores activities as JSON under a per-id key with a TTL.
type ActivityCache struct {
	client store
	closer func() error
	ttl    time.Duration
}

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, opts Options) (*ActivityCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	c := newActivityCache(rdb, opts.TTL)
	c.closer = rdb.Close
	return c, nil
}

func newActivityCache(client store, ttl time.Duration) *ActivityCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ActivityCache{client: client, ttl: ttl}
}

type cachedActivity struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Capacity    int       `json:"capacity"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetActivity returns the cached activity, reporting false on a miss.
func (c *ActivityCache) GetActivity(ctx context.Context, id string) (application.Activity, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return application.Activity{}, false, nil
		}
		return application.Activity{}, false, fmt.Errorf("cache lookup error: %w", err)
	}

	var entry cachedActivity
	if err := json.Unmarshal(raw, &entry); err != nil {
		return application.Activity{}, false, fmt.Errorf("invalid cached activity %s: %w", id, err)
	}
	return application.Activity{
		ID:          entry.ID,
		Title:       entry.Title,
		Description: entry.Description,
		Start:       entry.Start,
		End:         entry.End,
		Capacity:    entry.Capacity,
		CreatedBy:   entry.CreatedBy,
		CreatedAt:   entry.CreatedAt,
	}, true, nil
}

// SetActivity writes the activity with the configured TTL.
func (c *ActivityCache) SetActivity(ctx context.Context, activity application.Activity) error {
	raw, err := json.Marshal(cachedActivity{
		ID:          activity.ID,
		Title:       activity.Title,
		Description: activity.Description,
		Start:       activity.Start,
		End:         activity.End,
		Capacity:    activity.Capacity,
		CreatedBy:   activity.CreatedBy,
		CreatedAt:   activity.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, keyPrefix+activity.ID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

// Close releases the Redis client.
func (c *ActivityCache) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}
