// Package redis provides the Redis-backed security cache used by alert
// actions.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/config"
)

// Client wraps the Redis client.
type Client struct {
	*redis.Client
}

// NewClient creates a new Redis client.
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().
		Str("address", cfg.Address()).
		Int("db", cfg.DB).
		Msg("Redis connection established")

	return &Client{client}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if err := c.Client.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}
	log.Info().Msg("Redis connection closed")
	return nil
}

const (
	lockPrefix    = "datacore:lock:"
	disablePrefix = "datacore:sessions_disabled:"
)

// SecurityCache executes the stateful alert responses: account locks and
// session revocation markers. Other services consult it before serving
// a locked account or a revoked session.
type SecurityCache struct {
	client *Client
}

// NewSecurityCache creates a SecurityCache.
func NewSecurityCache(client *Client) *SecurityCache {
	return &SecurityCache{client: client}
}

// LockAccount marks an account as locked for the given duration.
func (c *SecurityCache) LockAccount(ctx context.Context, userID string, duration time.Duration) error {
	key := lockPrefix + userID
	return c.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), duration).Err()
}

// IsLocked reports whether an account is currently locked.
func (c *SecurityCache) IsLocked(ctx context.Context, userID string) (bool, error) {
	key := lockPrefix + userID
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// UnlockAccount removes an account lock before its natural expiry.
func (c *SecurityCache) UnlockAccount(ctx context.Context, userID string) error {
	key := lockPrefix + userID
	return c.client.Del(ctx, key).Err()
}

// DisableSessions records that every session of the user issued before now
// must be rejected.
func (c *SecurityCache) DisableSessions(ctx context.Context, userID string) error {
	key := disablePrefix + userID
	return c.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), 0).Err()
}

// SessionsDisabledSince returns the cutoff before which the user's
// sessions are invalid, or the zero time when none is recorded.
func (c *SecurityCache) SessionsDisabledSince(ctx context.Context, userID string) (time.Time, error) {
	key := disablePrefix + userID
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, val)
}
