// Package limits caps the number of simultaneously active outbound calls.
package limits

import (
	"context"
	"errors"
	"time"

	"voice-gateway/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var ErrTooManyCalls = errors.New("limits: outbound call cap reached")

// Releaser frees one previously acquired call slot.
type Releaser interface {
	Release(ctx context.Context) error
}

// Cap limits concurrent outbound calls across all gateway instances using the
// shared redis counter. A TTL on the counter prevents leaked slots when a
// process dies between acquire and release.
type Cap struct {
	rdb   *redis.Client
	key   string
	limit int
	ttl   time.Duration
}

func NewCap(rdb *redis.Client, key string, limit int, ttl time.Duration) *Cap {
	if key == "" {
		key = "voice:outbound:active"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cap{rdb: rdb, key: key, limit: limit, ttl: ttl}
}

// Acquire takes one slot or returns ErrTooManyCalls.
func (c *Cap) Acquire(ctx context.Context) error {
	if c == nil || c.rdb == nil || c.limit <= 0 {
		return nil
	}
	ok, err := utils.AcquireConcurrencyCap(ctx, c.rdb, c.key, c.limit, c.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTooManyCalls
	}
	return nil
}

func (c *Cap) Release(ctx context.Context) error {
	if c == nil || c.rdb == nil || c.limit <= 0 {
		return nil
	}
	return utils.ReleaseConcurrencyCap(ctx, c.rdb, c.key)
}

// NopReleaser satisfies Releaser when no cap is configured.
type NopReleaser struct{}

func (NopReleaser) Release(ctx context.Context) error { return nil }
