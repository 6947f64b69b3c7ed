package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/velorent/recovery/internal"
)

var ErrCooldownRedisUnavailable = errors.New("cooldown redis unavailable")

// CooldownStore throttles challenge requests per origin. Each entry stores
// the absolute retry time, so repeated requests inside one window always
// report the same retryAt instead of a sliding one.
type CooldownStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCooldownStore(redisClient redis.UniversalClient, prefix string) *CooldownStore {
	if prefix == "" {
		prefix = "vrcd"
	}
	return &CooldownStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *CooldownStore) key(origin string) string {
	return s.prefix + ":" + internal.KeyDigest(origin)
}

// Check reports whether origin is inside an active cooldown window and, if
// so, the absolute time at which the next request is allowed.
func (s *CooldownStore) Check(ctx context.Context, origin string) (bool, time.Time, error) {
	value, err := s.redis.Get(ctx, s.key(origin)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, fmt.Errorf("%w: %v", ErrCooldownRedisUnavailable, err)
	}

	retryAtUnix, parseErr := strconv.ParseInt(value, 10, 64)
	if parseErr != nil {
		// Corrupt entry, treat as no cooldown rather than locking the origin out.
		return false, time.Time{}, nil
	}

	return true, time.Unix(retryAtUnix, 0), nil
}

// Record starts a cooldown window for origin ending at retryAt.
func (s *CooldownStore) Record(ctx context.Context, origin string, retryAt time.Time, window time.Duration) error {
	value := strconv.FormatInt(retryAt.Unix(), 10)
	if err := s.redis.Set(ctx, s.key(origin), value, window).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCooldownRedisUnavailable, err)
	}
	return nil
}
