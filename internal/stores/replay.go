package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/velorent/recovery/internal"
)

var ErrReplayRedisUnavailable = errors.New("replay redis unavailable")

// ReplayStore marks reset tokens as used for the remainder of their
// lifetime. Consume is a bare SET NX, so exactly one caller wins even
// under concurrent submission of the same token.
type ReplayStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewReplayStore(redisClient redis.UniversalClient, prefix string) *ReplayStore {
	if prefix == "" {
		prefix = "vrtu"
	}
	return &ReplayStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ReplayStore) key(tokenID string) string {
	return s.prefix + ":" + internal.KeyDigest(tokenID)
}

// Consume marks tokenID as used. It returns true when this call was the
// first use; false means the token has already been spent.
func (s *ReplayStore) Consume(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}

	firstUse, err := s.redis.SetNX(ctx, s.key(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrReplayRedisUnavailable, err)
	}

	return firstUse, nil
}

// Release removes the used marker for tokenID. It is called when the reset
// failed after the marker was taken, so the token stays valid for a retry.
func (s *ReplayStore) Release(ctx context.Context, tokenID string) error {
	if err := s.redis.Del(ctx, s.key(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrReplayRedisUnavailable, err)
	}
	return nil
}

// IsUsed reports whether tokenID has already been spent.
func (s *ReplayStore) IsUsed(ctx context.Context, tokenID string) (bool, error) {
	count, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrReplayRedisUnavailable, err)
	}
	return count > 0, nil
}
