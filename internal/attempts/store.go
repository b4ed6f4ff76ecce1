package attempts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	countKeyPrefix = "attempts:count:"
	lockKeyPrefix  = "attempts:lock:"
)

// Store は失敗回数を Redis に保存する Limiter です。複数プロセスで状態を共有できます。
type Store struct {
	rdb    redis.UniversalClient
	policy Policy
}

// NewStore は Store を作成します。
func NewStore(rdb redis.UniversalClient, policy Policy) *Store {
	return &Store{
		rdb:    rdb,
		policy: policy.withDefaults(),
	}
}

func (s *Store) CheckLock(ctx context.Context, client string) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, lockKey(client)).Result()
	if err != nil {
		return 0, fmt.Errorf("check lock: %w", err)
	}
	// キーが存在しない (-2) / 期限なし (-1) はロックなしとして扱う
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *Store) RecordFailure(ctx context.Context, client string) (int, error) {
	key := countKey(client)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	// 最初の失敗から Window の間だけ数える
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, s.policy.Window).Err(); err != nil {
			return 0, fmt.Errorf("set window: %w", err)
		}
	}

	count := int(n)
	if count >= s.policy.MaxAttempts {
		if err := s.rdb.Set(ctx, lockKey(client), count, s.policy.LockDuration).Err(); err != nil {
			return 0, fmt.Errorf("set lock: %w", err)
		}
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("clear counter: %w", err)
		}
		return 0, nil
	}
	return s.policy.MaxAttempts - count, nil
}

func (s *Store) Reset(ctx context.Context, client string) error {
	return s.rdb.Del(ctx, countKey(client), lockKey(client)).Err()
}

func countKey(client string) string {
	return countKeyPrefix + client
}

func lockKey(client string) string {
	return lockKeyPrefix + client
}
