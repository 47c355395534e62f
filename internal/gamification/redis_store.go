package gamification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists gamification state in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore namespaces every key under prefix (default "gamification:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gamification:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("gamification: redis get: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("gamification: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, s.key(key), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("gamification: redis incrby: %w", err)
	}
	return n, nil
}

func (s *RedisStore) ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error) {
	score, err := s.client.ZIncrBy(ctx, s.key(key), delta, member).Result()
	if err != nil {
		return 0, fmt.Errorf("gamification: redis zincrby: %w", err)
	}
	return score, nil
}

func (s *RedisStore) ZScore(ctx context.Context, key, member string) (float64, error) {
	score, err := s.client.ZScore(ctx, s.key(key), member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("gamification: redis zscore: %w", err)
	}
	return score, nil
}

func (s *RedisStore) ZAll(ctx context.Context, key string) ([]Member, error) {
	zs, err := s.client.ZRangeWithScores(ctx, s.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("gamification: redis zrange: %w", err)
	}
	out := make([]Member, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Member{ID: id, Score: z.Score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RedisStore) SAdd(ctx context.Context, key, member string) (bool, error) {
	n, err := s.client.SAdd(ctx, s.key(key), member).Result()
	if err != nil {
		return false, fmt.Errorf("gamification: redis sadd: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("gamification: redis smembers: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

var _ Store = (*RedisStore)(nil)
