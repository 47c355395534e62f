// Package gamification tracks loyalty points, daily streaks, challenge
// progress and the points leaderboard behind a small key-value Store.
package gamification

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get for a missing key.
var ErrNotFound = errors.New("gamification: not found")

// Member is a scored sorted-set entry.
type Member struct {
	ID    string
	Score float64
}

// Store is the persistence boundary. All operations on a single key are
// atomic; multi-key sequences are not.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
	ZAll(ctx context.Context, key string) ([]Member, error)
	SAdd(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
}
