package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBudgetExhausted is returned when a learner has used up their generation tokens.
var ErrBudgetExhausted = errors.New("generation budget exhausted")

// BudgetChecker checks and records generation token usage per learner.
type BudgetChecker interface {
	// Check returns true if the learner has budget remaining.
	Check(ctx context.Context, learnerID string) (bool, error)
	// Record adds token usage for a learner.
	Record(ctx context.Context, learnerID string, tokens int) error
	// Usage returns current usage and limit; a zero limit means unlimited.
	Usage(ctx context.Context, learnerID string) (used int64, limit int64, err error)
}

// InMemoryBudget is a process-local budget tracker for development and tests.
type InMemoryBudget struct {
	mu           sync.RWMutex
	defaultLimit int64
	limits       map[string]int64
	usage        map[string]int64
}

// NewInMemoryBudget creates a tracker; defaultLimit of 0 means unlimited.
func NewInMemoryBudget(defaultLimit int64) *InMemoryBudget {
	return &InMemoryBudget{
		defaultLimit: defaultLimit,
		limits:       make(map[string]int64),
		usage:        make(map[string]int64),
	}
}

// SetLimit overrides the token limit for one learner.
func (b *InMemoryBudget) SetLimit(learnerID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[learnerID] = tokens
}

func (b *InMemoryBudget) limitFor(learnerID string) int64 {
	if l, ok := b.limits[learnerID]; ok {
		return l
	}
	return b.defaultLimit
}

func (b *InMemoryBudget) Check(_ context.Context, learnerID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	limit := b.limitFor(learnerID)
	if limit <= 0 {
		return true, nil
	}
	return b.usage[learnerID] < limit, nil
}

func (b *InMemoryBudget) Record(_ context.Context, learnerID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[learnerID] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, learnerID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[learnerID], b.limitFor(learnerID), nil
}

// RedisBudget tracks usage in Redis so that quotas hold across server replicas.
// Counters expire after window, giving a rolling daily (or other) allowance.
type RedisBudget struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisBudget creates a Redis-backed budget; limit of 0 means unlimited.
// Keys are the learner ID under prefix (default "skillforge:budget:").
func NewRedisBudget(client *redis.Client, prefix string, limit int64, window time.Duration) *RedisBudget {
	if prefix == "" {
		prefix = "skillforge:budget:"
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &RedisBudget{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (b *RedisBudget) key(learnerID string) string {
	return b.prefix + learnerID
}

func (b *RedisBudget) Check(ctx context.Context, learnerID string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	used, _, err := b.Usage(ctx, learnerID)
	if err != nil {
		return false, err
	}
	return used < b.limit, nil
}

func (b *RedisBudget) Record(ctx context.Context, learnerID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	key := b.key(learnerID)
	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.ExpireNX(ctx, key, b.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record budget usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, learnerID string) (int64, int64, error) {
	v, err := b.client.Get(ctx, b.key(learnerID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, b.limit, nil
	}
	if err != nil {
		return 0, b.limit, fmt.Errorf("read budget usage: %w", err)
	}
	used, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, b.limit, fmt.Errorf("parse budget usage: %w", err)
	}
	return used, b.limit, nil
}
