// Package ratelimit limits contact-form submissions per client key.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter reports whether one more event for key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory keeps a sliding log per key: at most n accepted events in any
// window of length per. Rejected events are not logged.
// State lives in the process, so each warm instance limits on its own.
type Memory struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	n    int
	per  time.Duration
	now  func() time.Time
}

func NewMemory(n int, per time.Duration) *Memory {
	if n <= 0 {
		n = 1
	}
	return &Memory{
		hits: make(map[string][]time.Time),
		n:    n,
		per:  per,
		now:  time.Now,
	}
}

// WithClock replaces the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, log := range m.hits {
		if k != key && len(m.recent(log, now)) == 0 {
			delete(m.hits, k)
		}
	}
	log := m.recent(m.hits[key], now)
	if len(log) >= m.n {
		m.hits[key] = log
		return false, nil
	}
	m.hits[key] = append(log, now)
	return true, nil
}

// recent drops timestamps at least per old. log is sorted.
func (m *Memory) recent(log []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(log) && now.Sub(log[i]) >= m.per {
		i++
	}
	return log[i:]
}

// Len is the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

// Redis keeps the same sliding log in a sorted set per key, scored by
// unix milliseconds, shared by every instance.
type Redis struct {
	client *redis.Client
	prefix string
	n      int64
	per    time.Duration
	now    func() time.Time
	seq    atomic.Uint64
}

func NewRedis(client *redis.Client, n int, per time.Duration) *Redis {
	return &Redis{client: client, prefix: "contentproxy:ratelimit:", n: int64(n), per: per, now: time.Now}
}

// NewRedisFromURL parses a redis:// URL.
func NewRedisFromURL(rawURL string, n int, per time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return NewRedis(redis.NewClient(opts), n, per), nil
}

// WithClock replaces the time source.
func (r *Redis) WithClock(now func() time.Time) *Redis {
	r.now = now
	return r
}

// Allow adds the event, counts the window and takes the event back out when
// the window was already full.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.prefix + key
	now := r.now()
	cutoff := now.Add(-r.per).UnixMilli()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, k, &redis.Z{Score: float64(now.UnixMilli()), Member: member})
	count := pipe.ZCard(ctx, k)
	pipe.Expire(ctx, k, r.per)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	if count.Val() <= r.n {
		return true, nil
	}
	if err := r.client.ZRem(ctx, k, member).Err(); err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return false, nil
}

func (r *Redis) Close() error { return r.client.Close() }
