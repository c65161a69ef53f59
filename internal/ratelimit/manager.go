// Package ratelimit provides fixed-window request counters shared across
// proxy instances through Redis, plus an in-process fallback.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Limiter counts hits for key within a fixed window
type Limiter interface {
	// Allow records one hit. When the window already holds limit hits it
	// reports false and how long until the window resets.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

// Manager provides Redis-backed rate limiting
type Manager struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewManager connects to redisURL and verifies the connection
func NewManager(redisURL string) (*Manager, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewManagerWithClient(client), nil
}

// NewManagerWithClient wraps an existing client
func NewManagerWithClient(client *redis.Client) *Manager {
	return &Manager{redis: client, prefix: "checkout:rl", now: time.Now}
}

func (m *Manager) Close() error { return m.redis.Close() }

// Ping reports whether Redis is reachable
func (m *Manager) Ping(ctx context.Context) error { return m.redis.Ping(ctx).Err() }

// windowStart truncates t to the enclosing window
func windowStart(t time.Time, window time.Duration) time.Time {
	return t.Truncate(window)
}

func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := m.now().UTC()
	start := windowStart(now, window)
	rk := fmt.Sprintf("%s:%s:%d", m.prefix, key, start.Unix())

	// INCR and set TTL in one round trip
	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, rk)
	pipe.Expire(ctx, rk, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	if int(incr.Val()) > limit {
		return false, start.Add(window).Sub(now), nil
	}
	return true, 0, nil
}

// Count returns the hits recorded for key in the current window
func (m *Manager) Count(ctx context.Context, key string, window time.Duration) (int, error) {
	start := windowStart(m.now().UTC(), window)
	rk := fmt.Sprintf("%s:%s:%d", m.prefix, key, start.Unix())
	val, err := m.redis.Get(ctx, rk).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// MemoryLimiter is the single-instance fallback used without Redis
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	windowStart time.Time
	count       int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := l.now().UTC()
	start := windowStart(now, window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || !b.windowStart.Equal(start) {
		b = &bucket{windowStart: start}
		l.buckets[key] = b
		l.sweep(start)
	}
	if b.count >= limit {
		return false, start.Add(window).Sub(now), nil
	}
	b.count++
	return true, 0, nil
}

// sweep drops buckets from earlier windows; callers hold mu
func (l *MemoryLimiter) sweep(current time.Time) {
	for k, b := range l.buckets {
		if b.windowStart.Before(current) {
			delete(l.buckets, k)
		}
	}
}
