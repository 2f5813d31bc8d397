// Package cancel implements the cooperative cancellation gate: a poll-based
// stop flag keyed by job ID, settable by an external actor and read by the
// orchestrator between units of work. Flags carry a TTL so jobs that never
// poll cannot leak cancellation state.
package cancel

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "task:cancel:"
	// DefaultTTL bounds how long an unconsumed flag survives.
	DefaultTTL = time.Hour
)

// Gate is the cancellation flag store. Request sets the flag, Cancelled
// polls it, Clear removes it; Clear must run when a job reaches any
// terminal state.
type Gate interface {
	Request(ctx context.Context, jobID string) error
	Cancelled(ctx context.Context, jobID string) (bool, error)
	Clear(ctx context.Context, jobID string) error
}

// Key returns the store key for a job's flag.
func Key(jobID string) string {
	return keyPrefix + jobID
}

// RedisGate stores flags in the shared Redis used by the job scheduler, so
// API-side cancellation requests reach running workers.
type RedisGate struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisGate wraps an existing client. ttl <= 0 selects DefaultTTL.
func NewRedisGate(client redis.UniversalClient, ttl time.Duration) *RedisGate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGate{client: client, ttl: ttl}
}

// Request sets the cancellation flag for a job.
func (g *RedisGate) Request(ctx context.Context, jobID string) error {
	return g.client.Set(ctx, Key(jobID), "1", g.ttl).Err()
}

// Cancelled reports whether cancellation was requested for a job.
func (g *RedisGate) Cancelled(ctx context.Context, jobID string) (bool, error) {
	n, err := g.client.Exists(ctx, Key(jobID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes the flag once the job has reached a terminal state.
func (g *RedisGate) Clear(ctx context.Context, jobID string) error {
	return g.client.Del(ctx, Key(jobID)).Err()
}

// MemoryGate is an in-process Gate for tests and single-binary embedding.
type MemoryGate struct {
	mu    sync.Mutex
	ttl   time.Duration
	flags map[string]time.Time
	now   func() time.Time
}

// NewMemoryGate builds an in-memory gate. ttl <= 0 selects DefaultTTL.
func NewMemoryGate(ttl time.Duration) *MemoryGate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGate{
		ttl:   ttl,
		flags: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Request sets the cancellation flag for a job.
func (g *MemoryGate) Request(_ context.Context, jobID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flags[jobID] = g.now().Add(g.ttl)
	return nil
}

// Cancelled reports whether a non-expired flag exists for the job.
func (g *MemoryGate) Cancelled(_ context.Context, jobID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.flags[jobID]
	if !ok {
		return false, nil
	}
	if g.now().After(expiry) {
		delete(g.flags, jobID)
		return false, nil
	}
	return true, nil
}

// Clear removes the flag.
func (g *MemoryGate) Clear(_ context.Context, jobID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.flags, jobID)
	return nil
}
