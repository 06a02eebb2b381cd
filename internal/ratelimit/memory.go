package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// MemoryLimiter is a process-local sliding-window limiter. Keys are spread
// over sharded mutexes so concurrent checks for distinct identities do not
// serialise behind a single lock; the check-then-append for one identity is
// atomic under its shard lock.
type MemoryLimiter struct {
	cfg    Config
	shards [shardCount]*memoryShard
}

type memoryShard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryLimiter constructs an in-memory limiter with the supplied limits.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	l := &MemoryLimiter{cfg: cfg.withDefaults()}
	for i := range l.shards {
		l.shards[i] = &memoryShard{windows: make(map[string][]time.Time)}
	}
	return l
}

// Allow records the current instant against key when permitted. When the key
// already carries Requests timestamps inside the trailing window it returns a
// denial and records nothing.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.cfg.Clock()
	cutoff := now.Add(-l.cfg.Window)

	shard := l.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	stamps := shard.windows[key]

	// Evict from the front: timestamps are appended in order, so the stale
	// ones are always a prefix.
	idx := 0
	for idx < len(stamps) && stamps[idx].Before(cutoff) {
		idx++
	}
	stamps = stamps[idx:]

	if len(stamps) >= l.cfg.Requests {
		shard.windows[key] = stamps
		return Decision{
			Allowed:    false,
			Limit:      l.cfg.Requests,
			Remaining:  0,
			RetryAfter: l.cfg.Window - now.Sub(stamps[0]),
		}, nil
	}

	stamps = append(stamps, now)
	shard.windows[key] = stamps

	return Decision{
		Allowed:   true,
		Limit:     l.cfg.Requests,
		Remaining: l.cfg.Requests - len(stamps),
	}, nil
}

// PruneIdle drops identities whose every recorded timestamp has left the
// window, bounding memory for identities that went quiet. Returns the number
// of keys removed.
func (l *MemoryLimiter) PruneIdle() int {
	cutoff := l.cfg.Clock().Add(-l.cfg.Window)
	removed := 0

	for _, shard := range l.shards {
		shard.mu.Lock()
		for key, stamps := range shard.windows {
			if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
				delete(shard.windows, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}

	return removed
}

func (l *MemoryLimiter) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}
