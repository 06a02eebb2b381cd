package ratelimit

import (
	"context"
	"time"
)

// Default limits mirror the values the service shipped with before they
// became configurable.
const (
	DefaultRequests = 5
	DefaultWindow   = 60 * time.Second
)

// Config controls how many operations a single identity may perform within
// the trailing window.
type Config struct {
	Requests int
	Window   time.Duration
	Clock    func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Requests <= 0 {
		c.Requests = DefaultRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Decision reports the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter bounds request frequency per identity using a sliding window: stale
// events are evicted continuously, never reset wholesale at window edges.
// A denied call must not mutate limiter state.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
