package app

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/contactly/contactly/internal/ratelimit"
	"github.com/contactly/contactly/pkg/logger"
)

// Maintenance runs periodic housekeeping jobs in the background.
type Maintenance struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewMaintenance schedules the recurring jobs. When the limiter is an
// in-memory one, its idle identities are pruned every minute so keys that
// went quiet do not accumulate.
func NewMaintenance(limiter ratelimit.Limiter) *Maintenance {
	m := &Maintenance{
		cron: cron.New(),
		log:  logger.WithModule("maintenance"),
	}

	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		_, err := m.cron.AddFunc("@every 1m", func() {
			if removed := mem.PruneIdle(); removed > 0 {
				m.log.Debug("pruned idle rate limit identities", zap.Int("removed", removed))
			}
		})
		if err != nil {
			m.log.Error("failed to schedule limiter pruning", zap.Error(err))
		}
	}

	return m
}

// Start launches the scheduler.
func (m *Maintenance) Start() {
	m.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}
