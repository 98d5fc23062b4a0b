package usecase

import (
	"context"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/pkg/logger"
)

type ScheduleConfig struct {
	RateInterval    time.Duration
	HoldingInterval time.Duration
	SkipInitialRun  bool
}

// Scheduler emits the periodic pipeline triggers.
type Scheduler struct {
	bus    Emitter
	cfg    ScheduleConfig
	logger *logger.Logger
}

func NewScheduler(bus Emitter, cfg ScheduleConfig, lgr *logger.Logger) *Scheduler {
	return &Scheduler{bus: bus, cfg: cfg, logger: lgr.With(logger.Component("scheduler"))}
}

// Run blocks until ctx is cancelled. A non-positive interval disables that
// trigger.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.cfg.SkipInitialRun {
		s.bus.Emit(ctx, models.EventUpdateRate, "Initial rate update")
	}

	rateC, stopRate := tick(s.cfg.RateInterval)
	defer stopRate()
	holdingC, stopHolding := tick(s.cfg.HoldingInterval)
	defer stopHolding()

	s.logger.Info("scheduler started",
		logger.Duration("rate_interval", s.cfg.RateInterval),
		logger.Duration("holding_interval", s.cfg.HoldingInterval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-rateC:
			s.bus.Emit(ctx, models.EventUpdateRate, "Scheduled rate update")
		case <-holdingC:
			s.bus.Emit(ctx, models.EventUpdateHolding, "Scheduled holding update")
		}
	}
}

// tick returns a nil channel for d <= 0, which never fires in a select.
func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}
