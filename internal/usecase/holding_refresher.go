package usecase

import (
	"context"
	"fmt"

	drepo "Wonderland/internal/domain/repository"
	"Wonderland/pkg/logger"
)

// HoldingRefresher appends the current wallet holdings to the journal.
type HoldingRefresher struct {
	holdings drepo.HoldingsProvider
	journal  drepo.Journal
	logger   *logger.Logger
}

func NewHoldingRefresher(holdings drepo.HoldingsProvider, journal drepo.Journal, lgr *logger.Logger) *HoldingRefresher {
	return &HoldingRefresher{
		holdings: holdings,
		journal:  journal,
		logger:   lgr.With(logger.Component("holding_refresher")),
	}
}

func (r *HoldingRefresher) Run(ctx context.Context) error {
	snap, err := r.holdings.Holdings(ctx)
	if err != nil {
		return fmt.Errorf("load holdings: %w", err)
	}
	if err := r.journal.SaveHoldingSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save holdings: %w", err)
	}
	r.logger.Info("holdings stored",
		logger.String("id", snap.ID),
		logger.Int("tokens", len(snap.Holdings)),
		logger.Float64("tracked_usd", snap.TotalTrackedUsd))
	return nil
}
