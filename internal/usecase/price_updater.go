package usecase

import (
	"context"
	"fmt"
	"sync/atomic"

	drepo "Wonderland/internal/domain/repository"
	"Wonderland/internal/market"
	"Wonderland/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// PriceAsset maps a market symbol to its price feed id.
type PriceAsset struct {
	Symbol string
	FeedID string
}

// PriceUpdater refreshes spot and historical prices for every pair asset.
type PriceUpdater struct {
	feed        drepo.PriceFeed
	state       *market.State
	assets      []PriceAsset
	concurrency int
	metrics     drepo.Metrics
	logger      *logger.Logger
}

// NewPriceUpdater keeps only the assets that appear in pairs, in first-seen
// pair order.
func NewPriceUpdater(feed drepo.PriceFeed, state *market.State, assets []PriceAsset, pairs []market.Pair, concurrency int, metrics drepo.Metrics, lgr *logger.Logger) *PriceUpdater {
	if concurrency <= 0 {
		concurrency = 2
	}
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	return &PriceUpdater{
		feed:        feed,
		state:       state,
		assets:      usedAssets(assets, pairs),
		concurrency: concurrency,
		metrics:     metrics,
		logger:      lgr.With(logger.Component("price_updater")),
	}
}

func usedAssets(assets []PriceAsset, pairs []market.Pair) []PriceAsset {
	bySymbol := make(map[string]PriceAsset, len(assets))
	for _, a := range assets {
		bySymbol[a.Symbol] = a
	}
	seen := make(map[string]struct{}, len(assets))
	var out []PriceAsset
	for _, p := range pairs {
		for _, sym := range []string{p.Base, p.Quote} {
			if _, ok := seen[sym]; ok {
				continue
			}
			a, ok := bySymbol[sym]
			if !ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// Assets returns the assets this updater fetches.
func (u *PriceUpdater) Assets() []PriceAsset { return append([]PriceAsset(nil), u.assets...) }

// Run fetches every (asset, interval) with bounded concurrency. Individual
// failures are logged and skipped; the run fails only when nothing was fetched.
func (u *PriceUpdater) Run(ctx context.Context) error {
	intervals := append(u.state.Intervals(), u.state.Spot())

	var fetched, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for _, asset := range u.assets {
		for _, interval := range intervals {
			asset, interval := asset, interval
			g.Go(func() error {
				price, err := u.feed.HistoricalPrice(gctx, asset.FeedID, interval)
				if err != nil {
					failed.Add(1)
					u.metrics.RecordError("price_feed")
					u.logger.Warn("price fetch failed",
						logger.String("symbol", asset.Symbol),
						logger.String("interval", interval),
						logger.Error(err))
					return nil
				}
				u.state.SetPrice(asset.Symbol, interval, price)
				if interval == u.state.Spot() {
					u.metrics.RecordLastPrice(asset.Symbol, price)
				}
				fetched.Add(1)
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	u.logger.Info("prices updated",
		logger.Int("assets", len(u.assets)),
		logger.Int64("fetched", fetched.Load()),
		logger.Int64("failed", failed.Load()))
	if fetched.Load() == 0 && failed.Load() > 0 {
		return fmt.Errorf("price update: all %d fetches failed", failed.Load())
	}
	return nil
}
