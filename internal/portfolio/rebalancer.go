package portfolio

import (
	"context"
	"fmt"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/domain/repository"
	"Wonderland/pkg/logger"
)

type Config struct {
	StableCoin string
	DeadZone   float64
	Quantum    float64
}

// TradeResult is the outcome of one executed (or skipped) trade.
type TradeResult struct {
	Trade
	Executed float64 `json:"executed"`
	TxHash   string  `json:"tx_hash,omitempty"`
	Error    string  `json:"error,omitempty"`
	Success  bool    `json:"success"`
	Partial  bool    `json:"partial"`
}

type Result struct {
	Target      []models.TargetAllocation `json:"target"`
	Adjustments []models.Adjustment       `json:"adjustments"`
	Trades      []TradeResult             `json:"trades"`
	Executed    int                       `json:"executed"`
	Failed      int                       `json:"failed"`
	Partial     bool                      `json:"partial"`
	Elapsed     time.Duration             `json:"elapsed"`
}

// Details summarizes the run for the action journal.
func (r *Result) Details() models.ActionDetails {
	return models.ActionDetails{
		TargetPortfolio: r.Target,
		Executed:        r.Executed,
		Failed:          r.Failed,
		Partial:         r.Partial,
	}
}

type Rebalancer struct {
	cfg     Config
	swapper repository.SwapExecutor
	guard   *Guard
	metrics repository.Metrics
	logger  *logger.Logger
}

func NewRebalancer(cfg Config, swapper repository.SwapExecutor, guard *Guard, metrics repository.Metrics, lgr *logger.Logger) *Rebalancer {
	if cfg.DeadZone <= 0 {
		cfg.DeadZone = 2
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = 5
	}
	if guard == nil {
		guard = NewGuard(nil, 0)
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Rebalancer{
		cfg:     cfg,
		swapper: swapper,
		guard:   guard,
		metrics: metrics,
		logger:  lgr.With(logger.Component("rebalancer")),
	}
}

// Rebalance moves holdings toward target. Validation failures return before
// any swap; individual swap failures are recorded and the run continues.
func (r *Rebalancer) Rebalance(ctx context.Context, holdings []models.TokenHolding, target []models.TargetAllocation) (*Result, error) {
	release, err := r.guard.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	if err := CheckCompleteness(holdings, target); err != nil {
		return nil, err
	}
	normalized, err := Normalize(target, r.cfg.Quantum)
	if err != nil {
		return nil, err
	}
	for _, t := range normalized {
		r.metrics.RecordTargetWeight(t.CoinType, t.TargetPercentage)
	}

	byType := make(map[string]models.TokenHolding, len(holdings))
	var total float64
	for _, h := range holdings {
		byType[h.CoinType] = h
		total += h.BalanceUsd
	}
	stable := byType[r.cfg.StableCoin]

	adjs := Adjustments(holdings, normalized, r.cfg.DeadZone, r.cfg.StableCoin)
	trades := Route(adjs, PlanInput{
		StableCoin:      r.cfg.StableCoin,
		StablePrice:     stable.CoinPrice,
		TotalTrackedUsd: total,
	})

	res := &Result{Target: normalized, Adjustments: adjs}
	r.logger.Info("rebalance planned",
		logger.Int("adjustments", len(adjs)),
		logger.Int("trades", len(trades)),
		logger.Float64("total_usd", total),
	)

	available := stable.Balance
	for _, tr := range trades {
		out := TradeResult{Trade: tr, Executed: tr.Amount}

		if tr.Kind == TradeFund {
			if tr.Amount > available {
				out.Executed = available
				out.Partial = true
				res.Partial = true
				r.metrics.RecordPartialFill(tr.To)
				r.logger.Warn("fund trade capped by stable balance",
					logger.String("to", tr.To),
					logger.Float64("requested", tr.Amount),
					logger.Float64("available", available),
				)
			}
			if out.Executed <= 0 {
				out.Error = "no stable balance available"
				res.Failed++
				r.metrics.RecordSwap("skipped")
				res.Trades = append(res.Trades, out)
				continue
			}
		}

		swap, err := r.execute(ctx, tr, out.Executed, byType)
		switch {
		case err != nil:
			out.Error = err.Error()
		case !swap.Success:
			out.Error = swap.Error
			out.TxHash = swap.TxHash
		default:
			out.Success = true
			out.TxHash = swap.TxHash
		}

		if out.Success {
			res.Executed++
			r.metrics.RecordSwap("success")
			switch tr.Kind {
			case TradeLiquidate:
				available += proceeds(byType[tr.From], out.Executed, stable.CoinPrice)
			case TradeFund:
				available -= out.Executed
			}
		} else {
			res.Failed++
			r.metrics.RecordSwap("failed")
			r.logger.Error("swap failed",
				logger.String("kind", string(tr.Kind)),
				logger.String("from", tr.From),
				logger.String("to", tr.To),
				logger.String("error", out.Error),
			)
		}
		res.Trades = append(res.Trades, out)
	}

	res.Elapsed = time.Since(start)
	r.logger.Info("rebalance finished",
		logger.Int("executed", res.Executed),
		logger.Int("failed", res.Failed),
		logger.Bool("partial", res.Partial),
		logger.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (r *Rebalancer) execute(ctx context.Context, tr Trade, amount float64, byType map[string]models.TokenHolding) (*models.SwapResult, error) {
	if r.swapper == nil {
		return nil, fmt.Errorf("no swap executor configured")
	}
	res, err := r.swapper.Swap(ctx, models.SwapRequest{
		FromCoinType: tr.From,
		ToCoinType:   tr.To,
		Amount:       amount,
		FromDecimals: byType[tr.From].Decimals,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("swap %s -> %s: empty result", tr.From, tr.To)
	}
	return res, nil
}

// proceeds estimates the stable units received for selling amount of h.
func proceeds(h models.TokenHolding, amount, stablePrice float64) float64 {
	if stablePrice <= 0 {
		stablePrice = 1
	}
	return amount * h.CoinPrice / stablePrice
}
