package portfolio

import (
	"math"
	"sort"

	"Wonderland/internal/domain/models"
)

type TradeKind string

// settleEpsilon is the percentage below which a leftover counts as settled.
const settleEpsilon = 1e-9

const (
	// TradePair moves value directly from an overweight asset to an
	// underweight one.
	TradePair TradeKind = "pair"
	// TradeLiquidate sells an overweight asset into the stable coin.
	TradeLiquidate TradeKind = "liquidate"
	// TradeFund buys an underweight asset with the stable coin.
	TradeFund TradeKind = "fund"
)

// Trade is one planned swap. Amount is in units of From; for fund trades
// it is the requested stable amount before the availability cap.
type Trade struct {
	Kind    TradeKind `json:"kind"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Percent float64   `json:"percent"`
	Amount  float64   `json:"amount"`
}

// Adjustments computes target minus current percentage per holding, in
// holdings order. Entries inside the dead zone and the stable coin are
// dropped.
func Adjustments(holdings []models.TokenHolding, target []models.TargetAllocation, deadZone float64, stableCoin string) []models.Adjustment {
	weights := make(map[string]float64, len(target))
	for _, t := range target {
		weights[t.CoinType] = t.TargetPercentage
	}

	adjs := make([]models.Adjustment, 0, len(holdings))
	for _, h := range holdings {
		if h.CoinType == stableCoin {
			continue
		}
		w, ok := weights[h.CoinType]
		if !ok {
			continue
		}
		delta := w - h.Percentage
		if math.Abs(delta) < deadZone {
			continue
		}
		adjs = append(adjs, models.Adjustment{
			CoinType:        h.CoinType,
			DeltaPercentage: delta,
			Balance:         h.Balance,
		})
	}
	return adjs
}

// PlanInput carries what Route needs beyond the adjustments.
type PlanInput struct {
	StableCoin      string
	StablePrice     float64
	TotalTrackedUsd float64
}

// Route pairs overweight buckets with underweight cups. The most negative
// bucket is drained first into the least positive cup. Leftovers return to
// the front of their queue. Remaining buckets liquidate into the stable
// coin and remaining cups are funded from it.
func Route(adjs []models.Adjustment, in PlanInput) []Trade {
	var buckets, cups []models.Adjustment
	for _, a := range adjs {
		switch {
		case a.DeltaPercentage < 0:
			buckets = append(buckets, a)
		case a.DeltaPercentage > 0:
			cups = append(cups, a)
		}
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].DeltaPercentage < buckets[j].DeltaPercentage
	})
	sort.SliceStable(cups, func(i, j int) bool {
		return cups[i].DeltaPercentage < cups[j].DeltaPercentage
	})

	var trades []Trade
	for len(buckets) > 0 && len(cups) > 0 {
		bucket := buckets[0]
		cup := cups[0]
		buckets = buckets[1:]
		cups = cups[1:]

		pct := math.Min(-bucket.DeltaPercentage, cup.DeltaPercentage)
		trades = append(trades, Trade{
			Kind:    TradePair,
			From:    bucket.CoinType,
			To:      cup.CoinType,
			Percent: pct,
			Amount:  pct / 100 * bucket.Balance,
		})

		bucket.DeltaPercentage += pct
		cup.DeltaPercentage -= pct
		if bucket.DeltaPercentage < -settleEpsilon {
			buckets = append([]models.Adjustment{bucket}, buckets...)
		}
		if cup.DeltaPercentage > settleEpsilon {
			cups = append([]models.Adjustment{cup}, cups...)
		}
	}

	for _, b := range buckets {
		pct := -b.DeltaPercentage
		trades = append(trades, Trade{
			Kind:    TradeLiquidate,
			From:    b.CoinType,
			To:      in.StableCoin,
			Percent: pct,
			Amount:  pct / 100 * b.Balance,
		})
	}

	stablePrice := in.StablePrice
	if stablePrice <= 0 {
		stablePrice = 1
	}
	for _, c := range cups {
		trades = append(trades, Trade{
			Kind:    TradeFund,
			From:    in.StableCoin,
			To:      c.CoinType,
			Percent: c.DeltaPercentage,
			Amount:  c.DeltaPercentage / 100 * in.TotalTrackedUsd / stablePrice,
		})
	}
	return trades
}
