package portfolio

import (
	"time"

	"Wonderland/internal/domain/models"

	"github.com/google/uuid"
)

// Balance is one raw wallet entry. BalanceUsd and CoinPrice are nil when
// the price source had nothing for the asset.
type Balance struct {
	CoinType   string
	CoinName   string
	CoinSymbol string
	Balance    float64
	BalanceUsd *float64
	Decimals   int
	CoinPrice  *float64
}

type TrackedToken struct {
	CoinType string
	Symbol   string
	Name     string
	Decimals int
}

// ProcessHoldings keeps only allow-listed, priced balances and returns one
// entry per tracked token in allow-list order. Tracked tokens not held
// appear with zero balance.
func ProcessHoldings(raw []Balance, tracked []TrackedToken) models.HoldingSnapshot {
	allowed := make(map[string]struct{}, len(tracked))
	for _, t := range tracked {
		allowed[t.CoinType] = struct{}{}
	}

	held := make(map[string]Balance, len(raw))
	var trackedUsd, allUsd float64
	for _, b := range raw {
		if b.BalanceUsd == nil {
			continue
		}
		allUsd += *b.BalanceUsd
		if _, ok := allowed[b.CoinType]; !ok {
			continue
		}
		held[b.CoinType] = b
		trackedUsd += *b.BalanceUsd
	}

	out := make([]models.TokenHolding, 0, len(tracked))
	for _, t := range tracked {
		h := models.TokenHolding{
			CoinType:   t.CoinType,
			CoinSymbol: t.Symbol,
			CoinName:   t.Name,
			Decimals:   t.Decimals,
		}
		if b, ok := held[t.CoinType]; ok {
			h.Balance = b.Balance
			h.BalanceUsd = *b.BalanceUsd
			if b.CoinPrice != nil {
				h.CoinPrice = *b.CoinPrice
			}
			if trackedUsd > 0 {
				h.Percentage = h.BalanceUsd / trackedUsd * 100
			}
		}
		out = append(out, h)
	}

	return models.HoldingSnapshot{
		ID:                uuid.NewString(),
		Holdings:          out,
		TotalTrackedUsd:   trackedUsd,
		TotalUntrackedUsd: allUsd - trackedUsd,
		Timestamp:         time.Now().UTC(),
	}
}
