package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestProcessHoldings(t *testing.T) {
	tracked := []TrackedToken{
		{CoinType: "0x1::aptos_coin::AptosCoin", Symbol: "APT", Name: "Aptos", Decimals: 8},
		{CoinType: stable, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{CoinType: "0x3::wbtc::WBTC", Symbol: "WBTC", Name: "Wrapped BTC", Decimals: 8},
	}
	raw := []Balance{
		{CoinType: stable, Balance: 40, BalanceUsd: f64(40), CoinPrice: f64(1), Decimals: 6},
		{CoinType: "0x9::meme::MEME", Balance: 1000, BalanceUsd: f64(25), CoinPrice: f64(0.025)},
		{CoinType: "0x1::aptos_coin::AptosCoin", Balance: 10, BalanceUsd: f64(60), CoinPrice: f64(6), Decimals: 8},
		{CoinType: "0x8::dust::DUST", Balance: 5},
	}

	snap := ProcessHoldings(raw, tracked)
	require.Len(t, snap.Holdings, 3)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 100.0, snap.TotalTrackedUsd)
	assert.Equal(t, 25.0, snap.TotalUntrackedUsd)

	apt := snap.Holdings[0]
	assert.Equal(t, "APT", apt.CoinSymbol)
	assert.Equal(t, 10.0, apt.Balance)
	assert.Equal(t, 6.0, apt.CoinPrice)
	assert.InDelta(t, 60, apt.Percentage, 1e-9)

	assert.Equal(t, stable, snap.Holdings[1].CoinType)
	assert.InDelta(t, 40, snap.Holdings[1].Percentage, 1e-9)

	wbtc := snap.Holdings[2]
	assert.Equal(t, "WBTC", wbtc.CoinSymbol)
	assert.Zero(t, wbtc.Balance)
	assert.Zero(t, wbtc.Percentage)
}

func TestProcessHoldingsEmptyWallet(t *testing.T) {
	snap := ProcessHoldings(nil, []TrackedToken{{CoinType: stable, Symbol: "USDC"}})
	require.Len(t, snap.Holdings, 1)
	assert.Zero(t, snap.TotalTrackedUsd)
	assert.Zero(t, snap.Holdings[0].Percentage)
}
