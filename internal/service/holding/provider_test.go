package holding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"Wonderland/internal/portfolio"
	"Wonderland/pkg/cache"
	"Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aptType  = "0x1::aptos_coin::AptosCoin"
	usdcType = "0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b"
)

func newTestServer(t *testing.T, indexerCalls *int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(indexerCalls, 1)
		var body struct {
			Variables map[string]string `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0xwallet", body.Variables["owner_address"])
		_, _ = w.Write([]byte(`{"data":{"current_fungible_asset_balances":[
			{"amount":1000000000,"asset_type":"` + aptType + `","token_standard":"v1","metadata":{"name":"Aptos Coin","symbol":"APT","decimals":8}},
			{"amount":"40000000","asset_type":"` + usdcType + `","token_standard":"v2","metadata":{"name":"USDC","symbol":"USDC","decimals":6}},
			{"amount":5,"asset_type":"0x9::meme::MEME","token_standard":"v1","metadata":{"name":"Meme","symbol":"MEME","decimals":0}}
		]}}`))
	})
	mux.HandleFunc("/price/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/price/coins/") && strings.Contains(r.URL.Path, "aptos_coin"):
			_, _ = w.Write([]byte(`{"success":true,"data":{"symbol":"APT","decimals":8,"current_price":6}}`))
		case strings.HasPrefix(r.URL.Path, "/price/fungible_assets/"):
			_, _ = w.Write([]byte(`{"success":true,"data":{"symbol":"USDC","decimals":6,"current_price":1}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return httptest.NewServer(mux)
}

func tracked() []portfolio.TrackedToken {
	return []portfolio.TrackedToken{
		{CoinType: aptType, Symbol: "APT", Decimals: 8},
		{CoinType: usdcType, Symbol: "USDC", Decimals: 6},
	}
}

func TestHoldings(t *testing.T) {
	var calls int32
	srv := newTestServer(t, &calls)
	defer srv.Close()

	p := New(Config{IndexerURL: srv.URL + "/graphql", PriceURL: srv.URL + "/price", WalletAddress: "0xwallet"}, tracked(), nil, logger.Nop())
	snap, err := p.Holdings(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Holdings, 2)
	apt := snap.Holdings[0]
	assert.Equal(t, aptType, apt.CoinType)
	assert.InDelta(t, 10, apt.Balance, 1e-9)
	assert.InDelta(t, 60, apt.BalanceUsd, 1e-9)
	assert.InDelta(t, 60, apt.Percentage, 1e-9)

	usdc := snap.Holdings[1]
	assert.InDelta(t, 40, usdc.Balance, 1e-9)
	assert.InDelta(t, 40, usdc.Percentage, 1e-9)

	assert.InDelta(t, 100, snap.TotalTrackedUsd, 1e-9)
	// MEME has no price so it is neither tracked nor counted.
	assert.Zero(t, snap.TotalUntrackedUsd)
}

func TestHoldingsCached(t *testing.T) {
	var calls int32
	srv := newTestServer(t, &calls)
	defer srv.Close()

	mem := cache.NewMemoryCache()
	defer mem.Close()

	p := New(Config{
		IndexerURL:    srv.URL + "/graphql",
		PriceURL:      srv.URL + "/price",
		WalletAddress: "0xwallet",
		CacheTTL:      time.Minute,
	}, tracked(), mem, logger.Nop())

	_, err := p.Holdings(context.Background())
	require.NoError(t, err)
	snap, err := p.Holdings(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Holdings, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	p.Invalidate(context.Background())
	_, err = p.Holdings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHoldingsIndexerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad owner"}]}`))
	}))
	defer srv.Close()

	p := New(Config{IndexerURL: srv.URL, PriceURL: srv.URL}, tracked(), nil, logger.Nop())
	_, err := p.Holdings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad owner")
}
