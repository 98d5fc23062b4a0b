package holding

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/domain/repository"
	"Wonderland/internal/portfolio"
	"Wonderland/pkg/cache"
	xhttp "Wonderland/pkg/http"
	"Wonderland/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	snapshotKey   = "holding:snapshot"
	priceLookups  = 4
	balancesQuery = `query CoinsData($owner_address: String) { current_fungible_asset_balances(where: {owner_address: {_eq: $owner_address}}) { amount asset_type token_standard metadata { name symbol decimals } } }`
	standardFAv2  = "v2"
)

type Config struct {
	IndexerURL    string
	PriceURL      string
	WalletAddress string
	CacheTTL      time.Duration
	Timeout       time.Duration
}

// Provider reads wallet balances from the Aptos indexer and prices them
// with the aptoscan public API.
type Provider struct {
	cfg     Config
	tracked []portfolio.TrackedToken
	http    *xhttp.Client
	cache   cache.Service
	logger  *logger.Logger
}

var _ repository.HoldingsProvider = (*Provider)(nil)

func New(cfg Config, tracked []portfolio.TrackedToken, c cache.Service, lgr *logger.Logger) *Provider {
	return &Provider{
		cfg:     cfg,
		tracked: tracked,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		cache:   c,
		logger:  lgr.With(logger.Component("holding")),
	}
}

// Holdings returns the tracked portfolio, served from cache inside CacheTTL.
func (p *Provider) Holdings(ctx context.Context) (*models.HoldingSnapshot, error) {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return p.load(ctx)
	}
	return cache.GetOrLoad(ctx, p.cache, snapshotKey, p.cfg.CacheTTL, p.load)
}

// Invalidate drops the cached snapshot, e.g. after swaps changed balances.
func (p *Provider) Invalidate(ctx context.Context) {
	if p.cache != nil {
		_ = p.cache.Delete(ctx, snapshotKey)
	}
}

type coinBalance struct {
	Amount        decimal.Decimal `json:"amount"`
	AssetType     string          `json:"asset_type"`
	TokenStandard string          `json:"token_standard"`
	Metadata      *struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"metadata"`
}

type indexerResponse struct {
	Data struct {
		Balances []coinBalance `json:"current_fungible_asset_balances"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type priceResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Symbol       string   `json:"symbol"`
		Name         string   `json:"name"`
		Decimals     int      `json:"decimals"`
		CurrentPrice *float64 `json:"current_price"`
	} `json:"data"`
}

func (p *Provider) load(ctx context.Context) (*models.HoldingSnapshot, error) {
	coins, err := p.balances(ctx)
	if err != nil {
		return nil, err
	}

	raw := make([]portfolio.Balance, len(coins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(priceLookups)
	var mu sync.Mutex
	var unpriced []string

	for i, coin := range coins {
		i, coin := i, coin
		g.Go(func() error {
			b := p.price(gctx, coin)
			if b.BalanceUsd == nil {
				mu.Lock()
				unpriced = append(unpriced, coin.AssetType)
				mu.Unlock()
			}
			raw[i] = b
			return nil
		})
	}
	_ = g.Wait()

	if len(unpriced) > 0 {
		p.logger.Warn("assets without price", logger.Strings("coin_types", unpriced))
	}
	snap := portfolio.ProcessHoldings(raw, p.tracked)
	p.logger.Info("holdings loaded",
		logger.Int("assets", len(coins)),
		logger.Float64("tracked_usd", snap.TotalTrackedUsd),
		logger.Float64("untracked_usd", snap.TotalUntrackedUsd),
	)
	return &snap, nil
}

func (p *Provider) balances(ctx context.Context) ([]coinBalance, error) {
	var resp indexerResponse
	err := p.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    p.cfg.IndexerURL,
		Body: map[string]interface{}{
			"query":     balancesQuery,
			"variables": map[string]string{"owner_address": p.cfg.WalletAddress},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("indexer balances: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("indexer balances: %s", resp.Errors[0].Message)
	}

	out := resp.Data.Balances[:0]
	for _, b := range resp.Data.Balances {
		if b.AssetType != "" {
			out = append(out, b)
		}
	}
	return out, nil
}

// price never fails: a lookup error leaves BalanceUsd nil so the asset
// counts as unpriced.
func (p *Provider) price(ctx context.Context, coin coinBalance) portfolio.Balance {
	b := portfolio.Balance{CoinType: coin.AssetType}
	if coin.Metadata != nil {
		b.CoinName = coin.Metadata.Name
		b.CoinSymbol = coin.Metadata.Symbol
		b.Decimals = coin.Metadata.Decimals
	}

	kind := "coins"
	if coin.TokenStandard == standardFAv2 {
		kind = "fungible_assets"
	}
	var resp priceResponse
	err := p.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     strings.TrimRight(p.cfg.PriceURL, "/") + "/" + kind + "/" + url.PathEscape(coin.AssetType),
		Headers: map[string]string{"Accept": "application/json"},
	}, &resp)
	if err != nil || resp.Data == nil {
		if err != nil {
			p.logger.Debug("price lookup failed", logger.String("coin_type", coin.AssetType), logger.Error(err))
		}
		b.Balance = coin.Amount.Shift(-int32(b.Decimals)).InexactFloat64()
		return b
	}

	if b.Decimals == 0 {
		b.Decimals = resp.Data.Decimals
	}
	if b.CoinSymbol == "" {
		b.CoinSymbol = resp.Data.Symbol
	}
	if b.CoinName == "" {
		b.CoinName = resp.Data.Name
	}
	amount := coin.Amount.Shift(-int32(b.Decimals))
	b.Balance = amount.InexactFloat64()

	price := 0.0
	if resp.Data.CurrentPrice != nil {
		price = *resp.Data.CurrentPrice
	}
	usd := amount.Mul(decimal.NewFromFloat(price)).InexactFloat64()
	b.CoinPrice = &price
	b.BalanceUsd = &usd
	return b
}
