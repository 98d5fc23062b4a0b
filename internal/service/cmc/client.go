package cmc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"Wonderland/internal/domain/repository"
	xhttp "Wonderland/pkg/http"
	"Wonderland/pkg/logger"

	"golang.org/x/time/rate"
)

const historicalPath = "/v2/cryptocurrency/quotes/historical"

var (
	// ErrRateLimited is returned once 429 retries are exhausted.
	ErrRateLimited = errors.New("cmc: rate limited")
	ErrNoQuote     = errors.New("cmc: no quote in response")
)

type Config struct {
	BaseURL        string
	APIKey         string
	MaxRetries     int
	RetryAfterUnit time.Duration
	RequestsPerMin float64
	Timeout        time.Duration
}

// Client reads historical USD quotes from CoinMarketCap.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *rate.Limiter
	logger  *logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ repository.PriceFeed = (*Client)(nil)

func New(cfg Config, lgr *logger.Logger) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryAfterUnit <= 0 {
		cfg.RetryAfterUnit = 20 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Limit(cfg.RequestsPerMin / 60)
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter: rate.NewLimiter(limit, 1),
		logger:  lgr.With(logger.Component("cmc")),
		sleep:   sleepCtx,
	}
}

type quotesResponse struct {
	Data struct {
		Quotes []struct {
			Timestamp string `json:"timestamp"`
			Quote     struct {
				USD struct {
					Price float64 `json:"price"`
				} `json:"USD"`
			} `json:"quote"`
		} `json:"quotes"`
	} `json:"data"`
}

// HistoricalPrice returns the oldest of the two most recent quotes at the
// given interval. A 429 is retried after Retry-After × RetryAfterUnit.
func (c *Client) HistoricalPrice(ctx context.Context, assetID, interval string) (float64, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		price, err := c.fetch(ctx, assetID, interval)
		if err == nil {
			c.logger.Debug("fetched price",
				logger.String("asset", assetID),
				logger.String("interval", interval),
				logger.Float64("price", price),
			)
			return price, nil
		}

		var se *xhttp.StatusError
		if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
			return 0, err
		}
		if attempt >= c.cfg.MaxRetries {
			return 0, fmt.Errorf("%w: asset %s after %d retries", ErrRateLimited, assetID, attempt)
		}

		hint := se.RetryAfter
		if hint <= 0 {
			hint = 1
		}
		wait := time.Duration(hint) * c.cfg.RetryAfterUnit
		c.logger.Warn("rate limited, backing off",
			logger.String("asset", assetID),
			logger.Int("retries_left", c.cfg.MaxRetries-attempt),
			logger.Duration("wait", wait),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return 0, err
		}
	}
}

func (c *Client) fetch(ctx context.Context, assetID, interval string) (float64, error) {
	var resp quotesResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.cfg.BaseURL + historicalPath,
		Headers: map[string]string{
			"X-CMC_PRO_API_KEY": c.cfg.APIKey,
			"Accept":            "application/json",
		},
		QueryParams: map[string][]string{
			"id":       {assetID},
			"convert":  {"USD"},
			"interval": {interval},
			"count":    {"2"},
		},
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("cmc historical %s/%s: %w", assetID, interval, err)
	}
	if len(resp.Data.Quotes) == 0 {
		return 0, fmt.Errorf("%w: asset %s interval %s", ErrNoQuote, assetID, interval)
	}
	return resp.Data.Quotes[0].Quote.USD.Price, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
