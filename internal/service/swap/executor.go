package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/domain/repository"
	xhttp "Wonderland/pkg/http"
	"Wonderland/pkg/logger"
	"Wonderland/pkg/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("swap: amount rounds to zero")

type Config struct {
	BaseURL       string
	APIKey        string
	ChainID       string
	WalletAddress string
	Slippage      float64
	Timeout       time.Duration
}

// FormatAmount renders amount truncated to the token's decimals.
func FormatAmount(amount float64, decimals int) (string, error) {
	if decimals < 0 {
		decimals = 0
	}
	d := decimal.NewFromFloat(amount).Truncate(int32(decimals))
	if !d.IsPositive() {
		return "", fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return d.String(), nil
}

// HTTPExecutor submits swaps to a Panora-style aggregator that signs and
// broadcasts on behalf of the configured wallet.
type HTTPExecutor struct {
	cfg    Config
	http   *xhttp.Client
	logger *logger.Logger
}

var _ repository.SwapExecutor = (*HTTPExecutor)(nil)

func NewHTTPExecutor(cfg Config, lgr *logger.Logger) *HTTPExecutor {
	return &HTTPExecutor{
		cfg:    cfg,
		http:   xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		logger: lgr.With(logger.Component("swap")),
	}
}

type swapResponse struct {
	Hash    string `json:"hash"`
	TxHash  string `json:"txHash"`
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

func (e *HTTPExecutor) Swap(ctx context.Context, req models.SwapRequest) (*models.SwapResult, error) {
	amount, err := FormatAmount(req.Amount, req.FromDecimals)
	if err != nil {
		return nil, err
	}

	e.logger.Info("swapping",
		logger.String("from", util.TokenName(req.FromCoinType)),
		logger.String("to", util.TokenName(req.ToCoinType)),
		logger.String("amount", amount),
	)

	var resp swapResponse
	err = e.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     strings.TrimRight(e.cfg.BaseURL, "/") + "/swap",
		Headers: map[string]string{"x-api-key": e.cfg.APIKey},
		QueryParams: map[string][]string{
			"chainId":                 {e.cfg.ChainID},
			"fromTokenAddress":        {req.FromCoinType},
			"toTokenAddress":          {req.ToCoinType},
			"fromTokenAmount":         {amount},
			"toWalletAddress":         {e.cfg.WalletAddress},
			"slippagePercentage":      {decimal.NewFromFloat(e.cfg.Slippage).String()},
			"integratorFeePercentage": {"0"},
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			return &models.SwapResult{Success: false, Error: util.Truncate(se.Body, 256)}, nil
		}
		return nil, err
	}

	hash := resp.Hash
	if hash == "" {
		hash = resp.TxHash
	}
	if resp.Success != nil && !*resp.Success {
		return &models.SwapResult{Success: false, TxHash: hash, Error: resp.Error}, nil
	}
	if hash == "" {
		return &models.SwapResult{Success: false, Error: "aggregator returned no transaction hash"}, nil
	}
	return &models.SwapResult{Success: true, TxHash: hash}, nil
}

// DryRunExecutor logs the swap it would make and reports success.
type DryRunExecutor struct {
	logger *logger.Logger
}

var _ repository.SwapExecutor = (*DryRunExecutor)(nil)

func NewDryRunExecutor(lgr *logger.Logger) *DryRunExecutor {
	return &DryRunExecutor{logger: lgr.With(logger.Component("swap"), logger.Bool("dry_run", true))}
}

func (e *DryRunExecutor) Swap(_ context.Context, req models.SwapRequest) (*models.SwapResult, error) {
	amount, err := FormatAmount(req.Amount, req.FromDecimals)
	if err != nil {
		return nil, err
	}
	hash := "dryrun-" + uuid.NewString()
	e.logger.Info("swap skipped",
		logger.String("from", util.TokenName(req.FromCoinType)),
		logger.String("to", util.TokenName(req.ToCoinType)),
		logger.String("amount", amount),
		logger.String("tx_hash", hash),
	)
	return &models.SwapResult{Success: true, TxHash: hash}, nil
}
