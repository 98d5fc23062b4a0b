package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/portfolio"
)

type fakeFeed struct {
	mu     sync.Mutex
	prices map[string]float64 // feedID/interval
	calls  []string
}

func (f *fakeFeed) HistoricalPrice(_ context.Context, id, interval string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := id + "/" + interval
	f.calls = append(f.calls, key)
	p, ok := f.prices[key]
	if !ok {
		return 0, errors.New("no quote")
	}
	return p, nil
}

type fakeOracle struct {
	mu       sync.Mutex
	text     string
	err      error
	toolArgs string
	prompts  []models.Prompt
	tools    []models.ToolSpec
}

func (o *fakeOracle) Complete(_ context.Context, p models.Prompt) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, p)
	return o.text, o.err
}

func (o *fakeOracle) CallTool(_ context.Context, p models.Prompt, tool models.ToolSpec) (*models.ToolCall, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, p)
	o.tools = append(o.tools, tool)
	if o.err != nil {
		return nil, o.err
	}
	return &models.ToolCall{Name: tool.Name, Arguments: json.RawMessage(o.toolArgs)}, nil
}

type fakeHoldings struct {
	snap        *models.HoldingSnapshot
	err         error
	invalidated int
}

func (h *fakeHoldings) Holdings(context.Context) (*models.HoldingSnapshot, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.snap, nil
}

func (h *fakeHoldings) Invalidate(context.Context) { h.invalidated++ }

type fakeRebalancer struct {
	targets [][]models.TargetAllocation
	err     error
}

func (r *fakeRebalancer) Rebalance(_ context.Context, _ []models.TokenHolding, target []models.TargetAllocation) (*portfolio.Result, error) {
	r.targets = append(r.targets, target)
	if r.err != nil {
		return nil, r.err
	}
	return &portfolio.Result{Target: target, Executed: 1}, nil
}

type fakeNotifier struct{ texts []string }

func (n *fakeNotifier) Notify(_ context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []models.EventType
}

func (e *recordingEmitter) Emit(_ context.Context, t models.EventType, _ string) {
	e.mu.Lock()
	e.events = append(e.events, t)
	e.mu.Unlock()
}

func (e *recordingEmitter) snapshot() []models.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.EventType(nil), e.events...)
}

func sampleHoldings() *models.HoldingSnapshot {
	return &models.HoldingSnapshot{
		ID: "h1",
		Holdings: []models.TokenHolding{
			{CoinType: "0x1::aptos_coin::AptosCoin", CoinSymbol: "APT", BalanceUsd: 60, Percentage: 60, CoinPrice: 6, Balance: 10},
			{CoinType: "0xusdc::asset::USDC", CoinSymbol: "USDC", BalanceUsd: 40, Percentage: 40, CoinPrice: 1, Balance: 40},
		},
		TotalTrackedUsd: 100,
	}
}

func sampleTokens() []TokenBrief {
	return []TokenBrief{
		{CoinType: "0x1::aptos_coin::AptosCoin", Symbol: "APT", Name: "Aptos", Description: "native gas token"},
		{CoinType: "0xusdc::asset::USDC", Symbol: "USDC", Name: "USD Coin", Description: "stable coin"},
	}
}
