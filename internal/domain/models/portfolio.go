package models

import "time"

type TokenHolding struct {
	CoinType   string  `json:"coin_type"`
	CoinSymbol string  `json:"coin_symbol"`
	CoinName   string  `json:"coin_name"`
	Balance    float64 `json:"balance"`
	BalanceUsd float64 `json:"balance_usd"`
	Decimals   int     `json:"decimals"`
	CoinPrice  float64 `json:"coin_price"`
	Percentage float64 `json:"percentage"`
}

// HoldingSnapshot is the tracked portfolio at one point in time, in
// allow-list order. Untracked value is reported only as an aggregate.
type HoldingSnapshot struct {
	ID                string         `json:"id"`
	Holdings          []TokenHolding `json:"holdings"`
	TotalTrackedUsd   float64        `json:"total_tracked_usd"`
	TotalUntrackedUsd float64        `json:"total_untracked_usd"`
	Timestamp         time.Time      `json:"timestamp"`
}

type TargetAllocation struct {
	CoinType         string  `json:"coin_type"`
	CoinSymbol       string  `json:"coin_symbol"`
	TargetPercentage float64 `json:"target_percentage"`
}

// Adjustment is the per-asset drift computed inside one rebalancing run.
type Adjustment struct {
	CoinType        string  `json:"coin_type"`
	DeltaPercentage float64 `json:"delta_percentage"`
	Balance         float64 `json:"balance"`
}

type ActionDetails struct {
	TargetPortfolio []TargetAllocation `json:"target_portfolio"`
	Executed        int                `json:"executed"`
	Failed          int                `json:"failed"`
	Partial         bool               `json:"partial"`
}

// PortfolioAction is the audit record of one completed rebalancing run.
type PortfolioAction struct {
	ID        string        `json:"id"`
	Action    string        `json:"action"`
	Reason    string        `json:"reason"`
	Details   ActionDetails `json:"details"`
	Timestamp time.Time     `json:"timestamp"`
}
