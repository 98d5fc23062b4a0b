package models

import "time"

// IntervalChange is the pair ratio at a lookback interval and its change to spot.
type IntervalChange struct {
	Value         float64 `json:"value"`
	ChangePercent float64 `json:"change_percent"`
}

type PairInfo struct {
	Pair        string                    `json:"pair"`
	PerInterval map[string]IntervalChange `json:"per_interval"`
}

type MarketSnapshot struct {
	ID        string                        `json:"id"`
	Digest    string                        `json:"digest"`
	Pairs     []PairInfo                    `json:"pairs"`
	Prices    map[string]map[string]float64 `json:"prices"`
	Timestamp time.Time                     `json:"timestamp"`
}

type Insight struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Platform  string    `json:"platform"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}
