package market

import (
	"fmt"
	"strings"
	"sync"

	"Wonderland/internal/domain/models"
	"Wonderland/pkg/util"
)

// Pair names two asset symbols whose ratio is tracked as Base/Quote.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string { return p.Base + "/" + p.Quote }

// RateReport is the output of GenerateRate.
type RateReport struct {
	Formatted  string
	MarketData []models.PairInfo
}

// State caches the latest price per (asset, interval). Older values are
// overwritten; no history is kept.
type State struct {
	mu        sync.RWMutex
	prices    map[string]map[string]float64
	spot      string
	intervals []string
}

// NewState builds a cache comparing spot against each historical interval.
func NewState(spot string, intervals []string) *State {
	return &State{
		prices:    make(map[string]map[string]float64),
		spot:      spot,
		intervals: append([]string(nil), intervals...),
	}
}

func (s *State) Spot() string { return s.spot }

// Intervals returns the historical lookback labels.
func (s *State) Intervals() []string { return append([]string(nil), s.intervals...) }

func (s *State) SetPrice(asset, interval string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byInterval, ok := s.prices[asset]
	if !ok {
		byInterval = make(map[string]float64)
		s.prices[asset] = byInterval
	}
	byInterval[interval] = price
}

func (s *State) Price(asset, interval string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[asset][interval]
	return p, ok
}

// Ratio is price(a)/price(b) at interval. Missing or zero prices yield false.
func (s *State) Ratio(a, b, interval string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pa := s.prices[a][interval]
	pb := s.prices[b][interval]
	if pa == 0 || pb == 0 {
		return 0, false
	}
	return pa / pb, true
}

// ChangePercent is ((current-old)/old)*100 rounded to two decimals, or 0
// when either side is missing.
func ChangePercent(current, old float64) float64 {
	if current == 0 || old == 0 {
		return 0
	}
	return util.Round2((current - old) / old * 100)
}

func (s *State) pairInfo(p Pair) models.PairInfo {
	info := models.PairInfo{
		Pair:        p.String(),
		PerInterval: make(map[string]models.IntervalChange, len(s.intervals)),
	}
	current, _ := s.Ratio(p.Base, p.Quote, s.spot)
	for _, interval := range s.intervals {
		old, _ := s.Ratio(p.Base, p.Quote, interval)
		info.PerInterval[interval] = models.IntervalChange{
			Value:         old,
			ChangePercent: ChangePercent(current, old),
		}
	}
	return info
}

// GenerateRate computes every pair against spot and renders one digest line
// per pair: "A/B rate: 1h 1.23%, 1d -0.50%, ...".
func (s *State) GenerateRate(pairs []Pair) RateReport {
	lines := make([]string, 0, len(pairs))
	data := make([]models.PairInfo, 0, len(pairs))

	for _, p := range pairs {
		info := s.pairInfo(p)
		data = append(data, info)

		parts := make([]string, 0, len(s.intervals))
		for _, interval := range s.intervals {
			parts = append(parts, fmt.Sprintf("%s %.2f%%", interval, info.PerInterval[interval].ChangePercent))
		}
		lines = append(lines, fmt.Sprintf("%s rate: %s", info.Pair, strings.Join(parts, ", ")))
	}

	return RateReport{Formatted: strings.Join(lines, "\n"), MarketData: data}
}

// Snapshot copies the price cache.
func (s *State) Snapshot() map[string]map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]float64, len(s.prices))
	for asset, byInterval := range s.prices {
		cp := make(map[string]float64, len(byInterval))
		for k, v := range byInterval {
			cp[k] = v
		}
		out[asset] = cp
	}
	return out
}
