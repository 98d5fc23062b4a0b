package usecase

import (
	"context"
	"errors"
	"testing"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/models"
	drepo "Wonderland/internal/domain/repository"
	"Wonderland/internal/market"
	"Wonderland/internal/repository"
	"Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPairs = []market.Pair{{Base: "APT", Quote: "USDC"}}

func TestPriceUpdaterFetchesPairAssets(t *testing.T) {
	feed := &fakeFeed{prices: map[string]float64{
		"1/5m": 10, "1/1h": 9, "1/1d": 8,
		"2/5m": 1, "2/1h": 1, "2/1d": 1,
	}}
	state := market.NewState("5m", []string{"1h", "1d"})
	assets := []PriceAsset{{Symbol: "APT", FeedID: "1"}, {Symbol: "USDC", FeedID: "2"}, {Symbol: "BTC", FeedID: "3"}}

	u := NewPriceUpdater(feed, state, assets, testPairs, 2, nil, logger.Nop())
	assert.Len(t, u.Assets(), 2)

	require.NoError(t, u.Run(context.Background()))
	assert.Len(t, feed.calls, 6)

	p, ok := state.Price("APT", "5m")
	require.True(t, ok)
	assert.Equal(t, 10.0, p)
	r, ok := state.Ratio("APT", "USDC", "1d")
	require.True(t, ok)
	assert.Equal(t, 8.0, r)
}

func TestPriceUpdaterSkipsFailedFetches(t *testing.T) {
	feed := &fakeFeed{prices: map[string]float64{"1/5m": 10, "2/5m": 1}}
	state := market.NewState("5m", []string{"1h"})
	state.SetPrice("APT", "1h", 7)

	u := NewPriceUpdater(feed, state, []PriceAsset{{Symbol: "APT", FeedID: "1"}, {Symbol: "USDC", FeedID: "2"}}, testPairs, 1, nil, logger.Nop())
	require.NoError(t, u.Run(context.Background()))

	p, _ := state.Price("APT", "1h")
	assert.Equal(t, 7.0, p, "failed fetch keeps the previous value")
}

func TestPriceUpdaterFailsWhenNothingFetched(t *testing.T) {
	u := NewPriceUpdater(&fakeFeed{}, market.NewState("5m", []string{"1h"}),
		[]PriceAsset{{Symbol: "APT", FeedID: "1"}, {Symbol: "USDC", FeedID: "2"}}, testPairs, 2, nil, logger.Nop())
	assert.Error(t, u.Run(context.Background()))
}

func newInsightGenerator(oracle *fakeOracle, journal drepo.Journal, store drepo.InstructStore, n drepo.Notifier) *InsightGenerator {
	state := market.NewState("5m", []string{"1h"})
	state.SetPrice("APT", "5m", 10)
	state.SetPrice("APT", "1h", 8)
	state.SetPrice("USDC", "5m", 1)
	state.SetPrice("USDC", "1h", 1)
	thinking := agent.NewThinking(oracle, "deepseek", "reason", logger.Nop())
	pairs := []PairBrief{{Pair: testPairs[0], Description: "APT priced in dollars"}}
	return NewInsightGenerator(state, pairs, thinking, journal, store, n, "deepseek", "reason", logger.Nop())
}

func TestInsightGeneratorStoresInsight(t *testing.T) {
	oracle := &fakeOracle{text: "APT is strong"}
	journal := repository.NewMemoryJournal()
	notifier := &fakeNotifier{}
	g := newInsightGenerator(oracle, journal, repository.NewMemoryStore(), notifier)

	require.NoError(t, g.Run(context.Background()))

	snap, err := journal.LatestMarketSnapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Digest, "APT/USDC rate: 1h 25.00%")

	in, err := journal.LatestInsight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "APT is strong", in.Content)
	assert.Equal(t, []string{"APT is strong"}, notifier.texts)

	require.Len(t, oracle.prompts, 1)
	assert.Contains(t, oracle.prompts[0].Input, "[Preference Instruct]\nas default")
	assert.Contains(t, oracle.prompts[0].Input, "- APT/USDC: APT priced in dollars")
	assert.Contains(t, oracle.prompts[0].Input, "[ratio data]\nAPT/USDC rate:")
}

func TestInsightGeneratorUsesLatestMarketInstruct(t *testing.T) {
	oracle := &fakeOracle{text: "ok"}
	store := repository.NewMemoryStore()
	require.NoError(t, store.AddInstruct(context.Background(), &models.Instruct{Kind: models.InstructMarket, Instruct: "focus on majors"}))
	require.NoError(t, store.AddInstruct(context.Background(), &models.Instruct{Kind: models.InstructTrading, Instruct: "be careful"}))

	g := newInsightGenerator(oracle, repository.NewMemoryJournal(), store, nil)
	require.NoError(t, g.Run(context.Background()))
	assert.Contains(t, oracle.prompts[0].Input, "focus on majors")
	assert.NotContains(t, oracle.prompts[0].Input, "be careful")
}

func TestInsightGeneratorOracleErrorKeepsSnapshot(t *testing.T) {
	oracle := &fakeOracle{text: "error"}
	journal := repository.NewMemoryJournal()
	notifier := &fakeNotifier{}
	g := newInsightGenerator(oracle, journal, nil, notifier)

	err := g.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, agent.ErrOracle))

	_, err = journal.LatestMarketSnapshot(context.Background())
	assert.NoError(t, err)
	_, err = journal.LatestInsight(context.Background())
	assert.ErrorIs(t, err, drepo.ErrNotFound)
	assert.Empty(t, notifier.texts)
}

func newSelector(oracle *fakeOracle, holdings *fakeHoldings, journal drepo.Journal, reb *fakeRebalancer) *TargetSelector {
	thinking := agent.NewThinking(oracle, "qwen", "large", logger.Nop())
	return NewTargetSelector(holdings, journal, repository.NewMemoryStore(), thinking, reb, sampleTokens(), "qwen", "large", logger.Nop())
}

func TestTargetSelectorRebalancesAndRecordsAction(t *testing.T) {
	oracle := &fakeOracle{toolArgs: `{"apt_weight":30,"usdc_weight":70,"thinking":"risk off"}`}
	holdings := &fakeHoldings{snap: sampleHoldings()}
	journal := repository.NewMemoryJournal()
	require.NoError(t, journal.SaveInsight(context.Background(), &models.Insight{ID: "i1", Content: "bearish"}))
	reb := &fakeRebalancer{}

	s := newSelector(oracle, holdings, journal, reb)
	require.NoError(t, s.Run(context.Background()))

	require.Len(t, reb.targets, 1)
	assert.Equal(t, []models.TargetAllocation{
		{CoinType: "0x1::aptos_coin::AptosCoin", CoinSymbol: "APT", TargetPercentage: 30},
		{CoinType: "0xusdc::asset::USDC", CoinSymbol: "USDC", TargetPercentage: 70},
	}, reb.targets[0])

	actions, err := journal.RecentActions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "adjust_portfolio: APT:30%, USDC:70%", actions[0].Action)
	assert.Equal(t, "risk off", actions[0].Reason)
	assert.Equal(t, 1, actions[0].Details.Executed)
	assert.Equal(t, 1, holdings.invalidated)

	require.Len(t, oracle.prompts, 1)
	assert.Contains(t, oracle.prompts[0].Input, "bearish")
	assert.Contains(t, oracle.prompts[0].System, "APT: 60.00%")
}

func TestTargetSelectorNeedsInsight(t *testing.T) {
	reb := &fakeRebalancer{}
	s := newSelector(&fakeOracle{toolArgs: `{}`}, &fakeHoldings{snap: sampleHoldings()}, repository.NewMemoryJournal(), reb)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, drepo.ErrNotFound)
	assert.Empty(t, reb.targets)
}

func TestTargetSelectorPropagatesRebalanceRejection(t *testing.T) {
	journal := repository.NewMemoryJournal()
	require.NoError(t, journal.SaveInsight(context.Background(), &models.Insight{Content: "x"}))
	reb := &fakeRebalancer{err: errors.New("incomplete")}
	s := newSelector(&fakeOracle{toolArgs: `{"apt_weight":50,"thinking":"t"}`}, &fakeHoldings{snap: sampleHoldings()}, journal, reb)

	require.Error(t, s.Run(context.Background()))
	actions, _ := journal.RecentActions(context.Background(), 10)
	assert.Empty(t, actions)
}

func TestToolSpecDeclaresBoundedWeights(t *testing.T) {
	s := newSelector(&fakeOracle{}, &fakeHoldings{}, repository.NewMemoryJournal(), &fakeRebalancer{})
	spec := s.ToolSpec()
	assert.Equal(t, AdjustPortfolioTool, spec.Name)

	props := spec.Parameters["properties"].(map[string]interface{})
	apt := props["apt_weight"].(map[string]interface{})
	assert.Equal(t, "number", apt["type"])
	assert.Equal(t, 0, apt["minimum"])
	assert.Equal(t, 100, apt["maximum"])
	assert.Contains(t, props, "usdc_weight")
	assert.Contains(t, props, "thinking")
	assert.ElementsMatch(t, []string{"thinking", "apt_weight", "usdc_weight"}, spec.Parameters["required"])
}

func TestDecodeTargetSkipsMissingWeights(t *testing.T) {
	s := newSelector(&fakeOracle{}, &fakeHoldings{}, repository.NewMemoryJournal(), &fakeRebalancer{})

	target, reason, err := s.DecodeTarget([]byte(`{"usdc_weight":100}`))
	require.NoError(t, err)
	assert.Empty(t, reason)
	require.Len(t, target, 1)
	assert.Equal(t, "USDC", target[0].CoinSymbol)

	_, _, err = s.DecodeTarget([]byte(`{"apt_weight":"lots"}`))
	assert.Error(t, err)
}

func TestDecodeWeightsKeyedByCoinType(t *testing.T) {
	s := newSelector(&fakeOracle{}, &fakeHoldings{}, repository.NewMemoryJournal(), &fakeRebalancer{})

	w, reason, err := s.DecodeWeights([]byte(`{"thinking":"risk off","usdc_weight":70,"apt_weight":30,"btc_weight":5}`))
	require.NoError(t, err)
	assert.Equal(t, "risk off", reason)
	assert.Equal(t, Weights{"0x1::aptos_coin::AptosCoin": 30, "0xusdc::asset::USDC": 70}, w)

	target := w.Allocations(sampleTokens())
	require.Len(t, target, 2)
	assert.Equal(t, "APT", target[0].CoinSymbol)
	assert.Equal(t, 30.0, target[0].TargetPercentage)
	assert.Equal(t, "USDC", target[1].CoinSymbol)
}

func TestHoldingRefresherStoresSnapshot(t *testing.T) {
	journal := repository.NewMemoryJournal()
	r := NewHoldingRefresher(&fakeHoldings{snap: sampleHoldings()}, journal, logger.Nop())
	require.NoError(t, r.Run(context.Background()))

	snap, err := journal.LatestHoldingSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "h1", snap.ID)

	r = NewHoldingRefresher(&fakeHoldings{err: errors.New("indexer down")}, journal, logger.Nop())
	assert.Error(t, r.Run(context.Background()))
}
