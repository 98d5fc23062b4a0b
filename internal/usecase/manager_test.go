package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/models"
	"Wonderland/internal/market"
	"Wonderland/internal/repository"
	"Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncRuntime(t *testing.T) (*agent.Bus, *agent.TaskRunner) {
	t.Helper()
	bus := agent.NewBus(nil, nil, logger.Nop())
	tasks := agent.NewTaskRunner(context.Background(), nil, nil, logger.Nop(), 50, agent.RunSync)
	return bus, tasks
}

type stepLog struct {
	mu  sync.Mutex
	ran []string
}

func (l *stepLog) step(name string, err error) func(context.Context) error {
	return func(context.Context) error {
		l.mu.Lock()
		l.ran = append(l.ran, name)
		l.mu.Unlock()
		return err
	}
}

func chain(l *stepLog, failAt string) []Step {
	errFor := func(name string) error {
		if name == failAt {
			return errors.New(name + " failed")
		}
		return nil
	}
	return []Step{
		{On: models.EventUpdateRate, TaskType: models.TaskUpdatePrice, Run: l.step("price", errFor("price")), Then: models.EventUpdateInsight},
		{On: models.EventUpdateInsight, TaskType: models.TaskUpdateInsight, Run: l.step("insight", errFor("insight")), Then: models.EventUpdatePortfolio},
		{On: models.EventUpdatePortfolio, TaskType: models.TaskUpdatePortfolio, Run: l.step("portfolio", errFor("portfolio")), Then: models.EventUpdateHolding},
		{On: models.EventUpdateHolding, TaskType: models.TaskUpdateHolding, Run: l.step("holding", errFor("holding"))},
	}
}

func TestManagerRunsFullChain(t *testing.T) {
	bus, tasks := syncRuntime(t)
	var log stepLog
	m := NewManagerWithSteps(bus, tasks, chain(&log, ""), nil, 0, logger.Nop())
	m.Start()
	defer m.Stop()

	bus.Emit(context.Background(), models.EventUpdateRate, "test")

	assert.Equal(t, []string{"price", "insight", "portfolio", "holding"}, log.ran)

	var types []string
	for _, task := range tasks.Tasks() {
		assert.Equal(t, models.TaskCompleted, task.Status)
		types = append(types, task.Type)
	}
	assert.ElementsMatch(t, []string{models.TaskUpdatePrice, models.TaskUpdateInsight, models.TaskUpdatePortfolio, models.TaskUpdateHolding}, types)
}

func TestManagerStopsChainOnFailure(t *testing.T) {
	bus, tasks := syncRuntime(t)
	var log stepLog
	m := NewManagerWithSteps(bus, tasks, chain(&log, "insight"), nil, 0, logger.Nop())
	m.Start()
	defer m.Stop()

	bus.Emit(context.Background(), models.EventUpdateRate, "test")
	assert.Equal(t, []string{"price", "insight"}, log.ran)

	h := m.Health()
	for _, s := range h.Stages {
		if s.Stage == models.TaskUpdateInsight {
			assert.Equal(t, 1, s.Failures)
			assert.Equal(t, "insight failed", s.LastError)
		}
	}
}

func TestManagerIgnoresHeartbeat(t *testing.T) {
	bus, tasks := syncRuntime(t)
	var log stepLog
	m := NewManagerWithSteps(bus, tasks, chain(&log, ""), nil, 0, logger.Nop())
	m.Start()
	m.Start()
	defer m.Stop()

	bus.Emit(context.Background(), models.EventHeartbeat, "tick")
	assert.Empty(t, log.ran)
	assert.Empty(t, tasks.Tasks())
	assert.Equal(t, 1, bus.Status().ListenerCount)
}

func TestManagerHealthReportsStall(t *testing.T) {
	bus, tasks := syncRuntime(t)
	var log stepLog
	m := NewManagerWithSteps(bus, tasks, chain(&log, ""), nil, 20*time.Millisecond, logger.Nop())
	m.Start()
	defer m.Stop()

	assert.Equal(t, "ok", m.Health().Status)
	time.Sleep(40 * time.Millisecond)

	bus.Emit(context.Background(), models.EventUpdateHolding, "refresh")
	h := m.Health()
	assert.Equal(t, "degraded", h.Status)
	for _, s := range h.Stages {
		assert.Equal(t, s.Stage != models.TaskUpdateHolding, s.Stalled, s.Stage)
	}
}

func TestInvestmentManagerPipeline(t *testing.T) {
	bus, tasks := syncRuntime(t)
	journal := repository.NewMemoryJournal()
	store := repository.NewMemoryStore()
	oracle := &fakeOracle{text: "sideways market", toolArgs: `{"apt_weight":50,"usdc_weight":50,"thinking":"balanced"}`}
	holdings := &fakeHoldings{snap: sampleHoldings()}
	reb := &fakeRebalancer{}

	state := market.NewState("5m", []string{"1h"})
	feed := &fakeFeed{prices: map[string]float64{"1/5m": 6, "1/1h": 6, "2/5m": 1, "2/1h": 1}}
	thinking := agent.NewThinking(oracle, "p", "m", logger.Nop())

	m := NewInvestmentManager(bus, tasks,
		NewPriceUpdater(feed, state, []PriceAsset{{Symbol: "APT", FeedID: "1"}, {Symbol: "USDC", FeedID: "2"}}, testPairs, 2, nil, logger.Nop()),
		NewInsightGenerator(state, []PairBrief{{Pair: testPairs[0]}}, thinking, journal, store, nil, "p", "m", logger.Nop()),
		NewTargetSelector(holdings, journal, store, thinking, reb, sampleTokens(), "p", "m", logger.Nop()),
		NewHoldingRefresher(holdings, journal, logger.Nop()),
		nil, time.Hour, logger.Nop())
	m.Start()
	defer m.Stop()

	bus.Emit(context.Background(), models.EventUpdateRate, "start")

	ctx := context.Background()
	_, err := journal.LatestMarketSnapshot(ctx)
	require.NoError(t, err)
	in, err := journal.LatestInsight(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sideways market", in.Content)
	actions, _ := journal.RecentActions(ctx, 5)
	require.Len(t, actions, 1)
	_, err = journal.LatestHoldingSnapshot(ctx)
	require.NoError(t, err)

	assert.Len(t, reb.targets, 1)
	assert.Equal(t, "ok", m.Health().Status)
}
