package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/models"
	drepo "Wonderland/internal/domain/repository"
	"Wonderland/pkg/logger"
)

// Emitter is the part of the bus the stages need.
type Emitter interface {
	Emit(ctx context.Context, t models.EventType, description string)
}

// Step binds one pipeline stage to the event that starts it and the event
// it emits on success.
type Step struct {
	On          models.EventType
	TaskType    string
	Description string
	Run         func(ctx context.Context) error
	Then        models.EventType
	ThenReason  string
}

type StageHealth struct {
	Stage       string    `json:"stage"`
	Runs        int       `json:"runs"`
	Failures    int       `json:"failures"`
	LastStart   time.Time `json:"last_start,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Stalled     bool      `json:"stalled"`
}

type Health struct {
	Status    string        `json:"status"`
	Stages    []StageHealth `json:"stages"`
	CheckedAt time.Time     `json:"checked_at"`
}

// InvestmentManager routes pipeline events to their stages through the task
// runner and tracks per-stage health.
type InvestmentManager struct {
	bus        *agent.Bus
	tasks      *agent.TaskRunner
	metrics    drepo.Metrics
	logger     *logger.Logger
	steps      map[models.EventType]Step
	stallAfter time.Duration
	started    time.Time

	mu     sync.Mutex
	health map[string]*StageHealth

	unregister func()
}

// NewInvestmentManager wires the four stages into the rate → insight →
// portfolio → holding chain. stallAfter <= 0 disables stall detection.
func NewInvestmentManager(
	bus *agent.Bus,
	tasks *agent.TaskRunner,
	prices *PriceUpdater,
	insights *InsightGenerator,
	selector *TargetSelector,
	holdings *HoldingRefresher,
	metrics drepo.Metrics,
	stallAfter time.Duration,
	lgr *logger.Logger,
) *InvestmentManager {
	steps := []Step{
		{
			On:          models.EventUpdateRate,
			TaskType:    models.TaskUpdatePrice,
			Description: "Update prices from the price feed",
			Run:         prices.Run,
			Then:        models.EventUpdateInsight,
			ThenReason:  "Prices updated, insight should be refreshed",
		},
		{
			On:          models.EventUpdateInsight,
			TaskType:    models.TaskUpdateInsight,
			Description: "Update insight from pair ratios",
			Run:         insights.Run,
			Then:        models.EventUpdatePortfolio,
			ThenReason:  "Insight updated, portfolio should be adjusted",
		},
		{
			On:          models.EventUpdatePortfolio,
			TaskType:    models.TaskUpdatePortfolio,
			Description: "Choose a target portfolio and rebalance",
			Run:         selector.Run,
			Then:        models.EventUpdateHolding,
			ThenReason:  "Portfolio adjusted, holdings should be refreshed",
		},
		{
			On:          models.EventUpdateHolding,
			TaskType:    models.TaskUpdateHolding,
			Description: "Refresh wallet holdings",
			Run:         holdings.Run,
		},
	}
	return NewManagerWithSteps(bus, tasks, steps, metrics, stallAfter, lgr)
}

// NewManagerWithSteps builds a manager over an arbitrary step table.
func NewManagerWithSteps(bus *agent.Bus, tasks *agent.TaskRunner, steps []Step, metrics drepo.Metrics, stallAfter time.Duration, lgr *logger.Logger) *InvestmentManager {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	m := &InvestmentManager{
		bus:        bus,
		tasks:      tasks,
		metrics:    metrics,
		logger:     lgr.With(logger.Component("manager")),
		steps:      make(map[models.EventType]Step, len(steps)),
		stallAfter: stallAfter,
		started:    time.Now().UTC(),
		health:     make(map[string]*StageHealth, len(steps)),
	}
	for _, s := range steps {
		m.steps[s.On] = s
		m.health[s.TaskType] = &StageHealth{Stage: s.TaskType}
	}
	return m
}

// Start subscribes the manager to the bus. Calling it twice is a no-op.
func (m *InvestmentManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unregister != nil {
		return
	}
	m.unregister = m.bus.RegisterListener(m.onEvent)
	m.logger.Info("investment manager started", logger.Int("stages", len(m.steps)))
}

func (m *InvestmentManager) Stop() {
	m.mu.Lock()
	unregister := m.unregister
	m.unregister = nil
	m.mu.Unlock()
	if unregister != nil {
		unregister()
	}
}

func (m *InvestmentManager) onEvent(_ context.Context, evt models.Event) {
	step, ok := m.steps[evt.Type]
	if !ok {
		return
	}
	m.tasks.CreateTask(agent.TaskSpec{
		Type:        step.TaskType,
		Description: step.Description,
		Payload:     map[string]interface{}{"event_id": evt.ID},
		Callback: func(ctx context.Context, _ map[string]interface{}) error {
			return m.run(ctx, step)
		},
	})
}

func (m *InvestmentManager) run(ctx context.Context, step Step) error {
	start := time.Now()
	m.markStart(step.TaskType, start)

	err := step.Run(ctx)
	m.metrics.RecordStage(step.TaskType, time.Since(start), err)
	m.markDone(step.TaskType, err)
	if err != nil {
		return err
	}

	if step.Then != "" {
		m.bus.Emit(ctx, step.Then, step.ThenReason)
	}
	return nil
}

func (m *InvestmentManager) markStart(stage string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.health[stage]
	h.Runs++
	h.LastStart = at.UTC()
}

func (m *InvestmentManager) markDone(stage string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.health[stage]
	now := time.Now().UTC()
	if err != nil {
		h.Failures++
		h.LastFailure = now
		h.LastError = err.Error()
		return
	}
	h.LastSuccess = now
	h.LastError = ""
}

// Health reports every stage. A stage is stalled when it has not succeeded
// within stallAfter of its last success, or of manager start if it never has.
func (m *InvestmentManager) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	out := Health{Status: "ok", CheckedAt: now, Stages: make([]StageHealth, 0, len(m.health))}
	for _, h := range m.health {
		snap := *h
		if m.stallAfter > 0 {
			ref := snap.LastSuccess
			if ref.IsZero() {
				ref = m.started
			}
			snap.Stalled = now.Sub(ref) > m.stallAfter
		}
		if snap.Stalled {
			out.Status = "degraded"
		}
		out.Stages = append(out.Stages, snap)
	}
	sort.Slice(out.Stages, func(i, j int) bool { return out.Stages[i].Stage < out.Stages[j].Stage })
	return out
}
