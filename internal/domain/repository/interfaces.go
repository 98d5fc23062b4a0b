package repository

import (
	"context"
	"errors"
	"time"

	"Wonderland/internal/domain/models"
)

// ErrNotFound is returned by readers when no record exists yet.
var ErrNotFound = errors.New("not found")

// EventSink receives every emitted event for durable logging. Record must not block.
type EventSink interface {
	Record(ctx context.Context, evt models.Event) error
}

// Journal is the append-only store behind the read models.
type Journal interface {
	Init(ctx context.Context) error
	AppendEvents(ctx context.Context, events []models.Event) error
	SaveMarketSnapshot(ctx context.Context, s *models.MarketSnapshot) error
	SaveInsight(ctx context.Context, in *models.Insight) error
	SaveHoldingSnapshot(ctx context.Context, s *models.HoldingSnapshot) error
	SaveAction(ctx context.Context, a *models.PortfolioAction) error
	SaveMessage(ctx context.Context, m *models.OutgoingMessage) error

	LatestMarketSnapshot(ctx context.Context) (*models.MarketSnapshot, error)
	LatestInsight(ctx context.Context) (*models.Insight, error)
	LatestHoldingSnapshot(ctx context.Context) (*models.HoldingSnapshot, error)
	RecentActions(ctx context.Context, limit int) ([]models.PortfolioAction, error)
	RecentEvents(ctx context.Context, limit int) ([]models.Event, error)

	Health(ctx context.Context) error
	Close() error
}

// TaskStore keeps the shadow record of every task, upserted per transition.
type TaskStore interface {
	SaveTask(ctx context.Context, rec models.TaskRecord) error
	RecentTasks(ctx context.Context, limit int) ([]models.TaskRecord, error)
}

type InstructStore interface {
	AddInstruct(ctx context.Context, in *models.Instruct) error
	LatestInstruct(ctx context.Context, kind models.InstructKind) (*models.Instruct, error)
}

// EventPublisher streams events to other processes.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events []models.Event) error
}

type PriceFeed interface {
	HistoricalPrice(ctx context.Context, assetID, interval string) (float64, error)
}

type Oracle interface {
	Complete(ctx context.Context, p models.Prompt) (string, error)
	CallTool(ctx context.Context, p models.Prompt, tool models.ToolSpec) (*models.ToolCall, error)
}

type SwapExecutor interface {
	Swap(ctx context.Context, req models.SwapRequest) (*models.SwapResult, error)
}

type HoldingsProvider interface {
	Holdings(ctx context.Context) (*models.HoldingSnapshot, error)
}

// Notifier queues a text message for delivery to the operator channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Metrics interface {
	RecordEvent(eventType string)
	RecordTask(taskType, status string)
	RecordStage(stage string, elapsed time.Duration, err error)
	RecordSwap(result string)
	RecordPartialFill(coinType string)
	RecordLastPrice(symbol string, price float64)
	RecordTargetWeight(coinType string, pct float64)
	RecordError(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordEvent(string)                       {}
func (NopMetrics) RecordTask(string, string)                {}
func (NopMetrics) RecordStage(string, time.Duration, error) {}
func (NopMetrics) RecordSwap(string)                        {}
func (NopMetrics) RecordPartialFill(string)                 {}
func (NopMetrics) RecordLastPrice(string, float64)          {}
func (NopMetrics) RecordTargetWeight(string, float64)       {}
func (NopMetrics) RecordError(string)                       {}
