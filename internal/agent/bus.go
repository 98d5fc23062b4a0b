package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/domain/repository"
	"Wonderland/pkg/logger"
)

// Listener receives events synchronously on the emitting goroutine.
type Listener func(ctx context.Context, evt models.Event)

type subscription struct {
	id uint64
	fn Listener
}

// Bus is the in-process event hub. Listeners run in registration order and a
// panicking listener does not stop delivery to the rest.
type Bus struct {
	mu        sync.RWMutex
	listeners []subscription
	nextID    uint64
	sink      repository.EventSink
	metrics   repository.Metrics
	logger    *logger.Logger
}

func NewBus(sink repository.EventSink, metrics repository.Metrics, lgr *logger.Logger) *Bus {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	return &Bus{
		sink:    sink,
		metrics: metrics,
		logger:  lgr.With(logger.Component("bus")),
	}
}

// RegisterListener subscribes fn. Registering the same function twice yields
// two subscriptions; each returned func removes only its own and is idempotent.
func (b *Bus) RegisterListener(fn Listener) (unregister func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.listeners {
		if s.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// EmitEvent delivers evt to a snapshot of the current listeners, then hands
// it to the sink. Sink failures are logged only.
func (b *Bus) EmitEvent(ctx context.Context, evt models.Event) {
	if evt.ID == "" || evt.Timestamp.IsZero() {
		fresh := models.NewEvent(evt.Type, evt.Description, evt.Payload)
		if evt.ID == "" {
			evt.ID = fresh.ID
		}
		if evt.Timestamp.IsZero() {
			evt.Timestamp = fresh.Timestamp
		}
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.listeners))
	copy(subs, b.listeners)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, evt)
	}
	b.metrics.RecordEvent(string(evt.Type))

	if b.sink != nil {
		if err := b.sink.Record(ctx, evt); err != nil {
			b.logger.Warn("event log write failed", logger.String("type", string(evt.Type)), logger.Error(err))
		}
	}
}

// Emit is shorthand for EmitEvent(ctx, models.NewEvent(...)).
func (b *Bus) Emit(ctx context.Context, t models.EventType, description string) {
	b.EmitEvent(ctx, models.NewEvent(t, description, nil))
}

func (b *Bus) deliver(ctx context.Context, s subscription, evt models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.RecordError("listener_panic")
			b.logger.Error("listener panic",
				logger.Int64("listener", int64(s.id)),
				logger.String("type", string(evt.Type)),
				logger.String("panic", fmt.Sprint(r)))
		}
	}()
	s.fn(ctx, evt)
}

type BusStatus struct {
	ListenerCount int       `json:"listener_count"`
	CheckedAt     time.Time `json:"checked_at"`
}

func (b *Bus) Status() BusStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStatus{ListenerCount: len(b.listeners), CheckedAt: time.Now().UTC()}
}
