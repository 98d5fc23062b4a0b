package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Wonderland/internal/domain/models"
	domrepo "Wonderland/internal/domain/repository"
	"Wonderland/pkg/logger"

	"github.com/google/uuid"
)

var ErrBufferFull = errors.New("event log buffer full")

const (
	minBackoff   = 50 * time.Millisecond
	maxBackoff   = 2 * time.Second
	flushTimeout = 5 * time.Second
)

// EventLogPipeline sits between the bus and durable storage. Record only
// enqueues; a background flusher batches events into the journal and then
// the event stream, backing off and requeueing while the journal fails.
type EventLogPipeline struct {
	journal    domrepo.Journal
	publisher  domrepo.EventPublisher
	metrics    domrepo.Metrics
	logger     *logger.Logger
	bufSize    int
	batchSize  int
	flushEvery time.Duration
	bufCh      chan models.Event
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	mu         sync.Mutex
	sleep      func(time.Duration)
}

var _ domrepo.EventSink = (*EventLogPipeline)(nil)

type PipelineOption func(*EventLogPipeline)

// WithBufferSize sets how many events may wait for the flusher.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventLogPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatch sets the flush batch size and the max wait for a partial batch.
func WithBatch(size int, every time.Duration) PipelineOption {
	return func(p *EventLogPipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if every > 0 {
			p.flushEvery = every
		}
	}
}

// WithPublisher also streams flushed events, e.g. to Kafka.
func WithPublisher(pub domrepo.EventPublisher) PipelineOption {
	return func(p *EventLogPipeline) { p.publisher = pub }
}

func NewEventLogPipeline(journal domrepo.Journal, metrics domrepo.Metrics, lgr *logger.Logger, opts ...PipelineOption) *EventLogPipeline {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	p := &EventLogPipeline{
		journal:    journal,
		metrics:    metrics,
		logger:     lgr.With(logger.Component("eventlog")),
		bufSize:    1000,
		batchSize:  100,
		flushEvery: time.Second,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.Event, p.bufSize)
	return p
}

// Record validates and enqueues evt without blocking.
func (p *EventLogPipeline) Record(_ context.Context, evt models.Event) error {
	if err := validateEvent(evt); err != nil {
		p.metrics.RecordError("eventlog_validate")
		return err
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	select {
	case p.bufCh <- evt:
		return nil
	default:
		p.metrics.RecordError("eventlog_buffer_full")
		return ErrBufferFull
	}
}

// Start launches the flusher.
func (p *EventLogPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop flushes what is buffered and stops the flusher.
func (p *EventLogPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventLogPipeline) run(ctx context.Context) {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	// Flushes outlive ctx so a cancelled lifetime keeps writing until Stop
	// drains.
	flushCtx := context.WithoutCancel(ctx)
	backoff := minBackoff
	batch := make([]models.Event, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		fctx, cancel := context.WithTimeout(flushCtx, flushTimeout)
		err := p.flush(fctx, batch)
		cancel()
		if err != nil {
			if backoff < maxBackoff {
				backoff *= 2
			}
			p.logger.Warn("event log flush failed", logger.Int("events", len(batch)), logger.Duration("backoff", backoff), logger.Error(err))
			p.sleep(backoff)
			p.requeue(batch)
		} else {
			backoff = minBackoff
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-p.stopCh:
			p.drain(batch)
			return
		case evt := <-p.bufCh:
			batch = append(batch, evt)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *EventLogPipeline) flush(ctx context.Context, batch []models.Event) error {
	if err := p.journal.AppendEvents(ctx, batch); err != nil {
		p.metrics.RecordError("eventlog_flush")
		return fmt.Errorf("append events: %w", err)
	}
	if p.publisher != nil {
		// The journal already holds the batch; a stream failure is not retried.
		if err := p.publisher.PublishEvents(ctx, batch); err != nil {
			p.metrics.RecordError("eventlog_publish")
			p.logger.Error("event stream publish failed", logger.Int("events", len(batch)), logger.Error(err))
		}
	}
	return nil
}

func (p *EventLogPipeline) requeue(batch []models.Event) {
	for _, evt := range batch {
		select {
		case p.bufCh <- evt:
		default:
			p.metrics.RecordError("eventlog_buffer_drop")
		}
	}
}

// drain makes one last attempt with everything still queued. The run
// context may already be cancelled, so it gets a fresh deadline.
func (p *EventLogPipeline) drain(batch []models.Event) {
loop:
	for {
		select {
		case evt := <-p.bufCh:
			batch = append(batch, evt)
		default:
			break loop
		}
	}
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.flush(ctx, batch); err != nil {
		p.logger.Error("event log dropped on shutdown", logger.Int("events", len(batch)), logger.Error(err))
	}
}

func validateEvent(evt models.Event) error {
	if evt.Type == "" {
		return fmt.Errorf("event type empty")
	}
	if evt.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp missing")
	}
	return nil
}
