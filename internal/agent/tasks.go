package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/domain/repository"
	"Wonderland/pkg/logger"

	"github.com/google/uuid"
)

// TaskFunc is the body of a task. Returning an error or panicking fails it.
type TaskFunc func(ctx context.Context, payload map[string]interface{}) error

type TaskSpec struct {
	Type        string
	Description string
	Payload     map[string]interface{}
	Callback    TaskFunc
}

type RunMode int

const (
	// RunAsync runs callbacks on their own goroutine.
	RunAsync RunMode = iota
	// RunSync runs callbacks inline; CreateTask returns the terminal state.
	RunSync
)

// TaskRunner creates tasks, runs their callbacks and keeps a bounded history.
// Every status change is mirrored to the TaskStore.
type TaskRunner struct {
	ctx     context.Context
	store   repository.TaskStore
	metrics repository.Metrics
	logger  *logger.Logger
	mode    RunMode

	mu      sync.Mutex
	history []*models.Task
	head    int
	size    int
	wg      sync.WaitGroup
}

// NewTaskRunner keeps at most capacity tasks in memory. ctx is the parent of
// every callback context.
func NewTaskRunner(ctx context.Context, store repository.TaskStore, metrics repository.Metrics, lgr *logger.Logger, capacity int, mode RunMode) *TaskRunner {
	if capacity <= 0 {
		capacity = 500
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	return &TaskRunner{
		ctx:     ctx,
		store:   store,
		metrics: metrics,
		logger:  lgr.With(logger.Component("tasks")),
		mode:    mode,
		history: make([]*models.Task, capacity),
	}
}

// CreateTask records the task as pending, moves it to running and starts the
// callback. The returned value is a snapshot.
func (r *TaskRunner) CreateTask(spec TaskSpec) models.Task {
	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.NewString(),
		Type:        spec.Type,
		Description: spec.Description,
		Payload:     spec.Payload,
		Status:      models.TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	r.push(task)
	r.mu.Unlock()

	snap := r.transition(task, models.TaskRunning, nil)

	if spec.Callback == nil {
		return r.transition(task, models.TaskCompleted, nil)
	}

	if r.mode == RunSync {
		return r.execute(task, spec.Callback)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(task, spec.Callback)
	}()
	return snap
}

func (r *TaskRunner) execute(task *models.Task, fn TaskFunc) models.Task {
	err := r.invoke(fn, task.Payload)
	if err != nil {
		r.logger.Error("task failed",
			logger.String("task_id", task.ID),
			logger.String("type", task.Type),
			logger.Error(err))
		return r.transition(task, models.TaskFailed, err)
	}
	return r.transition(task, models.TaskCompleted, nil)
}

func (r *TaskRunner) invoke(fn TaskFunc, payload map[string]interface{}) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panic: %v", p)
		}
	}()
	return fn(r.ctx, payload)
}

func (r *TaskRunner) transition(task *models.Task, status models.TaskStatus, cause error) models.Task {
	r.mu.Lock()
	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	if cause != nil {
		task.Error = cause.Error()
	}
	snap := *task
	r.mu.Unlock()

	if status.Terminal() {
		r.metrics.RecordTask(task.Type, string(status))
	}
	if r.store != nil {
		if err := r.store.SaveTask(context.Background(), snap.Record()); err != nil {
			r.logger.Warn("task shadow write failed", logger.String("task_id", snap.ID), logger.Error(err))
		}
	}
	return snap
}

// push must be called with mu held.
func (r *TaskRunner) push(task *models.Task) {
	r.history[r.head] = task
	r.head = (r.head + 1) % len(r.history)
	if r.size < len(r.history) {
		r.size++
	}
}

// Tasks returns snapshots of the retained history, oldest first.
func (r *TaskRunner) Tasks() []models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Task, 0, r.size)
	start := (r.head - r.size + len(r.history)) % len(r.history)
	for i := 0; i < r.size; i++ {
		out = append(out, *r.history[(start+i)%len(r.history)])
	}
	return out
}

// Wait blocks until running async callbacks return or ctx is done.
func (r *TaskRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
