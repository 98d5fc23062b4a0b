package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTaskStore struct {
	mu      sync.Mutex
	records []models.TaskRecord
}

func (s *memoryTaskStore) SaveTask(_ context.Context, rec models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryTaskStore) RecentTasks(context.Context, int) ([]models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TaskRecord(nil), s.records...), nil
}

func (s *memoryTaskStore) statuses() []models.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TaskStatus, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Status)
	}
	return out
}

func newSyncRunner(store *memoryTaskStore, capacity int) *TaskRunner {
	return NewTaskRunner(context.Background(), store, nil, logger.Nop(), capacity, RunSync)
}

func TestTaskCompletes(t *testing.T) {
	store := &memoryTaskStore{}
	r := newSyncRunner(store, 10)

	var seen map[string]interface{}
	task := r.CreateTask(TaskSpec{
		Type:        models.TaskUpdatePrice,
		Description: "refresh prices",
		Payload:     map[string]interface{}{"k": "v"},
		Callback: func(_ context.Context, p map[string]interface{}) error {
			seen = p
			return nil
		},
	})

	assert.Equal(t, models.TaskCompleted, task.Status)
	assert.Equal(t, "v", seen["k"])
	assert.Equal(t, []models.TaskStatus{models.TaskRunning, models.TaskCompleted}, store.statuses())
}

func TestTaskFailsOnErrorAndPanic(t *testing.T) {
	store := &memoryTaskStore{}
	r := newSyncRunner(store, 10)

	failed := r.CreateTask(TaskSpec{Type: "x", Callback: func(context.Context, map[string]interface{}) error {
		return errors.New("nope")
	}})
	assert.Equal(t, models.TaskFailed, failed.Status)
	assert.Equal(t, "nope", failed.Error)

	panicked := r.CreateTask(TaskSpec{Type: "y", Callback: func(context.Context, map[string]interface{}) error {
		panic("bad")
	}})
	assert.Equal(t, models.TaskFailed, panicked.Status)
	assert.Contains(t, panicked.Error, "bad")
}

func TestTaskWithoutCallbackCompletes(t *testing.T) {
	r := newSyncRunner(&memoryTaskStore{}, 10)
	assert.Equal(t, models.TaskCompleted, r.CreateTask(TaskSpec{Type: "noop"}).Status)
}

func TestTaskHistoryIsCapped(t *testing.T) {
	r := newSyncRunner(&memoryTaskStore{}, 3)
	for i := 0; i < 5; i++ {
		r.CreateTask(TaskSpec{Type: string(rune('a' + i))})
	}

	tasks := r.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "c", tasks[0].Type)
	assert.Equal(t, "e", tasks[2].Type)
}

func TestAsyncTaskReturnsRunning(t *testing.T) {
	store := &memoryTaskStore{}
	r := NewTaskRunner(context.Background(), store, nil, logger.Nop(), 10, RunAsync)

	release := make(chan struct{})
	task := r.CreateTask(TaskSpec{Type: "slow", Callback: func(context.Context, map[string]interface{}) error {
		<-release
		return nil
	}})
	assert.Equal(t, models.TaskRunning, task.Status)
	assert.Equal(t, models.TaskRunning, r.Tasks()[0].Status)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
	assert.Equal(t, models.TaskCompleted, r.Tasks()[0].Status)
}
