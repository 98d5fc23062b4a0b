package models

import "time"

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

const (
	TaskUpdatePrice     = "UPDATE_PRICE_TASK"
	TaskUpdateInsight   = "UPDATE_INSIGHT_TASK"
	TaskUpdatePortfolio = "UPDATE_PORTFOLIO_TASK"
	TaskUpdateHolding   = "UPDATE_HOLDING_TASK"
)

// Task is the in-memory view of one unit of work.
type Task struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Status      TaskStatus             `json:"status"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// TaskRecord is the persisted shadow of a Task.
type TaskRecord struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
}

func (t Task) Record() TaskRecord {
	return TaskRecord{
		ID:          t.ID,
		Type:        t.Type,
		Description: t.Description,
		Status:      t.Status,
		Timestamp:   t.UpdatedAt,
	}
}
