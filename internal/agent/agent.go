package agent

import (
	"context"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/pkg/logger"
)

// Agent is the composition root of the runtime. It is built once and passed
// to every stage.
type Agent struct {
	Bus      *Bus
	Tasks    *TaskRunner
	Thinking *Thinking
	State    *State

	heartbeat time.Duration
	logger    *logger.Logger
}

func New(bus *Bus, tasks *TaskRunner, thinking *Thinking, state *State, heartbeat time.Duration, lgr *logger.Logger) *Agent {
	return &Agent{
		Bus:       bus,
		Tasks:     tasks,
		Thinking:  thinking,
		State:     state,
		heartbeat: heartbeat,
		logger:    lgr.With(logger.Component("agent")),
	}
}

// Run emits HEARTBEAT on every tick until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	if a.heartbeat <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	a.logger.Info("agent started", logger.Duration("heartbeat_ms", a.heartbeat))
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopped")
			return nil
		case <-ticker.C:
			a.Bus.Emit(ctx, models.EventHeartbeat, "agent heartbeat")
		}
	}
}

type Status struct {
	Bus   BusStatus              `json:"bus"`
	Tasks int                    `json:"tasks"`
	State map[string]interface{} `json:"state"`
}

func (a *Agent) Status() Status {
	return Status{
		Bus:   a.Bus.Status(),
		Tasks: len(a.Tasks.Tasks()),
		State: a.State.Status(),
	}
}
