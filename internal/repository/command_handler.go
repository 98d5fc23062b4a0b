package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"Wonderland/internal/domain/models"
	pkgkafka "Wonderland/pkg/kafka"
	applogger "Wonderland/pkg/logger"
)

var ErrUnsupportedCommand = errors.New("unsupported command type")

// Emitter publishes an event on the agent bus.
type Emitter interface {
	EmitEvent(ctx context.Context, evt models.Event)
}

type command struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CommandHandler turns messages on the commands topic into bus events.
// Rejected messages surface as errors so the consumer routes them to DLQ.
type CommandHandler struct {
	topic   string
	emitter Emitter
	l       *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*CommandHandler)(nil)

func NewCommandHandler(topic string, emitter Emitter, l *applogger.Logger) *CommandHandler {
	return &CommandHandler{topic: topic, emitter: emitter, l: l.With(applogger.Component("commands"))}
}

func (h *CommandHandler) Topic() string { return h.topic }

func (h *CommandHandler) Handle(ctx context.Context, value []byte) error {
	var cmd command
	if err := json.Unmarshal(value, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	t := models.EventType(strings.ToUpper(strings.TrimSpace(cmd.Type)))
	if !t.Triggerable() {
		return fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Type)
	}

	desc := cmd.Description
	if desc == "" {
		desc = "kafka command"
	}
	payload := map[string]interface{}{"source": "kafka"}
	if id := pkgkafka.CommandID(ctx); id != "" {
		payload["command_id"] = id
	}

	h.l.Info("command accepted", applogger.String("type", string(t)), applogger.String("command_id", pkgkafka.CommandID(ctx)))
	h.emitter.EmitEvent(ctx, models.NewEvent(t, desc, payload))
	return nil
}
