package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventUpdateRate      EventType = "UPDATE_RATE"
	EventUpdateInsight   EventType = "UPDATE_INSIGHT"
	EventUpdatePortfolio EventType = "UPDATE_PORTFOLIO"
	EventUpdateHolding   EventType = "UPDATE_HOLDING"
	EventHeartbeat       EventType = "HEARTBEAT"
)

// Triggerable reports whether the type may be injected from outside
// (HTTP or the commands topic).
func (t EventType) Triggerable() bool {
	switch t {
	case EventUpdateRate, EventUpdateInsight, EventUpdatePortfolio, EventUpdateHolding:
		return true
	default:
		return false
	}
}

// Event is delivered by value and never mutated after emission.
type Event struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	Description string                 `json:"description"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

func NewEvent(t EventType, description string, payload map[string]interface{}) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		Description: description,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}
