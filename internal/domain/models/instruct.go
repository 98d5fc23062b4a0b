package models

import "time"

type InstructKind string

const (
	InstructMarket  InstructKind = "market"
	InstructTrading InstructKind = "trading"
)

// Instruct is a user preference fed into oracle prompts.
type Instruct struct {
	ID        string       `json:"id"`
	Kind      InstructKind `json:"kind"`
	Instruct  string       `json:"instruct"`
	Timestamp time.Time    `json:"timestamp"`
}

type MessageStatus string

const (
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
	MessageSkipped MessageStatus = "skipped"
)

type OutgoingMessage struct {
	ID        string        `json:"id"`
	Channel   string        `json:"channel"`
	Content   string        `json:"content"`
	Status    MessageStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
