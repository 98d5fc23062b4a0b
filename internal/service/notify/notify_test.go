package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/repository"
	"Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	msgType string
	payload interface{}
}

func (c *capturePublisher) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	c.msgType = msgType
	c.payload = payload
	return nil
}

func TestOutboxPublishesInsight(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, NewOutbox(pub).Notify(context.Background(), "APT looks strong"))
	assert.Equal(t, MessageType, pub.msgType)
	assert.Equal(t, Payload{Text: "APT looks strong"}, pub.payload)
}

func TestOutboxIgnoresBlankText(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, NewOutbox(pub).Notify(context.Background(), "   "))
	assert.Empty(t, pub.msgType)
}

func rawPayload(t *testing.T, text string) json.RawMessage {
	b, err := json.Marshal(Payload{Text: text})
	require.NoError(t, err)
	return b
}

func TestTelegramJobSends(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botT0KEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	journal := repository.NewMemoryJournal()
	job := NewTelegramJob(Config{TelegramURL: srv.URL, BotToken: "T0KEN", ChatID: "42", MaxMessageLen: 5}, journal, logger.Nop())

	require.NoError(t, job.Handle(context.Background(), rawPayload(t, "market is calm")))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, 5, len([]rune(got["text"])))

	msgs := journal.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageSent, msgs[0].Status)
	assert.Equal(t, "telegram", msgs[0].Channel)
}

func TestTelegramJobSkipsWithoutToken(t *testing.T) {
	journal := repository.NewMemoryJournal()
	job := NewTelegramJob(Config{TelegramURL: "http://127.0.0.1:1"}, journal, logger.Nop())

	require.NoError(t, job.Handle(context.Background(), rawPayload(t, "hello")))
	msgs := journal.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageSkipped, msgs[0].Status)
}

func TestTelegramJobFailureIsJournaledAndRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	journal := repository.NewMemoryJournal()
	job := NewTelegramJob(Config{TelegramURL: srv.URL, BotToken: "t", ChatID: "1"}, journal, logger.Nop())

	err := job.Handle(context.Background(), rawPayload(t, "hello"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "chat not found"))

	msgs := journal.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageFailed, msgs[0].Status)
}
