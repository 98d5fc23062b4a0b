package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 80*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestHookChainOrderAndPanic(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ kafka.Message) (context.Context, error) {
				order = append(order, "before-"+name)
				return ctx, nil
			},
			After: func(context.Context, kafka.Message, error) {
				order = append(order, "after-"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))
	ctx, err := chain.BeforeHandle(context.Background(), kafka.Message{})
	require.NoError(t, err)
	chain.AfterHandle(ctx, kafka.Message{}, nil)
	assert.Equal(t, []string{"before-a", "before-b", "after-b", "after-a"}, order)

	panicky := HookFuncs{Before: func(context.Context, kafka.Message) (context.Context, error) { panic("boom") }}
	_, err = NewHookChain(panicky).BeforeHandle(context.Background(), kafka.Message{})
	assert.Error(t, err)
}

func TestCommandIDHook(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "command_id", Value: []byte("c-1")}}}
	ctx, err := CommandIDHook.BeforeHandle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "c-1", CommandID(ctx))
	assert.Equal(t, "", CommandID(context.Background()))
}

type flakyHandler struct {
	fails int
	calls int
}

func (h *flakyHandler) Topic() string { return "commands" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.fails {
		return errors.New("transient")
	}
	return nil
}

func TestHandleWithRetry(t *testing.T) {
	c := &Consumer{
		cfg:      &ConsumerConfig{RetryMax: 2, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond},
		hook:     NoopHook{},
		stopChan: make(chan struct{}),
	}

	h := &flakyHandler{fails: 2}
	require.NoError(t, c.handleWithRetry(h, kafka.Message{Topic: "commands"}))
	assert.Equal(t, 3, h.calls)

	h = &flakyHandler{fails: 10}
	assert.Error(t, c.handleWithRetry(h, kafka.Message{Topic: "commands"}))
	assert.Equal(t, 3, h.calls)
}
