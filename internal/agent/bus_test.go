package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"Wonderland/internal/domain/models"
	"Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (s *recordingSink) Record(_ context.Context, evt models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	sink := &recordingSink{}
	bus := NewBus(sink, nil, logger.Nop())

	var got []string
	bus.RegisterListener(func(_ context.Context, e models.Event) { got = append(got, "a:"+string(e.Type)) })
	bus.RegisterListener(func(_ context.Context, e models.Event) { got = append(got, "b:"+string(e.Type)) })

	bus.Emit(context.Background(), models.EventUpdateRate, "tick")

	assert.Equal(t, []string{"a:UPDATE_RATE", "b:UPDATE_RATE"}, got)
	require.Len(t, sink.events, 1)
	assert.Equal(t, models.EventUpdateRate, sink.events[0].Type)
	assert.NotEmpty(t, sink.events[0].ID)
	assert.False(t, sink.events[0].Timestamp.IsZero())
}

func TestBusIsolatesPanickingListener(t *testing.T) {
	bus := NewBus(nil, nil, logger.Nop())

	called := false
	bus.RegisterListener(func(context.Context, models.Event) { panic("boom") })
	bus.RegisterListener(func(context.Context, models.Event) { called = true })

	assert.NotPanics(t, func() { bus.Emit(context.Background(), models.EventHeartbeat, "") })
	assert.True(t, called)
}

func TestBusNoDedupAndIndependentUnregister(t *testing.T) {
	bus := NewBus(nil, nil, logger.Nop())

	count := 0
	fn := func(context.Context, models.Event) { count++ }
	un1 := bus.RegisterListener(fn)
	un2 := bus.RegisterListener(fn)
	assert.Equal(t, 2, bus.Status().ListenerCount)

	bus.Emit(context.Background(), models.EventHeartbeat, "")
	assert.Equal(t, 2, count)

	un1()
	un1()
	assert.Equal(t, 1, bus.Status().ListenerCount)

	bus.Emit(context.Background(), models.EventHeartbeat, "")
	assert.Equal(t, 3, count)

	un2()
	assert.Equal(t, 0, bus.Status().ListenerCount)
}

func TestBusSinkFailureDoesNotAffectDelivery(t *testing.T) {
	sink := &recordingSink{err: errors.New("down")}
	bus := NewBus(sink, nil, logger.Nop())

	called := false
	bus.RegisterListener(func(context.Context, models.Event) { called = true })
	bus.Emit(context.Background(), models.EventUpdateHolding, "")

	assert.True(t, called)
	assert.Len(t, sink.events, 1)
}

func TestBusListenerMayUnregisterDuringDelivery(t *testing.T) {
	bus := NewBus(nil, nil, logger.Nop())

	var unregister func()
	calls := 0
	unregister = bus.RegisterListener(func(context.Context, models.Event) {
		calls++
		unregister()
	})
	bus.Emit(context.Background(), models.EventHeartbeat, "")
	bus.Emit(context.Background(), models.EventHeartbeat, "")
	assert.Equal(t, 1, calls)
}
