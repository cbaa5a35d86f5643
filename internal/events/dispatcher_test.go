package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	boom := errors.New("boom")

	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.TicketNumber)
		return boom
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.TicketNumber)
		return nil
	})
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
		calls = append(calls, "assigned")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketNumber: "T20240101.0001"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first:T20240101.0001", "second:T20240101.0001"}, calls)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketEscalated}))
}

func TestPublishStopsOnCancelledContext(t *testing.T) {
	d := NewInMemoryDispatcher()
	called := false
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		called = true
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Publish(ctx, Event{Type: EventTicketCreated})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
