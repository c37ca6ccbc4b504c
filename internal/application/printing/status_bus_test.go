package printing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingRelay struct {
	mu       sync.Mutex
	statuses []printing.Status
	err      error
}

func (r *recordingRelay) Publish(_ context.Context, s printing.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
	return r.err
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func TestStatusBus_FanOut(t *testing.T) {
	bus := NewStatusBus(0, nil)
	a, unsubA, err := bus.Subscribe(4)
	require.NoError(t, err)
	b, unsubB, err := bus.Subscribe(4)
	require.NoError(t, err)
	defer unsubA()
	defer unsubB()

	status := printing.NewPrintSentStatus("job-1")
	bus.Publish(context.Background(), status)

	assert.Equal(t, status, <-a)
	assert.Equal(t, status, <-b)
	assert.Equal(t, 2, bus.SubscriberCount())
}

func TestStatusBus_SubscriberLimit(t *testing.T) {
	bus := NewStatusBus(1, nil)
	_, unsub, err := bus.Subscribe(1)
	require.NoError(t, err)

	_, _, err = bus.Subscribe(1)
	assert.ErrorIs(t, err, ErrTooManySubscribers)

	unsub()
	_, _, err = bus.Subscribe(1)
	assert.NoError(t, err)
}

func TestStatusBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewStatusBus(0, nil)
	ch, unsub, err := bus.Subscribe(1)
	require.NoError(t, err)

	unsub()
	unsub()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, bus.SubscriberCount())

	bus.Publish(context.Background(), printing.NewUpdateStatus(true, "ok"))
}

func TestStatusBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	bus := NewStatusBus(0, zap.New(core))
	ch, unsub, err := bus.Subscribe(1)
	require.NoError(t, err)
	defer unsub()

	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), printing.NewPrintSentStatus("1"))
		bus.Publish(context.Background(), printing.NewPrintSentStatus("2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Equal(t, "1", (<-ch).JobID)
	assert.Equal(t, 1, logs.FilterMessage("Status subscriber is slow, dropping status").Len())
}

func TestStatusBus_Relay(t *testing.T) {
	tests := []struct {
		name     string
		relayErr error
		warnings int
	}{
		{"relay succeeds", nil, 0},
		{"relay failure is logged", errors.New("connection refused"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			bus := NewStatusBus(0, zap.New(core))
			relay := &recordingRelay{err: tt.relayErr}
			bus.SetRelay(relay)

			ch, unsub, err := bus.Subscribe(2)
			require.NoError(t, err)
			defer unsub()

			bus.Publish(context.Background(), printing.NewPrintFailedStatus("9", "boom"))
			bus.Wait()

			assert.Equal(t, 1, relay.count())
			assert.Equal(t, "Print failed: boom", (<-ch).Message)
			assert.Equal(t, tt.warnings, logs.FilterMessage("Failed to relay status").Len())
		})
	}
}

func TestStatusBus_ReceiveDoesNotRelay(t *testing.T) {
	bus := NewStatusBus(0, nil)
	relay := &recordingRelay{}
	bus.SetRelay(relay)
	ch, unsub, err := bus.Subscribe(1)
	require.NoError(t, err)
	defer unsub()

	bus.Receive(printing.NewPrintSentStatus("peer"))
	bus.Wait()

	assert.Equal(t, "peer", (<-ch).JobID)
	assert.Zero(t, relay.count())
}
