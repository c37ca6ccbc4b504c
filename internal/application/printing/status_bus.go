package printing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"go.uber.org/zap"
)

// ErrTooManySubscribers is returned when the subscriber limit is reached
var ErrTooManySubscribers = errors.New("too many status subscribers")

const relayPublishTimeout = 3 * time.Second

// Relay forwards statuses to peer instances
type Relay interface {
	Publish(ctx context.Context, status printing.Status) error
}

// StatusBus fans statuses out to in-process subscribers and an optional
// relay. Slow subscribers miss statuses rather than stall the pipeline.
type StatusBus struct {
	mu             sync.RWMutex
	subscribers    map[uint64]chan printing.Status
	nextID         uint64
	maxSubscribers int
	relay          Relay
	logger         *zap.Logger
	wg             sync.WaitGroup
}

// NewStatusBus creates a bus; maxSubscribers <= 0 means unlimited
func NewStatusBus(maxSubscribers int, logger *zap.Logger) *StatusBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusBus{
		subscribers:    make(map[uint64]chan printing.Status),
		maxSubscribers: maxSubscribers,
		logger:         logger,
	}
}

// SetRelay attaches a relay; call before publishing starts
func (b *StatusBus) SetRelay(relay Relay) {
	b.mu.Lock()
	b.relay = relay
	b.mu.Unlock()
}

// Subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *StatusBus) Subscribe(buffer int) (<-chan printing.Status, func(), error) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxSubscribers > 0 && len(b.subscribers) >= b.maxSubscribers {
		return nil, nil, ErrTooManySubscribers
	}
	id := b.nextID
	b.nextID++
	ch := make(chan printing.Status, buffer)
	b.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe, nil
}

// SubscriberCount returns the number of live subscribers
func (b *StatusBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish broadcasts a locally produced status and forwards it to the relay
func (b *StatusBus) Publish(ctx context.Context, status printing.Status) {
	b.broadcast(status)

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay == nil {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		relayCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayPublishTimeout)
		defer cancel()
		if err := relay.Publish(relayCtx, status); err != nil {
			b.logger.Warn("Failed to relay status", zap.String("job_id", status.JobID), zap.Error(err))
		}
	}()
}

// Receive broadcasts a status that arrived from a peer without relaying it back
func (b *StatusBus) Receive(status printing.Status) {
	b.broadcast(status)
}

func (b *StatusBus) broadcast(status printing.Status) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- status:
		default:
			b.logger.Warn("Status subscriber is slow, dropping status",
				zap.Uint64("subscriber", id),
				zap.String("channel", status.Channel))
		}
	}
}

// Wait blocks until pending relay publishes finish
func (b *StatusBus) Wait() {
	b.wg.Wait()
}
