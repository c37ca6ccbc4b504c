// Package statusrelay shares job statuses between agent instances over
// Redis pub/sub.
package statusrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel statuses are published on
const DefaultChannel = "printagent:status"

const (
	defaultCloseTimeout = 5 * time.Second
	defaultPingTimeout  = 5 * time.Second
)

// ErrAlreadySubscribed is returned when Subscribe is called twice
var ErrAlreadySubscribed = errors.New("status relay subscription already running")

// Config holds the Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Envelope is the wire form of a relayed status. Origin identifies the
// publishing instance so it can skip its own messages.
type Envelope struct {
	Origin string          `json:"origin"`
	Status printing.Status `json:"status"`
}

// Relay publishes statuses to peers and receives theirs
type Relay struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	origin     string
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// Option is a functional option for configuring the relay
type Option func(*Relay)

// WithChannel sets the pub/sub channel name
func WithChannel(channel string) Option {
	return func(r *Relay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithLogger sets the logger for the relay
func WithLogger(logger *zap.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithOrigin overrides the generated instance id
func WithOrigin(origin string) Option {
	return func(r *Relay) {
		if origin != "" {
			r.origin = origin
		}
	}
}

// New connects to Redis and creates a relay that owns the client
func New(ctx context.Context, cfg Config, opts ...Option) (*Relay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := NewWithClient(client, append([]Option{WithChannel(cfg.Channel)}, opts...)...)
	r.ownsClient = true
	return r, nil
}

// NewWithClient creates a relay on an existing client. The caller keeps
// ownership of the client.
func NewWithClient(client *redis.Client, opts ...Option) *Relay {
	r := &Relay{
		client:  client,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Origin returns this instance's id
func (r *Relay) Origin() string {
	return r.origin
}

// Channel returns the pub/sub channel
func (r *Relay) Channel() string {
	return r.channel
}

// Publish sends a status to all peers
func (r *Relay) Publish(ctx context.Context, status printing.Status) error {
	data, err := r.encode(status)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Error("Failed to publish status",
			zap.String("channel", r.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish status: %w", err)
	}
	r.logger.Debug("Published status",
		zap.String("channel", r.channel),
		zap.String("status_channel", status.Channel),
		zap.String("job_id", status.JobID))
	return nil
}

func (r *Relay) encode(status printing.Status) ([]byte, error) {
	data, err := json.Marshal(Envelope{Origin: r.origin, Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	return data, nil
}

// decode parses a payload and reports whether it came from a peer
func (r *Relay) decode(payload string) (printing.Status, bool, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return printing.Status{}, false, err
	}
	return env.Status, env.Origin != r.origin, nil
}

// Subscribe blocks delivering peer statuses to callback until ctx is done
// or Close is called. Statuses this instance published are skipped.
func (r *Relay) Subscribe(ctx context.Context, callback func(printing.Status)) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return ErrAlreadySubscribed
	}
	r.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	r.cancelFn = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.isRunning = false
		r.mu.Unlock()
		r.markDone()
	}()

	pubsub := r.client.Subscribe(subCtx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	r.logger.Info("Subscribed to status relay", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			r.logger.Info("Status relay subscription stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Status relay channel closed")
				return nil
			}
			r.handle(msg.Payload, callback)
		}
	}
}

func (r *Relay) handle(payload string, callback func(printing.Status)) {
	status, fromPeer, err := r.decode(payload)
	if err != nil {
		r.logger.Error("Failed to unmarshal relayed status",
			zap.String("payload", payload),
			zap.Error(err))
		return
	}
	if !fromPeer {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic in status relay callback", zap.Any("panic", rec))
		}
	}()
	callback(status)
}

func (r *Relay) markDone() {
	r.doneOnce.Do(func() {
		close(r.doneCh)
	})
}

// Ping checks the Redis connection
func (r *Relay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close stops the subscription and closes the client when owned
func (r *Relay) Close() error {
	r.mu.Lock()
	cancelFn := r.cancelFn
	r.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-r.doneCh:
		case <-time.After(defaultCloseTimeout):
			r.logger.Warn("Timeout waiting for status relay to stop")
		}
	}

	if r.ownsClient {
		return r.client.Close()
	}
	return nil
}
