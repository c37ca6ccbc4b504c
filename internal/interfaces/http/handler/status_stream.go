package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	printapp "github.com/cravings/printagent/internal/application/printing"
	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const statusBufferSize = 32

// StatusSubscriber hands out status subscriptions
type StatusSubscriber interface {
	Subscribe(buffer int) (<-chan printing.Status, func(), error)
}

// SSEMessage is one server-sent event
type SSEMessage struct {
	Event string
	Data  string
	ID    string
}

// StatusStreamHandler streams print and update statuses to the POS UI over
// server-sent events. Event names are the status channels.
type StatusStreamHandler struct {
	BaseHandler
	statuses  StatusSubscriber
	logger    *zap.Logger
	heartbeat time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active int
}

// StatusStreamOption configures a StatusStreamHandler
type StatusStreamOption func(*StatusStreamHandler)

// WithStreamLogger sets the logger for the handler
func WithStreamLogger(logger *zap.Logger) StatusStreamOption {
	return func(h *StatusStreamHandler) {
		h.logger = logger
	}
}

// WithStreamHeartbeat sets the heartbeat interval
func WithStreamHeartbeat(interval time.Duration) StatusStreamOption {
	return func(h *StatusStreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewStatusStreamHandler creates a new status stream handler
func NewStatusStreamHandler(statuses StatusSubscriber, opts ...StatusStreamOption) *StatusStreamHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &StatusStreamHandler{
		statuses:  statuses,
		logger:    zap.NewNop(),
		heartbeat: 30 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stop disconnects every client
func (h *StatusStreamHandler) Stop() {
	h.cancel()
	h.logger.Info("Status stream handler stopped")
}

// ClientCount returns the number of connected clients
func (h *StatusStreamHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Stream handles GET /print/status/stream
func (h *StatusStreamHandler) Stream(c *gin.Context) {
	if h.ctx.Err() != nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Status stream is shutting down")
		return
	}

	statuses, unsubscribe, err := h.statuses.Subscribe(statusBufferSize)
	if err != nil {
		if errors.Is(err, printapp.ErrTooManySubscribers) {
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeTooManyStreams, "Maximum number of status streams reached")
			return
		}
		h.HandleError(c, err)
		return
	}
	defer unsubscribe()

	clientID := uuid.NewString()
	h.track(1)
	defer h.track(-1)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.logger.Debug("Status stream client connected", zap.String("client_id", clientID))
	h.send(c, SSEMessage{
		Event: "connected",
		Data:  fmt.Sprintf(`{"client_id":%q,"timestamp":%d}`, clientID, time.Now().Unix()),
	})

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	reqCtx := c.Request.Context()

	for {
		select {
		case <-reqCtx.Done():
			h.logger.Debug("Status stream client disconnected", zap.String("client_id", clientID))
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.send(c, SSEMessage{
				Event: "heartbeat",
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			})
		case status, ok := <-statuses:
			if !ok {
				return
			}
			msg, err := statusMessage(status)
			if err != nil {
				h.logger.Error("Failed to marshal status event", zap.Error(err))
				continue
			}
			h.send(c, msg)
		}
	}
}

func (h *StatusStreamHandler) track(delta int) {
	h.mu.Lock()
	h.active += delta
	h.mu.Unlock()
}

func (h *StatusStreamHandler) send(c *gin.Context, msg SSEMessage) {
	writeEvent(c.Writer, msg)
	c.Writer.Flush()
}

// statusMessage renders a status as {success, message} on its channel
func statusMessage(status printing.Status) (SSEMessage, error) {
	data, err := json.Marshal(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		JobID   string `json:"job_id,omitempty"`
	}{status.Success, status.Message, status.JobID})
	if err != nil {
		return SSEMessage{}, err
	}
	return SSEMessage{
		Event: status.Channel,
		Data:  string(data),
		ID:    fmt.Sprintf("%d", status.Timestamp.UnixNano()),
	}, nil
}

// writeEvent writes an SSE event to the response writer
func writeEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}
