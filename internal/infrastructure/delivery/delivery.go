// Package delivery hands a ready receipt to a printer. Three strategies
// share one interface: native PDF spooling, raw ESC/POS through the
// spooling bridge and a captured bitmap through the same bridge.
package delivery

import (
	"context"
	"fmt"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/infrastructure/logger"
	"github.com/cravings/printagent/internal/infrastructure/sandbox"
	"go.uber.org/zap"
)

// Surface is what a deliverer prints from: the job's ready sandbox
type Surface interface {
	JobID() string
	Kind() printing.DocumentKind
	// Payload is the tagged console line, empty in handshake ready mode
	Payload() string
	PrintPDF(ctx context.Context, opts sandbox.PDFOptions) ([]byte, error)
	Capture(ctx context.Context, selector string) ([]byte, error)
}

// Deliverer prints a surface with the job's settings snapshot
type Deliverer interface {
	Deliver(ctx context.Context, surface Surface, settings printing.PrintSettings) error
}

// Sender is the spooling bridge seen from a deliverer
type Sender interface {
	Send(ctx context.Context, path string) error
}

// Deps carries what the strategies need
type Deps struct {
	Artifacts *ArtifactStore
	Bridge    Sender
	Spooler   *Spooler
	Selector  string
	Logger    *zap.Logger
}

// New returns the deliverer for strategy
func New(strategy printing.Strategy, deps Deps) (Deliverer, error) {
	if deps.Artifacts == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	switch strategy {
	case printing.StrategyNative:
		if deps.Spooler == nil {
			return nil, fmt.Errorf("native strategy requires a spooler")
		}
		return &NativeDeliverer{artifacts: deps.Artifacts, spooler: deps.Spooler}, nil
	case printing.StrategyESCPOS:
		if deps.Bridge == nil {
			return nil, fmt.Errorf("escpos strategy requires a bridge")
		}
		log := deps.Logger
		if log == nil {
			log = zap.NewNop()
		}
		return &EscposDeliverer{artifacts: deps.Artifacts, bridge: deps.Bridge, logger: log}, nil
	case printing.StrategyImage:
		if deps.Bridge == nil {
			return nil, fmt.Errorf("image strategy requires a bridge")
		}
		selector := deps.Selector
		if selector == "" {
			selector = sandbox.DefaultSelector
		}
		return &ImageDeliverer{artifacts: deps.Artifacts, bridge: deps.Bridge, selector: selector}, nil
	default:
		return nil, fmt.Errorf("unknown print strategy: %q", strategy)
	}
}

// DeliverFunc adapts a function to Deliverer
type DeliverFunc func(ctx context.Context, surface Surface, settings printing.PrintSettings) error

// Deliver calls f
func (f DeliverFunc) Deliver(ctx context.Context, surface Surface, settings printing.PrintSettings) error {
	return f(ctx, surface, settings)
}

// jobLogger prefers the job-scoped logger carried by ctx over fallback
func jobLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger.GetJobID(ctx) == "" {
		return fallback
	}
	return logger.WithTraceContext(ctx, logger.FromContext(ctx))
}
