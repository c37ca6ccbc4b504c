package printing

import (
	"context"

	"github.com/cravings/printagent/internal/domain/printing"
	infra "github.com/cravings/printagent/internal/infrastructure/sandbox"
)

// SandboxHandle is one open rendering sandbox
type SandboxHandle interface {
	ID() string
	PrintPDF(ctx context.Context, opts infra.PDFOptions) ([]byte, error)
	Capture(ctx context.Context, selector string) ([]byte, error)
	Close() error
}

// SandboxOpener opens sandboxes. Events for the new sandbox go to sink and
// may arrive before Open returns.
type SandboxOpener interface {
	Open(ctx context.Context, url string, sink infra.Sink) (SandboxHandle, error)
}

// SettingsSource provides the settings snapshot a job is created with
type SettingsSource interface {
	Current() printing.PrintSettings
}

// ErrorRecorder appends to the durable error log
type ErrorRecorder interface {
	Record(message string)
}

// StatusPublisher receives every status the pipeline emits
type StatusPublisher interface {
	Publish(ctx context.Context, status printing.Status)
}

// ManagerOpener adapts a sandbox manager to SandboxOpener
type ManagerOpener struct {
	Manager *infra.Manager
}

// Open opens a sandbox on the manager
func (o ManagerOpener) Open(ctx context.Context, url string, sink infra.Sink) (SandboxHandle, error) {
	sb, err := o.Manager.Open(ctx, url, sink)
	if err != nil {
		return nil, err
	}
	return sb, nil
}
