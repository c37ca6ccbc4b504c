package printing

import (
	"context"

	"github.com/cravings/printagent/internal/domain/printing"
	infra "github.com/cravings/printagent/internal/infrastructure/sandbox"
)

// jobSurface is a ready sandbox seen through one job
type jobSurface struct {
	jobID   string
	kind    printing.DocumentKind
	payload string
	handle  SandboxHandle
}

func (s *jobSurface) JobID() string               { return s.jobID }
func (s *jobSurface) Kind() printing.DocumentKind { return s.kind }
func (s *jobSurface) Payload() string             { return s.payload }

func (s *jobSurface) PrintPDF(ctx context.Context, opts infra.PDFOptions) ([]byte, error) {
	return s.handle.PrintPDF(ctx, opts)
}

func (s *jobSurface) Capture(ctx context.Context, selector string) ([]byte, error) {
	return s.handle.Capture(ctx, selector)
}
