package delivery

import (
	"context"

	"github.com/cravings/printagent/internal/domain/printing"
)

// ImageDeliverer captures the printable element as a PNG and spools it
// through the bridge.
type ImageDeliverer struct {
	artifacts *ArtifactStore
	bridge    Sender
	selector  string
}

// Deliver implements Deliverer
func (d *ImageDeliverer) Deliver(ctx context.Context, surface Surface, _ printing.PrintSettings) error {
	png, err := surface.Capture(ctx, d.selector)
	if err != nil {
		return printing.NewJobError(printing.ErrCodePrintFailure, "failed to capture receipt", err)
	}
	path, err := d.artifacts.Write(Name(surface.Kind().String(), surface.JobID(), "png"), png)
	if err != nil {
		return printing.NewJobError(printing.ErrCodePrintFailure, "failed to stage receipt image", err)
	}
	return d.bridge.Send(ctx, path)
}
