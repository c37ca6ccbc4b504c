package delivery

import (
	"context"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/infrastructure/escpos"
	"go.uber.org/zap"
)

// EscposDeliverer decodes the tagged document the page logged, encodes it
// as ESC/POS and spools the bytes through the bridge.
type EscposDeliverer struct {
	artifacts *ArtifactStore
	bridge    Sender
	logger    *zap.Logger
}

// Deliver implements Deliverer
func (d *EscposDeliverer) Deliver(ctx context.Context, surface Surface, _ printing.PrintSettings) error {
	doc, err := printing.DecodeTagged(surface.Payload())
	if err != nil {
		return err
	}
	if bill, ok := doc.(*printing.Bill); ok && !bill.TotalsConsistent() {
		fallback := d.logger
		if fallback == nil {
			fallback = zap.NewNop()
		}
		jobLogger(ctx, fallback).Warn("Bill totals do not add up, printing as received",
			zap.String("document_id", bill.ID),
			zap.String("subtotal", bill.Calculations.Subtotal.String()),
			zap.String("grand_total", bill.Calculations.GrandTotal.String()))
	}
	data, err := escpos.Encode(doc)
	if err != nil {
		return err
	}
	path, err := d.artifacts.Write(Name(doc.Kind().String(), doc.DocumentID(), "bin"), data)
	if err != nil {
		return printing.NewJobError(printing.ErrCodePrintFailure, "failed to stage receipt", err)
	}
	return d.bridge.Send(ctx, path)
}
