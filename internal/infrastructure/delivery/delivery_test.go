package delivery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const kotPayload = `PRINT_KOT:{"id":"ord-9","type":"Dine-in","created_at":"2026-01-02T10:00:00Z","items":[{"name":"Tea","quantity":2}]}`

func newStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := NewArtifactStore(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func TestNew(t *testing.T) {
	store := newStore(t)
	sender := &fakeSender{}
	spooler := NewSpooler(SpoolerConfig{})

	d, err := New(printing.StrategyNative, Deps{Artifacts: store, Spooler: spooler})
	require.NoError(t, err)
	assert.IsType(t, &NativeDeliverer{}, d)

	d, err = New(printing.StrategyESCPOS, Deps{Artifacts: store, Bridge: sender})
	require.NoError(t, err)
	assert.IsType(t, &EscposDeliverer{}, d)

	d, err = New(printing.StrategyImage, Deps{Artifacts: store, Bridge: sender})
	require.NoError(t, err)
	assert.Equal(t, "#printable-content", d.(*ImageDeliverer).selector)

	_, err = New(printing.StrategyNative, Deps{Artifacts: store})
	assert.Error(t, err)
	_, err = New(printing.StrategyESCPOS, Deps{Artifacts: store})
	assert.Error(t, err)
	_, err = New("fax", Deps{Artifacts: store})
	assert.Error(t, err)
	_, err = New(printing.StrategyImage, Deps{Bridge: sender})
	assert.Error(t, err)
}

func TestEscposDeliverer(t *testing.T) {
	store := newStore(t)
	sender := &fakeSender{}
	d := &EscposDeliverer{artifacts: store, bridge: sender}

	surface := &fakeSurface{jobID: "job-1", kind: printing.DocumentKindKOT, payload: kotPayload}
	require.NoError(t, d.Deliver(context.Background(), surface, printing.DefaultPrintSettings()))

	require.Len(t, sender.paths, 1)
	assert.Equal(t, store.Path("kot", "ord-9", "bin"), sender.paths[0])
	data, err := os.ReadFile(sender.paths[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1B, 0x40}, data[:2])
	assert.Contains(t, string(data), "2 x Tea")
}

func TestEscposDeliverer_WarnsOnInconsistentTotals(t *testing.T) {
	tests := []struct {
		name       string
		grandTotal string
		wantWarn   bool
	}{
		{name: "totals add up", grandTotal: "42", wantWarn: false},
		{name: "totals off", grandTotal: "50", wantWarn: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			sender := &fakeSender{}
			d := &EscposDeliverer{artifacts: newStore(t), bridge: sender, logger: zap.New(core)}

			payload := `PRINT_BILL:{"id":"bill-1","created_at":"2026-01-02T10:00:00Z","store_name":"Cafe",` +
				`"order_items":[{"name":"Tea","quantity":2,"price":20}],"extra_charges":[],` +
				`"calculations":{"subtotal":40,"gst_amount":2,"grand_total":` + tt.grandTotal + `},` +
				`"currency":"₹","country":"India"}`
			surface := &fakeSurface{jobID: "job-1", kind: printing.DocumentKindBill, payload: payload}
			require.NoError(t, d.Deliver(context.Background(), surface, printing.DefaultPrintSettings()))

			assert.Len(t, sender.paths, 1, "an inconsistent bill is still printed")
			if !tt.wantWarn {
				assert.Zero(t, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, "bill-1", entry.ContextMap()["document_id"])
			assert.Equal(t, "50", entry.ContextMap()["grand_total"])
		})
	}
}

func TestEscposDeliverer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		sendErr  error
		wantCode string
	}{
		{"no marker", `{"id":"1"}`, nil, printing.ErrCodeEncodeFailure},
		{"malformed json", `PRINT_BILL:{"id":`, nil, printing.ErrCodeEncodeFailure},
		{"empty payload", "", nil, printing.ErrCodeEncodeFailure},
		{
			"bridge failure propagates",
			kotPayload,
			printing.NewJobError(printing.ErrCodeBridgeLaunchFailure, "print bridge failed", nil),
			printing.ErrCodeBridgeLaunchFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{err: tt.sendErr}
			d := &EscposDeliverer{artifacts: newStore(t), bridge: sender}
			err := d.Deliver(context.Background(), &fakeSurface{kind: printing.DocumentKindKOT, payload: tt.payload}, printing.DefaultPrintSettings())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, printing.ErrorCode(err))
			if tt.sendErr == nil {
				assert.Empty(t, sender.paths)
			}
		})
	}
}

func TestImageDeliverer(t *testing.T) {
	store := newStore(t)
	sender := &fakeSender{}
	d := &ImageDeliverer{artifacts: store, bridge: sender, selector: "#printable-content"}

	surface := &fakeSurface{jobID: "job-7", kind: printing.DocumentKindBill, png: []byte("\x89PNG")}
	require.NoError(t, d.Deliver(context.Background(), surface, printing.DefaultPrintSettings()))
	assert.Equal(t, "#printable-content", surface.selector)
	require.Len(t, sender.paths, 1)
	assert.Equal(t, "bill-job-7.png", filepath.Base(sender.paths[0]))

	surface = &fakeSurface{jobID: "job-8", kind: printing.DocumentKindBill, err: errors.New("node not found")}
	err := d.Deliver(context.Background(), surface, printing.DefaultPrintSettings())
	require.Error(t, err)
	assert.Equal(t, printing.ErrCodePrintFailure, printing.ErrorCode(err))
	assert.Contains(t, err.Error(), "node not found")
}

func TestNativeDeliverer(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	lp := writeScript(t, `echo "$@" > `+argsFile+"\necho 'request id is TM-1 (1 file(s))'")

	store := newStore(t)
	d := &NativeDeliverer{artifacts: store, spooler: NewSpooler(SpoolerConfig{Command: lp})}

	device := "TM-T82"
	settings := printing.PrintSettings{Width: 80, Height: 200, ScaleFactor: 0.9, SilentPrinting: true, DeviceName: &device}
	surface := &fakeSurface{jobID: "job-3", kind: printing.DocumentKindBill, pdf: []byte("%PDF-1.4")}

	require.NoError(t, d.Deliver(context.Background(), surface, settings))

	assert.Equal(t, 80.0, surface.pdfOpts.WidthMM)
	assert.Equal(t, 200.0, surface.pdfOpts.HeightMM)
	assert.Equal(t, 0.9, surface.pdfOpts.Scale)
	assertFileContent(t, argsFile, "-d TM-T82 -o media=Custom.80x200mm -n 1 "+store.Path("bill", "job-3", "pdf")+"\n")
}

func TestNativeDeliverer_RasterizeFailure(t *testing.T) {
	d := &NativeDeliverer{artifacts: newStore(t), spooler: NewSpooler(SpoolerConfig{})}
	err := d.Deliver(context.Background(), &fakeSurface{kind: printing.DocumentKindKOT, err: errors.New("target closed")}, printing.DefaultPrintSettings())
	require.Error(t, err)
	assert.Equal(t, printing.ErrCodePrintFailure, printing.ErrorCode(err))
}

func TestJobLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fallback := zap.New(core)

	jobLogger(context.Background(), fallback).Info("plain")
	ctx, _ := logger.WithJobID(context.Background(), fallback, "job-1")
	jobLogger(ctx, zap.NewNop()).Info("scoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "job_id")
	assert.Equal(t, "job-1", entries[1].ContextMap()["job_id"])
}
