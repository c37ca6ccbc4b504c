package delivery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/infrastructure/sandbox"
	"go.uber.org/zap"
)

const (
	defaultSpoolCommand = "lp"
	defaultListCommand  = "lpstat"
	defaultSpoolTimeout = 15 * time.Second
	exitCodeInterrupted = 130
)

// SpoolerConfig contains configuration for the host print spooler
type SpoolerConfig struct {
	// Command submits a file, lp by default
	Command string
	// ListCommand lists destinations, lpstat by default
	ListCommand string
	// Timeout bounds a single invocation
	Timeout time.Duration
	// Logger for debug output
	Logger *zap.Logger
}

// Spooler submits rasterized pages to the host print facility
type Spooler struct {
	command     string
	listCommand string
	timeout     time.Duration
	logger      *zap.Logger
}

// NewSpooler creates a spooler client
func NewSpooler(config SpoolerConfig) *Spooler {
	if config.Command == "" {
		config.Command = defaultSpoolCommand
	}
	if config.ListCommand == "" {
		config.ListCommand = defaultListCommand
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultSpoolTimeout
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Spooler{
		command:     config.Command,
		listCommand: config.ListCommand,
		timeout:     config.Timeout,
		logger:      log,
	}
}

// spoolArgs builds the submit arguments. The device is omitted for the
// system default printer. The page size goes to the spooler as a custom
// media in millimetres at micron precision. Without silent printing the job
// is held in the queue until an operator releases it.
func spoolArgs(path string, settings printing.PrintSettings) []string {
	var args []string
	if settings.HasDevice() {
		args = append(args, "-d", settings.Device())
	}
	args = append(args, "-o", mediaOption(settings))
	if !settings.SilentPrinting {
		args = append(args, "-H", "hold")
	}
	args = append(args, "-n", "1", path)
	return args
}

// mediaOption renders the page size as "media=Custom.<w>x<h>mm"
func mediaOption(settings printing.PrintSettings) string {
	width, height := settings.PageSizeMicrons()
	mm := func(microns int64) string {
		return strconv.FormatFloat(float64(microns)/1000, 'f', -1, 64)
	}
	return fmt.Sprintf("media=Custom.%sx%smm", mm(width), mm(height))
}

// Print submits the file at path. An interrupted or cancelled submission
// yields printing.ErrCancelled.
func (s *Spooler) Print(ctx context.Context, path string, settings printing.PrintSettings) error {
	binary, err := resolveBinaryPath(s.command)
	if err != nil {
		return printing.NewJobError(printing.ErrCodePrintFailure,
			fmt.Sprintf("print spooler not found: %s", s.command), err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := spoolArgs(path, settings)
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := jobLogger(ctx, s.logger)
	log.Debug("Submitting print job",
		zap.String("binary", binary),
		zap.Strings("args", args),
		zap.Bool("silent", settings.SilentPrinting))

	if err := cmd.Run(); err != nil {
		if isCancellation(err, stderr.String()) {
			return printing.ErrCancelled
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return printing.NewJobError(printing.ErrCodePrintFailure,
				fmt.Sprintf("print spooler timed out after %v", s.timeout), err)
		}
		msg := "print spooler failed"
		if detail := firstLine(stderr.String(), stdout.String()); detail != "" {
			msg += ": " + detail
		}
		return printing.NewJobError(printing.ErrCodePrintFailure, msg, err)
	}

	log.Info("Print job submitted",
		zap.String("file", path),
		zap.String("device", settings.Device()),
		zap.Bool("held", !settings.SilentPrinting),
		zap.String("spooler", strings.TrimSpace(stdout.String())))
	return nil
}

func isCancellation(err error, stderr string) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == exitCodeInterrupted {
		return true
	}
	return strings.Contains(strings.ToLower(stderr), "cancel")
}

// Printers lists the destinations known to the host spooler
func (s *Spooler) Printers(ctx context.Context) ([]string, error) {
	binary, err := resolveBinaryPath(s.listCommand)
	if err != nil {
		return nil, fmt.Errorf("printer listing unavailable: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-e").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	return parsePrinters(out), nil
}

func parsePrinters(out []byte) []string {
	printers := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			printers = append(printers, name)
		}
	}
	return printers
}

// NativeDeliverer prints the page to PDF at the configured paper size and
// hands it to the host spooler.
type NativeDeliverer struct {
	artifacts *ArtifactStore
	spooler   *Spooler
}

// Deliver implements Deliverer
func (d *NativeDeliverer) Deliver(ctx context.Context, surface Surface, settings printing.PrintSettings) error {
	pdf, err := surface.PrintPDF(ctx, pdfOptions(settings))
	if err != nil {
		return printing.NewJobError(printing.ErrCodePrintFailure, "failed to rasterize page", err)
	}
	path, err := d.artifacts.Write(Name(surface.Kind().String(), surface.JobID(), "pdf"), pdf)
	if err != nil {
		return printing.NewJobError(printing.ErrCodePrintFailure, "failed to stage page", err)
	}
	return d.spooler.Print(ctx, path, settings)
}

func pdfOptions(settings printing.PrintSettings) sandbox.PDFOptions {
	return sandbox.PDFOptions{
		WidthMM:         settings.Width,
		HeightMM:        settings.Height,
		Scale:           settings.ScaleFactor,
		PrintBackground: true,
	}
}
