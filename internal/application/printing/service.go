package printing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/domain/shared"
	"github.com/cravings/printagent/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// SettingsStore reads and saves print settings
type SettingsStore interface {
	SettingsSource
	SaveRecord(raw map[string]any) (printing.PrintSettings, error)
}

// PrinterLister reports the printers the host spooler knows
type PrinterLister interface {
	Printers(ctx context.Context) ([]string, error)
}

var (
	// ErrHistoryDisabled is returned when no history store is configured
	ErrHistoryDisabled = shared.NewDomainError("HISTORY_DISABLED", "Job history is disabled")
	// ErrShuttingDown is returned for receipt navigations during shutdown
	ErrShuttingDown = shared.NewDomainError("SHUTTING_DOWN", "Print pipeline is shutting down")
)

// PrintService is the entry point for the HTTP surface
type PrintService struct {
	orchestrator *Orchestrator
	settings     SettingsStore
	history      printing.HistoryRepository
	printers     PrinterLister
	status       StatusPublisher
	metrics      *metrics.PrintMetrics
	logger       *zap.Logger
}

// NewPrintService creates a new PrintService. history and printers may be nil.
func NewPrintService(
	orchestrator *Orchestrator,
	settings SettingsStore,
	history printing.HistoryRepository,
	printers PrinterLister,
	status StatusPublisher,
	m *metrics.PrintMetrics,
	logger *zap.Logger,
) *PrintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrintService{
		orchestrator: orchestrator,
		settings:     settings,
		history:      history,
		printers:     printers,
		status:       status,
		metrics:      m,
		logger:       logger,
	}
}

// Navigate diverts receipt URLs into the print pipeline. Other URLs are
// left for the shell to open.
func (s *PrintService) Navigate(ctx context.Context, req NavigationRequest) (*NavigationResult, error) {
	if !printing.IsReceiptURL(req.URL) {
		s.metrics.Navigation("allowed")
		return &NavigationResult{Action: ActionAllow}, nil
	}

	ticket, err := s.orchestrator.Submit(ctx, req.URL)
	if err != nil {
		s.metrics.Navigation("rejected")
		if errors.Is(err, ErrOrchestratorClosed) {
			return nil, ErrShuttingDown
		}
		return nil, fmt.Errorf("failed to submit print job: %w", err)
	}

	s.metrics.Navigation("print")
	s.logger.Info("Receipt navigation intercepted",
		zap.String("url", req.URL),
		zap.String("job_id", ticket.JobID.String()))
	return &NavigationResult{Action: ActionDeny, JobID: ticket.JobID.String()}, nil
}

// Jobs lists in-flight jobs, oldest first
func (s *PrintService) Jobs() []JobResponse {
	views := s.orchestrator.Jobs()
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	out := make([]JobResponse, len(views))
	for i, v := range views {
		out[i] = toJobResponse(v)
	}
	return out
}

// History lists recently finished jobs
func (s *PrintService) History(ctx context.Context, req HistoryRequest) ([]HistoryResponse, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	records, err := s.history.Recent(ctx, printing.HistoryFilter{
		Kind:  printing.DocumentKind(req.Kind),
		State: printing.JobState(req.State),
		Limit: req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load job history: %w", err)
	}
	out := make([]HistoryResponse, len(records))
	for i, r := range records {
		out[i] = toHistoryResponse(r)
	}
	return out, nil
}

// Settings returns the settings in effect
func (s *PrintService) Settings() SettingsResponse {
	return toSettingsResponse(s.settings.Current())
}

// SaveSettings normalizes and persists a settings submission. Jobs already
// running keep their snapshot.
func (s *PrintService) SaveSettings(raw map[string]any) (SettingsResponse, error) {
	saved, err := s.settings.SaveRecord(raw)
	if err != nil {
		return SettingsResponse{}, fmt.Errorf("failed to save print settings: %w", err)
	}
	return toSettingsResponse(saved), nil
}

// Printers lists the printers available to the native strategy
func (s *PrintService) Printers(ctx context.Context) ([]string, error) {
	if s.printers == nil {
		return []string{}, nil
	}
	list, err := s.printers.Printers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	return list, nil
}

// UpdateStatus forwards an update-checker message to the UI
func (s *PrintService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) printing.Status {
	status := printing.NewUpdateStatus(req.Success, req.Message)
	if s.status != nil {
		s.status.Publish(ctx, status)
	}
	return status
}
