package printing

import (
	"time"

	"github.com/cravings/printagent/internal/domain/shared"
	"github.com/google/uuid"
)

// PrintJob is one intercepted receipt URL on its way to the printer.
// A job owns exactly one sandbox and carries the settings snapshot taken
// when it was created.
type PrintJob struct {
	ID            uuid.UUID
	URL           string
	Kind          DocumentKind
	Strategy      Strategy
	SandboxID     string
	State         JobState
	Settings      PrintSettings
	FailureCode   string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	FinishedAt    *time.Time
}

// NewPrintJob creates a new print job in the created state
func NewPrintJob(url string, strategy Strategy, settings PrintSettings) (*PrintJob, error) {
	if url == "" {
		return nil, shared.NewDomainError("INVALID_URL", "URL cannot be empty")
	}
	kind, ok := KindFromURL(url)
	if !ok {
		return nil, shared.NewDomainError("INVALID_URL", "URL is not a receipt URL: "+url)
	}
	if !strategy.IsValid() {
		return nil, shared.NewDomainError("INVALID_STRATEGY", "Invalid print strategy: "+strategy.String())
	}

	now := time.Now()
	return &PrintJob{
		ID:        uuid.New(),
		URL:       url,
		Kind:      kind,
		Strategy:  strategy,
		State:     JobStateCreated,
		Settings:  settings.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StartLoading binds the job to its sandbox and moves it to loading
func (j *PrintJob) StartLoading(sandboxID string) error {
	if sandboxID == "" {
		return shared.NewDomainError("INVALID_SANDBOX", "Sandbox ID cannot be empty")
	}
	if err := j.transition(JobStateLoading); err != nil {
		return err
	}
	j.SandboxID = sandboxID
	return nil
}

// MarkLoaded records a successful sandbox load
func (j *PrintJob) MarkLoaded() error {
	return j.transition(JobStateAwaitingReady)
}

// StartPrinting records the readiness signal
func (j *PrintJob) StartPrinting() error {
	return j.transition(JobStatePrinting)
}

// Complete marks the job as delivered
func (j *PrintJob) Complete() error {
	return j.transition(JobStateCompleted)
}

// Fail marks the job as failed with a code and reason
func (j *PrintJob) Fail(code, reason string) error {
	if err := j.transition(JobStateFailed); err != nil {
		return err
	}
	j.FailureCode = code
	j.FailureReason = reason
	return nil
}

// TimeOut marks the job as expired
func (j *PrintJob) TimeOut() error {
	if err := j.transition(JobStateTimedOut); err != nil {
		return err
	}
	j.FailureCode = ErrCodeReadyTimeout
	j.FailureReason = "no readiness signal before timeout"
	return nil
}

// IsTerminal returns true if the job is in a terminal state
func (j *PrintJob) IsTerminal() bool {
	return j.State.IsTerminal()
}

// Duration returns the job lifetime so far, or its total once finished
func (j *PrintJob) Duration() time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.CreatedAt)
	}
	return time.Since(j.CreatedAt)
}

func (j *PrintJob) transition(target JobState) error {
	if !j.State.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot move job from "+j.State.String()+" to "+target.String())
	}
	now := time.Now()
	j.State = target
	j.UpdatedAt = now
	if target.IsTerminal() {
		j.FinishedAt = &now
	}
	return nil
}
