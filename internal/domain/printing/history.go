package printing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobRecord is the persisted summary of a finished print job
type JobRecord struct {
	ID            uuid.UUID
	URL           string
	Kind          DocumentKind
	Strategy      Strategy
	State         JobState
	FailureCode   string
	FailureReason string
	CreatedAt     time.Time
	FinishedAt    time.Time
	Duration      time.Duration
}

// NewJobRecord snapshots a terminal job for the history store
func NewJobRecord(job *PrintJob) JobRecord {
	finished := job.UpdatedAt
	if job.FinishedAt != nil {
		finished = *job.FinishedAt
	}
	return JobRecord{
		ID:            job.ID,
		URL:           job.URL,
		Kind:          job.Kind,
		Strategy:      job.Strategy,
		State:         job.State,
		FailureCode:   job.FailureCode,
		FailureReason: job.FailureReason,
		CreatedAt:     job.CreatedAt,
		FinishedAt:    finished,
		Duration:      finished.Sub(job.CreatedAt),
	}
}

// Succeeded reports whether the job reached the printer
func (r JobRecord) Succeeded() bool {
	return r.State == JobStateCompleted
}

// HistoryFilter narrows a history query
type HistoryFilter struct {
	Kind  DocumentKind
	State JobState
	Limit int
}

// HistoryRepository stores finished jobs
type HistoryRepository interface {
	Save(ctx context.Context, record JobRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*JobRecord, error)
	Recent(ctx context.Context, filter HistoryFilter) ([]JobRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
