package models

import (
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/google/uuid"
)

// JobRecordModel is the GORM model for the print_job_history table
type JobRecordModel struct {
	ID            uuid.UUID `gorm:"type:text;primaryKey"`
	URL           string    `gorm:"type:text;not null"`
	Kind          string    `gorm:"type:varchar(10);not null;index"`
	Strategy      string    `gorm:"type:varchar(10);not null"`
	State         string    `gorm:"type:varchar(20);not null;index"`
	FailureCode   string    `gorm:"column:failure_code;type:varchar(32)"`
	FailureReason string    `gorm:"column:failure_reason;type:text"`
	DurationMS    int64     `gorm:"column:duration_ms;not null;default:0"`
	CreatedAt     time.Time `gorm:"not null"`
	FinishedAt    time.Time `gorm:"column:finished_at;not null;index"`
}

// TableName returns the table name for JobRecordModel
func (JobRecordModel) TableName() string {
	return "print_job_history"
}

// ToDomain converts JobRecordModel to a domain JobRecord
func (m *JobRecordModel) ToDomain() *printing.JobRecord {
	return &printing.JobRecord{
		ID:            m.ID,
		URL:           m.URL,
		Kind:          printing.DocumentKind(m.Kind),
		Strategy:      printing.Strategy(m.Strategy),
		State:         printing.JobState(m.State),
		FailureCode:   m.FailureCode,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		FinishedAt:    m.FinishedAt,
		Duration:      time.Duration(m.DurationMS) * time.Millisecond,
	}
}

// JobRecordModelFromDomain creates a JobRecordModel from a domain JobRecord
func JobRecordModelFromDomain(r printing.JobRecord) *JobRecordModel {
	return &JobRecordModel{
		ID:            r.ID,
		URL:           r.URL,
		Kind:          string(r.Kind),
		Strategy:      string(r.Strategy),
		State:         string(r.State),
		FailureCode:   r.FailureCode,
		FailureReason: r.FailureReason,
		DurationMS:    r.Duration.Milliseconds(),
		CreatedAt:     r.CreatedAt,
		FinishedAt:    r.FinishedAt,
	}
}
