package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/domain/shared"
	"github.com/cravings/printagent/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// History query limits
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// GormHistoryRepository implements printing.HistoryRepository using GORM
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GormHistoryRepository
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Save inserts or replaces a record
func (r *GormHistoryRepository) Save(ctx context.Context, record printing.JobRecord) error {
	return r.db.WithContext(ctx).Save(models.JobRecordModelFromDomain(record)).Error
}

// FindByID finds a record by job ID
func (r *GormHistoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*printing.JobRecord, error) {
	var model models.JobRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Recent returns the newest records first
func (r *GormHistoryRepository) Recent(ctx context.Context, filter printing.HistoryFilter) ([]printing.JobRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.JobRecordModel{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}
	if filter.State != "" {
		query = query.Where("state = ?", string(filter.State))
	}

	var rows []models.JobRecordModel
	if err := query.Order("finished_at DESC").Limit(clampLimit(filter.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]printing.JobRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, nil
}

// DeleteOlderThan removes records finished before cutoff
func (r *GormHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("finished_at < ?", cutoff).Delete(&models.JobRecordModel{})
	return result.RowsAffected, result.Error
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}

var _ printing.HistoryRepository = (*GormHistoryRepository)(nil)
