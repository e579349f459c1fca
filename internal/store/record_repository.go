package store

import (
	"context"
	"errors"

	errwrap "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/clicktriage/clicktriage/internal/models"
)

// RecordRepository persists captured query executions.
type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// UpsertByQueryID creates the record on first sight of its query
// identifier and updates only the mutable metrics on re-sight. It
// reports whether the record was newly created.
func (r *RecordRepository) UpsertByQueryID(ctx context.Context, rec *models.QueryExecutionRecord) (bool, *models.QueryExecutionRecord, error) {
	funcName := "RecordRepository.UpsertByQueryID"

	var existing models.QueryExecutionRecord
	err := r.db.WithContext(ctx).Where("query_id = ?", rec.QueryID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
			return false, nil, errwrap.Wrap(err, funcName)
		}
		return true, rec, nil
	}
	if err != nil {
		return false, nil, errwrap.Wrap(err, funcName)
	}

	updates := map[string]any{
		"duration_ms":  rec.DurationMs,
		"read_rows":    rec.ReadRows,
		"read_bytes":   rec.ReadBytes,
		"memory_usage": rec.MemoryUsage,
	}
	if err := r.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return false, nil, errwrap.Wrap(err, funcName)
	}
	return false, &existing, nil
}

// FindByID fetches one record; nil when it does not exist.
func (r *RecordRepository) FindByID(ctx context.Context, id int64) (*models.QueryExecutionRecord, error) {
	var rec models.QueryExecutionRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errwrap.Wrap(err, "RecordRepository.FindByID")
	}
	return &rec, nil
}

// FindByQueryID fetches one record by its ClickHouse query identifier;
// nil when it does not exist.
func (r *RecordRepository) FindByQueryID(ctx context.Context, queryID string) (*models.QueryExecutionRecord, error) {
	var rec models.QueryExecutionRecord
	err := r.db.WithContext(ctx).Where("query_id = ?", queryID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errwrap.Wrap(err, "RecordRepository.FindByQueryID")
	}
	return &rec, nil
}

// FindSlowest returns the slowest flagged records, most expensive
// first.
func (r *RecordRepository) FindSlowest(ctx context.Context, limit int) ([]*models.QueryExecutionRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	var records []*models.QueryExecutionRecord
	err := r.db.WithContext(ctx).
		Where("is_slow = ?", true).
		Order("duration_ms desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errwrap.Wrap(err, "RecordRepository.FindSlowest")
	}
	return records, nil
}
