package store

import (
	"context"
	"errors"
	"time"

	errwrap "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/clicktriage/clicktriage/internal/models"
)

// AnalysisRepository stores at most one analysis result per record.
type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// FindForRecord fetches the stored analysis for one record; nil when absent.
func (r *AnalysisRepository) FindForRecord(ctx context.Context, recordID int64) (*models.AnalysisResult, error) {
	var res models.AnalysisResult
	err := r.db.WithContext(ctx).Where("record_id = ?", recordID).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errwrap.Wrap(err, "AnalysisRepository.FindForRecord")
	}
	return &res, nil
}

// ReplaceForRecord upserts the analysis result for a record. A stored
// result younger than maxAge is kept as-is unless force is set; the
// returned result is whichever copy is now current, and the bool
// reports whether the store was written.
func (r *AnalysisRepository) ReplaceForRecord(ctx context.Context, result *models.AnalysisResult, maxAge time.Duration, force bool) (*models.AnalysisResult, bool, error) {
	existing, err := r.FindForRecord(ctx, result.RecordID)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		fresh := maxAge > 0 && time.Since(existing.AnalyzedAt) < maxAge
		if fresh && !force {
			return existing, false, nil
		}
		result.ID = existing.ID
		if err := r.db.WithContext(ctx).Save(result).Error; err != nil {
			return nil, false, errwrap.Wrap(err, "AnalysisRepository.ReplaceForRecord")
		}
		return result, true, nil
	}

	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return nil, false, errwrap.Wrap(err, "AnalysisRepository.ReplaceForRecord")
	}
	return result, true, nil
}
