package store

import (
	"context"
	"errors"

	errwrap "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/clicktriage/clicktriage/internal/models"
)

// CaseRepository persists triage cases, exactly one per record.
type CaseRepository struct {
	db *gorm.DB
}

func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// EnsureForRecord opens a triage case in status new unless one already
// exists for the record. It is idempotent and reports whether a case
// was newly created.
func (r *CaseRepository) EnsureForRecord(ctx context.Context, recordID int64) (bool, error) {
	c := models.TriageCase{}
	res := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Attrs(models.TriageCase{RecordID: recordID, Status: models.StatusNew}).
		FirstOrCreate(&c)
	if res.Error != nil {
		return false, errwrap.Wrap(res.Error, "CaseRepository.EnsureForRecord")
	}
	return res.RowsAffected > 0, nil
}

// FindByRecordID fetches the case for one record; nil when absent.
func (r *CaseRepository) FindByRecordID(ctx context.Context, recordID int64) (*models.TriageCase, error) {
	var c models.TriageCase
	err := r.db.WithContext(ctx).Where("record_id = ?", recordID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errwrap.Wrap(err, "CaseRepository.FindByRecordID")
	}
	return &c, nil
}

// FindByID fetches one case; nil when absent.
func (r *CaseRepository) FindByID(ctx context.Context, id int64) (*models.TriageCase, error) {
	var c models.TriageCase
	err := r.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errwrap.Wrap(err, "CaseRepository.FindByID")
	}
	return &c, nil
}

// Save persists a case mutated by the triage state machine.
func (r *CaseRepository) Save(ctx context.Context, c *models.TriageCase) error {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		return errwrap.Wrap(err, "CaseRepository.Save")
	}
	return nil
}

// ListByStatus returns cases in one status, newest first.
func (r *CaseRepository) ListByStatus(ctx context.Context, status models.CaseStatus, limit int) ([]*models.TriageCase, error) {
	if limit <= 0 {
		limit = 50
	}

	var cases []*models.TriageCase
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at desc").
		Limit(limit).
		Find(&cases).Error
	if err != nil {
		return nil, errwrap.Wrap(err, "CaseRepository.ListByStatus")
	}
	return cases, nil
}

// CountByStatus tallies all cases grouped by status.
func (r *CaseRepository) CountByStatus(ctx context.Context) (map[models.CaseStatus]int64, error) {
	type row struct {
		Status models.CaseStatus
		Total  int64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.TriageCase{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errwrap.Wrap(err, "CaseRepository.CountByStatus")
	}

	counts := make(map[models.CaseStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}
