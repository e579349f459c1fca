package store

import (
	"context"
	"errors"

	errwrap "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/clicktriage/clicktriage/internal/models"
)

// ProfileRepository maintains per-table profiles and the index
// recommendations hanging off them.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// UpsertProfile refreshes a table's stats and bumps its slow-query
// counter, creating the profile on first sight. Keyed on table name
// plus database.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile *models.TableProfile) (*models.TableProfile, error) {
	var p models.TableProfile
	err := r.db.WithContext(ctx).
		Where("table_name = ? AND database = ?", profile.TableName, profile.Database).
		First(&p).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		p = *profile
		p.ID = 0
		p.QueryCount = 1
		if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
			return nil, errwrap.Wrap(err, "ProfileRepository.UpsertProfile")
		}
		return &p, nil
	case err != nil:
		return nil, errwrap.Wrap(err, "ProfileRepository.UpsertProfile")
	}

	err = r.db.WithContext(ctx).
		Model(&p).
		Updates(map[string]any{
			"total_rows":    profile.TotalRows,
			"total_bytes":   profile.TotalBytes,
			"engine":        profile.Engine,
			"partition_key": profile.PartitionKey,
			"sorting_key":   profile.SortingKey,
			"query_count":   gorm.Expr("query_count + 1"),
		}).Error
	if err != nil {
		return nil, errwrap.Wrap(err, "ProfileRepository.UpsertProfile")
	}
	p.TotalRows = profile.TotalRows
	p.TotalBytes = profile.TotalBytes
	p.Engine = profile.Engine
	p.PartitionKey = profile.PartitionKey
	p.SortingKey = profile.SortingKey
	p.QueryCount++
	return &p, nil
}

// UpsertIndexRecommendation records one recommendation per
// profile/column/kind, counting repeat occurrences.
func (r *ProfileRepository) UpsertIndexRecommendation(ctx context.Context, rec *models.IndexRecommendation) error {
	var existing models.IndexRecommendation
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND column_name = ? AND kind = ?", rec.ProfileID, rec.ColumnName, rec.Kind).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec.Occurrences = 1
		if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
			return errwrap.Wrap(err, "ProfileRepository.UpsertIndexRecommendation")
		}
		return nil
	case err != nil:
		return errwrap.Wrap(err, "ProfileRepository.UpsertIndexRecommendation")
	}

	err = r.db.WithContext(ctx).
		Model(&existing).
		Update("occurrences", gorm.Expr("occurrences + 1")).Error
	if err != nil {
		return errwrap.Wrap(err, "ProfileRepository.UpsertIndexRecommendation")
	}
	rec.ID = existing.ID
	rec.Occurrences = existing.Occurrences + 1
	return nil
}

// ListRecommendations returns recommendations for one profile, most
// frequently seen first.
func (r *ProfileRepository) ListRecommendations(ctx context.Context, profileID int64) ([]*models.IndexRecommendation, error) {
	var recs []*models.IndexRecommendation
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("occurrences desc").
		Find(&recs).Error
	if err != nil {
		return nil, errwrap.Wrap(err, "ProfileRepository.ListRecommendations")
	}
	return recs, nil
}

// FindProfile fetches one profile by table and database; nil when absent.
func (r *ProfileRepository) FindProfile(ctx context.Context, tableName, database string) (*models.TableProfile, error) {
	var p models.TableProfile
	err := r.db.WithContext(ctx).
		Where("table_name = ? AND database = ?", tableName, database).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errwrap.Wrap(err, "ProfileRepository.FindProfile")
	}
	return &p, nil
}
