// Package store persists diagnostic state in an embedded sqlite
// database through gorm repositories. All upserts are idempotent and
// keyed by their natural identity so overlapping runs cannot create
// duplicates.
package store

import (
	errwrap "github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clicktriage/clicktriage/internal/models"
)

// Open opens (or creates) the sqlite database at path and migrates the
// schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errwrap.Wrap(err, "store.Open")
	}

	if err := db.AutoMigrate(
		&models.QueryExecutionRecord{},
		&models.AnalysisResult{},
		&models.TableProfile{},
		&models.IndexRecommendation{},
		&models.TriageCase{},
	); err != nil {
		return nil, errwrap.Wrap(err, "store.Open: migrate")
	}

	return db, nil
}

// Store bundles the repositories over one database handle.
type Store struct {
	Records  *RecordRepository
	Analyses *AnalysisRepository
	Profiles *ProfileRepository
	Cases    *CaseRepository
}

// New creates the repository bundle.
func New(db *gorm.DB) *Store {
	return &Store{
		Records:  NewRecordRepository(db),
		Analyses: NewAnalysisRepository(db),
		Profiles: NewProfileRepository(db),
		Cases:    NewCaseRepository(db),
	}
}
