// Package archive persists accepted matches in sqlite. The archive is a record of what each
// run found, not a gate: deduplication stays run-scoped and never consults it.
package archive

import (
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"moul.io/zapgorm2"

	media_courier "github.com/dmaltsev/media-courier"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// A Record is one accepted match from one run.
type Record struct {
	ID            int64  `gorm:"primaryKey"`
	RunID         string `gorm:"column:run_id"`
	Key           string
	Title         string
	CanonicalLink string
	ThumbnailURL  string `gorm:"column:thumbnail_url"`
	CreatedAt     time.Time
}

func (Record) TableName() string {
	return "record"
}

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite archive at path and applies any pending
// migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	gormLogger := zapgorm2.New(logger.Named("archive"))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrating archive: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordMatch stores one accepted match under the given run ID.
func (s *Store) RecordMatch(runID string, m media_courier.ValidatedMatch) error {
	record := Record{
		RunID:         runID,
		Key:           m.Key,
		Title:         m.Title,
		CanonicalLink: m.CanonicalLink,
		ThumbnailURL:  m.ThumbnailRef,
		CreatedAt:     time.Now(),
	}
	return s.db.Create(&record).Error
}

// RecordMatches stores every match, returning how many were stored; a failure on one match
// does not stop the rest.
func (s *Store) RecordMatches(runID string, matches []media_courier.ValidatedMatch, logger *zap.SugaredLogger) int {
	stored := 0
	for _, m := range matches {
		if err := s.RecordMatch(runID, m); err != nil {
			logger.Warnw("failed to archive match", "key", m.Key, "error", err)
			continue
		}
		stored++
	}
	return stored
}

// Recent returns the most recently stored records, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	var records []Record
	err := s.db.Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// ByRun returns every record stored under the given run ID, oldest first.
func (s *Store) ByRun(runID string) ([]Record, error) {
	var records []Record
	err := s.db.Where("run_id = ?", runID).Order("id ASC").Find(&records).Error
	return records, err
}
