package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested account or task does not exist.
var ErrNotFound = errors.New("not found")

// Store aggregates the repositories backed by the shared database handle.
type Store struct {
	db *gorm.DB

	Accounts *AccountStore
	Tasks    *TaskStore
}

// Open opens (or creates) the SQLite database at path and runs schema
// migration for all models.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return New(db, log)
}

// New wires repositories over an existing gorm handle and migrates the
// schema.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	if err := db.AutoMigrate(&Account{}, &Task{}); err != nil {
		return nil, err
	}

	return &Store{
		db:       db,
		Accounts: &AccountStore{db: db, logger: log},
		Tasks:    &TaskStore{db: db, logger: log},
	}, nil
}

// Ping verifies that the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// joinScopes normalizes a scope set to the single on-disk representation.
// Providers hand scopes around as slices, comma-joined strings, or
// space-joined strings; exactly one form is ever stored so the
// required-fields check on read cannot diverge from what was written.
func joinScopes(scopes []string) string {
	cleaned := make([]string, 0, len(scopes))
	for _, s := range scopes {
		for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' }) {
			if part != "" {
				cleaned = append(cleaned, part)
			}
		}
	}
	return strings.Join(cleaned, " ")
}

// splitScopes restores the stored scope column to a slice.
func splitScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}
	return strings.Fields(scopes)
}
