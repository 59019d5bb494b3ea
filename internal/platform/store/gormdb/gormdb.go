// Package gormdb holds the GORM-backed session and wizard queries shared by
// the sqlite and postgres drivers.
package gormdb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
)

// DB implements store.SessionStore and store.WizardStore over an open *gorm.DB.
type DB struct {
	db *gorm.DB
}

// New wraps db. Call Migrate before use.
func New(db *gorm.DB) *DB {
	return &DB{db: db}
}

// Migrate creates or updates the tables.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.db.WithContext(ctx).AutoMigrate(&store.Session{}, &store.Wizard{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

// CreateSession inserts a new session.
func (d *DB) CreateSession(ctx context.Context, s *store.Session) error {
	if err := d.db.WithContext(ctx).Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetSession retrieves a session by ID.
func (d *DB) GetSession(ctx context.Context, id string) (*store.Session, error) {
	var s store.Session
	if err := d.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// UpdateSession replaces a stored session.
func (d *DB) UpdateSession(ctx context.Context, s *store.Session) error {
	result := d.db.WithContext(ctx).Model(&store.Session{}).Where("id = ?", s.ID).
		Select("*").Updates(s)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteSession deletes a session.
func (d *DB) DeleteSession(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.Session{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListExpiredSessions returns the IDs of sessions expired at now.
func (d *DB) ListExpiredSessions(ctx context.Context, now int64) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&store.Session{}).
		Where("expires_at <= ?", now).Order("expires_at").Pluck("id", &ids).Error
	return ids, err
}

// CreateWizard inserts a new wizard instance.
func (d *DB) CreateWizard(ctx context.Context, w *store.Wizard) error {
	if err := d.db.WithContext(ctx).Create(w).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetWizard retrieves a wizard instance by ID.
func (d *DB) GetWizard(ctx context.Context, id string) (*store.Wizard, error) {
	var w store.Wizard
	if err := d.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// UpdateWizard replaces a stored wizard instance.
func (d *DB) UpdateWizard(ctx context.Context, w *store.Wizard) error {
	result := d.db.WithContext(ctx).Model(&store.Wizard{}).Where("id = ?", w.ID).
		Select("*").Updates(w)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListWizards returns the session's wizard instances, oldest first.
func (d *DB) ListWizards(ctx context.Context, sessionID string) ([]*store.Wizard, error) {
	var ws []*store.Wizard
	if err := d.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("created_at, id").Find(&ws).Error; err != nil {
		return nil, err
	}
	return ws, nil
}

// DeleteWizardsBySession removes every wizard instance of a session.
func (d *DB) DeleteWizardsBySession(ctx context.Context, sessionID string) error {
	return d.db.WithContext(ctx).Delete(&store.Wizard{}, "session_id = ?", sessionID).Error
}
