// Package store persists Upload records in SQLite via GORM.
//
// The verification pipeline consumes this as a get-one/update-one contract
// keyed by upload id; the listing queries back the map and profile views.
// Soft-deleted rows are invisible to every reader.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/christo725/seen/internal/model"
)

// ErrNotFound is returned when an upload does not exist or is soft-deleted.
var ErrNotFound = errors.New("upload not found")

// ErrNotOwner is returned when a caller tries to mutate someone else's upload.
var ErrNotOwner = errors.New("upload not owned by caller")

// Store wraps the GORM handle.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&model.Upload{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Info("database ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Create inserts a new upload record.
func (s *Store) Create(ctx context.Context, u *model.Upload) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

// Get returns the active (not soft-deleted) upload with the given id.
func (s *Store) Get(ctx context.Context, id string) (*model.Upload, error) {
	var u model.Upload
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load upload %s: %w", id, err)
	}
	return &u, nil
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	OwnerID string
	// Since/Until filter on capture time; uploads without a capture time are
	// excluded when either bound is set (they cannot be placed on a timeline).
	Since *time.Time
	Until *time.Time
	Limit int
}

// List returns active uploads matching the filter, newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]model.Upload, error) {
	q := s.db.WithContext(ctx).Model(&model.Upload{}).Order("created_at DESC")
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Since != nil {
		q = q.Where("captured_at IS NOT NULL AND captured_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("captured_at IS NOT NULL AND captured_at <= ?", *f.Until)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var uploads []model.Upload
	if err := q.Find(&uploads).Error; err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return uploads, nil
}

// ListPendingVerification returns up to limit active uploads that have never
// been through a verification attempt.
func (s *Store) ListPendingVerification(ctx context.Context, limit int) ([]model.Upload, error) {
	var uploads []model.Upload
	err := s.db.WithContext(ctx).
		Where("verification_status = ? AND media_url <> ?", "", "").
		Order("created_at ASC").
		Limit(limit).
		Find(&uploads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending uploads: %w", err)
	}
	return uploads, nil
}

// UpdateVerification writes the terminal verification state for one upload.
// It is the single mutation the verification pipeline performs.
func (s *Store) UpdateVerification(ctx context.Context, id string, verified bool, status, result string) error {
	res := s.db.WithContext(ctx).Model(&model.Upload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"verified":            verified,
		"verification_status": status,
		"verification_result": result,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update verification for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks an upload invisible without removing the row. Only the
// owner may delete.
func (s *Store) SoftDelete(ctx context.Context, id, ownerID string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.OwnerID != ownerID {
		return ErrNotOwner
	}
	if err := s.db.WithContext(ctx).Delete(&model.Upload{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete upload %s: %w", id, err)
	}
	return nil
}
