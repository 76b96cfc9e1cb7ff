package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"groupcart/internal/model"
)

// GormStore keeps snapshots as rows of the snapshots table
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a SQL backed snapshot store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Load selects the snapshot row
func (s *GormStore) Load(ctx context.Context, name string) ([]byte, error) {
	var snap model.Snapshot
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap.Payload, nil
}

// Save upserts the snapshot row
func (s *GormStore) Save(ctx context.Context, name string, payload []byte) error {
	snap := model.Snapshot{
		Name:      name,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&snap).Error
}
