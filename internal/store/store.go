package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mute-schedule-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// GetEntityState returns the persisted state for an entity, or nil
	// when no row exists yet.
	GetEntityState(ctx context.Context, entityID string) (*model.EntityState, error)
	// PutEntityState creates or replaces the persisted state for an entity.
	PutEntityState(ctx context.Context, entityID string, muted bool, at time.Time, appliedGroupID string) error
	ListEntityStates(ctx context.Context) ([]model.EntityState, error)
	AppendTransition(ctx context.Context, tr *model.MuteTransition) error
	ListTransitions(ctx context.Context, entityID string, limit int) ([]model.MuteTransition, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for collaborators that need raw
// query access (router, notification worker).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) GetEntityState(ctx context.Context, entityID string) (*model.EntityState, error) {
	var st model.EntityState
	err := s.db.WithContext(ctx).First(&st, "entity_id = ?", entityID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state for entity %s: %w", entityID, err)
	}
	return &st, nil
}

func (s *gormStore) PutEntityState(ctx context.Context, entityID string, muted bool, at time.Time, appliedGroupID string) error {
	st := model.EntityState{
		EntityID:       entityID,
		Muted:          muted,
		UpdatedAtMs:    at.UnixMilli(),
		AppliedGroupID: appliedGroupID,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"muted", "updated_at_ms", "applied_group_id"}),
	}).Create(&st).Error
	if err != nil {
		return fmt.Errorf("failed to upsert state for entity %s: %w", entityID, err)
	}
	return nil
}

func (s *gormStore) ListEntityStates(ctx context.Context) ([]model.EntityState, error) {
	var states []model.EntityState
	if err := s.db.WithContext(ctx).Order("entity_id").Find(&states).Error; err != nil {
		return nil, fmt.Errorf("failed to list entity states: %w", err)
	}
	return states, nil
}

func (s *gormStore) AppendTransition(ctx context.Context, tr *model.MuteTransition) error {
	if err := s.db.WithContext(ctx).Create(tr).Error; err != nil {
		return fmt.Errorf("failed to append transition for entity %s: %w", tr.EntityID, err)
	}
	return nil
}

func (s *gormStore) ListTransitions(ctx context.Context, entityID string, limit int) ([]model.MuteTransition, error) {
	if limit <= 0 {
		limit = 20
	}
	var trs []model.MuteTransition
	err := s.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("applied_at DESC").
		Limit(limit).
		Find(&trs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions for entity %s: %w", entityID, err)
	}
	return trs, nil
}
