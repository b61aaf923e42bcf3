package model

import "time"

// MuteTransition is the historical log of applied state changes (cold
// table). Rows are append-only; retention is unbounded.
type MuteTransition struct {
	ID            int64     `gorm:"autoIncrement;primaryKey"`
	EntityID      string    `gorm:"size:64;not null;index:idx_transitions_entity_applied"`
	Muted         bool      `gorm:"not null"`
	TriggerMinute int       `gorm:"not null"` // minutes since midnight of the matched rule
	SourceGroupID string    `gorm:"size:128;not null"`
	LookedBack    bool      `gorm:"not null"` // rule carried over from the previous day
	AppliedAt     time.Time `gorm:"not null;index:idx_transitions_entity_applied"`
}
