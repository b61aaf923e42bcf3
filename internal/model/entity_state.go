package model

// EntityState is the persisted actual mute state of one chat group
// (hot table, one row per entity). A missing row means the real-world
// state is unknown and the next reconciliation must act.
type EntityState struct {
	EntityID       string `gorm:"primaryKey;size:64"`
	Muted          bool   `gorm:"not null"`
	UpdatedAtMs    int64  `gorm:"not null"`
	AppliedGroupID string `gorm:"size:128;not null"`
}
