package model

import "time"

// PushSubscription holds the information for an operator's browser push
// subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey;size:512"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Entities []SubscriptionEntity `gorm:"foreignKey:SubscriptionEndpoint;constraint:OnDelete:CASCADE"`
}

// SubscriptionEntity links a push subscription to one watched chat group.
type SubscriptionEntity struct {
	SubscriptionEndpoint string `gorm:"primaryKey;size:512"`
	EntityID             string `gorm:"primaryKey;size:64;index"`
}
