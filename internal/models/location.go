package models

import (
	"time"
)

// LiveLocation is the owner's current position. One row per user; no history.
// UpdatedAt is the publish-time clock set by the publisher, so gorm must not
// manage it.
type LiveLocation struct {
	FirebaseUID string    `gorm:"primaryKey;size:128" json:"firebase_uid"`
	Latitude    float64   `gorm:"not null" json:"latitude"`
	Longitude   float64   `gorm:"not null" json:"longitude"`
	UpdatedAt   time.Time `gorm:"not null;index;autoUpdateTime:false" json:"updated_at"`
}

func (LiveLocation) TableName() string {
	return "live_locations"
}
