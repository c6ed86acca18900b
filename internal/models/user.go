package models

import (
	"time"
)

// User mirrors an identity-provider account. Rows are upserted on every
// sign-in and never deleted.
type User struct {
	FirebaseUID string    `gorm:"primaryKey;size:128" json:"firebase_uid"`
	Name        string    `gorm:"size:255;not null;default:''" json:"name"`
	Email       string    `gorm:"size:255;not null;default:'';index" json:"email"`
	FCMToken    string    `gorm:"size:512" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName falls back to the email when no name is known.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
