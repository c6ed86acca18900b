package models

import (
	"strings"
	"time"

	"friendmap/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShareLink is a directed consent record: ViewerUID asked to see OwnerUID.
// Approval by the owner grants visibility in both directions.
type ShareLink struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerUID  string    `gorm:"size:128;not null;index" json:"owner_uid"`
	ViewerUID string    `gorm:"size:128;not null;index" json:"viewer_uid"`
	Status    string    `gorm:"size:16;not null;index" json:"status"`
	PairKey   string    `gorm:"size:257;not null;uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner  *User `gorm:"foreignKey:OwnerUID;references:FirebaseUID" json:"owner,omitempty"`
	Viewer *User `gorm:"foreignKey:ViewerUID;references:FirebaseUID" json:"viewer,omitempty"`
}

func (ShareLink) TableName() string {
	return "location_shares"
}

// BeforeCreate assigns the id and the unordered pair key. The unique index on
// pair_key allows at most one link per pair of users, whichever direction.
func (s *ShareLink) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.PairKey = PairKey(s.OwnerUID, s.ViewerUID)
	return nil
}

func (s *ShareLink) IsPending() bool  { return s.Status == domain.ShareStatusPending }
func (s *ShareLink) IsApproved() bool { return s.Status == domain.ShareStatusApproved }

// Involves reports whether uid is either party of the link.
func (s *ShareLink) Involves(uid string) bool {
	return s.OwnerUID == uid || s.ViewerUID == uid
}

// OtherParty returns the uid on the opposite side from uid.
func (s *ShareLink) OtherParty(uid string) string {
	if s.OwnerUID == uid {
		return s.ViewerUID
	}
	return s.OwnerUID
}

// PairKey is order-independent: PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
