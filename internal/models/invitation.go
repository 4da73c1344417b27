package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailInvitation records every invitation email sent, for rate limiting.
type EmailInvitation struct {
	gorm.Model
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	Email          string    `gorm:"not null;index" json:"email"`
	SentAt         time.Time `json:"sent_at"`
	SentBy         string    `gorm:"not null" json:"sent_by"`
}

// CanSendInvite reports whether another invitation may be sent to this email
// address. Caps at 3 per address per day to keep invite spam in check.
func CanSendInvite(db *gorm.DB, email string) bool {
	var count int64
	db.Model(&EmailInvitation{}).
		Where("email = ? AND sent_at > ?", email, time.Now().AddDate(0, 0, -1)).
		Count(&count)
	return count < 3
}
