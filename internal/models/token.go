package models

import (
	"time"

	"gorm.io/gorm"
)

// TokenType represents different types of tokens
type TokenType string

const TokenExpirationDuration = 30 * time.Minute
const TokenTypePasswordReset TokenType = "password_reset"

// Token represents a security token in the system
type Token struct {
	gorm.Model
	ProfileID string     `gorm:"not null" json:"profile_id" validate:"required"`
	Token     string     `json:"token" gorm:"type:varchar(512);not null;unique;index" validate:"required"`
	TokenType TokenType  `json:"token_type" gorm:"type:varchar(50);not null;index" validate:"required"`
	IsUsed    bool       `gorm:"default:false" json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// CreateToken creates a new token record in the database
func (t *Token) CreateToken(db *gorm.DB, tokenType TokenType, token string) error {
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	t.TokenType = tokenType
	t.Token = token
	return db.Create(t).Error
}

// Used checks if the token is used
func (t *Token) Used() bool {
	return t.UsedAt != nil
}

// IsValid checks if the token is valid
func (t *Token) IsValid() bool {
	expirationTime := t.CreatedAt.Add(TokenExpirationDuration)
	return time.Now().Before(expirationTime)
}
