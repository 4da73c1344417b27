package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ProfileRole distinguishes ordinary teachers from deans, who additionally
// manage departments and teachers across their organization.
type ProfileRole string

const (
	RoleTeacher ProfileRole = "teacher"
	RoleDean    ProfileRole = "dean"
)

// Profile is a teacher or dean account. Students never have profiles;
// feedback submission is anonymous.
type Profile struct {
	ID             string        `json:"id" gorm:"unique;not null"` // Standard field for the primary key
	FirstName      string        `gorm:"not null" json:"first_name" validate:"required"`
	LastName       string        `gorm:"not null" json:"last_name" validate:"required"`
	Email          string        `gorm:"not null;unique" json:"email" validate:"required,email"`
	Role           ProfileRole   `gorm:"not null;default:'teacher'" json:"role"`
	OrganizationID *uint         `json:"organization_id" gorm:"default:null"`
	Organization   *Organization `json:"organization,omitempty"`
	DepartmentID   *uint         `json:"department_id" gorm:"default:null"`
	Password       string        `gorm:"-" json:"password" validate:"required,min=8"`
	HashedPassword string        `json:"-"`
	AvatarURL      string        `json:"avatar_url"`
	CreatedAt      time.Time     `json:"created_at"` // Automatically managed by GORM for creation time
	UpdatedAt      time.Time     `json:"updated_at"` // Automatically managed by GORM for update time
	// General metadata for onboarding, preferences, etc.
	Metadata map[string]interface{} `gorm:"serializer:json" json:"metadata"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	// Using uuid v7 to be indexable with B-tree
	uuidV7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	p.ID = uuidV7.String()

	if p.Role == "" {
		p.Role = RoleTeacher
	}

	// Hash password if it's set
	if p.Password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		p.HashedPassword = string(hashedPassword)
		// Clear the plain text password
		p.Password = ""
	}

	return
}

func (p *Profile) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(p.HashedPassword), []byte(password))
	return err == nil
}

// HashPassword hashes a plain text password for storage.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func GetProfileByEmail(db *gorm.DB, email string) (*Profile, error) {
	var profile Profile
	result := db.Where("email = ?", email).First(&profile)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.New("profile not found")
		}
		return nil, result.Error
	}
	return &profile, nil
}

func GetProfileByID(db *gorm.DB, id string) (*Profile, error) {
	var profile Profile
	result := db.Where("id = ?", id).First(&profile)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.New("profile not found")
		}
		return nil, result.Error
	}
	return &profile, nil
}

// GetDisplayName returns the profile's display name
func (p *Profile) GetDisplayName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

// GetColleagues lists the other profiles in the same organization.
func (p *Profile) GetColleagues(db *gorm.DB) ([]Profile, error) {
	if p.OrganizationID == nil {
		return []Profile{}, nil
	}

	var colleagues []Profile
	if err := db.Select("id, first_name, last_name, email, avatar_url, role, organization_id, department_id, created_at, updated_at").
		Where("organization_id = ? AND id != ?", p.OrganizationID, p.ID).
		Find(&colleagues).Error; err != nil {
		return nil, err
	}

	return colleagues, nil
}
