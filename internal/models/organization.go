package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the top-level tenant (a school or university). Teachers
// join an organization via its invite code.
type Organization struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `gorm:"not null" json:"name" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Invite code is separate from the public ID so that knowing an
	// organization's ID is not enough to join it
	InviteCode string `json:"invite_code" gorm:"unique;not null"`
}

func (o *Organization) BeforeCreate(tx *gorm.DB) (err error) {
	inviteUUID, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	o.InviteCode = inviteUUID.String()
	return
}

func GetOrganizationByID(db *gorm.DB, id uint) (*Organization, error) {
	var org Organization
	result := db.Where("id = ?", id).First(&org)
	if result.Error != nil {
		return nil, result.Error
	}
	return &org, nil
}

func GetOrganizationByInviteCode(db *gorm.DB, code string) (*Organization, error) {
	var org Organization
	result := db.Where("invite_code = ?", code).First(&org)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.New("organization not found")
		}
		return nil, result.Error
	}
	return &org, nil
}

// RotateInviteCode replaces the organization's invite code, invalidating
// previously shared invite links.
func (o *Organization) RotateInviteCode(db *gorm.DB) error {
	inviteUUID, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	o.InviteCode = inviteUUID.String()
	return db.Save(o).Error
}

// Department groups courses and teachers inside an organization.
type Department struct {
	ID             uint          `json:"id" gorm:"primarykey"`
	Name           string        `gorm:"not null" json:"name" validate:"required"`
	OrganizationID uint          `gorm:"not null;index" json:"organization_id"`
	Organization   *Organization `json:"organization,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func GetDepartmentsByOrganization(db *gorm.DB, orgID uint) ([]Department, error) {
	var departments []Department
	if err := db.Where("organization_id = ?", orgID).Find(&departments).Error; err != nil {
		return nil, err
	}
	return departments, nil
}
