package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course is a taught course owned by a single teacher. Events (feedback
// collection sessions) hang off a course.
type Course struct {
	ID           string      `json:"id" gorm:"unique;not null"`
	Name         string      `gorm:"not null" json:"name" validate:"required"`
	Description  string      `json:"description"`
	OwnerID      string      `gorm:"not null;index" json:"owner_id"`
	Owner        *Profile    `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	DepartmentID *uint       `json:"department_id" gorm:"default:null"`
	Department   *Department `json:"department,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) (err error) {
	// Using uuid v7 to be indexable with B-tree
	uuidV7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	c.ID = uuidV7.String()
	return
}

func GetCourseByID(db *gorm.DB, id string) (*Course, error) {
	var course Course
	result := db.Where("id = ?", id).First(&course)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.New("course not found")
		}
		return nil, result.Error
	}
	return &course, nil
}

func GetCoursesByOwner(db *gorm.DB, ownerID string) ([]Course, error) {
	var courses []Course
	if err := db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}
