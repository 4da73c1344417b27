package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tone is the sentiment classification of a feedback item. It is assigned
// once at submission time and never changes afterwards.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
)

// Valid reports whether t is one of the three known tones.
func (t Tone) Valid() bool {
	switch t {
	case TonePositive, ToneNegative, ToneNeutral:
		return true
	}
	return false
}

// Feedback is one anonymous student submission tied to exactly one event.
// There is deliberately no foreign key to any user or device: anonymity is a
// product requirement, not an implementation accident.
type Feedback struct {
	ID         string    `json:"id" gorm:"unique;not null"`
	EventID    string    `gorm:"not null;index" json:"event_id"`
	Event      *Event    `gorm:"constraint:OnDelete:CASCADE" json:"event,omitempty"`
	Content    string    `gorm:"not null" json:"content" validate:"required"`
	Tone       Tone      `gorm:"type:varchar(16);not null" json:"tone"`
	IsReviewed bool      `gorm:"default:false" json:"is_reviewed"`
	CreatedAt  time.Time `json:"created_at"`
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) (err error) {
	// Using uuid v7 to be indexable with B-tree
	uuidV7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	f.ID = uuidV7.String()
	return
}

func GetFeedbackByID(db *gorm.DB, id string) (*Feedback, error) {
	var feedback Feedback
	result := db.Where("id = ?", id).First(&feedback)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, result.Error
	}
	return &feedback, nil
}

func GetFeedbackByEvent(db *gorm.DB, eventID string) ([]Feedback, error) {
	var feedback []Feedback
	if err := db.Where("event_id = ?", eventID).Order("created_at DESC").Find(&feedback).Error; err != nil {
		return nil, err
	}
	return feedback, nil
}

// SubmitFeedback persists a new feedback row and bumps the owning event's
// counters in one transaction, so a failed counter update can never leave an
// orphaned, uncounted row behind.
func SubmitFeedback(db *gorm.DB, eventID, content string, tone Tone) (*Feedback, error) {
	feedback := &Feedback{
		EventID: eventID,
		Content: content,
		Tone:    tone,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(feedback).Error; err != nil {
			return err
		}
		return IncrementEventCounters(tx, eventID, tone)
	})
	if err != nil {
		return nil, err
	}

	return feedback, nil
}

// DeleteFeedback removes a feedback row and decrements the owning event's
// counters in one transaction. A second delete of the same ID fails with
// ErrFeedbackNotFound and leaves the counters untouched.
func DeleteFeedback(db *gorm.DB, id string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var feedback Feedback
		if err := tx.Where("id = ?", id).First(&feedback).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFeedbackNotFound
			}
			return err
		}

		if err := tx.Delete(&feedback).Error; err != nil {
			return err
		}

		return DecrementEventCounters(tx, feedback.EventID, feedback.Tone)
	})
}

// SetReviewed flips the teacher-facing reviewed flag.
func SetReviewed(db *gorm.DB, id string, reviewed bool) (*Feedback, error) {
	feedback, err := GetFeedbackByID(db, id)
	if err != nil {
		return nil, err
	}

	feedback.IsReviewed = reviewed
	if err := db.Model(feedback).UpdateColumn("is_reviewed", reviewed).Error; err != nil {
		return nil, err
	}
	return feedback, nil
}
