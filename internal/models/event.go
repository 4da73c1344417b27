package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventStatus is the lifecycle state of a feedback collection session.
// Students can only submit to open events. Allowed transitions are
// open -> closed, open -> archived and closed -> archived.
type EventStatus string

const (
	EventStatusOpen     EventStatus = "open"
	EventStatusClosed   EventStatus = "closed"
	EventStatusArchived EventStatus = "archived"
)

// CanTransitionTo reports whether moving from s to next is a legal lifecycle
// transition.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventStatusOpen:
		return next == EventStatusClosed || next == EventStatusArchived
	case EventStatusClosed:
		return next == EventStatusArchived
	}
	return false
}

const entryCodeLength = 4

const entryCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var entryCodePattern = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// Event is a single feedback collection session tied to a course. Students
// reach it through a short entry code; the four denormalized counters keep
// analytics reads cheap and must always agree with the feedback table.
type Event struct {
	ID        string      `json:"id" gorm:"unique;not null"`
	CourseID  string      `gorm:"not null;index" json:"course_id"`
	Course    *Course     `gorm:"constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Title     string      `json:"title"`
	EventDate time.Time   `json:"event_date"`
	Status    EventStatus `gorm:"type:varchar(16);not null;default:'open'" json:"status"`
	// Unique among open events only; codes are recycled once the owning
	// event closes
	EntryCode             string    `gorm:"index;not null" json:"entry_code"`
	PositiveFeedbackCount int       `gorm:"not null;default:0" json:"positive_feedback_count"`
	NegativeFeedbackCount int       `gorm:"not null;default:0" json:"negative_feedback_count"`
	NeutralFeedbackCount  int       `gorm:"not null;default:0" json:"neutral_feedback_count"`
	TotalFeedbackCount    int       `gorm:"not null;default:0" json:"total_feedback_count"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) (err error) {
	// Using uuid v7 to be indexable with B-tree
	uuidV7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	e.ID = uuidV7.String()

	if e.Status == "" {
		e.Status = EventStatusOpen
	}

	return
}

// GenerateEntryCode produces a 4-character code drawn uniformly from A-Z0-9.
// Uniqueness among open events is the caller's concern; see AssignEntryCode.
func GenerateEntryCode() (string, error) {
	code := make([]byte, entryCodeLength)
	max := big.NewInt(int64(len(entryCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = entryCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// NormalizeEntryCode uppercases a student-entered code and validates its
// shape. Returns ErrInvalidEntryCode for anything that is not exactly four
// characters of A-Z0-9.
func NormalizeEntryCode(input string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(input))
	if !entryCodePattern.MatchString(code) {
		return "", ErrInvalidEntryCode
	}
	return code, nil
}

// AssignEntryCode generates a code that no currently open event is using and
// sets it on e. The code space is ~1.68M so collisions are rare; a bounded
// retry keeps a pathological database state from looping forever.
func AssignEntryCode(db *gorm.DB, e *Event) error {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := GenerateEntryCode()
		if err != nil {
			return err
		}

		var count int64
		if err := db.Model(&Event{}).
			Where("entry_code = ? AND status = ?", code, EventStatusOpen).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			e.EntryCode = code
			return nil
		}
	}
	return errors.New("could not find a free entry code")
}

func GetEventByID(db *gorm.DB, id string) (*Event, error) {
	var event Event
	result := db.Where("id = ?", id).First(&event)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, result.Error
	}
	return &event, nil
}

func GetEventsByCourse(db *gorm.DB, courseID string) ([]Event, error) {
	var events []Event
	if err := db.Where("course_id = ?", courseID).Order("event_date DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FindOpenEventByEntryCode resolves a normalized entry code to the one open
// event using it. Codes on closed or archived events do not resolve.
func FindOpenEventByEntryCode(db *gorm.DB, code string) (*Event, error) {
	var event Event
	result := db.Where("entry_code = ? AND status = ?", code, EventStatusOpen).First(&event)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidEntryCode
		}
		return nil, result.Error
	}
	return &event, nil
}

// toneColumn maps a tone to its counter column on the events table.
func toneColumn(tone Tone) (string, error) {
	switch tone {
	case TonePositive:
		return "positive_feedback_count", nil
	case ToneNegative:
		return "negative_feedback_count", nil
	case ToneNeutral:
		return "neutral_feedback_count", nil
	}
	return "", fmt.Errorf("unknown tone: %q", tone)
}

// IncrementEventCounters atomically adds 1 to the tone counter and the total
// on the event row. A single UPDATE with column expressions avoids the lost
// updates a read-modify-write would suffer under concurrent submissions.
func IncrementEventCounters(db *gorm.DB, eventID string, tone Tone) error {
	col, err := toneColumn(tone)
	if err != nil {
		return err
	}

	result := db.Model(&Event{}).Where("id = ?", eventID).UpdateColumns(map[string]interface{}{
		col:                    gorm.Expr(col + " + 1"),
		"total_feedback_count": gorm.Expr("total_feedback_count + 1"),
		"updated_at":           time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// DecrementEventCounters is the inverse of IncrementEventCounters. Each
// counter clamps at zero so duplicate or out-of-order deletions can never
// drive a counter negative.
func DecrementEventCounters(db *gorm.DB, eventID string, tone Tone) error {
	col, err := toneColumn(tone)
	if err != nil {
		return err
	}

	result := db.Model(&Event{}).Where("id = ?", eventID).UpdateColumns(map[string]interface{}{
		col:                    gorm.Expr("CASE WHEN " + col + " > 0 THEN " + col + " - 1 ELSE 0 END"),
		"total_feedback_count": gorm.Expr("CASE WHEN total_feedback_count > 0 THEN total_feedback_count - 1 ELSE 0 END"),
		"updated_at":           time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ReconcileEventCounters recomputes the four counters from the feedback table
// and corrects the event row when they have drifted. Returns true when a
// correction was written.
func ReconcileEventCounters(db *gorm.DB, eventID string) (bool, error) {
	event, err := GetEventByID(db, eventID)
	if err != nil {
		return false, err
	}

	type toneCount struct {
		Tone Tone
		N    int
	}
	var counts []toneCount
	if err := db.Model(&Feedback{}).
		Select("tone, count(*) as n").
		Where("event_id = ?", eventID).
		Group("tone").
		Scan(&counts).Error; err != nil {
		return false, err
	}

	var positive, negative, neutral int
	for _, c := range counts {
		switch c.Tone {
		case TonePositive:
			positive = c.N
		case ToneNegative:
			negative = c.N
		case ToneNeutral:
			neutral = c.N
		}
	}
	total := positive + negative + neutral

	if event.PositiveFeedbackCount == positive &&
		event.NegativeFeedbackCount == negative &&
		event.NeutralFeedbackCount == neutral &&
		event.TotalFeedbackCount == total {
		return false, nil
	}

	result := db.Model(&Event{}).Where("id = ?", eventID).UpdateColumns(map[string]interface{}{
		"positive_feedback_count": positive,
		"negative_feedback_count": negative,
		"neutral_feedback_count":  neutral,
		"total_feedback_count":    total,
		"updated_at":              time.Now(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return true, nil
}

// OpenEventIDs lists the IDs of all open events, used by the periodic
// counter reconciliation pass.
func OpenEventIDs(db *gorm.DB) ([]string, error) {
	var ids []string
	if err := db.Model(&Event{}).
		Where("status = ?", EventStatusOpen).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
