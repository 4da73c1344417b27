package models

import "errors"

var (
	// ErrEventNotFound is returned when an event referenced by ID does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrFeedbackNotFound is returned when a feedback item referenced by ID does not exist.
	ErrFeedbackNotFound = errors.New("feedback not found")

	// ErrInvalidEntryCode is returned when an entry code is malformed or does
	// not resolve to a currently open event.
	ErrInvalidEntryCode = errors.New("invalid or expired entry code")
)
