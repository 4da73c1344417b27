package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToneValid(t *testing.T) {
	assert.True(t, TonePositive.Valid())
	assert.True(t, ToneNegative.Valid())
	assert.True(t, ToneNeutral.Valid())
	assert.False(t, Tone("").Valid())
	assert.False(t, Tone("angry").Valid())
	assert.False(t, Tone("Positive").Valid())
}

func TestSubmitFeedback(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	feedback, err := SubmitFeedback(db, event.ID, "The pace was good", TonePositive)
	require.NoError(t, err)
	assert.NotEmpty(t, feedback.ID)
	assert.Equal(t, event.ID, feedback.EventID)
	assert.Equal(t, TonePositive, feedback.Tone)
	assert.False(t, feedback.IsReviewed)

	reloaded, err := GetEventByID(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.PositiveFeedbackCount)
	assert.Equal(t, 1, reloaded.TotalFeedbackCount)
}

func TestSubmitFeedback_UnknownEvent(t *testing.T) {
	db := setupTestDB(t)

	_, err := SubmitFeedback(db, "no-such-event", "Hello", ToneNeutral)
	assert.ErrorIs(t, err, ErrEventNotFound)

	// The transaction must roll the row back as well
	var rows int64
	require.NoError(t, db.Model(&Feedback{}).Count(&rows).Error)
	assert.Equal(t, int64(0), rows)
}

func TestDeleteFeedback(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	feedback, err := SubmitFeedback(db, event.ID, "Too much homework", ToneNegative)
	require.NoError(t, err)

	require.NoError(t, DeleteFeedback(db, feedback.ID))

	reloaded, err := GetEventByID(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.NegativeFeedbackCount)
	assert.Equal(t, 0, reloaded.TotalFeedbackCount)

	_, err = GetFeedbackByID(db, feedback.ID)
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
}

func TestDeleteFeedback_Twice(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	feedback, err := SubmitFeedback(db, event.ID, "Loved the examples", TonePositive)
	require.NoError(t, err)
	_, err = SubmitFeedback(db, event.ID, "More examples please", TonePositive)
	require.NoError(t, err)

	require.NoError(t, DeleteFeedback(db, feedback.ID))
	err = DeleteFeedback(db, feedback.ID)
	assert.ErrorIs(t, err, ErrFeedbackNotFound)

	// The failed second delete must leave the counters untouched
	reloaded, err := GetEventByID(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.PositiveFeedbackCount)
	assert.Equal(t, 1, reloaded.TotalFeedbackCount)
}

func TestSetReviewed(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	feedback, err := SubmitFeedback(db, event.ID, "The labs were helpful", TonePositive)
	require.NoError(t, err)

	updated, err := SetReviewed(db, feedback.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsReviewed)

	reloaded, err := GetFeedbackByID(db, feedback.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsReviewed)

	_, err = SetReviewed(db, "no-such-feedback", true)
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
}
