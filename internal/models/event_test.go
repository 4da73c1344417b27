package models

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEntryCode_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateEntryCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Z0-9]{4}$`, code)
	}
}

func TestNormalizeEntryCode(t *testing.T) {
	code, err := NormalizeEntryCode("  ab12 ")
	require.NoError(t, err)
	assert.Equal(t, "AB12", code)

	for _, input := range []string{"", "ABC", "ABCDE", "AB 1", "ab!2", "日本語А"} {
		_, err := NormalizeEntryCode(input)
		assert.ErrorIs(t, err, ErrInvalidEntryCode, "input %q", input)
	}
}

func TestEventStatusTransitions(t *testing.T) {
	assert.True(t, EventStatusOpen.CanTransitionTo(EventStatusClosed))
	assert.True(t, EventStatusOpen.CanTransitionTo(EventStatusArchived))
	assert.True(t, EventStatusClosed.CanTransitionTo(EventStatusArchived))

	assert.False(t, EventStatusClosed.CanTransitionTo(EventStatusOpen))
	assert.False(t, EventStatusArchived.CanTransitionTo(EventStatusOpen))
	assert.False(t, EventStatusArchived.CanTransitionTo(EventStatusClosed))
	assert.False(t, EventStatusOpen.CanTransitionTo(EventStatusOpen))
}

func TestFindOpenEventByEntryCode(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	found, err := FindOpenEventByEntryCode(db, event.EntryCode)
	require.NoError(t, err)
	assert.Equal(t, event.ID, found.ID)

	// Codes on closed events must not resolve
	require.NoError(t, db.Model(event).UpdateColumn("status", EventStatusClosed).Error)
	_, err = FindOpenEventByEntryCode(db, event.EntryCode)
	assert.ErrorIs(t, err, ErrInvalidEntryCode)
}

func TestIncrementEventCounters(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	require.NoError(t, IncrementEventCounters(db, event.ID, TonePositive))
	require.NoError(t, IncrementEventCounters(db, event.ID, TonePositive))
	require.NoError(t, IncrementEventCounters(db, event.ID, ToneNegative))
	require.NoError(t, IncrementEventCounters(db, event.ID, ToneNeutral))

	reloaded, err := GetEventByID(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.PositiveFeedbackCount)
	assert.Equal(t, 1, reloaded.NegativeFeedbackCount)
	assert.Equal(t, 1, reloaded.NeutralFeedbackCount)
	assert.Equal(t, 4, reloaded.TotalFeedbackCount)
}

func TestIncrementEventCounters_UnknownEvent(t *testing.T) {
	db := setupTestDB(t)

	err := IncrementEventCounters(db, "no-such-event", TonePositive)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestIncrementEventCounters_UnknownTone(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	err := IncrementEventCounters(db, event.ID, Tone("angry"))
	assert.Error(t, err)

	reloaded, err := GetEventByID(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.TotalFeedbackCount)
}

func TestDecrementEventCounters_ClampsAtZero(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	require.NoError(t, IncrementEventCounters(db, event.ID, TonePositive))

	require.NoError(t, DecrementEventCounters(db, event.ID, TonePositive))
	// Further decrements must not push any counter below zero
	require.NoError(t, DecrementEventCounters(db, event.ID, TonePositive))
	require.NoError(t, DecrementEventCounters(db, event.ID, ToneNegative))

	reloaded, err := GetEventByID(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.PositiveFeedbackCount)
	assert.Equal(t, 0, reloaded.NegativeFeedbackCount)
	assert.Equal(t, 0, reloaded.NeutralFeedbackCount)
	assert.Equal(t, 0, reloaded.TotalFeedbackCount)
}

func TestDecrementEventCounters_UnknownEvent(t *testing.T) {
	db := setupTestDB(t)

	err := DecrementEventCounters(db, "no-such-event", TonePositive)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestReconcileEventCounters(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	_, err := SubmitFeedback(db, event.ID, "Great lecture", TonePositive)
	require.NoError(t, err)
	_, err = SubmitFeedback(db, event.ID, "Too fast", ToneNegative)
	require.NoError(t, err)

	// Counters agree with the feedback table, nothing to correct
	corrected, err := ReconcileEventCounters(db, event.ID)
	require.NoError(t, err)
	assert.False(t, corrected)

	// Introduce drift by editing the counters behind the store's back
	require.NoError(t, db.Model(event).UpdateColumn("positive_feedback_count", 40).Error)

	corrected, err = ReconcileEventCounters(db, event.ID)
	require.NoError(t, err)
	assert.True(t, corrected)

	reloaded, err := GetEventByID(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.PositiveFeedbackCount)
	assert.Equal(t, 1, reloaded.NegativeFeedbackCount)
	assert.Equal(t, 2, reloaded.TotalFeedbackCount)
}

func TestReconcileEventCounters_UnknownEvent(t *testing.T) {
	db := setupTestDB(t)

	_, err := ReconcileEventCounters(db, "no-such-event")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestConcurrentSubmissions(t *testing.T) {
	db := setupTestDB(t)
	event := createTestEvent(t, db, EventStatusOpen)

	const workers = 50
	tones := []Tone{TonePositive, ToneNegative, ToneNeutral}

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := SubmitFeedback(db, event.ID, "Concurrent feedback", tones[i%len(tones)])
			if err == nil {
				successes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(workers), successes.Load())

	reloaded, err := GetEventByID(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, reloaded.TotalFeedbackCount)
	assert.Equal(t, reloaded.TotalFeedbackCount,
		reloaded.PositiveFeedbackCount+reloaded.NegativeFeedbackCount+reloaded.NeutralFeedbackCount)

	var rows int64
	require.NoError(t, db.Model(&Feedback{}).Where("event_id = ?", event.ID).Count(&rows).Error)
	assert.Equal(t, int64(workers), rows)
}

func TestAssignEntryCode(t *testing.T) {
	db := setupTestDB(t)

	event := createTestEvent(t, db, EventStatusOpen)
	assert.Regexp(t, `^[A-Z0-9]{4}$`, event.EntryCode)

	// A second event always gets a code no open event is using
	other := createTestEvent(t, db, EventStatusOpen)
	assert.NotEqual(t, event.EntryCode, other.EntryCode)
}
