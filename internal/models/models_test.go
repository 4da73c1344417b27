package models

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a named in-memory SQLite database so each test gets its
// own isolated state. The connection pool is capped at one so concurrent
// writers serialize instead of tripping SQLite busy errors.
func setupTestDB(t *testing.T) *gorm.DB {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&Organization{},
		&Department{},
		&Profile{},
		&Course{},
		&Event{},
		&Feedback{},
	))

	return db
}

func createTestCourse(t *testing.T, db *gorm.DB) *Course {
	owner := &Profile{
		FirstName: "Test",
		LastName:  "Teacher",
		Email:     fmt.Sprintf("%s@example.com", uuid.NewString()),
		Password:  "password123",
	}
	require.NoError(t, db.Create(owner).Error)

	course := &Course{
		Name:    "Intro to Databases",
		OwnerID: owner.ID,
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

func createTestEvent(t *testing.T, db *gorm.DB, status EventStatus) *Event {
	course := createTestCourse(t, db)

	event := &Event{
		CourseID: course.ID,
		Title:    "Lecture 1",
		Status:   status,
	}
	require.NoError(t, AssignEntryCode(db, event))
	require.NoError(t, db.Create(event).Error)
	return event
}
