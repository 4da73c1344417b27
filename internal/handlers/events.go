package handlers

import (
	"fmt"
	"net/http"
	"time"

	"evalo-backend/internal/models"
	"evalo-backend/internal/notifications"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type EventRequest struct {
	Title     string     `json:"title"`
	EventDate *time.Time `json:"event_date"`
}

// loadAccessibleEvent resolves the :id event and checks the caller may touch
// it through its course.
func (h *DashboardHandler) loadAccessibleEvent(c echo.Context, profile *models.Profile) (*models.Event, error) {
	event, err := models.GetEventByID(h.DB, c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Event not found")
	}

	course, err := models.GetCourseByID(h.DB, event.CourseID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Course not found")
	}

	if !h.canAccessCourse(profile, course) {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized request")
	}

	return event, nil
}

// CreateEvent opens a new feedback collection session under a course and
// assigns it a fresh entry code.
func (h *DashboardHandler) CreateEvent(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	course, err := models.GetCourseByID(h.DB, c.Param("id"))
	if err != nil {
		return c.String(http.StatusNotFound, "Course not found")
	}

	if !h.canAccessCourse(profile, course) {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	req := &EventRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event := models.Event{
		CourseID: course.ID,
		Title:    req.Title,
		Status:   models.EventStatusOpen,
	}
	if req.EventDate != nil {
		event.EventDate = *req.EventDate
	} else {
		event.EventDate = time.Now()
	}

	if err := models.AssignEntryCode(h.DB, &event); err != nil {
		c.Logger().Error("Failed to assign entry code:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create event")
	}

	if err := h.DB.Create(&event).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create event")
	}

	_ = notifications.SendTelegramNotification(fmt.Sprintf("Event opened: '%s' with code %s", event.Title, event.EntryCode), h.Config)

	return c.JSON(http.StatusOK, event)
}

// GetEvents lists the events of a course.
func (h *DashboardHandler) GetEvents(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	course, err := models.GetCourseByID(h.DB, c.Param("id"))
	if err != nil {
		return c.String(http.StatusNotFound, "Course not found")
	}

	if !h.canAccessCourse(profile, course) {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	events, err := models.GetEventsByCourse(h.DB, course.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list events")
	}

	return c.JSON(http.StatusOK, events)
}

func (h *DashboardHandler) GetEvent(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	event, err := h.loadAccessibleEvent(c, profile)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, event)
}

// UpdateEventStatus moves an event through its lifecycle. Only the forward
// transitions open->closed, open->archived and closed->archived are allowed.
func (h *DashboardHandler) UpdateEventStatus(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	event, err := h.loadAccessibleEvent(c, profile)
	if err != nil {
		return err
	}

	type StatusRequest struct {
		Status models.EventStatus `json:"status" validate:"required"`
	}

	req := new(StatusRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if !event.Status.CanTransitionTo(req.Status) {
		return echo.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("cannot transition event from %s to %s", event.Status, req.Status))
	}

	if err := h.DB.Model(event).UpdateColumn("status", req.Status).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update event status")
	}
	event.Status = req.Status

	return c.JSON(http.StatusOK, event)
}

// ResetEntryCode assigns a fresh entry code to an open event, invalidating
// the old one immediately.
func (h *DashboardHandler) ResetEntryCode(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	event, err := h.loadAccessibleEvent(c, profile)
	if err != nil {
		return err
	}

	if event.Status != models.EventStatusOpen {
		return echo.NewHTTPError(http.StatusConflict, "Only open events can get a new entry code")
	}

	if err := models.AssignEntryCode(h.DB, event); err != nil {
		c.Logger().Error("Failed to assign entry code:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reset entry code")
	}

	if err := h.DB.Model(event).UpdateColumn("entry_code", event.EntryCode).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reset entry code")
	}

	return c.JSON(http.StatusOK, map[string]string{"entry_code": event.EntryCode})
}

// DeleteEvent removes an event and all of its feedback. Feedback rows go
// with the event, so no counter bookkeeping is needed.
func (h *DashboardHandler) DeleteEvent(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	event, err := h.loadAccessibleEvent(c, profile)
	if err != nil {
		return err
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", event.ID).Delete(&models.Feedback{}).Error; err != nil {
			return err
		}
		return tx.Delete(event).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete event")
	}

	return c.NoContent(http.StatusNoContent)
}

// ReconcileEvent recomputes an event's counters from its feedback rows. The
// periodic pass does the same in the background; this endpoint exists so an
// admin can force it after an incident.
func (h *DashboardHandler) ReconcileEvent(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	event, err := h.loadAccessibleEvent(c, profile)
	if err != nil {
		return err
	}

	corrected, err := models.ReconcileEventCounters(h.DB, event.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reconcile counters")
	}

	if corrected {
		driftCorrections.Inc()
		c.Logger().Warnf("Counter drift corrected for event %s", event.ID)
		CaptureError(fmt.Errorf("counter drift corrected for event %s", event.ID))
		_ = notifications.SendTelegramNotification(fmt.Sprintf("Counter drift corrected for event %s", event.ID), h.Config)
	}

	event, err = models.GetEventByID(h.DB, event.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reload event")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"corrected": corrected,
		"event":     event,
	})
}
