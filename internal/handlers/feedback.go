package handlers

import (
	"errors"
	"net/http"

	"evalo-backend/internal/models"

	"github.com/labstack/echo/v4"
)

// GetEventFeedback lists an event's feedback for moderation, newest first.
func (h *DashboardHandler) GetEventFeedback(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	event, err := h.loadAccessibleEvent(c, profile)
	if err != nil {
		return err
	}

	feedback, err := models.GetFeedbackByEvent(h.DB, event.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list feedback")
	}

	return c.JSON(http.StatusOK, feedback)
}

// MarkFeedbackReviewed toggles the reviewed flag on a feedback item.
func (h *DashboardHandler) MarkFeedbackReviewed(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	feedback, err := models.GetFeedbackByID(h.DB, c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrFeedbackNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Feedback not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load feedback")
	}

	if err := h.authorizeFeedbackAccess(c, profile, feedback); err != nil {
		return err
	}

	type ReviewRequest struct {
		IsReviewed bool `json:"is_reviewed"`
	}

	req := new(ReviewRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := models.SetReviewed(h.DB, feedback.ID, req.IsReviewed)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update feedback")
	}

	return c.JSON(http.StatusOK, updated)
}

// DeleteFeedback removes a feedback item and decrements the owning event's
// counters. Deleting twice returns 404 the second time with counters intact.
func (h *DashboardHandler) DeleteFeedback(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	feedback, err := models.GetFeedbackByID(h.DB, c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrFeedbackNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Feedback not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load feedback")
	}

	if err := h.authorizeFeedbackAccess(c, profile, feedback); err != nil {
		return err
	}

	if err := models.DeleteFeedback(h.DB, feedback.ID); err != nil {
		switch {
		case errors.Is(err, models.ErrFeedbackNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Feedback not found")
		case errors.Is(err, models.ErrEventNotFound):
			// Orphaned feedback; the row stays so reconciliation can see it
			c.Logger().Errorf("Feedback %s references missing event %s", feedback.ID, feedback.EventID)
			return echo.NewHTTPError(http.StatusNotFound, "Event not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete feedback")
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// authorizeFeedbackAccess checks the caller can touch the feedback item via
// its event's course.
func (h *DashboardHandler) authorizeFeedbackAccess(c echo.Context, profile *models.Profile, feedback *models.Feedback) error {
	event, err := models.GetEventByID(h.DB, feedback.EventID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	}

	course, err := models.GetCourseByID(h.DB, event.CourseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Course not found")
	}

	if !h.canAccessCourse(profile, course) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized request")
	}

	return nil
}
