package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"evalo-backend/internal/common"
	"evalo-backend/internal/config"
	"evalo-backend/internal/models"
	"evalo-backend/internal/sentiment"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SubmissionHandler serves the student-facing anonymous surface: entry code
// lookup and feedback submission. No authentication, no identity stored.
type SubmissionHandler struct {
	common.ServerState
}

func NewSubmissionHandler(db *gorm.DB, cfg *config.Config, redis *redis.Client, classifier sentiment.Classifier) *SubmissionHandler {
	return &SubmissionHandler{
		ServerState: common.ServerState{
			DB:         db,
			Config:     cfg,
			Redis:      redis,
			Classifier: classifier,
		},
	}
}

type SubmitFeedbackRequest struct {
	EntryCode string `json:"entry_code" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

// LookupEntryCode resolves an entry code to the open event behind it so the
// submission page can show what the student is about to rate. Counters are
// deliberately not exposed here.
func (h *SubmissionHandler) LookupEntryCode(c echo.Context) error {
	code, err := models.NormalizeEntryCode(c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid or expired code")
	}

	event, err := models.FindOpenEventByEntryCode(h.DB, code)
	if err != nil {
		if errors.Is(err, models.ErrInvalidEntryCode) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid or expired code")
		}
		c.Logger().Error("Failed to resolve entry code:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to look up code")
	}

	course, err := models.GetCourseByID(h.DB, event.CourseID)
	if err != nil {
		c.Logger().Error("Failed to load course for event:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to look up code")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"event_title": event.Title,
		"event_date":  event.EventDate,
		"course_name": course.Name,
	})
}

// SubmitFeedback is the end-to-end anonymous submission path: validate the
// code, classify the text, persist the feedback row and bump the event
// counters in one transaction.
func (h *SubmissionHandler) SubmitFeedback(c echo.Context) error {
	req := new(SubmitFeedbackRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Feedback content cannot be empty")
	}

	code, err := models.NormalizeEntryCode(req.EntryCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid or expired code")
	}

	if err := h.checkRateLimit(c); err != nil {
		return err
	}

	event, err := models.FindOpenEventByEntryCode(h.DB, code)
	if err != nil {
		if errors.Is(err, models.ErrInvalidEntryCode) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid or expired code")
		}
		c.Logger().Error("Failed to resolve entry code:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Submission failed, please try again")
	}

	tone, err := h.Classifier.Classify(c.Request().Context(), content)
	if err != nil {
		// Policy: reject rather than store a guessed tone. An uncounted
		// submission the student believes was recorded is worse than
		// asking them to retry.
		classifierFailures.Inc()
		c.Logger().Error("Sentiment classification failed:", err)
		CaptureError(err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Feedback cannot be processed right now, please try again shortly")
	}

	if _, err := models.SubmitFeedback(h.DB, event.ID, content, tone); err != nil {
		c.Logger().Error("Failed to store feedback:", err)
		CaptureError(fmt.Errorf("feedback submission for event %s: %w", event.ID, err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Submission failed, please try again")
	}

	feedbackSubmissions.WithLabelValues(string(tone)).Inc()

	// Anonymous by design: no receipt or identifier is returned
	return c.JSON(http.StatusCreated, map[string]string{"message": "Feedback submitted"})
}

// checkRateLimit caps anonymous submissions per client IP per minute. Redis
// being down or unconfigured disables the limit rather than the endpoint.
func (h *SubmissionHandler) checkRateLimit(c echo.Context) error {
	if h.Redis == nil {
		return nil
	}

	ctx := c.Request().Context()
	key := fmt.Sprintf("submission-rate:%s", c.RealIP())

	count, err := h.Redis.Incr(ctx, key).Result()
	if err != nil {
		c.Logger().Warnf("Redis rate limit check failed: %v", err)
		return nil
	}
	if count == 1 {
		h.Redis.Expire(ctx, key, time.Minute)
	}

	if count > int64(h.Config.Submission.RateLimitPerMinute) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many submissions, please slow down")
	}

	return nil
}
