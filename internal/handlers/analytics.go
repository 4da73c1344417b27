package handlers

import (
	"net/http"
	"strings"

	"evalo-backend/internal/models"
	"evalo-backend/internal/sentiment"
	"evalo-backend/internal/utils"

	"github.com/labstack/echo/v4"
)

const analyticsKeywordLimit = 15

// ToneBreakdown summarizes feedback tone distribution for an event or a
// whole course. Percentages are rounded to one decimal and are zero when no
// feedback exists.
type ToneBreakdown struct {
	Total              int     `json:"total"`
	Positive           int     `json:"positive"`
	Negative           int     `json:"negative"`
	Neutral            int     `json:"neutral"`
	PositivePercentage float64 `json:"positive_percentage"`
	NegativePercentage float64 `json:"negative_percentage"`
	NeutralPercentage  float64 `json:"neutral_percentage"`
}

func breakdownFromCounts(positive, negative, neutral int) ToneBreakdown {
	b := ToneBreakdown{
		Total:    positive + negative + neutral,
		Positive: positive,
		Negative: negative,
		Neutral:  neutral,
	}
	if b.Total == 0 {
		return b
	}
	pct := func(n int) float64 {
		return float64(int(float64(n)/float64(b.Total)*1000+0.5)) / 10
	}
	b.PositivePercentage = pct(positive)
	b.NegativePercentage = pct(negative)
	b.NeutralPercentage = pct(neutral)
	return b
}

// EventAnalytics returns the tone breakdown and the most frequent keywords
// for a single event. The breakdown reads the denormalized counters, keywords
// come from the feedback text itself.
func (h *DashboardHandler) EventAnalytics(c echo.Context) error {
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
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load feedback")
	}

	texts := make([]string, 0, len(feedback))
	for _, f := range feedback {
		texts = append(texts, f.Content)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"event_id":    event.ID,
		"event_title": event.Title,
		"status":      event.Status,
		"breakdown": breakdownFromCounts(
			event.PositiveFeedbackCount,
			event.NegativeFeedbackCount,
			event.NeutralFeedbackCount,
		),
		"keywords": utils.TopKeywords(texts, analyticsKeywordLimit),
	})
}

// CourseAnalytics aggregates tone counts across every event of a course and
// includes a per-event breakdown so the dashboard can chart trends.
func (h *DashboardHandler) CourseAnalytics(c echo.Context) error {
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
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load events")
	}

	type eventSummary struct {
		EventID   string        `json:"event_id"`
		Title     string        `json:"title"`
		EventDate string        `json:"event_date"`
		Breakdown ToneBreakdown `json:"breakdown"`
	}

	var positive, negative, neutral int
	summaries := make([]eventSummary, 0, len(events))
	for _, e := range events {
		positive += e.PositiveFeedbackCount
		negative += e.NegativeFeedbackCount
		neutral += e.NeutralFeedbackCount
		summaries = append(summaries, eventSummary{
			EventID:   e.ID,
			Title:     e.Title,
			EventDate: e.EventDate.Format("2006-01-02"),
			Breakdown: breakdownFromCounts(
				e.PositiveFeedbackCount,
				e.NegativeFeedbackCount,
				e.NeutralFeedbackCount,
			),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"course_id":   course.ID,
		"course_name": course.Name,
		"breakdown":   breakdownFromCounts(positive, negative, neutral),
		"events":      summaries,
	})
}

type ClassifyRequest struct {
	Text     string `json:"text" validate:"required"`
	Detailed bool   `json:"detailed"`
}

// ClassifySentiment proxies a classification request to the sentiment model
// API so the dashboard can preview tones without holding the API key.
func (h *DashboardHandler) ClassifySentiment(c echo.Context) error {
	_, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	req := new(ClassifyRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Text must not be empty")
	}

	proxy, ok := h.Classifier.(*sentiment.HTTPClassifier)
	if !ok {
		// Happens only when classification is stubbed out in tests
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Sentiment analysis is not available")
	}

	body, err := proxy.ClassifyRaw(c.Request().Context(), req.Text, req.Detailed)
	if err != nil {
		classifierFailures.Inc()
		CaptureError(err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Sentiment analysis is temporarily unavailable")
	}

	return c.JSONBlob(http.StatusOK, body)
}
