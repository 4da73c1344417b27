package handlers

import (
	"errors"
	"net/http"

	"evalo-backend/internal/common"
	"evalo-backend/internal/config"
	"evalo-backend/internal/models"
	"evalo-backend/internal/sentiment"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// DashboardHandler serves the authenticated teacher/dean dashboard: course
// and event management, feedback moderation, analytics.
type DashboardHandler struct {
	common.ServerState
}

func NewDashboardHandler(db *gorm.DB, cfg *config.Config, jwt common.JWTIssuer, classifier sentiment.Classifier) *DashboardHandler {
	return &DashboardHandler{
		ServerState: common.ServerState{
			DB:         db,
			Config:     cfg,
			JwtIssuer:  jwt,
			Classifier: classifier,
		},
	}
}

func (h *DashboardHandler) getAuthenticatedProfileFromJWT(c echo.Context) (*models.Profile, bool) {
	email, err := h.JwtIssuer.GetUserEmail(c)
	if err != nil {
		return nil, false
	}

	profile, err := models.GetProfileByEmail(h.DB, email)
	if err != nil {
		return nil, false
	}

	return profile, true
}

// canAccessCourse allows the owning teacher, or a dean from the owner's
// organization.
func (h *DashboardHandler) canAccessCourse(profile *models.Profile, course *models.Course) bool {
	if course.OwnerID == profile.ID {
		return true
	}
	if profile.Role != models.RoleDean || profile.OrganizationID == nil {
		return false
	}

	owner, err := models.GetProfileByID(h.DB, course.OwnerID)
	if err != nil || owner.OrganizationID == nil {
		return false
	}
	return *owner.OrganizationID == *profile.OrganizationID
}

type CourseRequest struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	DepartmentID *uint  `json:"department_id"`
}

// CreateCourse creates a new course owned by the authenticated teacher.
func (h *DashboardHandler) CreateCourse(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	req := &CourseRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	course := models.Course{
		Name:         req.Name,
		Description:  req.Description,
		OwnerID:      profile.ID,
		DepartmentID: req.DepartmentID,
	}

	if err := h.DB.Create(&course).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create course")
	}

	return c.JSON(http.StatusOK, course)
}

// GetCourses lists the authenticated teacher's courses.
func (h *DashboardHandler) GetCourses(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	courses, err := models.GetCoursesByOwner(h.DB, profile.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list courses")
	}

	return c.JSON(http.StatusOK, courses)
}

func (h *DashboardHandler) GetCourse(c echo.Context) error {
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

	return c.JSON(http.StatusOK, course)
}

func (h *DashboardHandler) UpdateCourse(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	req := &CourseRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	course, err := models.GetCourseByID(h.DB, c.Param("id"))
	if err != nil {
		return c.String(http.StatusNotFound, "Course not found")
	}

	if !h.canAccessCourse(profile, course) {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	course.Name = req.Name
	course.Description = req.Description
	course.DepartmentID = req.DepartmentID

	if err := h.DB.Save(course).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update course")
	}

	return c.JSON(http.StatusOK, course)
}

// DeleteCourse removes a course together with its events and their feedback.
func (h *DashboardHandler) DeleteCourse(c echo.Context) error {
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

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		events, err := models.GetEventsByCourse(tx, course.ID)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := tx.Where("event_id = ?", event.ID).Delete(&models.Feedback{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("course_id = ?", course.ID).Delete(&models.Event{}).Error; err != nil {
			return err
		}
		return tx.Delete(course).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.String(http.StatusNotFound, "Course not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete course")
	}

	return c.NoContent(http.StatusNoContent)
}
