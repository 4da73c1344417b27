package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"evalo-backend/internal/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetOrganization returns the authenticated profile's organization together
// with its departments.
func (h *AuthHandler) GetOrganization(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	if profile.OrganizationID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Profile is not part of any organization")
	}

	org, err := models.GetOrganizationByID(h.DB, *profile.OrganizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Organization not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load organization")
	}

	departments, err := models.GetDepartmentsByOrganization(h.DB, org.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load departments")
	}

	// Only deans get to see the invite code
	if profile.Role != models.RoleDean {
		org.InviteCode = ""
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"organization": org,
		"departments":  departments,
	})
}

// CreateOrganization creates an organization for a profile that has none and
// promotes the creator to dean.
func (h *AuthHandler) CreateOrganization(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	if profile.OrganizationID != nil {
		return echo.NewHTTPError(http.StatusConflict, "Profile already belongs to an organization")
	}

	type OrganizationRequest struct {
		Name string `json:"name" validate:"required"`
	}

	req := new(OrganizationRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	org := models.Organization{Name: req.Name}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).
			Where("id = ?", profile.ID).
			Updates(map[string]any{
				"organization_id": org.ID,
				"role":            models.RoleDean,
			}).Error
	})
	if err != nil {
		c.Logger().Error("Failed to create organization:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create organization")
	}

	return c.JSON(http.StatusCreated, org)
}

// JoinOrganization attaches the authenticated profile to the organization
// behind an invite code.
func (h *AuthHandler) JoinOrganization(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	inviteCode := c.Param("code")
	if inviteCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invite code is required")
	}

	org, err := models.GetOrganizationByInviteCode(h.DB, inviteCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Invitation not found or has expired")
	}

	if profile.OrganizationID != nil && *profile.OrganizationID == org.ID {
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.DB.Model(&models.Profile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{
			"organization_id": org.ID,
			"role":            models.RoleTeacher,
		}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to join organization")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":           "Successfully joined organization",
		"organization_name": org.Name,
		"organization_id":   org.ID,
	})
}

// RotateInviteCode replaces the organization invite code. Dean only.
func (h *AuthHandler) RotateInviteCode(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	if profile.OrganizationID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Profile is not part of any organization")
	}
	if profile.Role != models.RoleDean {
		return echo.NewHTTPError(http.StatusForbidden, "dean required")
	}

	org, err := models.GetOrganizationByID(h.DB, *profile.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load organization")
	}

	if err := org.RotateInviteCode(h.DB); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to rotate invite code")
	}

	return c.JSON(http.StatusOK, map[string]string{"invite_code": org.InviteCode})
}

// SendTeacherInvites emails organization invitations to a list of addresses.
func (h *AuthHandler) SendTeacherInvites(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	if profile.OrganizationID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Profile is not part of any organization")
	}

	org, err := models.GetOrganizationByID(h.DB, *profile.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get organization information")
	}

	type InviteRequest struct {
		Invitees []string `json:"invitees" validate:"required,dive,email"`
	}

	req := new(InviteRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid email addresses")
	}

	baseURL := "https://" + h.Config.Server.DeployDomain
	inviteLink := fmt.Sprintf("%s/invitation/%s", baseURL, org.InviteCode)
	inviterName := profile.GetDisplayName()

	// Limit the profile to 50 invites per day to avoid abuse
	var invitesToday int64
	h.DB.Model(&models.EmailInvitation{}).
		Where("sent_by = ? AND sent_at > ?", profile.ID, time.Now().AddDate(0, 0, -1)).
		Count(&invitesToday)

	c.Echo().Logger.Infof("Invites today by profile %s: %d", profile.ID, invitesToday)

	if invitesToday >= 50 {
		return echo.NewHTTPError(http.StatusTooManyRequests, "You have reached the maximum number of invites per day")
	}

	for idx, email := range req.Invitees {
		if (idx + int(invitesToday)) >= 50 {
			c.Echo().Logger.Info("Skipping inviting more emails because of rate limit for profile:", profile.ID)
			break
		}
		if !models.CanSendInvite(h.DB, email) {
			c.Echo().Logger.Info("Skipping inviting email:", email)
			continue
		}

		emailInvite := models.EmailInvitation{
			OrganizationID: org.ID,
			Email:          email,
			SentAt:         time.Now(),
			SentBy:         profile.ID,
		}
		h.DB.Create(&emailInvite)

		if h.EmailClient != nil {
			h.EmailClient.SendTeacherInvitationEmail(inviterName, org.Name, inviteLink, email)
		}
	}

	return c.NoContent(http.StatusOK)
}

// CreateDepartment adds a department to the dean's organization.
func (h *AuthHandler) CreateDepartment(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	if profile.OrganizationID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Profile is not part of any organization")
	}
	if profile.Role != models.RoleDean {
		return echo.NewHTTPError(http.StatusForbidden, "dean required")
	}

	type DepartmentRequest struct {
		Name string `json:"name" validate:"required"`
	}

	req := new(DepartmentRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	department := models.Department{
		Name:           req.Name,
		OrganizationID: *profile.OrganizationID,
	}
	if err := h.DB.Create(&department).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create department")
	}

	return c.JSON(http.StatusCreated, department)
}

// DeleteDepartment removes a department. Courses keep running with a null
// department reference.
func (h *AuthHandler) DeleteDepartment(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	if profile.Role != models.RoleDean || profile.OrganizationID == nil {
		return echo.NewHTTPError(http.StatusForbidden, "dean required")
	}

	departmentID := c.Param("id")

	var department models.Department
	result := h.DB.Where("id = ?", departmentID).First(&department)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.String(http.StatusNotFound, "Department not found")
	}

	if department.OrganizationID != *profile.OrganizationID {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Course{}).
			Where("department_id = ?", department.ID).
			Update("department_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&department).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete department")
	}

	return c.NoContent(http.StatusNoContent)
}
