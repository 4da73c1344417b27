package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"evalo-backend/internal/common"
	"evalo-backend/internal/config"
	"evalo-backend/internal/models"
	"evalo-backend/internal/notifications"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/lindell/go-burner-email-providers/burner"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type AuthHandler struct {
	common.ServerState
	SocialAuth common.SocialAuthProvider
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, jwt common.JWTIssuer, redis *redis.Client, socialAuth common.SocialAuthProvider) *AuthHandler {
	return &AuthHandler{
		ServerState: common.ServerState{
			DB:        db,
			Config:    cfg,
			JwtIssuer: jwt,
			Redis:     redis,
		},
		SocialAuth: socialAuth,
	}
}

type RealGothicProvider struct{}

func (r *RealGothicProvider) CompleteUserAuth(res http.ResponseWriter, req *http.Request) (goth.User, error) {
	return gothic.CompleteUserAuth(res, req)
}

func (h *AuthHandler) getAuthenticatedProfileFromJWT(c echo.Context) (*models.Profile, bool) {
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

// ManualSignUp registers a teacher or dean. An invite code joins an existing
// organization; an organization name creates a fresh one with the signer as
// its dean.
func (h *AuthHandler) ManualSignUp(c echo.Context) error {
	c.Logger().Info("Received manual sign-up request")

	type SignUpRequest struct {
		models.Profile
		OrganizationName string `json:"organization_name"`
		InviteCode       string `json:"invite_code"`
	}

	req := new(SignUpRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p := &req.Profile
	if err := c.Validate(p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if burner.IsBurnerEmail(p.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "Temporary email addresses are not allowed")
	}

	// Check if an invite code was provided
	if req.InviteCode != "" {
		org, err := models.GetOrganizationByInviteCode(h.DB, req.InviteCode)
		if err == nil {
			p.OrganizationID = &org.ID
			p.Role = models.RoleTeacher
		}
	}

	if req.OrganizationName != "" {
		org := models.Organization{
			Name: req.OrganizationName,
		}
		h.DB.Create(&org)
		p.OrganizationID = &org.ID
		p.Role = models.RoleDean
	}

	result := h.DB.Create(p)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return echo.NewHTTPError(http.StatusConflict, "profile with this email already exists")
	}

	if result.Error != nil {
		c.Logger().Errorf("Failed to create profile: %v", result.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create profile")
	}

	if h.EmailClient != nil {
		h.EmailClient.SendWelcomeEmail(p)
	}

	token, err := h.JwtIssuer.GenerateToken(p.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	_ = notifications.SendTelegramNotification(fmt.Sprintf("New sign-up: %s", p.ID), h.Config)

	return c.JSON(http.StatusCreated, map[string]string{"token": token})
}

func (h *AuthHandler) ManualSignIn(c echo.Context) error {
	c.Logger().Info("Received manual sign-in request")
	req := &SignInRequest{}

	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p := &models.Profile{}
	result := h.DB.Where("email = ?", req.Email).First(p)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	if !p.CheckPassword(req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	token, err := h.JwtIssuer.GenerateToken(p.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

// SocialLogin starts the OAuth flow for the given provider.
func (h *AuthHandler) SocialLogin(c echo.Context) error {
	provider := c.Param("provider")

	req := c.Request()
	// Set the provider in the query parameters for gothic to work
	q := req.URL.Query()
	q.Set("provider", provider)
	req.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Response(), req)
	return nil
}

// SocialLoginCallback finishes the OAuth flow, creating the profile on first
// login.
func (h *AuthHandler) SocialLoginCallback(c echo.Context) error {
	user, err := h.SocialAuth.CompleteUserAuth(c.Response(), c.Request())
	if err != nil {
		return err
	}

	if user.Email == "" {
		c.Logger().Error("User email is empty from provider")
		return echo.NewHTTPError(http.StatusBadRequest, "Email is required but not provided by the authentication provider")
	}

	var p models.Profile
	isNewProfile := false

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("email = ?", user.Email).First(&p)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			isNewProfile = true

			p = models.Profile{
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Email:     user.Email,
				AvatarURL: user.AvatarURL,
			}
			if err := tx.Create(&p).Error; err != nil {
				return fmt.Errorf("failed to create profile: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if isNewProfile && h.EmailClient != nil {
		h.EmailClient.SendWelcomeEmail(&p)
	}

	token, err := h.JwtIssuer.GenerateToken(p.Email)
	if err != nil {
		return c.String(http.StatusInternalServerError, "Failed to generate token")
	}

	_ = notifications.SendTelegramNotification(fmt.Sprintf("New sign-in: %s", p.ID), h.Config)

	return c.Redirect(http.StatusFound, fmt.Sprintf("/login?token=%s", token))
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	c.Logger().Info("Received forgot password request")
	req := &ForgotPasswordRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p := &models.Profile{}
	result := h.DB.Where("email = ?", req.Email).First(p)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Profile not found")
	}

	baseURL := "https://" + h.Config.Server.DeployDomain

	// Reuse a still-valid unused reset token if one exists
	var existingToken models.Token
	tokenResult := h.DB.Where("profile_id = ? AND token_type = ? AND is_used = ?", p.ID, models.TokenTypePasswordReset, false).
		Order("created_at DESC").First(&existingToken)

	if tokenResult.Error == nil && existingToken.IsValid() {
		if h.EmailClient != nil {
			resetLink := fmt.Sprintf("%s/reset-password?token=%s", baseURL, existingToken.Token)
			h.EmailClient.SendPasswordResetEmail(p.Email, resetLink)
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Password reset token sent"})
	}

	claims := jwt.MapClaims{
		"email_id": p.Email,
		"exp":      jwt.NewNumericDate(time.Now().Add(30 * time.Minute)),
		"iat":      jwt.NewNumericDate(time.Now()),
		"purpose":  "password_reset",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtAuth, ok := h.JwtIssuer.(*JwtAuth)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to access JWT configuration")
	}
	tokenString, err := token.SignedString([]byte(jwtAuth.Secret))
	if err != nil {
		c.Logger().Error("Failed to generate password reset token:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	resetToken := &models.Token{ProfileID: p.ID}
	if err := resetToken.CreateToken(h.DB, models.TokenTypePasswordReset, tokenString); err != nil {
		c.Logger().Error("Failed to persist password reset token:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create password reset token")
	}

	if h.EmailClient != nil {
		resetLink := fmt.Sprintf("%s/reset-password?token=%s", baseURL, tokenString)
		h.EmailClient.SendPasswordResetEmail(p.Email, resetLink)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset token sent"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	c.Logger().Info("Received reset password request")
	req := &ResetPasswordRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tokenString := c.Param("token")
	if tokenString == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing token")
	}

	var existingToken models.Token
	if err := h.DB.Where("token = ? AND token_type = ?", tokenString, models.TokenTypePasswordReset).First(&existingToken).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	if existingToken.IsUsed {
		return echo.NewHTTPError(http.StatusUnauthorized, "Token already used. Request a new password reset.")
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		jwtAuth, ok := h.JwtIssuer.(*JwtAuth)
		if !ok {
			return nil, fmt.Errorf("failed to access JWT configuration")
		}
		return []byte(jwtAuth.Secret), nil
	})

	if err != nil {
		c.Logger().Error("Failed to parse reset password token:", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
	}

	purpose, ok := claims["purpose"].(string)
	if !ok || purpose != "password_reset" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token purpose")
	}

	email, ok := claims["email_id"].(string)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email ID in token")
	}

	p := &models.Profile{}
	result := h.DB.Where("email = ?", email).First(p)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Profile not found")
	}

	hashedPassword, err := models.HashPassword(req.Password)
	if err != nil {
		c.Logger().Error("Failed to hash password:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reset password")
	}
	p.HashedPassword = hashedPassword
	p.Password = ""
	if err := h.DB.Save(p).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reset password")
	}

	// Mark the password reset token as used (best-effort)
	existingToken.IsUsed = true
	now := time.Now()
	existingToken.UsedAt = &now
	if err := h.DB.Save(&existingToken).Error; err != nil {
		c.Logger().Warn("Failed to mark password reset token as used:", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Your password has been changed. You can now use it to log in."})
}

func (h *AuthHandler) Profile(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	return c.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) UpdateName(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized")
	}

	type UpdateRequest struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}

	req := new(UpdateRequest)
	if err := c.Bind(req); err != nil {
		c.Logger().Error("Failed to bind request:", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile.FirstName = req.FirstName
	profile.LastName = req.LastName

	if err := h.DB.Save(profile).Error; err != nil {
		c.Logger().Error("Failed to save to db:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update profile")
	}

	return c.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) Colleagues(c echo.Context) error {
	profile, isAuthenticated := h.getAuthenticatedProfileFromJWT(c)
	if !isAuthenticated {
		return c.String(http.StatusUnauthorized, "Unauthorized request")
	}

	colleagues, err := profile.GetColleagues(h.DB)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, colleagues)
}
