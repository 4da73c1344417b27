package handlers

import (
	"errors"
	"time"

	"evalo-backend/internal/common"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JwtAuth issues and validates the dashboard's bearer tokens.
type JwtAuth struct {
	Secret string
}

func NewJwtAuth(secret string) *JwtAuth {
	return &JwtAuth{Secret: secret}
}

// GenerateToken creates a signed JWT for the given profile email.
func (j *JwtAuth) GenerateToken(email string) (string, error) {
	claims := &common.JwtCustomClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.Secret))
}

// Middleware returns the echo-jwt middleware protecting the dashboard routes.
func (j *JwtAuth) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(common.JwtCustomClaims)
		},
		SigningKey: []byte(j.Secret),
	})
}

// GetUserEmail extracts the authenticated email from the request context set
// by Middleware.
func (j *JwtAuth) GetUserEmail(c echo.Context) (string, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return "", errors.New("missing JWT token in context")
	}

	claims, ok := token.Claims.(*common.JwtCustomClaims)
	if !ok {
		return "", errors.New("unexpected JWT claims type")
	}

	if claims.Email == "" {
		return "", errors.New("JWT claims carry no email")
	}

	return claims.Email, nil
}
