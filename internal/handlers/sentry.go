package handlers

import (
	"evalo-backend/internal/config"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

// SetupSentry initializes Sentry error reporting and attaches its Echo
// middleware. A missing DSN disables reporting without failing startup.
func SetupSentry(e *echo.Echo, cfg *config.Config) {
	if cfg.Sentry.DSN == "" {
		e.Logger.Warn("SENTRY_DSN not configured, error reporting will be disabled")
		return
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		TracesSampleRate: 0.2,
	}); err != nil {
		e.Logger.Warnf("Sentry initialization failed: %v", err)
		return
	}

	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
}

// CaptureError reports an error to Sentry when configured.
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}
