package server

import (
	"context"
	"encoding/gob"
	"evalo-backend/internal/common"
	"evalo-backend/internal/config"
	"evalo-backend/internal/email"
	"evalo-backend/internal/handlers"
	"evalo-backend/internal/models"
	"evalo-backend/internal/sentiment"
	"fmt"
	"html/template"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	resend "github.com/resend/resend-go/v2"
	"github.com/wader/gormstore/v2"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// How often the background pass re-derives event counters from the feedback
// table.
const reconcileInterval = 15 * time.Minute

// CustomValidator Source: https://echo.labstack.com/docs/request#validate-data
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		// Optionally, you could return the error to give each route more control over the status code
		return err
	}
	return nil
}

type Template struct {
	templates *template.Template
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

type SentryLogger struct {
	echo.Logger
}

func (l *SentryLogger) Error(i ...interface{}) {
	// Capture in Sentry
	if err, ok := i[0].(error); ok {
		handlers.CaptureError(err)
	} else {
		handlers.CaptureError(fmt.Errorf("%v", i...))
	}
	// Call original logger
	l.Logger.Error(i...)
}

type Server struct {
	common.ServerState
}

func New(cfg *config.Config) *Server {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}
	e.Logger = &SentryLogger{Logger: e.Logger}
	e.Logger.SetLevel(log.DEBUG)

	return &Server{
		common.ServerState{
			Echo:   e,
			Config: cfg,
		},
	}
}

func (s *Server) Initialize() error {
	// Initialize database
	s.setupDatabase()

	s.setupRedis()

	// Initialize JWT
	s.JwtIssuer = handlers.NewJwtAuth(s.Config.Auth.SessionSecret)

	// Initialize Resend email client
	s.setupEmailClient()

	// Initialize sentiment classifier
	s.setupClassifier()

	// Initialize session store
	s.setupSessionStore()

	// Setup templates
	s.setupTemplates()

	// Setup routes
	s.setupRoutes()

	// Run Migrations
	s.runMigrations()

	// Setup goth providers
	s.setupGothProviders()

	s.setupMetrics()

	s.startReconciliationLoop()

	// Setup middleware -
	// Keep last to avoid Recover middleware and panic if something goes wrong on init
	s.setupMiddleware()

	return nil
}

func (s *Server) setupDatabase() {
	dsn := s.Config.Database.DSN
	if dsn == "" {
		s.Echo.Logger.Fatal("DATABASE_DSN environment variable is required")
	}

	var db *gorm.DB
	var err error

	// Detect database driver from DSN
	// SQLite DSNs typically start with "file:"
	if strings.HasPrefix(dsn, "file:") {
		// Use SQLite driver for testing
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	} else {
		// Use PostgreSQL driver for production
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	}

	if err != nil {
		s.Echo.Logger.Fatal(err)
	}
	s.DB = db
}

func (s *Server) setupRedis() {
	url := s.Config.Database.RedisURI

	// Make Redis optional - if URI is empty, skip Redis setup
	if url == "" {
		s.Echo.Logger.Warn("REDIS_URI not configured, submission rate limiting will be disabled")
		s.Redis = nil
		return
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		s.Echo.Logger.Warnf("Failed to parse Redis URL: %v, submission rate limiting will be disabled", err)
		s.Redis = nil
		return
	}

	s.Redis = redis.NewClient(opts)

	// Validate proper connection, but don't panic on failure
	ctx := context.Background()
	result := s.Redis.Ping(ctx)
	if result.Err() != nil {
		s.Echo.Logger.Warnf("Redis connection failed: %v, submission rate limiting will be disabled", result.Err())
		s.Redis = nil
		return
	}
}

func (s *Server) setupClassifier() {
	apiURL := s.Config.Sentiment.APIURL
	if apiURL == "" {
		// The classifier reports itself unavailable, so submissions get a
		// clean 503 instead of a nil dereference
		s.Echo.Logger.Warn("SENTIMENT_API_URL not configured, feedback submissions will be rejected")
	}

	timeout := time.Duration(s.Config.Sentiment.TimeoutSeconds) * time.Second
	s.Classifier = sentiment.NewHTTPClassifier(apiURL, s.Config.Sentiment.APIKey, timeout)
}

func (s *Server) setupSessionStore() {
	store := gormstore.New(s.DB, []byte(s.Config.Auth.SessionSecret))
	store.SessionOpts.MaxAge = 60 * 60 * 24 * 30 // 30 days
	store.SessionOpts.SameSite = http.SameSiteLaxMode
	store.SessionOpts.HttpOnly = true

	quit := make(chan struct{})
	go store.PeriodicCleanup(1*time.Hour, quit)

	// To solve securecookie: error - caused by: gob: type not registered for interface
	gob.Register(map[string]interface{}{})

	s.Store = store
}

func (s *Server) setupTemplates() {
	// Try to load templates, but don't fail if they don't exist (e.g., in tests)
	tmpl, err := template.ParseGlob("./web/*.html")
	if err != nil {
		s.Echo.Logger.Warnf("Failed to load templates: %v, template rendering will be disabled", err)
		return
	}
	t := &Template{
		templates: tmpl,
	}
	s.Echo.Renderer = t
}

func (s *Server) runMigrations() {
	err := s.DB.AutoMigrate(
		&models.Organization{},
		&models.Department{},
		&models.Profile{},
		&models.Course{},
		&models.Event{},
		&models.Feedback{},
		&models.Token{},
		&models.EmailInvitation{},
	)
	if err != nil {
		s.Echo.Logger.Fatal(err)
	}
}

func (s *Server) setupMiddleware() {
	s.Echo.Use(middleware.CORS())
	s.Echo.Use(session.Middleware(s.Store))
	s.Echo.Use(middleware.Recover())
	// Try to add prometheus middleware, but don't panic if already registered (e.g., in tests)
	// This allows multiple test runs without panicking
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && err.Error() == "duplicate metrics collector registration attempted" {
				s.Echo.Logger.Warn("Prometheus middleware already registered, skipping")
			} else {
				panic(r)
			}
		}
	}()
	s.Echo.Use(echoprometheus.NewMiddleware("evalo_backend"))
}

func (s *Server) setupMetrics() {
	// Only register Redis metrics if Redis is available
	if s.Redis == nil {
		return
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Subsystem: "redis",
			Name:      "connected_clients",
			Help:      "The number of clients currently connected to Redis",
		},
		func() float64 {
			ctx := context.Background()
			connectedClientsRaw := s.Redis.InfoMap(ctx).Item("Clients", "connected_clients")

			connectedClients, err := strconv.ParseFloat(connectedClientsRaw, 64)
			if err != nil {
				return math.NaN()
			}

			return connectedClients
		},
	))
}

// startReconciliationLoop periodically re-derives the counters of every open
// event from the feedback table, catching drift left behind by crashes or
// manual database edits.
func (s *Server) startReconciliationLoop() {
	go func() {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()

		for range ticker.C {
			ids, err := models.OpenEventIDs(s.DB)
			if err != nil {
				s.Echo.Logger.Errorf("Counter reconciliation pass failed: %v", err)
				continue
			}
			for _, id := range ids {
				corrected, err := models.ReconcileEventCounters(s.DB, id)
				if err != nil {
					s.Echo.Logger.Errorf("Failed to reconcile counters for event %s: %v", id, err)
					continue
				}
				if corrected {
					s.Echo.Logger.Warnf("Corrected drifted counters for event %s", id)
				}
			}
		}
	}()
}

func (s *Server) setupGothProviders() {
	// Set the session secret for Goth
	gothic.Store = s.Store

	goth.UseProviders(
		google.New(s.Config.Auth.GoogleKey, s.Config.Auth.GoogleSecret, s.Config.Auth.GoogleRedirect, "email", "profile", "openid"),
	)
}

func (s *Server) setupEmailClient() {
	apiKey := s.Config.Resend.APIKey
	if apiKey == "" {
		s.Echo.Logger.Warn("RESEND_API_KEY not configured, email notifications will be disabled")
		return
	}

	resendClient := resend.NewClient(apiKey)
	s.EmailClient = email.NewResendEmailClient(resendClient,
		s.Config.Resend.DefaultSender,
		s.Echo.Logger)
}

func (s *Server) setupRoutes() {
	handlers.SetupSentry(s.Echo, s.Config)

	// Initialize handlers
	auth := handlers.NewAuthHandler(s.DB, s.Config, s.JwtIssuer, s.Redis, &handlers.RealGothicProvider{})
	submission := handlers.NewSubmissionHandler(s.DB, s.Config, s.Redis, s.Classifier)
	dashboard := handlers.NewDashboardHandler(s.DB, s.Config, s.JwtIssuer, s.Classifier)

	// Set the EmailClient field directly
	auth.EmailClient = s.EmailClient

	// API routes group
	api := s.Echo.Group("/api")

	// Public API endpoints
	api.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	api.GET("/metrics", echoprometheus.NewHandler())

	// Anonymous student endpoints, no authentication by design
	api.GET("/entry/:code", submission.LookupEntryCode)
	api.POST("/submissions", submission.SubmitFeedback)

	// Authentication endpoints
	api.GET("/auth/social/:provider", auth.SocialLogin)
	api.GET("/auth/social/:provider/callback", auth.SocialLoginCallback)
	api.POST("/sign-up", auth.ManualSignUp)
	api.POST("/sign-in", auth.ManualSignIn)
	api.POST("/forgot-password", auth.ForgotPassword)
	api.PATCH("/reset-password/:token", auth.ResetPassword)

	// Protected API routes group
	protectedAPI := api.Group("/auth", s.JwtIssuer.Middleware())

	protectedAPI.GET("/profile", auth.Profile)
	protectedAPI.PUT("/update-profile-name", auth.UpdateName)
	protectedAPI.GET("/colleagues", auth.Colleagues)

	// Organization management
	protectedAPI.GET("/organization", auth.GetOrganization)
	protectedAPI.POST("/organization", auth.CreateOrganization)
	protectedAPI.POST("/organization/join/:code", auth.JoinOrganization)
	protectedAPI.POST("/organization/rotate-invite-code", auth.RotateInviteCode)
	protectedAPI.POST("/organization/send-teacher-invites", auth.SendTeacherInvites)
	protectedAPI.POST("/organization/departments", auth.CreateDepartment)
	protectedAPI.DELETE("/organization/departments/:id", auth.DeleteDepartment)

	// Course management
	protectedAPI.POST("/course", dashboard.CreateCourse)
	protectedAPI.GET("/courses", dashboard.GetCourses)
	protectedAPI.GET("/course/:id", dashboard.GetCourse)
	protectedAPI.PUT("/course/:id", dashboard.UpdateCourse)
	protectedAPI.DELETE("/course/:id", dashboard.DeleteCourse)
	protectedAPI.GET("/course/:id/analytics", dashboard.CourseAnalytics)

	// Event lifecycle
	protectedAPI.POST("/course/:id/events", dashboard.CreateEvent)
	protectedAPI.GET("/course/:id/events", dashboard.GetEvents)
	protectedAPI.GET("/event/:id", dashboard.GetEvent)
	protectedAPI.PATCH("/event/:id/status", dashboard.UpdateEventStatus)
	protectedAPI.POST("/event/:id/reset-entry-code", dashboard.ResetEntryCode)
	protectedAPI.DELETE("/event/:id", dashboard.DeleteEvent)
	protectedAPI.GET("/event/:id/analytics", dashboard.EventAnalytics)
	protectedAPI.POST("/event/:id/reconcile", dashboard.ReconcileEvent)

	// Feedback moderation
	protectedAPI.GET("/event/:id/feedback", dashboard.GetEventFeedback)
	protectedAPI.PATCH("/feedback/:id/reviewed", dashboard.MarkFeedbackReviewed)
	protectedAPI.DELETE("/feedback/:id", dashboard.DeleteFeedback)

	// Sentiment preview for the dashboard
	protectedAPI.POST("/sentiment/classify", dashboard.ClassifySentiment)

	// Debug endpoints - only enabled when ENABLE_DEBUG_ENDPOINTS=true
	if s.Config.Server.Debug {
		api.GET("/jwt-debug", func(c echo.Context) error {
			email := c.QueryParam("email")
			token, err := s.JwtIssuer.GenerateToken(email)
			if err != nil {
				return c.String(http.StatusInternalServerError, "Failed to generate token")
			}
			return c.JSON(http.StatusOK, map[string]string{
				"email": email,
				"token": token,
			})
		})
	}
}

func (s *Server) Start() error {
	serverURL := s.Config.Server.Host + ":" + s.Config.Server.Port

	if s.Config.Server.TLS.Enabled {
		if _, err := os.Stat(s.Config.Server.TLS.CertFile); os.IsNotExist(err) {
			s.Echo.Logger.Warn("TLS certificate file not found, falling back to HTTP")
			return s.Echo.Start(serverURL)
		}
		if _, err := os.Stat(s.Config.Server.TLS.KeyFile); os.IsNotExist(err) {
			s.Echo.Logger.Warn("TLS key file not found, falling back to HTTP")
			return s.Echo.Start(serverURL)
		}
		return s.Echo.StartTLS(serverURL, s.Config.Server.TLS.CertFile, s.Config.Server.TLS.KeyFile)
	}

	return s.Echo.Start(serverURL)
}
