package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Port string
		Host string
		TLS  struct {
			Enabled  bool
			CertFile string
			KeyFile  string
		}
		DeployDomain string
		Debug        bool
	}
	Auth struct {
		GoogleKey      string
		GoogleSecret   string
		GoogleRedirect string
		SessionSecret  string
	}
	Database struct {
		DSN      string
		RedisURI string
	}
	Sentiment struct {
		APIURL         string
		APIKey         string
		TimeoutSeconds int
	}
	Submission struct {
		// Max anonymous submissions per client IP per minute, enforced
		// only when Redis is configured.
		RateLimitPerMinute int
	}
	Telegram struct {
		BotToken string
		ChatID   string
	}
	Resend struct {
		APIKey        string
		DefaultSender string
	}
	Sentry struct {
		DSN string
	}
}

func Load() (*Config, error) {

	envStack := os.Getenv("ENV_STACK")

	if envStack != "" {
		filePath := "./env-files/.env." + envStack
		err := godotenv.Load(filePath)
		if err != nil {
			fmt.Printf("Error loading .env file: %s\n", err)
		}
	}

	c := &Config{}

	// Server configuration with environment variable support
	c.Server.Port = os.Getenv("SERVER_PORT")
	if c.Server.Port == "" {
		c.Server.Port = "1926"
	}

	c.Server.Host = os.Getenv("SERVER_HOST")
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}

	c.Server.DeployDomain = os.Getenv("DEPLOY_DOMAIN")
	if c.Server.DeployDomain == "" {
		c.Server.DeployDomain = c.Server.Host + ":" + c.Server.Port
	}

	c.Server.Debug = os.Getenv("ENABLE_DEBUG_ENDPOINTS") == "true"

	// TLS Configuration
	useTLS := os.Getenv("USE_TLS")
	c.Server.TLS.Enabled = useTLS != "false" && useTLS != "0"
	c.Server.TLS.CertFile = "./certs/localhost.pem"
	c.Server.TLS.KeyFile = "./certs/localhost-key.pem"

	c.Auth.SessionSecret = os.Getenv("SESSION_SECRET")

	c.Auth.GoogleKey = os.Getenv("GOOGLE_KEY")
	c.Auth.GoogleSecret = os.Getenv("GOOGLE_SECRET")
	c.Auth.GoogleRedirect = fmt.Sprintf("https://%s/api/auth/social/google/callback", c.Server.DeployDomain)

	c.Database.DSN = os.Getenv("DATABASE_DSN")
	c.Database.RedisURI = os.Getenv("REDIS_URI")

	c.Sentiment.APIURL = os.Getenv("SENTIMENT_API_URL")
	c.Sentiment.APIKey = os.Getenv("SENTIMENT_API_KEY")
	c.Sentiment.TimeoutSeconds = 10
	if v := os.Getenv("SENTIMENT_TIMEOUT_SECONDS"); v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil || timeout <= 0 {
			return c, fmt.Errorf("SENTIMENT_TIMEOUT_SECONDS must be a positive integer, got: %s", v)
		}
		c.Sentiment.TimeoutSeconds = timeout
	}

	c.Submission.RateLimitPerMinute = 10
	if v := os.Getenv("SUBMISSION_RATE_LIMIT_PER_MINUTE"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return c, fmt.Errorf("SUBMISSION_RATE_LIMIT_PER_MINUTE must be a positive integer, got: %s", v)
		}
		c.Submission.RateLimitPerMinute = limit
	}

	c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")

	c.Resend.APIKey = os.Getenv("RESEND_API_KEY")
	c.Resend.DefaultSender = os.Getenv("RESEND_DEFAULT_SENDER")
	if c.Resend.DefaultSender == "" {
		c.Resend.DefaultSender = "noreply@evalo.app"
	}

	c.Sentry.DSN = os.Getenv("SENTRY_DSN")

	return c, nil
}
