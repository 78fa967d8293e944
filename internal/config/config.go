// Package config loads service configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	AppName     = "lease-to-own"
	EnvFileName = "config.env"

	DefaultDBPath            = "listings.db"
	DefaultListenAddr        = ":8080"
	DefaultAMQPQueue         = "listing-events"
	DefaultMaxVisionImages   = 3
	DefaultImageFetchTimeout = 30 * time.Second
)

// Config holds all service settings.
type Config struct {
	AIProvider      string
	GeminiAPIKey    string
	AnthropicAPIKey string

	DBPath     string
	ContactKey string
	ListenAddr string
	LogLevel   zerolog.Level

	SendGridAPIKey   string
	EmailFrom        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	BotToken         string

	AMQPURL   string
	AMQPQueue string

	MaxVisionImages   int
	ImageFetchTimeout time.Duration
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory, then from .env in the working directory. Errors are
// ignored since the files may not exist. Variables already set win.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load()
}

// Load reads the configuration from the environment, applying defaults.
func Load() Config {
	cfg := Config{
		AIProvider:        strings.ToLower(envOr("AI_PROVIDER", "gemini")),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		DBPath:            envOr("DB_PATH", DefaultDBPath),
		ContactKey:        os.Getenv("CONTACT_KEY"),
		ListenAddr:        envOr("LISTEN_ADDR", DefaultListenAddr),
		LogLevel:          zerolog.InfoLevel,
		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:         os.Getenv("EMAIL_FROM"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:        os.Getenv("TWILIO_FROM"),
		BotToken:          os.Getenv("BOT_TOKEN"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		AMQPQueue:         envOr("AMQP_QUEUE", DefaultAMQPQueue),
		MaxVisionImages:   DefaultMaxVisionImages,
		ImageFetchTimeout: DefaultImageFetchTimeout,
	}

	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		cfg.LogLevel = level
	}
	if n, err := strconv.Atoi(os.Getenv("MAX_VISION_IMAGES")); err == nil {
		cfg.MaxVisionImages = min(max(n, 1), DefaultMaxVisionImages)
	}
	if d, err := time.ParseDuration(os.Getenv("IMAGE_FETCH_TIMEOUT")); err == nil && d > 0 {
		cfg.ImageFetchTimeout = d
	}

	return cfg
}

// Missing returns the names of required variables that are not set.
func (c Config) Missing() []string {
	var missing []string
	switch c.AIProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	default:
		if c.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	}
	if c.ContactKey == "" {
		missing = append(missing, "CONTACT_KEY")
	}
	return missing
}

// EmailEnabled reports whether SendGrid delivery is configured.
func (c Config) EmailEnabled() bool {
	return c.SendGridAPIKey != "" && c.EmailFrom != ""
}

// SMSEnabled reports whether Twilio delivery is configured.
func (c Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
