package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
	CookieSecure  bool

	// Page
	DefaultTheme string
	ContentFile  string

	// Form relay
	RelayProvider  string
	RelayEndpoint  string
	RelayAccessKey string
	RelayTimeout   time.Duration
	RelaySubject   string
	StudioInbox    string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// AWS SES Configuration
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SESFromEmail        string

	// Form state
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	FormLockTTL   time.Duration
	FormStateTTL  time.Duration

	// Outcome journal
	DatabaseURL string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment values win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		CookieSecure:  getEnvAsBool("COOKIE_SECURE", false),

		DefaultTheme: strings.ToLower(strings.TrimSpace(getEnv("DEFAULT_THEME", "lab"))),
		ContentFile:  getEnv("CONTENT_FILE", ""),

		RelayProvider:  strings.ToLower(strings.TrimSpace(getEnv("RELAY_PROVIDER", "web3forms"))),
		RelayEndpoint:  getEnv("RELAY_ENDPOINT", "https://api.web3forms.com/submit"),
		RelayAccessKey: getEnv("RELAY_ACCESS_KEY", ""),
		RelayTimeout:   getEnvAsDuration("RELAY_TIMEOUT", 15*time.Second),
		RelaySubject:   getEnv("RELAY_SUBJECT", "Нова заявка з сайту"),
		StudioInbox:    getEnv("STUDIO_INBOX", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Beauty Lab"),

		AWSRegion:           getEnv("AWS_REGION", "eu-central-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		FormLockTTL:   getEnvAsDuration("FORM_LOCK_TTL", time.Minute),
		FormStateTTL:  getEnvAsDuration("FORM_STATE_TTL", 24*time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 0.2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
	}
}

// minFormLockTTL leaves room for the lock to be refreshed several times
// before it would lapse.
const minFormLockTTL = 3 * time.Second

// Validate rejects settings the site cannot run with.
func (c *Config) Validate() error {
	if c.FormLockTTL < minFormLockTTL {
		return fmt.Errorf("config: FORM_LOCK_TTL must be at least %s, got %s", minFormLockTTL, c.FormLockTTL)
	}
	if c.RelayTimeout < 0 {
		return fmt.Errorf("config: RELAY_TIMEOUT must not be negative, got %s", c.RelayTimeout)
	}
	if c.FormStateTTL < 0 {
		return fmt.Errorf("config: FORM_STATE_TTL must not be negative, got %s", c.FormStateTTL)
	}
	return nil
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
