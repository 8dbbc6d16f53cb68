package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// DevSessionSecret signs cookies when SESSION_SECRET is unset outside
	// production. Validate refuses it in production.
	DevSessionSecret = "rifftube-development-session-secret-not-for-prod"

	defaultPort            = "3000"
	defaultBackendURL      = "http://localhost:3000"
	defaultFrontendURL     = "http://localhost:5173"
	defaultSessionTTL      = 14 * 24 * time.Hour
	defaultLoginRatePerMin = 10

	minSessionSecretLen = 32

	// GoogleCallbackPath is where Google sends the user back to.
	GoogleCallbackPath = "/api/v1/auth/google_oauth2/callback"
)

type Config struct {
	Env     string
	AppPort string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string

	SessionSecret string
	SessionTTL    time.Duration

	GoogleClientID     string
	GoogleClientSecret string

	BackendPublicURL string

	FrontendURL          string
	FrontendOrigins      string
	FrontendAllowedHosts []string

	LoginRatePerMinute int
}

// Load reads configuration from the environment. Outside production a
// local .env file is loaded first; variables already set win.
func Load() Config {
	if os.Getenv("APP_ENV") != EnvProduction {
		_ = godotenv.Load()
	}

	env := getenv("APP_ENV", EnvDevelopment)

	cfg := Config{
		Env:     env,
		AppPort: getenv("APP_PORT", defaultPort),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    getDuration("SESSION_TTL", defaultSessionTTL),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),

		BackendPublicURL: os.Getenv("BACKEND_PUBLIC_URL"),

		FrontendURL:          getenv("FRONTEND_URL", defaultFrontendURL),
		FrontendOrigins:      getenv("FRONTEND_ORIGINS", defaultFrontendURL),
		FrontendAllowedHosts: splitList(os.Getenv("FRONTEND_ALLOWED_HOSTS")),

		LoginRatePerMinute: getInt("LOGIN_RATE_PER_MINUTE", defaultLoginRatePerMin),
	}

	if env != EnvProduction {
		if cfg.SessionSecret == "" {
			cfg.SessionSecret = DevSessionSecret
		}
		if cfg.BackendPublicURL == "" {
			cfg.BackendPublicURL = defaultBackendURL
		}
	}

	return cfg
}

func (c Config) Production() bool {
	return c.Env == EnvProduction
}

// GoogleEnabled reports whether Google sign-in credentials are present.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// GoogleRedirectURL is the absolute OAuth callback registered with Google.
func (c Config) GoogleRedirectURL() string {
	return strings.TrimRight(c.BackendPublicURL, "/") + GoogleCallbackPath
}

// Validate checks settings that must be right before serving traffic.
// Frontend origin checks live in the redirect package.
func (c Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV %q is not one of development, test, production", c.Env))
	}

	if c.AppPort == "" {
		errs = append(errs, errors.New("APP_PORT is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.LoginRatePerMinute <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE must be positive"))
	}

	if c.Production() {
		if len(c.SessionSecret) < minSessionSecretLen || c.SessionSecret == DevSessionSecret {
			errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes in production", minSessionSecretLen))
		}
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required in production"))
		}
		if !c.GoogleEnabled() {
			errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required in production"))
		}
		u, err := url.Parse(c.BackendPublicURL)
		if c.BackendPublicURL == "" || err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, errors.New("BACKEND_PUBLIC_URL must be an https URL in production"))
		}
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}) {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
