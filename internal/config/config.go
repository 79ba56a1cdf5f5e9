package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const minSessionSecretBytes = 32

// CookieNames lists the cookies the gateway reads and writes.
type CookieNames struct {
	Access  string
	Refresh string
	Profile string
	Toast   string
}

// Config aggregates runtime configuration for the gateway. It is loaded and
// validated once at startup and treated as immutable afterwards.
type Config struct {
	Environment    string
	HTTPPort       int
	LogLevel       string
	AllowedOrigins []string

	SessionSecret string
	AuthURL       string
	AuthAPIKey    string
	AuthTimeout   time.Duration

	LoginPath        string
	PublicPaths      []string
	ProfileCookieTTL time.Duration
	Cookies          CookieNames

	UpstreamURL string

	DataStore      string
	DatabaseURL    string
	AuditRetention time.Duration
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/evalgate_database_url")
	if err != nil {
		return Config{}, err
	}

	sessionSecret, err := getEnvOrFile("SESSION_SECRET", "/run/secrets/evalgate_session_secret")
	if err != nil {
		return Config{}, err
	}

	apiKey, err := getEnvOrFile("AUTH_API_KEY", "/run/secrets/evalgate_auth_api_key")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:    strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		SessionSecret:  strings.TrimSpace(sessionSecret),
		AuthURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("AUTH_URL")), "/"),
		AuthAPIKey:     strings.TrimSpace(apiKey),
		LoginPath:      getEnv("LOGIN_PATH", "/login"),
		PublicPaths:    parseCSV(getEnv("PUBLIC_PATHS", "/login,/auth/,/static/,/favicon.ico,/api/ingest/")),
		Cookies: CookieNames{
			Access:  getEnv("COOKIE_ACCESS_NAME", "access-token"),
			Refresh: getEnv("COOKIE_REFRESH_NAME", "refresh-token"),
			Profile: getEnv("COOKIE_PROFILE_NAME", "session-profile"),
			Toast:   getEnv("COOKIE_TOAST_NAME", "auth-toast"),
		},
		UpstreamURL: strings.TrimSpace(os.Getenv("UPSTREAM_URL")),
		DataStore:   strings.ToLower(getEnv("DATA_STORE", "memory")),
		DatabaseURL: databaseURL,
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	if cfg.AuthTimeout, err = getEnvDuration("AUTH_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ProfileCookieTTL, err = getEnvDuration("PROFILE_COOKIE_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.AuditRetention, err = getEnvDuration("AUDIT_RETENTION", 30*24*time.Hour); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or inconsistent values.
func (c Config) Validate() error {
	var problems []string

	if c.AuthURL == "" {
		problems = append(problems, "AUTH_URL is required")
	} else if u, err := url.Parse(c.AuthURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "AUTH_URL must be an absolute URL")
	}
	if c.AuthAPIKey == "" {
		problems = append(problems, "AUTH_API_KEY is required")
	}
	if c.AuthTimeout <= 0 {
		problems = append(problems, "AUTH_TIMEOUT must be positive")
	}

	if !c.IsDevelopment() && c.SessionSecret == "" {
		problems = append(problems, "SESSION_SECRET is required outside development")
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < minSessionSecretBytes {
		problems = append(problems, fmt.Sprintf("SESSION_SECRET must be at least %d bytes", minSessionSecretBytes))
	}

	if !strings.HasPrefix(c.LoginPath, "/") {
		problems = append(problems, "LOGIN_PATH must start with /")
	}
	if c.ProfileCookieTTL < time.Minute {
		problems = append(problems, "PROFILE_COOKIE_TTL must be at least 1m")
	}
	if c.Cookies.Access == "" || c.Cookies.Refresh == "" || c.Cookies.Profile == "" || c.Cookies.Toast == "" {
		problems = append(problems, "cookie names must not be empty")
	}

	if c.UpstreamURL != "" {
		if u, err := url.Parse(c.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, "UPSTREAM_URL must be an absolute URL")
		}
	}

	if !c.IsDevelopment() {
		if len(c.AllowedOrigins) == 0 {
			problems = append(problems, "ALLOWED_ORIGINS must define at least one origin")
		}
		for _, origin := range c.AllowedOrigins {
			if origin == "*" {
				problems = append(problems, "ALLOWED_ORIGINS cannot contain wildcard outside development")
				break
			}
		}
	}

	switch c.DataStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			problems = append(problems, "DATA_STORE is postgres but DATABASE_URL is not set")
		}
	default:
		problems = append(problems, fmt.Sprintf("DATA_STORE %q is not supported", c.DataStore))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsDevelopment reports whether the gateway runs in a local development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c Config) SecureCookies() bool {
	return !c.IsDevelopment()
}

// UseInMemoryStore returns true if the in-memory auth event store should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
