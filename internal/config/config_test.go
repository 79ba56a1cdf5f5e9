package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATA_STORE", "memory")
	t.Setenv("PORT", "8080")
	t.Setenv("AUTH_URL", "https://id.example.com/")
	t.Setenv("AUTH_API_KEY", "anon-key")
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("UPSTREAM_URL", "")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.AuthURL != "https://id.example.com" {
		t.Fatalf("expected trailing slash trimmed from AUTH_URL, got %q", cfg.AuthURL)
	}
	if cfg.AuthTimeout != 10*time.Second {
		t.Fatalf("expected default auth timeout, got %s", cfg.AuthTimeout)
	}
	if cfg.ProfileCookieTTL != 30*24*time.Hour {
		t.Fatalf("expected default profile cookie TTL of 30 days, got %s", cfg.ProfileCookieTTL)
	}
	if cfg.LoginPath != "/login" {
		t.Fatalf("expected default login path, got %q", cfg.LoginPath)
	}
	want := CookieNames{Access: "access-token", Refresh: "refresh-token", Profile: "session-profile", Toast: "auth-toast"}
	if cfg.Cookies != want {
		t.Fatalf("unexpected cookie names: %+v", cfg.Cookies)
	}
	if cfg.SecureCookies() {
		t.Fatal("expected insecure cookies in development")
	}
	if cfg.HTTPAddress() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.HTTPAddress())
	}
}

func TestLoadAllowsMissingSecretInDevelopment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SESSION_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.SessionSecret != "" {
		t.Fatalf("expected empty session secret, got %q", cfg.SessionSecret)
	}
}

func TestLoadRequiresSecretOutsideDevelopment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SESSION_SECRET missing outside development")
	}
	if !strings.Contains(err.Error(), "SESSION_SECRET is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SESSION_SECRET", "short")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "at least 32 bytes") {
		t.Fatalf("expected short secret error, got %v", err)
	}
}

func TestLoadRequiresIdentityProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("AUTH_URL", "")
	t.Setenv("AUTH_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when identity provider settings are missing")
	}
	for _, want := range []string{"AUTH_URL is required", "AUTH_API_KEY is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error, got %v", want, err)
		}
	}
}

func TestLoadReadsSecretFromFile(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(testSecret+"\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("SESSION_SECRET_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.SessionSecret != testSecret {
		t.Fatalf("expected secret from file, got %q", cfg.SessionSecret)
	}
}

func TestLoadRejectsWildcardOriginsOutsideDevelopment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://example.com,*")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when ALLOWED_ORIGINS contains wildcard")
	}
	if !strings.Contains(err.Error(), "cannot contain wildcard") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRequiresDatabaseForPostgresStore(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATA_STORE", "postgres")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL is not set") {
		t.Fatalf("expected database error, got %v", err)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("AUTH_TIMEOUT", "soon")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "invalid AUTH_TIMEOUT") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestLoadParsesPublicPaths(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PUBLIC_PATHS", " /login, /assets/ ,,/api/ingest/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	want := []string{"/login", "/assets/", "/api/ingest/"}
	if strings.Join(cfg.PublicPaths, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected public paths %v", cfg.PublicPaths)
	}
}

func TestProductionUsesSecureCookies(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !cfg.SecureCookies() {
		t.Fatal("expected secure cookies outside development")
	}
}
