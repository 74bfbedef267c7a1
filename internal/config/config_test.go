package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/portal_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Errorf("expected development env, got %s", cfg.Env)
	}
	if cfg.SessionTimeoutMinutes != 30 {
		t.Errorf("expected 30 minute session timeout, got %d", cfg.SessionTimeoutMinutes)
	}
	if cfg.LoginMaxAttempts != 5 || cfg.LoginBlockMinutes != 15 {
		t.Errorf("unexpected login limits: %d/%d", cfg.LoginMaxAttempts, cfg.LoginBlockMinutes)
	}
	if cfg.OTPTTLMinutes != 15 {
		t.Errorf("expected 15 minute OTP TTL, got %d", cfg.OTPTTLMinutes)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/portal_test")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TIMEOUT_MINUTES", "45")
	t.Setenv("CORS_ORIGINS", "https://portal.example.gov,https://staff.example.gov")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.SessionTimeoutMinutes != 45 {
		t.Errorf("expected 45 minute timeout, got %d", cfg.SessionTimeoutMinutes)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.CORSOrigins)
	}
}

func validTestConfig() *Config {
	return &Config{
		Env:                   "development",
		SessionTimeoutMinutes: 30,
		LoginMaxAttempts:      5,
		LoginBlockMinutes:     15,
		OTPTTLMinutes:         15,
	}
}

func TestValidate(t *testing.T) {
	if err := validTestConfig().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg := validTestConfig()
	cfg.SessionTimeoutMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero session timeout")
	}

	cfg = validTestConfig()
	cfg.LoginMaxAttempts = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative login attempts")
	}
}

func TestValidate_Production(t *testing.T) {
	cfg := validTestConfig()
	cfg.Env = "production"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "COOKIE_SECURE") {
		t.Errorf("expected cookie requirement, got %v", err)
	}

	cfg.CookieSecure = true
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SMTP_HOST") {
		t.Errorf("expected SMTP requirement, got %v", err)
	}

	cfg.SMTPHost = "smtp.example.gov"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "EXPORT_TOKEN_SECRET") {
		t.Errorf("expected export secret requirement, got %v", err)
	}

	cfg.ExportTokenSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
