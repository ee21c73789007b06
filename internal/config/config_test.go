package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Port:              "8000",
		Env:               "development",
		DatabaseURL:       "postgres://localhost:5432/visitplan",
		SessionSecret:     "0123456789abcdef",
		SessionTTLMinutes: 480,
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("expected DATABASE_URL error, got %v", err)
	}
}

func TestValidateProductionRequiresSessionSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	cfg.SessionSecret = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SESSION_SECRET") {
		t.Errorf("expected SESSION_SECRET error, got %v", err)
	}
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.SessionSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short SESSION_SECRET")
	}
}

func TestValidateRejectsNonPositiveTTL(t *testing.T) {
	cfg := validConfig()
	cfg.SessionTTLMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero SESSION_TTL_MINUTES")
	}
}

func TestDevSecretOptional(t *testing.T) {
	cfg := validConfig()
	cfg.SessionSecret = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("development mode should not require a secret, got %v", err)
	}
}
