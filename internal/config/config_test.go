package config

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/bedtrack_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("expected default port 5000, got %s", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Error("expected default env to be development")
	}
	if cfg.OccupancyThreshold != 0.9 {
		t.Errorf("expected default threshold 0.9, got %v", cfg.OccupancyThreshold)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	setEnv(t, "DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestValidate_RequiresSecretOutsideDev(t *testing.T) {
	cfg := &Config{Env: "production", OccupancyThreshold: 0.9}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing JWT_SECRET in production")
	}

	cfg.JWTSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_DevAllowsEmptySecret(t *testing.T) {
	cfg := &Config{Env: "development", OccupancyThreshold: 0.9}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	for _, bad := range []float64{0, -0.1, 1.5} {
		cfg := &Config{Env: "development", OccupancyThreshold: bad}
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for threshold %v", bad)
		}
	}
}
