package infra

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("IMAGE_SOURCE_HOST_ALLOWLIST", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if cfg.ImageSourceAllowlist != nil {
		t.Fatalf("ImageSourceAllowlist should be unrestricted: %#v", cfg.ImageSourceAllowlist)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigMergesExplicitAllowlist(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static")
	t.Setenv("IMAGE_SOURCE_HOST_ALLOWLIST", "media.example.com, localhost ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"cdn.example.com", "localhost", "media.example.com"}
	if len(cfg.ImageSourceAllowlist) != len(expected) {
		t.Fatalf("ImageSourceAllowlist mismatch: got %#v want %#v", cfg.ImageSourceAllowlist, expected)
	}
	for i, host := range expected {
		if cfg.ImageSourceAllowlist[i] != host {
			t.Fatalf("ImageSourceAllowlist[%d] = %q, want %q", i, cfg.ImageSourceAllowlist[i], host)
		}
	}
}

func TestLoadConfigOrchestratorDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BackendScope != "image" || cfg.ProviderTimeout != 60*time.Second {
		t.Fatalf("scope=%q timeout=%s", cfg.BackendScope, cfg.ProviderTimeout)
	}
	if cfg.PollInterval != time.Second || cfg.PollMaxAttempts != 60 {
		t.Fatalf("poll = %s x %d", cfg.PollInterval, cfg.PollMaxAttempts)
	}
	if cfg.CreatorEarningRate.String() != "0.1" {
		t.Fatalf("earning rate = %s", cfg.CreatorEarningRate)
	}
	if cfg.DBMaxConns != 10 || cfg.ShutdownTimeout != 90*time.Second {
		t.Fatalf("db conns = %d shutdown = %s", cfg.DBMaxConns, cfg.ShutdownTimeout)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("CREATOR_EARNING_RATE", "1.5")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for earning rate above 1")
	}

	t.Setenv("CREATOR_EARNING_RATE", "")
	t.Setenv("DB_MAX_CONNS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for zero DB_MAX_CONNS")
	}

	t.Setenv("DB_MAX_CONNS", "")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}
