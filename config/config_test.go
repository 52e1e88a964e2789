package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", MemoryDSN)
	t.Setenv("PROVIDER_RETRIES", "")
	t.Setenv("AUTO_DISABLE_AFTER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.UseMemoryStore() {
		t.Errorf("expected memory store")
	}
	if cfg.ProviderRetries != 0 || cfg.ProviderTimeout != 0 || cfg.AutoDisableAfter != 0 {
		t.Errorf("provider policy must default to none, got %+v", cfg)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("scheduler must be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT", "15s")
	t.Setenv("PROVIDER_RETRIES", "2")
	t.Setenv("AUTO_DISABLE_AFTER", "5")
	t.Setenv("SYNC_INTERVAL", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProviderTimeout != 15*time.Second || cfg.ProviderRetries != 2 {
		t.Errorf("unexpected provider policy %s/%d", cfg.ProviderTimeout, cfg.ProviderRetries)
	}
	if cfg.AutoDisableAfter != 5 || cfg.SyncInterval != 10*time.Minute {
		t.Errorf("unexpected %d/%s", cfg.AutoDisableAfter, cfg.SyncInterval)
	}
}

func TestLoadRejectsBadCost(t *testing.T) {
	t.Setenv("SCRYPT_COST", "1000")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non power of two cost")
	}
}
