package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FOLDSET_API_KEY", "API_BASE_URL", "REDIS_URL", "REDIS_TOKEN", "REDIS_TENANT_ID",
		"PLATFORM", "SDK_VERSION", "CORE_VERSION", "API_KEY_TTL_HOURS", "PORT", "API_KEY_JWT_SECRET",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected error when FOLDSET_API_KEY is unset")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("FOLDSET_API_KEY", "test-key")
	defer os.Unsetenv("FOLDSET_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Platform != "unknown" {
		t.Errorf("Platform = %q, want unknown", cfg.Platform)
	}
	if cfg.HasRedisOverride() {
		t.Error("expected no redis override without all three vars set")
	}
}

func TestHasRedisOverrideRequiresAllThree(t *testing.T) {
	clearEnv(t)
	os.Setenv("FOLDSET_API_KEY", "test-key")
	os.Setenv("REDIS_URL", "redis://localhost:6379")
	os.Setenv("REDIS_TOKEN", "tok")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HasRedisOverride() {
		t.Error("expected no override with tenant id missing")
	}

	os.Setenv("REDIS_TENANT_ID", "tenant-1")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.HasRedisOverride() {
		t.Error("expected override once all three vars are set")
	}
}
