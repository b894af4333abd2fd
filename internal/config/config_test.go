package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"databases": {"sqlite3": {"dsn": "tutor.db"}},
		"providers": {"openai": {"model": "gpt-4o-mini", "api_key": "k"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != DefaultServerAddress {
		t.Fatalf("expected default address, got %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Tutor.CacheTTL() != 5*time.Minute || cfg.Tutor.CacheMaxEntries != 50 {
		t.Fatalf("unexpected cache defaults: %v %d", cfg.Tutor.CacheTTL(), cfg.Tutor.CacheMaxEntries)
	}
	if cfg.Tutor.ChatLogLimit != 20 || cfg.Tutor.HomeworkLimit != 10 {
		t.Fatalf("unexpected history limits: %+v", cfg.Tutor)
	}
	if !filepath.IsAbs(cfg.Databases["sqlite3"].DSN) {
		t.Fatalf("sqlite dsn should be resolved relative to config: %q", cfg.Databases["sqlite3"].DSN)
	}
	prov, err := cfg.Provider()
	if err != nil || prov.Model != "gpt-4o-mini" {
		t.Fatalf("provider lookup: %+v %v", prov, err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9000"},
		"databases": {"sqlite3": {"dsn": ":memory:"}},
		"tutor": {"cache_max_entries": 10}
	}`)
	t.Setenv("TUTORGO_SERVER_ADDRESS", ":7000")
	t.Setenv("TUTORGO_TUTOR_CACHE_MAX_ENTRIES", "75")
	t.Setenv("TUTORGO_REDIS_HOST", "cache.local")
	t.Setenv("TUTORGO_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":7000" {
		t.Fatalf("env override ignored: %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Tutor.CacheMaxEntries != 75 {
		t.Fatalf("expected 75 cache entries, got %d", cfg.Tutor.CacheMaxEntries)
	}
	if !cfg.Redis.Enabled() || cfg.Redis.Host != "cache.local" {
		t.Fatalf("redis override ignored: %+v", cfg.Redis)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("retry override ignored: %+v", cfg.Retry)
	}
	if _, err := cfg.Provider(); err == nil {
		t.Fatalf("expected missing provider error")
	}
}

func TestLoadRejectsUnknownDatabase(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"database": "mysql"},
		"databases": {"sqlite3": {"dsn": ":memory:"}}
	}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unconfigured database")
	}
}
