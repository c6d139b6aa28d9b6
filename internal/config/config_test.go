package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.Yahoo.Range != "1mo" || cfg.Yahoo.Interval != "1d" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Cache.Backend != CacheMemory {
		t.Errorf("backend = %s", cfg.Cache.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
port: "9000"
yahoo:
  range: 3mo
cache:
  backend: redis
  redis_addr: localhost:6379
  history_ttl: 2m
watchlist:
  symbols: [" aapl", "msft "]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9100")
	t.Setenv("MAX_CONCURRENT_FETCHES", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("env should override yaml port, got %s", cfg.Port)
	}
	if cfg.Yahoo.Range != "3mo" {
		t.Errorf("range = %s", cfg.Yahoo.Range)
	}
	if cfg.Cache.HistoryTTL != 2*time.Minute {
		t.Errorf("history ttl = %v", cfg.Cache.HistoryTTL)
	}
	if cfg.MaxConcurrentFetches != 3 {
		t.Errorf("max concurrent = %d", cfg.MaxConcurrentFetches)
	}
	if len(cfg.Watchlist.Symbols) != 2 || cfg.Watchlist.Symbols[0] != "AAPL" || cfg.Watchlist.Symbols[1] != "MSFT" {
		t.Errorf("watchlist = %v", cfg.Watchlist.Symbols)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Cache.Backend = CacheRedis
	cfg.Cache.RedisAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("redis backend without address should fail")
	}

	cfg.Cache.Backend = CacheFirestore
	cfg.Cache.Firestore = ""
	if err := cfg.Validate(); err == nil {
		t.Error("firestore backend without project should fail")
	}

	cfg.Cache.Backend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail")
	}
}
