package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Auth.OverrideHeader != "X-Active-Role" {
		t.Fatalf("unexpected override header: %s", cfg.Auth.OverrideHeader)
	}
	if cfg.AccessTTLDuration() != 15*time.Minute {
		t.Fatalf("unexpected ttl: %v", cfg.AccessTTLDuration())
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scolaris.toml")
	content := `
[server]
addr = ":9090"

[auth]
access_ttl_minutes = 30
override_header = "X-Active-Role"

[rate_limit]
per_second = 10
burst = 20
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCOLARIS_ADDR", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("env override lost: %s", cfg.Server.Addr)
	}
	if cfg.Auth.AccessTTL != 30 {
		t.Fatalf("file value lost: %d", cfg.Auth.AccessTTL)
	}
	if cfg.RateLimit.PerSecond != 10 || cfg.RateLimit.Burst != 20 {
		t.Fatalf("rate limit not loaded: %+v", cfg.RateLimit)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[auth]\noverride_header = \"\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
