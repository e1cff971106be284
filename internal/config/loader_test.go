package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load without config file: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.LockTTLSeconds != 300 || cfg.ConfidenceThreshold != 70 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := writeConfigFile(t, strings.Join([]string{
		"server:",
		"  listen: \":9090\"",
		"lockTimeout: 120",
		"oracle:",
		"  url: http://oracle.local",
		"  timeout: 5s",
	}, "\n"))

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected listen :9090, got %q", cfg.ListenAddr)
	}
	if cfg.LockTTLSeconds != 120 {
		t.Fatalf("expected lock ttl 120, got %d", cfg.LockTTLSeconds)
	}
	if cfg.OracleURL != "http://oracle.local" || cfg.OracleTimeout != 5*time.Second {
		t.Fatalf("oracle settings not applied: %+v", cfg)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	dir := writeConfigFile(t, "server: [listen: :9090\n  broken")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected a malformed config.yaml to fail loading")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Fatalf("expected a read error, got %v", err)
	}
}
