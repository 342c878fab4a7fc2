package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_YAMLWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
store:
  backend: memory
escalation:
  threshold_seconds: 300
api:
  token: secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("backend = %s", cfg.Store.Backend)
	}
	if cfg.Escalation.ThresholdSeconds != 300 {
		t.Fatalf("threshold = %d", cfg.Escalation.ThresholdSeconds)
	}
	// Untouched sections fall back to defaults.
	if cfg.Escalation.TickSeconds != 20 {
		t.Fatalf("tick default = %d", cfg.Escalation.TickSeconds)
	}
	if cfg.Points.Completion != 10 || cfg.Points.ReleasePenalty != 5 {
		t.Fatalf("points defaults = %+v", cfg.Points)
	}
	if cfg.API.Addr != ":8080" || cfg.API.Token != "secret" {
		t.Fatalf("api = %+v", cfg.API)
	}
	if cfg.Store.Path != "dispatch.db" || cfg.Store.LedgerPath != "ledger.db" {
		t.Fatalf("store paths = %+v", cfg.Store)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"store":{"backend":"sqlite","path":"/tmp/r.db"},"points":{"completion":25}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/tmp/r.db" {
		t.Fatalf("path = %s", cfg.Store.Path)
	}
	if cfg.Points.Completion != 25 {
		t.Fatalf("completion = %d", cfg.Points.Completion)
	}
	if cfg.Points.ReleasePenalty != 5 {
		t.Fatalf("penalty default = %d", cfg.Points.ReleasePenalty)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("K_STORE__BACKEND", "memory")
	path := writeConfig(t, "config.yaml", `
store:
  backend: sqlite
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("env override ignored, backend = %s", cfg.Store.Backend)
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(writeConfig(t, "config.toml", "x = 1")); err == nil {
		t.Fatal("unsupported extension must fail")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file must fail")
	}
	if _, err := Load(writeConfig(t, "config.yaml", "store:\n  backend: redis\n")); err == nil {
		t.Fatal("unknown backend must fail validation")
	}
}
