package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Engines.Roster) != 3 {
		t.Fatalf("default roster size = %d, want 3", len(cfg.Engines.Roster))
	}
	if cfg.Engines.Arbiter.ID != "arbiter" {
		t.Fatalf("default arbiter = %s", cfg.Engines.Arbiter.ID)
	}
	if cfg.RateGuard.Capacity != 60 || cfg.RateWindow() != time.Minute {
		t.Fatalf("rate guard defaults: %v/%v", cfg.RateGuard.Capacity, cfg.RateWindow())
	}
	if cfg.ResearchRetention() != 24*time.Hour {
		t.Fatalf("research retention = %v", cfg.ResearchRetention())
	}
	if cfg.MemoryRetention() != 72*time.Hour {
		t.Fatalf("memory retention = %v", cfg.MemoryRetention())
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 8081
engines:
  defaultModel: gpt-4o
  callTimeoutSeconds: 30
  roster:
    - id: alpha
      role: primary_researcher
      model: gpt-4o
    - id: beta
      role: critical_reviewer
  arbiter:
    id: gamma
    model: gpt-4o-mini
rateGuard:
  capacity: 10
  windowSeconds: 30
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	models := cfg.Models()
	if models["alpha"] != "gpt-4o" {
		t.Fatalf("alpha model = %s", models["alpha"])
	}
	if _, ok := models["beta"]; ok {
		t.Fatal("beta has no model override, should fall through to default")
	}
	if models["gamma"] != "gpt-4o-mini" {
		t.Fatalf("arbiter model = %s", models["gamma"])
	}
	if cfg.CallTimeout() != 30*time.Second {
		t.Fatalf("call timeout = %v", cfg.CallTimeout())
	}
	if cfg.RateWindow() != 30*time.Second {
		t.Fatalf("rate window = %v", cfg.RateWindow())
	}
}

func TestLoadRejectsAuthWithoutKeys(t *testing.T) {
	if _, err := Load(writeConfig(t, "auth:\n  enabled: true\n")); err == nil {
		t.Fatal("auth without keys accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
