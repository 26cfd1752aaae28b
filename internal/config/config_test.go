package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.SpawnMaxConcurrent != 8 || cfg.SpawnRegisterTimeout != 30*time.Second {
		t.Fatalf("spawn defaults = %d / %v", cfg.SpawnMaxConcurrent, cfg.SpawnRegisterTimeout)
	}
	if cfg.AutoStartWaitAfterMinPlayers != 10*time.Second || cfg.AutoStartWaitAfterFullTeams != 5*time.Second || cfg.AutoStartInterval != time.Second {
		t.Fatalf("auto-start defaults = %v / %v / %v", cfg.AutoStartWaitAfterMinPlayers, cfg.AutoStartWaitAfterFullTeams, cfg.AutoStartInterval)
	}
	if !cfg.LobbyRecordMatches {
		t.Fatalf("match recording should default on")
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "JWT_SECRET=file-secret\nSPAWN_MAX_CONCURRENT=3\nSPAWN_REGIONS=eu,us\nAUTOSTART_INTERVAL=250ms\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTSecret != "file-secret" || cfg.SpawnMaxConcurrent != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.SpawnRegions) != 2 || cfg.SpawnRegions[0] != "eu" || cfg.SpawnRegions[1] != "us" {
		t.Fatalf("regions = %v", cfg.SpawnRegions)
	}
	if cfg.AutoStartInterval != 250*time.Millisecond {
		t.Fatalf("interval = %v", cfg.AutoStartInterval)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_ADDR=:9000\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Fatalf("HTTPAddr = %q, want the environment value", cfg.HTTPAddr)
	}
}
