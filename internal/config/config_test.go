package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMergesLocalOverGlobalFirstWriterWins(t *testing.T) {
	local := t.TempDir()
	global := filepath.Join(t.TempDir(), "config.toml")

	writeFile(t, filepath.Join(local, "config.toml"), `
[general]
cache-path = "/local/cache"

[env]
BOARD = "arty-a7"
`)

	writeFile(t, global, `
[general]
cache-path = "/global/cache"
archive-path = "/global/archive"

[env]
BOARD = "nexys"
SIM = "ghdl"
`)

	cfg, err := Load(local, global)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.General.CacheRoot != "/local/cache" {
		t.Errorf("CacheRoot = %q, want local to win", cfg.General.CacheRoot)
	}

	if cfg.General.ArchiveRoot != "/global/archive" {
		t.Errorf("ArchiveRoot = %q, want global fallback", cfg.General.ArchiveRoot)
	}

	if cfg.Env["BOARD"] != "arty-a7" {
		t.Errorf("Env[BOARD] = %q, want local to win", cfg.Env["BOARD"])
	}

	if cfg.Env["SIM"] != "ghdl" {
		t.Errorf("Env[SIM] = %q, want global-only value", cfg.Env["SIM"])
	}
}

func TestEnvExportName(t *testing.T) {
	c := &Config{}
	if got, want := c.EnvExportName("sim-tool"), "ORBIT_ENV_SIM_TOOL"; got != want {
		t.Errorf("EnvExportName = %q, want %q", got, want)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
