package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := defaultConfig()
	if cfg != want {
		t.Fatalf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadConfig_OverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pingserver.yaml")
	contents := "protocol: dap\nhttp_addr: \":9191\"\nrate_limit_rps: 5\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Protocol != "dap" {
		t.Errorf("Protocol = %q, want dap", cfg.Protocol)
	}
	if cfg.HTTPAddr != ":9191" {
		t.Errorf("HTTPAddr = %q, want :9191", cfg.HTTPAddr)
	}
	if cfg.RateLimitRPS != 5 {
		t.Errorf("RateLimitRPS = %v, want 5", cfg.RateLimitRPS)
	}
	// Untouched fields keep their defaults.
	if cfg.FlushTimeout != 5*time.Second {
		t.Errorf("FlushTimeout = %v, want default 5s", cfg.FlushTimeout)
	}
}
