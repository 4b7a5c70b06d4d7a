package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/gjson"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Address != "localhost" {
		t.Errorf("Address = %q, want localhost", cfg.Address)
	}
	if cfg.Port != 6742 {
		t.Errorf("Port = %d, want 6742", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.PluginsDir == "" {
		t.Error("PluginsDir is empty")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load of missing file = %v, want nil", err)
	}
	if cfg != Default() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"address": "rgb.lan", "port": 1234},
		"plugins": {"dir": "/opt/plugins"},
		"log": {"level": "debug"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Address != "rgb.lan" || cfg.Port != 1234 {
		t.Errorf("server = %s:%d, want rgb.lan:1234", cfg.Address, cfg.Port)
	}
	if cfg.PluginsDir != "/opt/plugins" {
		t.Errorf("PluginsDir = %q", cfg.PluginsDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": 9999}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	// Unset keys keep their defaults.
	if cfg.Address != "localhost" {
		t.Errorf("Address = %q, want localhost", cfg.Address)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{nope`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded on invalid JSON")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"address": "from-file"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GLIMMER_ADDRESS", "from-env")
	t.Setenv("GLIMMER_PORT", "7000")
	t.Setenv("GLIMMER_PLUGINS", "/env/plugins")
	t.Setenv("GLIMMER_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Address != "from-env" {
		t.Errorf("Address = %q, want from-env", cfg.Address)
	}
	if cfg.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Port)
	}
	if cfg.PluginsDir != "/env/plugins" {
		t.Errorf("PluginsDir = %q", cfg.PluginsDir)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadBadEnvPort(t *testing.T) {
	t.Setenv("GLIMMER_PORT", "not-a-number")
	if _, err := Load(filepath.Join(t.TempDir(), "config.json")); err == nil {
		t.Fatal("Load succeeded with invalid GLIMMER_PORT")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Config{Address: "rgb.lan", Port: 4242, PluginsDir: "/p", LogLevel: "error"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != cfg {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestSavePreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"custom": {"keep": true}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Save(path, Default()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !gjson.GetBytes(data, "custom.keep").Bool() {
		t.Errorf("unrelated key lost: %s", data)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := Config{Address: "::1", Port: 6742}
	if got := cfg.ServerAddr(); got != "[::1]:6742" {
		t.Errorf("ServerAddr() = %q, want [::1]:6742", got)
	}
}
