// Package config loads glimmer's settings from an optional JSON config
// file with environment overrides.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Config holds the resolved settings. Precedence, lowest to highest:
// defaults, config file, environment (including a .env file in the working
// directory), command-line flags.
type Config struct {
	Address    string // OpenRGB server host
	Port       int    // OpenRGB server port
	PluginsDir string // plugins root directory
	LogLevel   string // debug, info, warn, error
}

// Environment variable names.
const (
	envAddress  = "GLIMMER_ADDRESS"
	envPort     = "GLIMMER_PORT"
	envPlugins  = "GLIMMER_PLUGINS"
	envLogLevel = "GLIMMER_LOG_LEVEL"
)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Address:    "localhost",
		Port:       6742,
		PluginsDir: defaultDir("plugins"),
		LogLevel:   "info",
	}
}

// DefaultPath returns the default config file location,
// ~/.config/glimmer/config.json.
func DefaultPath() string {
	return defaultDir("config.json")
}

func defaultDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".glimmer", name)
	}
	return filepath.Join(home, ".config", "glimmer", name)
}

// Load reads the config file at path (missing file is not an error) and
// applies environment overrides. An empty path means DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	// A .env file in the working directory feeds the environment;
	// missing is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults apply.
	case err != nil:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if !gjson.ValidBytes(data) {
			return cfg, fmt.Errorf("config: %s is not valid JSON", path)
		}
		if v := gjson.GetBytes(data, "server.address"); v.Exists() {
			cfg.Address = v.String()
		}
		if v := gjson.GetBytes(data, "server.port"); v.Exists() {
			cfg.Port = int(v.Int())
		}
		if v := gjson.GetBytes(data, "plugins.dir"); v.Exists() {
			cfg.PluginsDir = v.String()
		}
		if v := gjson.GetBytes(data, "log.level"); v.Exists() {
			cfg.LogLevel = v.String()
		}
	}

	if v := os.Getenv(envAddress); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv(envPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: %s: %w", envPort, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv(envPlugins); v != "" {
		cfg.PluginsDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// Save writes cfg to the JSON file at path, preserving any unrelated keys
// already present.
func Save(path string, cfg Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		data = []byte("{}")
	}

	for _, kv := range []struct {
		key   string
		value interface{}
	}{
		{"server.address", cfg.Address},
		{"server.port", cfg.Port},
		{"plugins.dir", cfg.PluginsDir},
		{"log.level", cfg.LogLevel},
	} {
		data, err = sjson.SetBytes(data, kv.key, kv.value)
		if err != nil {
			return fmt.Errorf("config: set %s: %w", kv.key, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ServerAddr returns the host:port of the OpenRGB server.
func (c Config) ServerAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}
