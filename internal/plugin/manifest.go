package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ManifestFileName is the fixed name of the plugin declaration file.
const ManifestFileName = "plugin.json"

// Manifest describes a plugin's identity, entry point, exported effect
// functions, and dependencies. It is immutable after load.
type Manifest struct {
	// Identity
	Name        string `json:"name"`        // Unique identifier (e.g., "core-effects")
	Version     string `json:"version"`     // Semver (e.g., "1.2.0")
	Description string `json:"description"` // Short description
	Author      string `json:"author"`      // Author name or org

	// Entry point
	Main string `json:"main"` // Relative path to the main Lua file

	// Effect functions the entry point exports
	Functions []FunctionSpec `json:"functions"`

	// Dependencies maps rock name to a version constraint, installed via
	// luarocks before the plugin is loaded.
	Dependencies map[string]string `json:"dependencies"`

	// Internal: path to the plugin directory
	path string
}

// FunctionSpec declares one effect function the plugin exports.
type FunctionSpec struct {
	Name   string `json:"name"`   // Lua global function name
	Looped bool   `json:"looped"` // true: runs until cancelled; false: single render pass
}

// Validation errors.
var (
	ErrMissingName       = errors.New("manifest: name is required")
	ErrInvalidName       = errors.New("manifest: name must be alphanumeric with hyphens")
	ErrInvalidVersion    = errors.New("manifest: version must be valid semver")
	ErrMissingMain       = errors.New("manifest: main is required")
	ErrInvalidMain       = errors.New("manifest: main must be a .lua file")
	ErrMissingFuncName   = errors.New("manifest: function name is required")
	ErrDuplicateFuncName = errors.New("manifest: duplicate function name")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest loads and validates a plugin manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	// Set the path to the plugin directory
	m.path = filepath.Dir(path)

	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}

	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}

	if m.Main == "" {
		return ErrMissingMain
	}
	if filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}

	seen := make(map[string]bool, len(m.Functions))
	for i, fn := range m.Functions {
		if fn.Name == "" {
			return fmt.Errorf("%w at index %d", ErrMissingFuncName, i)
		}
		if seen[fn.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateFuncName, fn.Name)
		}
		seen[fn.Name] = true
	}

	return nil
}

// Path returns the path to the plugin directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the main Lua file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}
