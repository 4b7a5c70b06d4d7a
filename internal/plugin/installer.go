package plugin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"

	"go.uber.org/zap"
)

// Installer installs one declared plugin dependency. Installation mutates
// host package state; a partial install across a dependency list is
// possible and is not rolled back or retried.
type Installer interface {
	Install(ctx context.Context, pkg, constraint string) error
}

// LuaRocksInstaller installs dependencies with the luarocks package
// manager.
type LuaRocksInstaller struct {
	// Bin is the luarocks executable. Defaults to "luarocks".
	Bin string
}

// NewLuaRocksInstaller creates an installer using the luarocks binary on
// PATH.
func NewLuaRocksInstaller() *LuaRocksInstaller {
	return &LuaRocksInstaller{Bin: "luarocks"}
}

// Install runs `luarocks install <pkg> [constraint]`.
func (i *LuaRocksInstaller) Install(ctx context.Context, pkg, constraint string) error {
	bin := i.Bin
	if bin == "" {
		bin = "luarocks"
	}

	args := []string{"install", pkg}
	if constraint != "" {
		args = append(args, constraint)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := stderr.String(); msg != "" {
			return fmt.Errorf("luarocks install %s: %w: %s", pkg, err, msg)
		}
		return fmt.Errorf("luarocks install %s: %w", pkg, err)
	}
	return nil
}

// installDependencies installs each declared dependency sequentially in
// sorted package order, logging per-package success or failure. The first
// failure aborts this plugin's load; other plugins are unaffected.
func installDependencies(ctx context.Context, inst Installer, m *Manifest, log *zap.Logger) error {
	if len(m.Dependencies) == 0 {
		return nil
	}

	for _, pkg := range sortedKeys(m.Dependencies) {
		constraint := m.Dependencies[pkg]
		if err := inst.Install(ctx, pkg, constraint); err != nil {
			log.Warn("dependency install failed",
				zap.String("plugin", m.Name),
				zap.String("package", pkg),
				zap.String("constraint", constraint),
				zap.Error(err))
			return fmt.Errorf("%w: %s: %v", ErrDependencyInstall, pkg, err)
		}
		log.Info("dependency installed",
			zap.String("plugin", m.Name),
			zap.String("package", pkg),
			zap.String("constraint", constraint))
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
