package plugin

import (
	"context"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	glua "github.com/dshills/glimmer/internal/plugin/lua"
	"github.com/dshills/glimmer/internal/zone"
)

// LoadStatus is the outcome of a plugin load.
type LoadStatus int

// Load outcomes.
const (
	// StatusSuccess - the plugin loaded and its functions are bound.
	StatusSuccess LoadStatus = iota

	// StatusFailed - the plugin could not be loaded. Err holds the cause.
	StatusFailed
)

// String returns a string representation of the status.
func (s LoadStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Host is a loaded plugin: one manifest, one isolated Lua state, and the
// effect functions bound from it. A Host is created once per discovered
// manifest during the load pass and never mutated afterwards; re-running
// discovery and load supersedes it.
type Host struct {
	name     string
	manifest *Manifest // nil when the manifest failed to parse
	state    *glua.State
	funcs    map[string]*FunctionDescriptor
	status   LoadStatus
	err      error

	log       *zap.Logger
	installer Installer
}

// LoadOption configures a plugin load.
type LoadOption func(*Host)

// WithLogger sets the load logger.
func WithLogger(log *zap.Logger) LoadOption {
	return func(h *Host) {
		h.log = log
	}
}

// WithInstaller sets the dependency installer.
func WithInstaller(inst Installer) LoadOption {
	return func(h *Host) {
		h.installer = inst
	}
}

// Load loads the plugin declared at manifestPath. It always returns a Host;
// on failure the Host carries StatusFailed and the error. Failures are
// contained per plugin and never prevent loading of any other plugin.
//
// Load steps, each independently failable:
//  1. re-read and parse the manifest,
//  2. install declared dependencies sequentially via the host package
//     manager,
//  3. resolve the main entry point relative to the manifest directory,
//  4. execute the entry point in a fresh isolated Lua state,
//  5. bind every declared function that the state exports; a declared but
//     missing function is logged and omitted, and the plugin still loads
//     with the reduced function set.
func Load(ctx context.Context, name, manifestPath string, opts ...LoadOption) *Host {
	h := &Host{
		name:  name,
		funcs: make(map[string]*FunctionDescriptor),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.installer == nil {
		h.installer = NewLuaRocksInstaller()
	}

	if err := h.load(ctx, manifestPath); err != nil {
		if h.state != nil {
			h.state.Close()
			h.state = nil
		}
		h.funcs = make(map[string]*FunctionDescriptor)
		h.status = StatusFailed
		h.err = err
		h.log.Warn("plugin load failed",
			zap.String("plugin", name),
			zap.Error(err))
		return h
	}

	h.status = StatusSuccess
	h.log.Info("plugin loaded",
		zap.String("plugin", h.name),
		zap.String("version", h.manifest.Version),
		zap.Int("functions", len(h.funcs)))
	return h
}

func (h *Host) load(ctx context.Context, manifestPath string) error {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	h.manifest = m
	h.name = m.Name

	if err := installDependencies(ctx, h.installer, m, h.log); err != nil {
		return err
	}

	mainPath := m.MainPath()
	if _, err := os.Stat(mainPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNoEntryPoint, mainPath)
	}

	h.state = glua.NewState()
	if err := h.state.DoFile(mainPath); err != nil {
		return fmt.Errorf("%w: %v", ErrModuleFault, err)
	}

	for _, spec := range m.Functions {
		if !h.state.HasFunction(spec.Name) {
			h.log.Warn("declared function not exported",
				zap.String("plugin", m.Name),
				zap.String("function", spec.Name))
			continue
		}
		h.funcs[spec.Name] = &FunctionDescriptor{
			plugin: m.Name,
			name:   spec.Name,
			looped: spec.Looped,
			host:   h,
		}
	}

	return nil
}

// Name returns the plugin name.
func (h *Host) Name() string {
	return h.name
}

// Manifest returns the plugin manifest; nil if the manifest failed to
// parse.
func (h *Host) Manifest() *Manifest {
	return h.manifest
}

// Status returns the load outcome.
func (h *Host) Status() LoadStatus {
	return h.status
}

// Err returns the load error for a failed plugin.
func (h *Host) Err() error {
	return h.err
}

// Function returns the bound descriptor for the given function name.
func (h *Host) Function(name string) (*FunctionDescriptor, bool) {
	d, ok := h.funcs[name]
	return d, ok
}

// Functions returns the bound function names in declaration order.
func (h *Host) Functions() []*FunctionDescriptor {
	if h.manifest == nil {
		return nil
	}
	out := make([]*FunctionDescriptor, 0, len(h.funcs))
	for _, spec := range h.manifest.Functions {
		if d, ok := h.funcs[spec.Name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Close releases the plugin's Lua state.
func (h *Host) Close() {
	if h.state != nil {
		h.state.Close()
	}
}

// invoke calls the named effect function with the standard effect
// signature: (zone, step, cancel).
func (h *Host) invoke(ctx context.Context, fn string, z zone.Zone, step int) error {
	if h.state == nil {
		return ErrNotLoaded
	}

	return h.state.Do(func(L *lua.LState) error {
		fnVal := L.GetGlobal(fn)
		if fnVal.Type() != lua.LTFunction {
			return fmt.Errorf("%q is not a function (got %s)", fn, fnVal.Type())
		}

		L.Push(fnVal)
		L.Push(glua.NewZone(L, z))
		L.Push(lua.LNumber(step))
		L.Push(glua.NewCancel(L, ctx))
		return L.PCall(3, 0, nil)
	})
}
