package plugin

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Catalog aggregates all loaded plugins into a flat registry queryable by
// effect key ("plugin.function"). It is built once, by running discovery
// and then a load pass over every discovered manifest, and is immutable
// for the process lifetime.
type Catalog struct {
	hosts           map[string]*Host // all hosts, successful and failed
	order           []string         // discovery order
	discoveryErrors map[string]error // manifest path -> error
}

// BuildCatalog discovers plugins under root and loads each one. Logger and
// installer may be nil; per-plugin failures are contained and reported via
// Status, never returned from here. The returned error covers only a
// failure to scan the root itself.
func BuildCatalog(ctx context.Context, root string, log *zap.Logger, inst Installer) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if inst == nil {
		inst = NewLuaRocksInstaller()
	}

	reg := NewRegistry(root, log)
	if err := reg.Discover(); err != nil {
		return nil, err
	}

	c := &Catalog{
		hosts:           make(map[string]*Host),
		discoveryErrors: reg.Errors(),
	}

	manifests := reg.Manifests()
	for _, name := range reg.Names() {
		h := Load(ctx, name, manifests[name], WithLogger(log), WithInstaller(inst))
		c.hosts[h.Name()] = h
		c.order = append(c.order, h.Name())
	}

	return c, nil
}

// Lookup resolves an effect key of the form "plugin.function". It returns
// ErrUnknownEffect when the plugin name is absent, when the plugin failed
// to load, and when the function was not declared or not exported - all
// deliberately the same error kind.
func (c *Catalog) Lookup(key string) (*FunctionDescriptor, error) {
	pluginName, fnName, ok := strings.Cut(key, ".")
	if !ok || pluginName == "" || fnName == "" {
		return nil, fmt.Errorf("%w: %q (want plugin.function)", ErrUnknownEffect, key)
	}

	h, exists := c.hosts[pluginName]
	if !exists || h.Status() != StatusSuccess {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, key)
	}

	d, exists := h.Function(fnName)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, key)
	}
	return d, nil
}

// Plugins returns all successfully loaded plugins keyed by name.
func (c *Catalog) Plugins() map[string]*Host {
	out := make(map[string]*Host)
	for name, h := range c.hosts {
		if h.Status() == StatusSuccess {
			out[name] = h
		}
	}
	return out
}

// Keys returns every addressable effect key in discovery order.
func (c *Catalog) Keys() []string {
	var keys []string
	for _, name := range c.order {
		h := c.hosts[name]
		if h.Status() != StatusSuccess {
			continue
		}
		for _, d := range h.Functions() {
			keys = append(keys, d.FullName())
		}
	}
	return keys
}

// Close releases every plugin's Lua state.
func (c *Catalog) Close() {
	for _, h := range c.hosts {
		h.Close()
	}
}

// Status is a read-only diagnostic snapshot of the load pass. It is not
// used for control flow.
type Status struct {
	// Loaded counts plugins that loaded successfully.
	Loaded int `json:"loaded"`
	// Available counts every discovered manifest.
	Available int `json:"available"`
	// Failed counts discovery errors plus failed loads.
	Failed int `json:"failed"`
	// Errors maps manifest path (discovery) or plugin name (load) to the
	// failure message.
	Errors map[string]string `json:"errors,omitempty"`
	// Plugins describes each successfully loaded plugin.
	Plugins map[string]PluginStatus `json:"plugins"`
}

// PluginStatus describes one loaded plugin.
type PluginStatus struct {
	Version   string           `json:"version"`
	Functions []FunctionStatus `json:"functions"`
}

// FunctionStatus describes one bound effect function.
type FunctionStatus struct {
	Name   string `json:"name"`
	Looped bool   `json:"looped"`
}

// Status reports the catalog's load outcome.
func (c *Catalog) Status() Status {
	st := Status{
		Errors:  make(map[string]string),
		Plugins: make(map[string]PluginStatus),
	}

	for path, err := range c.discoveryErrors {
		st.Errors[path] = err.Error()
		st.Failed++
	}

	for _, name := range c.order {
		h := c.hosts[name]
		st.Available++

		if h.Status() != StatusSuccess {
			st.Failed++
			if h.Err() != nil {
				st.Errors[name] = h.Err().Error()
			}
			continue
		}

		st.Loaded++
		ps := PluginStatus{Version: h.Manifest().Version}
		for _, d := range h.Functions() {
			ps.Functions = append(ps.Functions, FunctionStatus{
				Name:   d.Name(),
				Looped: d.Looped(),
			})
		}
		st.Plugins[name] = ps
	}

	return st
}
