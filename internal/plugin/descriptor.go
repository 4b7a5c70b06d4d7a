package plugin

import (
	"context"

	"github.com/dshills/glimmer/internal/zone"
)

// FunctionDescriptor is a callable effect bound from a plugin's Lua state
// at load time, carrying the declared looped flag. Descriptors are owned by
// the catalog and immutable after load.
//
// A looped descriptor runs until the supplied context is cancelled, polling
// it at iteration boundaries; a non-looped descriptor performs one render
// pass and returns.
type FunctionDescriptor struct {
	plugin string
	name   string
	looped bool
	host   *Host
}

// Plugin returns the owning plugin's name.
func (d *FunctionDescriptor) Plugin() string { return d.plugin }

// Name returns the function name.
func (d *FunctionDescriptor) Name() string { return d.name }

// FullName returns the effect key, "plugin.function".
func (d *FunctionDescriptor) FullName() string { return d.plugin + "." + d.name }

// Looped reports whether the effect runs until cancelled.
func (d *FunctionDescriptor) Looped() bool { return d.looped }

// Invoke calls the effect with the standard signature (zone, step, cancel).
// The error is any fault raised by the plugin code during execution.
func (d *FunctionDescriptor) Invoke(ctx context.Context, z zone.Zone, step int) error {
	return d.host.invoke(ctx, d.name, z, step)
}
