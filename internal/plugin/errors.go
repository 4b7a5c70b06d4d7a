package plugin

import "errors"

// Plugin system errors.
var (
	// ErrUnknownEffect is returned by Catalog.Lookup when either the plugin
	// or the function inside it is absent. Both cases are deliberately the
	// same error kind.
	ErrUnknownEffect = errors.New("unknown effect")

	// ErrDuplicateName is recorded as a discovery error when two plugin
	// directories declare the same name.
	ErrDuplicateName = errors.New("duplicate plugin name")

	// ErrDependencyInstall is returned when installing a declared
	// dependency fails. It fails that plugin's load only.
	ErrDependencyInstall = errors.New("dependency install failed")

	// ErrNoEntryPoint is returned when the manifest's main file does not
	// exist.
	ErrNoEntryPoint = errors.New("plugin entry point not found")

	// ErrModuleFault is returned when the plugin's own code raises during
	// load. The underlying Lua error is wrapped for diagnostics.
	ErrModuleFault = errors.New("plugin code failed during load")

	// ErrNotLoaded is returned when invoking a function of a plugin that
	// failed to load.
	ErrNotLoaded = errors.New("plugin is not loaded")
)
