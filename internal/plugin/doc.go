// Package plugin provides manifest-driven discovery and loading of Lua
// effect plugins.
//
// A plugin is a directory containing a plugin.json manifest and a Lua entry
// point:
//
//	plugins/core-effects/
//	├── plugin.json
//	└── effects.lua
//
// The manifest declares the plugin's identity, entry point, exported effect
// functions, and luarocks dependencies:
//
//	{
//	  "name": "core-effects",
//	  "version": "1.0.0",
//	  "description": "Built-in lighting effects",
//	  "author": "glimmer",
//	  "main": "effects.lua",
//	  "functions": [
//	    {"name": "rainbow", "looped": false},
//	    {"name": "rainbow_cycle", "looped": true}
//	  ],
//	  "dependencies": {}
//	}
//
// The load pipeline is Registry (discover manifests) -> Load (install
// dependencies, execute the entry point in an isolated Lua state, bind
// declared functions) -> Catalog (flat registry addressed by
// "plugin.function" keys). Every failure is contained per plugin: a
// malformed manifest, a failed dependency install, or a faulting entry
// point never prevents discovery or loading of any other plugin. The
// catalog's Status reports what loaded, what failed, and why.
//
// Each exported effect function is called as
//
//	function rainbow_cycle(zone, step, cancel)
//
// where zone is the ordered LED color buffer with a show() commit, step is
// an integer parameter chosen by the caller (conventionally the LED count),
// and cancel is the cooperative stop token. Looped effects must poll
// cancel at each iteration boundary.
package plugin
