// Package lua provides the Lua runtime that hosts effect plugins.
package lua

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps gopher-lua for plugin execution.
//
// gopher-lua's LState is not goroutine-safe. Every plugin gets its own
// State, and all access to the underlying LState is serialized through the
// mutex: loading happens on the startup goroutine, effect invocations on the
// controller's worker goroutine, one at a time.
type State struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// NewState creates a Lua state with only the safe standard libraries open
// and the glimmer bindings (zone and cancel types, the color module)
// registered.
func NewState() *State {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // opened selectively below
	})

	openSafeLibraries(L)
	registerZoneType(L)
	registerCancelType(L)
	registerColorModule(L)

	return &State{L: L}
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	// Base library (print, type, pairs, ipairs, etc.)
	lua.OpenBase(L)

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Intentionally NOT opened:
	// - io (file system access)
	// - os (system calls, execute)
	// - debug (can bypass the runtime)
	// - package (can load arbitrary modules)
}

// DoFile executes a Lua file. Execution is synchronous and a Lua panic is
// returned as an error.
func (s *State) DoFile(path string) error {
	return s.Do(func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

// Do runs fn against the underlying LState with the state lock held and
// panic recovery in place. All LState access must go through Do.
func (s *State) Do(fn func(L *lua.LState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn(s.L)
}

// HasFunction reports whether the state has a global function of the given
// name.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	v := s.L.GetGlobal(name)
	return v != nil && v.Type() == lua.LTFunction
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. After Close, Do returns ErrStateClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}
