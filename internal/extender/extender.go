// Package extender runs user extension hooks when buffers are opened,
// switched, saved and closed.
//
// Hooks are global functions in a Lua script:
//
//	function OnOpen(path) end
//	function OnSwitchFile(path) end
//	function OnBeforeSave(path) return false end -- true: the script saved it
//	function OnSave(path) end
//	function OnClose(path) end
//
// Scripts see a sandboxed runtime (base, table, string and math libraries)
// plus a bufkeep table describing the open buffers.
package extender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/bufkeep/internal/logging"
)

// Errors returned by the Lua extender.
var (
	ErrClosed  = errors.New("extender is closed")
	ErrTimeout = errors.New("extension hook timed out")
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 2 * time.Second

// Hook names, which are also the Lua global function names.
const (
	HookOpen       = "OnOpen"
	HookSwitchFile = "OnSwitchFile"
	HookBeforeSave = "OnBeforeSave"
	HookSave       = "OnSave"
	HookClose      = "OnClose"
)

// Extension receives buffer lifecycle events on the control goroutine.
type Extension interface {
	OnOpen(path string) error
	OnSwitchFile(path string) error

	// OnBeforeSave returns true when the extension has saved the file
	// itself and the normal save must be skipped.
	OnBeforeSave(path string) (bool, error)

	OnSave(path string) error
	OnClose(path string) error
}

// Nop is an Extension that does nothing.
type Nop struct{}

func (Nop) OnOpen(string) error               { return nil }
func (Nop) OnSwitchFile(string) error         { return nil }
func (Nop) OnBeforeSave(string) (bool, error) { return false, nil }
func (Nop) OnSave(string) error               { return nil }
func (Nop) OnClose(string) error              { return nil }

// Host exposes buffer state to scripts.
type Host interface {
	// BufferPaths returns the path of every slot, empty for untitled ones.
	BufferPaths() []string

	// CurrentPath returns the current slot's path.
	CurrentPath() string
}

// Option configures a Lua extender.
type Option func(*Lua)

// WithTimeout bounds each hook call.
func WithTimeout(d time.Duration) Option {
	return func(e *Lua) {
		e.timeout = d
	}
}

// WithLogger sets the logger used by bufkeep.log and for hook failures.
func WithLogger(l *logging.Logger) Option {
	return func(e *Lua) {
		e.logger = l
	}
}

// WithHost exposes buffer state through the bufkeep table.
func WithHost(h Host) Option {
	return func(e *Lua) {
		e.host = h
	}
}

// Lua runs hooks defined by a Lua script.
//
// gopher-lua states are not goroutine-safe; the mutex serialises calls
// from Go.
type Lua struct {
	mu      sync.Mutex
	L       *lua.LState
	host    Host
	logger  *logging.Logger
	timeout time.Duration
	closed  bool
}

// NewLua creates an extender with an empty script.
func NewLua(opts ...Option) *Lua {
	e := &Lua{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrNull(e.logger).WithComponent("extender")

	e.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.L)
	e.installModule()
	return e
}

// openSafeLibraries opens the libraries that cannot reach the file system
// or the process.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (e *Lua) installModule() {
	mod := e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"log":     e.luaLog,
		"buffers": e.luaBuffers,
		"current": e.luaCurrent,
	})
	e.L.SetGlobal("bufkeep", mod)
}

// luaLog implements bufkeep.log([level,] message).
func (e *Lua) luaLog(L *lua.LState) int {
	level, msg := "info", L.CheckString(1)
	if L.GetTop() >= 2 {
		level, msg = msg, L.CheckString(2)
	}
	switch level {
	case "debug":
		e.logger.Debug("%s", msg)
	case "warn":
		e.logger.Warn("%s", msg)
	case "error":
		e.logger.Error("%s", msg)
	default:
		e.logger.Info("%s", msg)
	}
	return 0
}

func (e *Lua) luaBuffers(L *lua.LState) int {
	t := L.NewTable()
	if e.host != nil {
		for _, p := range e.host.BufferPaths() {
			t.Append(lua.LString(p))
		}
	}
	L.Push(t)
	return 1
}

func (e *Lua) luaCurrent(L *lua.LState) int {
	if e.host == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(e.host.CurrentPath()))
	return 1
}

// LoadFile runs the script at path, defining its hooks.
func (e *Lua) LoadFile(path string) error {
	return e.run(func() error { return e.L.DoFile(path) })
}

// LoadString runs script source, defining its hooks.
func (e *Lua) LoadString(src string) error {
	return e.run(func() error { return e.L.DoString(src) })
}

// Defines reports whether the script defines the named hook.
func (e *Lua) Defines(hook string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	return e.L.GetGlobal(hook).Type() == lua.LTFunction
}

// OnOpen runs the script's OnOpen function after a file has loaded.
func (e *Lua) OnOpen(path string) error {
	_, err := e.call(HookOpen, path)
	return err
}

// OnSwitchFile runs OnSwitchFile when another buffer becomes current.
func (e *Lua) OnSwitchFile(path string) error {
	_, err := e.call(HookSwitchFile, path)
	return err
}

// OnBeforeSave runs OnBeforeSave. A truthy return value means the script
// has handled the save itself.
func (e *Lua) OnBeforeSave(path string) (bool, error) {
	ret, err := e.call(HookBeforeSave, path)
	if err != nil {
		return false, err
	}
	return lua.LVAsBool(ret), nil
}

// OnSave runs OnSave after a save has completed.
func (e *Lua) OnSave(path string) error {
	_, err := e.call(HookSave, path)
	return err
}

// OnClose runs OnClose as a buffer is closed.
func (e *Lua) OnClose(path string) error {
	_, err := e.call(HookClose, path)
	return err
}

// call invokes the named hook with path and returns its first result.
// A hook the script does not define returns nil.
func (e *Lua) call(hook, path string) (lua.LValue, error) {
	var ret lua.LValue = lua.LNil
	err := e.run(func() error {
		fn := e.L.GetGlobal(hook)
		if fn.Type() != lua.LTFunction {
			return nil
		}
		if err := e.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LString(path)); err != nil {
			return err
		}
		ret = e.L.Get(-1)
		e.L.Pop(1)
		return nil
	})
	if err != nil {
		e.logger.Warn("%s(%s): %v", hook, path, err)
		return lua.LNil, fmt.Errorf("%s: %w", hook, err)
	}
	return ret, nil
}

// run executes fn under the lock with the call timeout applied.
func (e *Lua) run(fn func() error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	if e.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		e.L.SetContext(ctx)
		defer func() {
			e.L.RemoveContext()
			if err != nil && ctx.Err() != nil {
				err = fmt.Errorf("%w: %v", ErrTimeout, err)
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the Lua state.
func (e *Lua) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.L.Close()
	return nil
}

var (
	_ Extension = Nop{}
	_ Extension = (*Lua)(nil)
)
