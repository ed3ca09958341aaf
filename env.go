package luabridge

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/proxy"
)

// Env is one Lua state attached to a bridge. It is not safe for
// concurrent use; run one Env per goroutine.
type Env struct {
	id     uuid.UUID
	b      *Bridge
	L      *lua.LState
	log    *zap.Logger
	closed bool
}

// NewEnv creates a Lua state bound to the bridge and installs the ctype
// global.
func (b *Bridge) NewEnv(opts ...lua.Options) *Env {
	e := &Env{
		id: uuid.New(),
		b:  b,
		L:  lua.NewState(opts...),
	}
	e.log = b.log.With(zap.Stringer("env", e.id))
	e.L.SetGlobal("ctype", e.L.NewFunction(ctype))
	e.log.Debug("env created")
	return e
}

// ID identifies the env in log entries.
func (e *Env) ID() uuid.UUID { return e.id }

// State returns the underlying Lua state.
func (e *Env) State() *lua.LState { return e.L }

// Bridge returns the bridge the env belongs to.
func (e *Env) Bridge() *Bridge { return e.b }

// Set publishes v as a global.
func (e *Env) Set(name string, v any) {
	e.L.SetGlobal(name, e.b.eng.ToForeign(e.L, v))
}

// Get returns a global as a Lua value.
func (e *Env) Get(name string) lua.LValue {
	return e.L.GetGlobal(name)
}

// Global converts a global to T.
func Global[T any](e *Env, name string) (T, error) {
	var zero T
	v, err := e.b.eng.ToNative(e.L, e.L.GetGlobal(name), reflect.TypeFor[T]())
	if err != nil {
		if be, ok := errors.As(err); ok && len(be.Path) == 0 {
			be.Path = []string{name}
		}
		return zero, err
	}
	out, _ := v.Interface().(T)
	return out, nil
}

// DoString runs a chunk. Bridge errors raised by the script come back as
// *errors.Error, plain Lua errors as *lua.ApiError.
func (e *Env) DoString(src string) error {
	return e.scriptError(e.L.DoString(src))
}

// DoFile runs a script file.
func (e *Env) DoFile(path string) error {
	return e.scriptError(e.L.DoFile(path))
}

// Call calls the global function name and returns its first result.
func (e *Env) Call(name string, args ...any) (lua.LValue, error) {
	fn, ok := e.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return lua.LNil, errors.NotFound(errors.PhaseScript, "function", name)
	}
	params := make([]lua.LValue, len(args))
	for i, a := range args {
		params[i] = e.b.eng.ToForeign(e.L, a)
	}
	if err := e.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, params...); err != nil {
		return lua.LNil, e.scriptError(err)
	}
	ret := e.L.Get(-1)
	e.L.Pop(1)
	return ret, nil
}

// SetLibrary publishes the INDEX members of obj as a global table of
// plain functions bound to obj, so scripts can call lib.f(x) instead of
// obj:f(x). Script overrides on obj are honored.
func (e *Env) SetLibrary(name string, obj any) error {
	p := e.b.cache.Wrap(obj)
	if p == nil || p.Descriptor() == nil {
		return errors.NotFound(errors.PhaseScript, "registered type", fmt.Sprintf("%T", obj))
	}

	L := e.L
	view := e.b.cache.View(L, p)
	lib := L.CreateTable(0, len(p.Descriptor().Members()))
	for _, m := range p.Descriptor().Members() {
		lib.RawSetString(m.Name, L.NewFunction(func(L *lua.LState) int {
			top := L.GetTop()
			L.Push(L.GetField(view, m.Name))
			L.Push(view)
			for i := 1; i <= top; i++ {
				L.Push(L.Get(i))
			}
			L.Call(top+1, lua.MultRet)
			return L.GetTop() - top
		}))
	}
	L.SetGlobal(name, lib)
	e.log.Debug("library installed", zap.String("name", name), zap.String("type", p.Name()))
	return nil
}

// OpenType publishes the static functions of t as a global table named
// after the type.
func (e *Env) OpenType(t reflect.Type) error {
	td, ok := e.b.reg.Lookup(t)
	if !ok {
		return errors.NotFound(errors.PhaseScript, "registered type", fmt.Sprint(t))
	}

	L := e.L
	tb := L.CreateTable(0, len(td.Statics()))
	for _, m := range td.Statics() {
		tb.RawSetString(m.Name, L.NewFunction(func(L *lua.LState) int {
			args := make([]lua.LValue, L.GetTop())
			for i := range args {
				args[i] = L.Get(i + 1)
			}
			rets, err := m.Binding.Invoke(L, e.b.eng, lua.LNil, args)
			if err != nil {
				proxy.Raise(L, err)
			}
			for _, r := range rets {
				L.Push(r)
			}
			return len(rets)
		}))
	}
	L.SetGlobal(td.Name(), tb)
	return nil
}

// Close releases the env's views and script bindings and closes the
// state.
func (e *Env) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.b.cache.Release(e.L)
	e.L.Close()
	e.log.Debug("env closed")
}

func (e *Env) scriptError(err error) error {
	if err == nil {
		return nil
	}
	err = proxy.Unraise(err)
	e.log.Debug("script failed", zap.Error(err))
	return err
}

// ctype names a value's type: the __type metakey, then the proxy's
// display name, then the Lua type.
func ctype(L *lua.LState) int {
	v := L.CheckAny(1)
	if s, ok := L.GetMetaField(v, "__type").(lua.LString); ok {
		L.Push(s)
		return 1
	}
	if p, ok := proxy.FromLua(v); ok {
		L.Push(lua.LString(p.Name()))
		return 1
	}
	L.Push(lua.LString(v.Type().String()))
	return 1
}
