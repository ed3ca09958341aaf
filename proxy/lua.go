package proxy

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabridge/binding"
	"github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/meta"
)

// typeView is the per-state Lua side of one type: its metatable and the
// placeholder functions standing for its INDEX members.
type typeView struct {
	cache        *Cache
	desc         *meta.TypeDescriptor
	name         string
	mt           *lua.LTable
	placeholders map[string]*lua.LFunction
}

// ForeignObject implements coerce.ObjectWrapper. Go functions become Lua
// functions; every other value becomes the userdata view of its proxy.
func (c *Cache) ForeignObject(L *lua.LState, v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Func {
		return c.function(L, rv)
	}
	return c.View(L, c.Wrap(v))
}

// NativeObject implements coerce.ObjectWrapper.
func (c *Cache) NativeObject(lv lua.LValue) (any, bool) {
	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	switch x := ud.Value.(type) {
	case *Proxy:
		return x.native, true
	case *errorValue:
		return x.err, true
	}
	return ud.Value, true
}

// FromLua returns the proxy behind lv.
func FromLua(lv lua.LValue) (*Proxy, bool) {
	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	p, ok := ud.Value.(*Proxy)
	return p, ok
}

// View returns the userdata standing for p in L, one per state.
func (c *Cache) View(L *lua.LState, p *Proxy) *lua.LUserData {
	if ud, ok := p.view(L); ok {
		return ud
	}
	ud := L.NewUserData()
	ud.Value = p
	ud.Metatable = c.typeView(L, p).mt
	return p.setView(L, ud)
}

// Placeholder returns the function L's scripts see for an INDEX member of
// p when no script assignment replaces it.
func (c *Cache) Placeholder(L *lua.LState, p *Proxy, name string) (*lua.LFunction, bool) {
	if p.desc == nil {
		return nil, false
	}
	m, ok := p.desc.Index(name)
	if !ok {
		return nil, false
	}
	return c.typeView(L, p).placeholder(L, m), true
}

func (c *Cache) typeView(L *lua.LState, p *Proxy) *typeView {
	key := reflect.TypeOf(p.native)
	if p.desc != nil {
		key = p.desc.Type()
	}

	owner := mainThread(L)
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	byType := c.types[owner]
	if byType == nil {
		byType = make(map[reflect.Type]*typeView)
		c.types[owner] = byType
	}
	if tv, ok := byType[key]; ok {
		return tv
	}

	tv := &typeView{
		cache:        c,
		desc:         p.desc,
		name:         p.name,
		placeholders: make(map[string]*lua.LFunction),
	}
	tv.mt = tv.metatable(L)
	byType[key] = tv
	return tv
}

func (tv *typeView) metatable(L *lua.LState) *lua.LTable {
	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(tv.index))
	mt.RawSetString("__newindex", L.NewFunction(tv.newindex))
	for _, s := range meta.OperatorSlots() {
		mt.RawSetString(s.Metamethod(), L.NewFunction(tv.slot(s)))
	}
	if tv.cache.metakey {
		mt.RawSetString("__type", lua.LString(tv.name))
	}
	return mt
}

// placeholder returns the registry-installed function for m in this
// state. Assigning it back to the member resets a script override.
func (tv *typeView) placeholder(L *lua.LState, m *meta.Member) *lua.LFunction {
	tv.cache.viewMu.Lock()
	defer tv.cache.viewMu.Unlock()
	if fn, ok := tv.placeholders[m.Name]; ok {
		return fn
	}
	fn := L.NewFunction(func(L *lua.LState) int {
		self := L.Get(1)
		return tv.invoke(L, m, self, stackArgs(L, 2))
	})
	tv.placeholders[m.Name] = fn
	return fn
}

func (tv *typeView) isPlaceholder(name string, lv lua.LValue) bool {
	fn, ok := lv.(*lua.LFunction)
	if !ok {
		return false
	}
	tv.cache.viewMu.Lock()
	defer tv.cache.viewMu.Unlock()
	return tv.placeholders[name] == fn
}

// invoke calls the host implementation of m, marking it as executing so
// that the dispatcher runs the host default instead of looping back into
// a script override.
func (tv *typeView) invoke(L *lua.LState, m *meta.Member, self lua.LValue, args []lua.LValue) int {
	p, _ := FromLua(self)
	if p != nil && !p.Valid() {
		Raise(L, invalidated(p))
	}
	if m.Binding == nil {
		Raise(L, errors.UnimplementedOverride(tv.name, m.Name))
	}
	if p != nil {
		leave := p.EnterNative(KeyOf(m))
		defer leave()
	}
	rets, err := m.Binding.Invoke(L, tv.cache.eng, self, args)
	if err != nil {
		Raise(L, err)
	}
	for _, r := range rets {
		L.Push(r)
	}
	return len(rets)
}

// index resolves obj[key]: script assignment, then field, then member
// placeholder.
func (tv *typeView) index(L *lua.LState) int {
	p := tv.check(L)
	key := L.Get(2)

	if a, ok := p.Assigned(key); ok && a.owns(L) {
		L.Push(a.Value)
		return 1
	}

	name, ok := key.(lua.LString)
	if !ok || p.desc == nil {
		L.Push(lua.LNil)
		return 1
	}
	if f, ok := p.desc.Field(string(name)); ok {
		v, err := f.Get(reflect.ValueOf(p.native))
		if err != nil {
			Raise(L, err)
		}
		lv, err := tv.cache.eng.ValueToForeignExact(L, v)
		if err != nil {
			if be, ok := err.(*errors.Error); ok && len(be.Path) == 0 {
				be.Path = []string{tv.name, f.Name}
			}
			Raise(L, err)
		}
		L.Push(lv)
		return 1
	}
	if m, ok := p.desc.Index(string(name)); ok {
		L.Push(tv.placeholder(L, m))
		return 1
	}
	L.Push(lua.LNil)
	return 1
}

// newindex handles obj[key] = value: field write, placeholder reset, or a
// script assignment.
func (tv *typeView) newindex(L *lua.LState) int {
	p := tv.check(L)
	key := L.Get(2)
	value := L.Get(3)

	if name, ok := key.(lua.LString); ok && p.desc != nil {
		if f, ok := p.desc.Field(string(name)); ok {
			v, err := tv.cache.eng.ToNative(L, value, f.Type)
			if err != nil {
				if be, ok := err.(*errors.Error); ok && len(be.Path) == 0 {
					be.Path = []string{tv.name, f.Name}
				}
				Raise(L, err)
			}
			if err := f.Set(reflect.ValueOf(p.native), v); err != nil {
				Raise(L, err)
			}
			return 0
		}
		if tv.isPlaceholder(string(name), value) {
			p.Assign(L, key, lua.LNil)
			return 0
		}
	}
	p.Assign(L, key, value)
	return 0
}

func (tv *typeView) check(L *lua.LState) *Proxy {
	p, ok := FromLua(L.Get(1))
	if !ok {
		L.ArgError(1, tv.name+" expected")
	}
	if !p.Valid() {
		Raise(L, invalidated(p))
	}
	return p
}

// function exposes a Go func value as a Lua function.
func (c *Cache) function(L *lua.LState, rv reflect.Value) lua.LValue {
	b, err := binding.ForFunc(rv.Type().String(), rv.Interface())
	if err != nil {
		return lua.LNil
	}
	return L.NewFunction(func(L *lua.LState) int {
		rets, err := b.Invoke(L, c.eng, lua.LNil, stackArgs(L, 1))
		if err != nil {
			Raise(L, err)
		}
		for _, r := range rets {
			L.Push(r)
		}
		return len(rets)
	})
}

func stackArgs(L *lua.LState, from int) []lua.LValue {
	top := L.GetTop()
	if top < from {
		return nil
	}
	args := make([]lua.LValue, 0, top-from+1)
	for i := from; i <= top; i++ {
		args = append(args, L.Get(i))
	}
	return args
}

func invalidated(p *Proxy) error {
	return errors.Unsupported(errors.PhaseInvoke, fmt.Sprintf("use of invalidated %s", p.name))
}
