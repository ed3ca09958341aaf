package proxy

import (
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabridge/meta"
)

// Assignment is a value a script stored on a proxy, with the main thread
// of the state that owns it.
type Assignment struct {
	Value lua.LValue
	Owner *lua.LState
}

// Proxy is the script-visible stand-in for one native object. It holds
// the object strongly; the cache holds the proxy weakly unless script
// assignments pin it.
type Proxy struct {
	cache    *Cache
	native   any
	desc     *meta.TypeDescriptor
	name     string
	handle   Handle
	invalid  atomic.Bool
	mu       sync.Mutex
	assigned map[lua.LValue]Assignment
	views    map[*lua.LState]*lua.LUserData
	active   map[string]int
}

func newProxy(c *Cache, native any, desc *meta.TypeDescriptor, name string) *Proxy {
	return &Proxy{
		cache:  c,
		native: native,
		desc:   desc,
		name:   name,
	}
}

// Native returns the wrapped object.
func (p *Proxy) Native() any { return p.native }

// Descriptor returns the type descriptor, nil for unregistered types.
func (p *Proxy) Descriptor() *meta.TypeDescriptor { return p.desc }

// Name returns the display name of the wrapped object's type.
func (p *Proxy) Name() string { return p.name }

// Handle returns the cache handle, 0 for uncached proxies.
func (p *Proxy) Handle() Handle { return p.handle }

// Valid reports whether the host has not invalidated the proxy.
func (p *Proxy) Valid() bool { return !p.invalid.Load() }

// Assigned returns what a script stored under key.
func (p *Proxy) Assigned(key lua.LValue) (Assignment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.assigned[key]
	return a, ok
}

// Override returns the script function assigned under name, if any.
func (p *Proxy) Override(name string) (*lua.LFunction, *lua.LState, bool) {
	a, ok := p.Assigned(lua.LString(name))
	if !ok {
		return nil, nil, false
	}
	fn, ok := a.Value.(*lua.LFunction)
	if !ok {
		return nil, nil, false
	}
	return fn, a.Owner, true
}

// Assign stores value under key on behalf of L. A nil value removes the
// entry.
func (p *Proxy) Assign(L *lua.LState, key, value lua.LValue) {
	L = mainThread(L)
	p.mu.Lock()
	if value == lua.LNil {
		delete(p.assigned, key)
	} else {
		if p.assigned == nil {
			p.assigned = make(map[lua.LValue]Assignment)
		}
		p.assigned[key] = Assignment{Value: value, Owner: L}
	}
	n := len(p.assigned)
	p.mu.Unlock()

	p.cache.pin(p, n > 0)
}

// Keys lists the assigned keys.
func (p *Proxy) Keys() []lua.LValue {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]lua.LValue, 0, len(p.assigned))
	for k := range p.assigned {
		out = append(out, k)
	}
	return out
}

// EnterNative marks the host implementation of key as executing through
// its placeholder. The returned func ends the mark.
func (p *Proxy) EnterNative(key string) func() {
	p.mu.Lock()
	if p.active == nil {
		p.active = make(map[string]int)
	}
	p.active[key]++
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		if p.active[key]--; p.active[key] <= 0 {
			delete(p.active, key)
		}
		p.mu.Unlock()
	}
}

// InNative reports whether the host implementation of key is executing
// through its placeholder.
func (p *Proxy) InNative(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[key] > 0
}

func (p *Proxy) view(L *lua.LState) (*lua.LUserData, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ud, ok := p.views[mainThread(L)]
	return ud, ok
}

func (p *Proxy) setView(L *lua.LState, ud *lua.LUserData) *lua.LUserData {
	L = mainThread(L)
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.views[L]; ok {
		return existing
	}
	if p.views == nil {
		p.views = make(map[*lua.LState]*lua.LUserData)
	}
	p.views[L] = ud
	return ud
}

// release forgets everything owned by L and reports whether assignments
// remain.
func (p *Proxy) release(L *lua.LState) bool {
	L = mainThread(L)
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.views, L)
	for k, a := range p.assigned {
		if a.Owner == L {
			delete(p.assigned, k)
		}
	}
	return len(p.assigned) > 0
}

// owns reports whether a belongs to L or one of its coroutines.
func (a Assignment) owns(L *lua.LState) bool {
	return a.Owner == mainThread(L)
}

// mainThread returns the main thread of L. Coroutines share its views,
// metatables and assignments.
func mainThread(L *lua.LState) *lua.LState {
	if L != nil && L.G != nil && L.G.MainThread != nil {
		return L.G.MainThread
	}
	return L
}

// KeyOf returns the assignment key of a member: its exposed name, or the
// metamethod name for operator slots.
func KeyOf(m *meta.Member) string {
	if m.Slot == meta.SlotIndex {
		return m.Name
	}
	return m.Slot.Metamethod()
}
