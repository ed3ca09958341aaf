package proxy

import (
	"reflect"
	"runtime"
	"sync"
	"weak"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luabridge/coerce"
	"github.com/wippyai/luabridge/meta"
)

// Cache guarantees at most one live proxy per native object. Proxies are
// referenced weakly: once neither Lua nor Go holds one, it is collected and
// the next crossing of the object creates a fresh proxy. A proxy carrying
// script assignments stays pinned until the assignments are removed or
// the host calls Invalidate.
type Cache struct {
	reg     *meta.Registry
	eng     *coerce.Engine
	log     *zap.Logger
	metakey bool

	mu    sync.RWMutex
	ids   map[identity]Handle
	table handleTable

	viewMu sync.Mutex
	types  map[*lua.LState]map[reflect.Type]*typeView

	obsMu     sync.RWMutex
	observers []Observer
}

// NewCache creates a cache that resolves descriptors through reg and
// converts values with eng. log may be nil.
func NewCache(reg *meta.Registry, eng *coerce.Engine, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		reg:     reg,
		eng:     eng,
		log:     log,
		metakey: true,
		ids:     make(map[identity]Handle),
		table:   newHandleTable(),
		types:   make(map[*lua.LState]map[reflect.Type]*typeView),
	}
}

// SetTypeMetakey controls whether metatables carry a __type entry with
// the display name. Call it before the first object crosses.
func (c *Cache) SetTypeMetakey(on bool) { c.metakey = on }

// Engine returns the coercion engine used by the cache.
func (c *Cache) Engine() *coerce.Engine { return c.eng }

// Registry returns the registry descriptors come from.
func (c *Cache) Registry() *meta.Registry { return c.reg }

// Wrap returns the proxy for obj, creating it on first use.
func (c *Cache) Wrap(obj any) *Proxy {
	if obj == nil {
		return nil
	}
	if p, ok := obj.(*Proxy); ok {
		return p
	}

	key, cacheable := identityOf(obj)
	if cacheable {
		if p, ok := c.Lookup(obj); ok {
			return p
		}
	}

	t := reflect.TypeOf(obj)
	desc, _ := c.reg.Lookup(t)
	name := c.reg.FallbackName(t)
	if desc != nil {
		name = desc.Name()
	}
	p := newProxy(c, obj, desc, name)

	if !cacheable {
		c.log.Debug("uncached proxy created", zap.String("type", name))
		return p
	}

	c.mu.Lock()
	if h, ok := c.ids[key]; ok {
		if existing, ok := c.table.get(h); ok {
			c.mu.Unlock()
			return existing
		}
	}
	ref := weak.Make(p)
	h := c.table.insert(key, ref)
	c.ids[key] = h
	p.handle = h
	runtime.AddCleanup(p, c.collected, cleanupArg{handle: h, ref: ref})
	c.mu.Unlock()

	c.log.Debug("proxy created", zap.String("type", name), zap.Uint32("handle", uint32(h)))
	c.notify(Event{Type: EventCreated, Handle: h, TypeName: name, Value: obj})
	return p
}

// Lookup returns the live proxy for obj without creating one.
func (c *Cache) Lookup(obj any) (*Proxy, bool) {
	if p, ok := obj.(*Proxy); ok {
		return p, true
	}
	key, ok := identityOf(obj)
	if !ok {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.ids[key]
	if !ok {
		return nil, false
	}
	return c.table.get(h)
}

// Get returns the live proxy for a handle.
func (c *Cache) Get(h Handle) (*Proxy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.get(h)
}

// Unwrap returns the native object behind p.
func Unwrap(p *Proxy) any {
	if p == nil {
		return nil
	}
	return p.native
}

// Invalidate signals that obj has been destroyed by the host. Its proxy
// leaves the cache and rejects further member access from scripts.
func (c *Cache) Invalidate(obj any) bool {
	key, ok := identityOf(obj)
	if !ok {
		return false
	}

	c.mu.Lock()
	h, ok := c.ids[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	p, _ := c.table.get(h)
	c.table.drop(h)
	delete(c.ids, key)
	c.mu.Unlock()

	name := ""
	if p != nil {
		p.invalid.Store(true)
		name = p.name
	}
	c.log.Debug("proxy invalidated", zap.String("type", name), zap.Uint32("handle", uint32(h)))
	c.notify(Event{Type: EventInvalidated, Handle: h, TypeName: name, Value: obj})
	return true
}

// Len returns the number of cached proxies.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.live
}

// Release drops every view, metatable and assignment owned by L and its
// coroutines. Call it before closing a state that shares the cache with
// others.
func (c *Cache) Release(L *lua.LState) {
	c.viewMu.Lock()
	delete(c.types, mainThread(L))
	c.viewMu.Unlock()

	var unpin []*Proxy
	c.mu.RLock()
	c.table.each(func(_ Handle, p *Proxy) {
		if !p.release(L) {
			unpin = append(unpin, p)
		}
	})
	c.mu.RUnlock()

	for _, p := range unpin {
		c.pin(p, false)
	}
}

// Subscribe adds an observer for lifecycle events.
func (c *Cache) Subscribe(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, o)
}

// Unsubscribe removes an observer.
func (c *Cache) Unsubscribe(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	for i, obs := range c.observers {
		if obs == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Cache) notify(e Event) {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	for _, o := range c.observers {
		o.OnProxyEvent(e)
	}
}

// pin keeps p strongly referenced while it carries script assignments.
func (c *Cache) pin(p *Proxy, on bool) {
	if p.handle == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.table.at(p.handle)
	if e == nil || e.ref.Value() != p {
		return
	}
	if on {
		e.pinned = p
	} else {
		e.pinned = nil
	}
}

type cleanupArg struct {
	ref    weak.Pointer[Proxy]
	handle Handle
}

func (c *Cache) collected(arg cleanupArg) {
	c.mu.Lock()
	e := c.table.at(arg.handle)
	if e == nil || e.ref != arg.ref {
		c.mu.Unlock()
		return
	}
	key, _ := c.table.drop(arg.handle)
	if c.ids[key] == arg.handle {
		delete(c.ids, key)
	}
	c.mu.Unlock()

	c.log.Debug("proxy collected", zap.Uint32("handle", uint32(arg.handle)))
	c.notify(Event{Type: EventCollected, Handle: arg.handle})
}
