package dispatch

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/proxy"
)

// Dispatcher decides, for an override-capable Go method, whether a script
// replaced it on the receiver's proxy.
type Dispatcher struct {
	cache *proxy.Cache
	log   *zap.Logger
}

// New creates a dispatcher over the proxies of c. log may be nil.
func New(c *proxy.Cache, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{cache: c, log: log}
}

// Override is a script function bound to a member of one proxy.
type Override struct {
	Proxy *proxy.Proxy
	Key   string
	Fn    *lua.LFunction
	State *lua.LState
}

// Lookup returns the script override for name on self. name is either the
// Go method name or the exposed name. An override is ignored while its
// host implementation runs through the placeholder, so the script can call
// the original.
func (d *Dispatcher) Lookup(self any, name string) (Override, bool) {
	p, ok := d.cache.Lookup(self)
	if !ok || !p.Valid() {
		return Override{}, false
	}
	key := keyFor(p, name)
	if p.InNative(key) {
		return Override{}, false
	}
	fn, L, ok := p.Override(key)
	if !ok || L == nil {
		return Override{}, false
	}
	return Override{Proxy: p, Key: key, Fn: fn, State: L}, true
}

// Call runs the script override of name on self, or def when there is
// none. The override receives the proxy followed by args; its first result
// is converted to R.
func Call[R any](d *Dispatcher, self any, name string, def func() (R, error), args ...any) (R, error) {
	var zero R
	o, ok := d.Lookup(self, name)
	if !ok {
		if def == nil {
			return zero, d.unimplemented(self, name)
		}
		return def()
	}

	rets, err := d.invoke(o, 1, args)
	if err != nil {
		return zero, err
	}
	v, err := d.cache.Engine().ToNative(o.State, rets[0], reflect.TypeFor[R]())
	if err != nil {
		if be, ok := errors.As(err); ok && len(be.Path) == 0 {
			be.Path = []string{o.Proxy.Name(), o.Key, "result"}
		}
		return zero, err
	}
	r, _ := v.Interface().(R)
	return r, nil
}

// Run is Call for methods without a result.
func Run(d *Dispatcher, self any, name string, def func() error, args ...any) error {
	o, ok := d.Lookup(self, name)
	if !ok {
		if def == nil {
			return d.unimplemented(self, name)
		}
		return def()
	}
	_, err := d.invoke(o, 0, args)
	return err
}

func (d *Dispatcher) invoke(o Override, nret int, args []any) ([]lua.LValue, error) {
	L := o.State
	if cur := L.G.CurrentThread; cur != nil && !cur.Dead {
		L = cur
	}
	e := d.cache.Engine()

	params := make([]lua.LValue, 0, len(args)+1)
	params = append(params, d.cache.View(L, o.Proxy))
	for i, a := range args {
		lv, err := e.ToForeignExact(L, a)
		if err != nil {
			if be, ok := errors.As(err); ok && len(be.Path) == 0 {
				be.Path = []string{o.Proxy.Name(), o.Key, fmt.Sprintf("argument %d", i+1)}
			}
			return nil, err
		}
		params = append(params, lv)
	}

	d.log.Debug("dispatching to script override",
		zap.String("type", o.Proxy.Name()),
		zap.String("member", o.Key))

	if err := L.CallByParam(lua.P{Fn: o.Fn, NRet: nret, Protect: true}, params...); err != nil {
		return nil, proxy.Unraise(err)
	}
	rets := make([]lua.LValue, nret)
	for i := range nret {
		rets[i] = L.Get(i - nret)
	}
	L.Pop(nret)
	return rets, nil
}

func (d *Dispatcher) unimplemented(self any, name string) error {
	if self == nil {
		return errors.UnimplementedOverride("nil", name)
	}
	typeName := d.cache.Registry().FallbackName(reflect.TypeOf(self))
	key := name
	if p, ok := d.cache.Lookup(self); ok {
		typeName = p.Name()
		key = keyFor(p, name)
	} else if td, ok := d.cache.Registry().Lookup(reflect.TypeOf(self)); ok {
		typeName = td.Name()
		if m, ok := td.Member(name); ok {
			key = proxy.KeyOf(m)
		}
	}
	return errors.UnimplementedOverride(typeName, key)
}

// keyFor maps a Go method name to the member's assignment key. Exposed
// names pass through.
func keyFor(p *proxy.Proxy, name string) string {
	td := p.Descriptor()
	if td == nil {
		return name
	}
	if m, ok := td.Member(name); ok {
		return proxy.KeyOf(m)
	}
	return name
}
