package luabridge

import (
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/luabridge/coerce"
	"github.com/wippyai/luabridge/config"
	"github.com/wippyai/luabridge/dispatch"
	"github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/meta"
	"github.com/wippyai/luabridge/naming"
	"github.com/wippyai/luabridge/proxy"
)

// Bridge owns the registry, coercion engine, proxy cache and dispatcher
// shared by every Env created from it. Register types during startup,
// before any object crosses into a script.
type Bridge struct {
	reg   *meta.Registry
	eng   *coerce.Engine
	cache *proxy.Cache
	disp  *dispatch.Dispatcher
	log   *zap.Logger
	cfg   *config.Config

	mu      sync.RWMutex
	catalog map[string]reflect.Type
}

// New creates a bridge.
func New(opts ...Option) (*Bridge, error) {
	o := options{
		policy:  naming.Default(),
		metakey: true,
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.log == nil {
		o.log = Logger()
	}

	reg := meta.NewRegistry(o.policy, o.log.Named("meta"))
	eng := coerce.New(reg)
	cache := proxy.NewCache(reg, eng, o.log.Named("proxy"))
	cache.SetTypeMetakey(o.metakey)
	eng.SetWrapper(cache)

	return &Bridge{
		reg:     reg,
		eng:     eng,
		cache:   cache,
		disp:    dispatch.New(cache, o.log.Named("dispatch")),
		log:     o.log,
		cfg:     o.cfg,
		catalog: make(map[string]reflect.Type),
	}, nil
}

// Register builds descriptors for decls in order. All of decls are
// declared first, so a parent listed after a type embedding it fails that
// type with an unregistered parent error. Every failure is reported; the
// successful declarations stay registered.
func (b *Bridge) Register(decls ...*meta.Decl) error {
	for _, d := range decls {
		b.reg.Declare(d)
	}
	var errs error
	for _, d := range decls {
		td, err := b.reg.Register(d)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		b.log.Debug("type registered", zap.String("type", td.Name()), zap.Uint32("id", td.ID()))
	}
	return errs
}

// RegisterFiltered registers t with every exported method and field
// accepted by f.
func (b *Bridge) RegisterFiltered(t reflect.Type, f meta.Filter) (*meta.TypeDescriptor, error) {
	return b.reg.RegisterFiltered(t, f)
}

// Catalog makes t known under name. When the configuration has a bulk
// rule for name the type is registered through it right away.
func (b *Bridge) Catalog(name string, t reflect.Type) (*meta.TypeDescriptor, error) {
	if name == "" || t == nil {
		return nil, errors.InvalidInput(errors.PhaseRegister, "catalog entry needs a name and a type")
	}
	b.mu.Lock()
	b.catalog[name] = t
	b.mu.Unlock()

	if b.cfg == nil {
		return nil, nil
	}
	rule, ok := b.cfg.Rule(name)
	if !ok {
		return nil, nil
	}
	b.log.Debug("bulk rule applied", zap.String("catalog", name))
	return b.reg.RegisterFiltered(t, rule.Filter())
}

// Cataloged returns the type registered under a catalog name.
func (b *Bridge) Cataloged(name string) (reflect.Type, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.catalog[name]
	return t, ok
}

// Descriptor returns the descriptor of t.
func (b *Bridge) Descriptor(t reflect.Type) (*meta.TypeDescriptor, bool) {
	return b.reg.Lookup(t)
}

// Wrap returns the proxy of obj, the same one for as long as it lives.
func (b *Bridge) Wrap(obj any) *proxy.Proxy { return b.cache.Wrap(obj) }

// Unwrap returns the object behind p.
func (b *Bridge) Unwrap(p *proxy.Proxy) any { return proxy.Unwrap(p) }

// Invalidate tells the bridge that the host destroyed obj. Scripts that
// still hold it get an error on use.
func (b *Bridge) Invalidate(obj any) bool { return b.cache.Invalidate(obj) }

// Registry returns the type registry.
func (b *Bridge) Registry() *meta.Registry { return b.reg }

// Engine returns the coercion engine.
func (b *Bridge) Engine() *coerce.Engine { return b.eng }

// Cache returns the proxy cache.
func (b *Bridge) Cache() *proxy.Cache { return b.cache }

// Dispatcher returns the override dispatcher.
func (b *Bridge) Dispatcher() *dispatch.Dispatcher { return b.disp }

// Override runs the script override of name on self or the host default.
// Override-capable methods call it first thing:
//
//	func (s *Shape) Area() (float64, error) {
//		return luabridge.Override(bridge, s, "Area", func() (float64, error) {
//			return s.W * s.H, nil
//		})
//	}
func Override[R any](b *Bridge, self any, name string, def func() (R, error), args ...any) (R, error) {
	return dispatch.Call(b.disp, self, name, def, args...)
}

// OverrideRun is Override for methods without a result.
func OverrideRun(b *Bridge, self any, name string, def func() error, args ...any) error {
	return dispatch.Run(b.disp, self, name, def, args...)
}
