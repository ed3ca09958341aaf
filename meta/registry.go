package meta

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/naming"
)

// Registry builds and caches type descriptors. Registration is an init
// phase: complete it before scripts run. Lookups are safe for concurrent
// use.
type Registry struct {
	mu     sync.RWMutex
	policy naming.Policy
	log    *zap.Logger
	decls  map[reflect.Type]*Decl
	types  map[reflect.Type]*TypeDescriptor
	names  map[string]*TypeDescriptor
	nextID uint32
}

// NewRegistry creates an empty registry. log may be nil.
func NewRegistry(policy naming.Policy, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		policy: policy,
		log:    log,
		decls:  make(map[reflect.Type]*Decl),
		types:  make(map[reflect.Type]*TypeDescriptor),
		names:  make(map[string]*TypeDescriptor),
	}
}

// Policy returns the casing policy applied to exposed names.
func (r *Registry) Policy() naming.Policy { return r.policy }

// Declare records d without building it. The type becomes an ancestor
// candidate: types embedding it fail to register until it is built.
func (r *Registry) Declare(d *Decl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decls[d.typ] = d
}

// Register declares and builds d. Registering an already built type
// returns the existing descriptor.
func (r *Registry) Register(d *Decl) (*TypeDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if td, ok := r.types[d.typ]; ok {
		return td, nil
	}
	r.decls[d.typ] = d
	return r.build(d)
}

// RegisterType builds a previously declared type.
func (r *Registry) RegisterType(t reflect.Type) (*TypeDescriptor, error) {
	t = baseType(t)
	r.mu.Lock()
	defer r.mu.Unlock()

	if td, ok := r.types[t]; ok {
		return td, nil
	}
	d, ok := r.decls[t]
	if !ok {
		return nil, errors.NotFound(errors.PhaseRegister, "declaration for", t.String())
	}
	return r.build(d)
}

// RegisterFiltered exposes the exported methods and fields of t accepted
// by f, with no per-member declarations.
func (r *Registry) RegisterFiltered(t reflect.Type, f Filter) (*TypeDescriptor, error) {
	if f == nil {
		f = AllExported
	}
	return r.Register(ForType(t).Filter(f))
}

// Lookup returns the descriptor of t, trying the element type of
// pointers.
func (r *Registry) Lookup(t reflect.Type) (*TypeDescriptor, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(t)
}

func (r *Registry) lookup(t reflect.Type) (*TypeDescriptor, bool) {
	if td, ok := r.types[t]; ok {
		return td, true
	}
	if t.Kind() == reflect.Pointer {
		td, ok := r.types[t.Elem()]
		return td, ok
	}
	return nil, false
}

// Named returns the descriptor exposed under name.
func (r *Registry) Named(name string) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	td, ok := r.names[name]
	return td, ok
}

// DisplayName returns the exposed name of a registered type.
func (r *Registry) DisplayName(t reflect.Type) (string, bool) {
	td, ok := r.Lookup(t)
	if !ok {
		return "", false
	}
	return td.name, true
}

// FallbackName names an unregistered type through the class policy.
func (r *Registry) FallbackName(t reflect.Type) string {
	return r.policy.ClassName(typeName(baseType(t)), "")
}

// Types lists the built descriptors in registration order.
func (r *Registry) Types() []*TypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TypeDescriptor, 0, len(r.types))
	for _, td := range r.types {
		out = append(out, td)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *Registry) build(d *Decl) (*TypeDescriptor, error) {
	t := d.typ
	if t == nil || t.Kind() == reflect.Interface {
		return nil, errors.InvalidInput(errors.PhaseRegister, fmt.Sprintf("cannot expose %v: need a concrete type", t))
	}

	ancestors, err := r.ancestors(d)
	if err != nil {
		return nil, err
	}

	td := newDescriptor(0, t, r.policy.ClassName(typeName(t), d.name))
	b := &builder{
		policy: r.policy,
		decl:   d,
		td:     td,
		mset:   methodSet(t),
		log:    r.log.With(zap.String("type", td.name)),
	}
	for _, a := range ancestors {
		b.inherit(a)
	}
	if err := b.build(); err != nil {
		return nil, err
	}
	td.seal()

	r.nextID++
	td.id = r.nextID
	r.types[t] = td
	if prev, ok := r.names[td.name]; ok {
		r.log.Warn("exposed type name reused",
			zap.String("name", td.name),
			zap.Stringer("previous", prev.typ),
			zap.Stringer("type", t))
	}
	r.names[td.name] = td

	r.log.Debug("type registered",
		zap.String("type", td.name),
		zap.Uint32("id", td.id),
		zap.Int("ancestors", len(ancestors)),
		zap.Int("members", len(td.index)),
		zap.Int("slots", len(td.slots)),
		zap.Int("fields", len(td.fields)))
	return td, nil
}

// ancestors collects the nearest exposed types embedded in d's type, in
// field order, followed by explicit Extends entries. Each built ancestor
// already carries its own ancestry, so deeper types are visited only
// through embedded types that are not exposed themselves.
func (r *Registry) ancestors(d *Decl) ([]*TypeDescriptor, error) {
	var out []*TypeDescriptor
	seen := map[reflect.Type]bool{d.typ: true}

	add := func(t reflect.Type) (bool, error) {
		if td, ok := r.types[t]; ok {
			out = append(out, td)
			return true, nil
		}
		if _, ok := r.decls[t]; ok {
			return false, errors.UnregisteredParent(t.String(), d.typ.String())
		}
		return false, nil
	}

	var visit func(t reflect.Type) error
	visit = func(t reflect.Type) error {
		if t.Kind() != reflect.Struct {
			return nil
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := baseType(f.Type)
			if seen[ft] {
				continue
			}
			seen[ft] = true
			found, err := add(ft)
			if err != nil {
				return err
			}
			if !found {
				if err := visit(ft); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := visit(d.typ); err != nil {
		return nil, err
	}
	for _, t := range d.extends {
		if seen[t] {
			continue
		}
		seen[t] = true
		found, err := add(t)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.UnregisteredParent(t.String(), d.typ.String())
		}
	}
	return out, nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
