package meta

import (
	"reflect"

	"github.com/wippyai/luabridge/coerce"
)

// Filter decides whether a Go member is exposed by bulk registration.
// ok == false skips it; an empty exposed name means the casing policy
// derives one.
type Filter func(native string) (exposed string, ok bool)

// AllExported exposes every exported member under its policy name.
func AllExported(string) (string, bool) { return "", true }

// Option configures one declared member.
type Option func(*memberDecl)

// Name overrides the exposed name.
func Name(name string) Option {
	return func(m *memberDecl) { m.name = name }
}

// At places the member in an operator slot instead of INDEX.
func At(slot Slot) Option {
	return func(m *memberDecl) { m.slot = slot }
}

// Overridable marks a method as replaceable by script code. A method the
// Go type does not have becomes abstract: scripts must supply it.
func Overridable() Option {
	return func(m *memberDecl) { m.overridable = true }
}

// Hints sets the numeric hints of the leading parameters, for parameters
// typed as interfaces.
func Hints(h ...coerce.Hint) Option {
	return func(m *memberDecl) { m.hints = h }
}

type memberDecl struct {
	native      string
	name        string
	slot        Slot
	overridable bool
	hints       []coerce.Hint
}

func newMemberDecl(native string, opts []Option) memberDecl {
	m := memberDecl{native: native}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

type staticDecl struct {
	memberDecl
	fn any
}

type delegateDecl struct {
	helper  reflect.Type
	methods []memberDecl
}

// DelegateMethod selects one helper method for Decl.Delegate.
type DelegateMethod struct {
	decl memberDecl
}

// Use declares a helper method to expose through a delegate.
func Use(native string, opts ...Option) DelegateMethod {
	return DelegateMethod{decl: newMemberDecl(native, opts)}
}

// Decl declares how a Go type is exposed. Build it at startup and hand it
// to Registry.Register:
//
//	meta.For[Widget]().
//		Method("Describe").
//		Method("Describe", meta.At(meta.SlotToString)).
//		Method("Area", meta.Overridable()).
//		Field("Width", meta.Name("w"))
type Decl struct {
	typ       reflect.Type
	name      string
	members   []memberDecl
	fields    []memberDecl
	statics   []staticDecl
	delegates []delegateDecl
	extends   []reflect.Type
	filter    Filter
}

// For starts a declaration for T. Pointer types declare their element.
func For[T any]() *Decl {
	return ForType(reflect.TypeFor[T]())
}

// ForType starts a declaration for t.
func ForType(t reflect.Type) *Decl {
	return &Decl{typ: baseType(t)}
}

// Type returns the declared type.
func (d *Decl) Type() reflect.Type { return d.typ }

// Name overrides the exposed type name.
func (d *Decl) Name(name string) *Decl {
	d.name = name
	return d
}

// Method exposes the Go method native.
func (d *Decl) Method(native string, opts ...Option) *Decl {
	d.members = append(d.members, newMemberDecl(native, opts))
	return d
}

// Field exposes the Go struct field native. Promoted fields are found
// through embedding.
func (d *Decl) Field(native string, opts ...Option) *Decl {
	d.fields = append(d.fields, newMemberDecl(native, opts))
	return d
}

// Static exposes fn as a receiverless function of the type, such as a
// constructor.
func (d *Decl) Static(name string, fn any, opts ...Option) *Decl {
	d.statics = append(d.statics, staticDecl{memberDecl: newMemberDecl(name, opts), fn: fn})
	return d
}

// Delegate exposes methods implemented by helper on behalf of the type.
// With no methods listed every exported helper method is a candidate.
func (d *Decl) Delegate(helper reflect.Type, methods ...DelegateMethod) *Decl {
	dd := delegateDecl{helper: helper}
	for _, m := range methods {
		dd.methods = append(dd.methods, m.decl)
	}
	d.delegates = append(d.delegates, dd)
	return d
}

// Extends names ancestors that are not reachable through embedding.
func (d *Decl) Extends(types ...reflect.Type) *Decl {
	for _, t := range types {
		d.extends = append(d.extends, baseType(t))
	}
	return d
}

// Filter exposes every exported method and field accepted by f, in
// addition to the explicitly declared members.
func (d *Decl) Filter(f Filter) *Decl {
	d.filter = f
	return d
}

// Exported is Filter(AllExported).
func (d *Decl) Exported() *Decl {
	return d.Filter(AllExported)
}

func baseType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// methodSet returns the type whose method set holds every method callable
// on an addressable value of t.
func methodSet(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Interface {
		return t
	}
	return reflect.PointerTo(t)
}
