package meta

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/wippyai/luabridge/binding"
	"github.com/wippyai/luabridge/errors"
)

// Member is one exposed method.
type Member struct {
	NativeID    string
	Name        string
	Slot        Slot
	Overridable bool
	Binding     *binding.Binding // nil for abstract members
	Owner       reflect.Type     // type whose declaration introduced it
}

// Abstract reports whether the member has no Go implementation.
func (m *Member) Abstract() bool { return m.Binding == nil }

// Field is one exposed struct field.
type Field struct {
	NativeID string
	Name     string
	Type     reflect.Type
	Index    []int
	Owner    reflect.Type
}

// Get reads the field from obj, which may be a struct or a pointer to one.
func (f *Field) Get(obj reflect.Value) (reflect.Value, error) {
	obj = reflect.Indirect(obj)
	v, err := obj.FieldByIndexErr(f.Index)
	if err != nil {
		return reflect.Value{}, errors.Wrap(errors.PhaseInvoke, errors.KindUnsupported, err,
			fmt.Sprintf("read field %s", f.Name))
	}
	return v, nil
}

// Set writes v into the field. obj must be a pointer so the field is
// addressable.
func (f *Field) Set(obj, v reflect.Value) error {
	obj = reflect.Indirect(obj)
	fv, err := obj.FieldByIndexErr(f.Index)
	if err != nil {
		return errors.Wrap(errors.PhaseInvoke, errors.KindUnsupported, err,
			fmt.Sprintf("write field %s", f.Name))
	}
	if !fv.CanSet() {
		return errors.Unsupported(errors.PhaseInvoke,
			fmt.Sprintf("field %s of a non-addressable %s", f.Name, obj.Type()))
	}
	fv.Set(v)
	return nil
}

// TypeDescriptor describes how one Go type is exposed. It is immutable
// once the registry returns it.
type TypeDescriptor struct {
	id       uint32
	typ      reflect.Type
	name     string
	index    map[string]*Member
	slots    map[Slot]*Member
	fields   map[string]*Field
	statics  map[string]*Member
	byNative map[string][]*Member
}

func newDescriptor(id uint32, t reflect.Type, name string) *TypeDescriptor {
	return &TypeDescriptor{
		id:      id,
		typ:     t,
		name:    name,
		index:   make(map[string]*Member),
		slots:   make(map[Slot]*Member),
		fields:  make(map[string]*Field),
		statics: make(map[string]*Member),
	}
}

// ID returns the registry-assigned identifier, never zero.
func (td *TypeDescriptor) ID() uint32 { return td.id }

// Type returns the described type. Pointers are described by their
// element type.
func (td *TypeDescriptor) Type() reflect.Type { return td.typ }

// Name returns the exposed type name.
func (td *TypeDescriptor) Name() string { return td.name }

// Index returns the INDEX member exposed under name.
func (td *TypeDescriptor) Index(name string) (*Member, bool) {
	m, ok := td.index[name]
	return m, ok
}

// Slot returns the member occupying an operator slot.
func (td *TypeDescriptor) Slot(s Slot) (*Member, bool) {
	m, ok := td.slots[s]
	return m, ok
}

// Field returns the field exposed under name.
func (td *TypeDescriptor) Field(name string) (*Field, bool) {
	f, ok := td.fields[name]
	return f, ok
}

// Static returns the static function exposed under name.
func (td *TypeDescriptor) Static(name string) (*Member, bool) {
	m, ok := td.statics[name]
	return m, ok
}

// Member returns the member bound to a Go method name, preferring its
// INDEX entry when it also occupies operator slots.
func (td *TypeDescriptor) Member(nativeID string) (*Member, bool) {
	ms := td.byNative[nativeID]
	if len(ms) == 0 {
		return nil, false
	}
	return ms[0], true
}

// ExposedName maps a Go method name to its INDEX name.
func (td *TypeDescriptor) ExposedName(nativeID string) (string, bool) {
	for _, m := range td.byNative[nativeID] {
		if m.Slot == SlotIndex {
			return m.Name, true
		}
	}
	return "", false
}

// Members lists the INDEX members sorted by exposed name.
func (td *TypeDescriptor) Members() []*Member {
	return sortedMembers(td.index)
}

// Statics lists the static functions sorted by exposed name.
func (td *TypeDescriptor) Statics() []*Member {
	return sortedMembers(td.statics)
}

// Slots lists the occupied operator slots in slot order.
func (td *TypeDescriptor) Slots() []Slot {
	out := make([]Slot, 0, len(td.slots))
	for s := range td.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fields lists the fields sorted by exposed name.
func (td *TypeDescriptor) Fields() []*Field {
	out := make([]*Field, 0, len(td.fields))
	for _, f := range td.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedMembers(m map[string]*Member) []*Member {
	out := make([]*Member, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// owner returns the member currently holding m's name or slot.
func (td *TypeDescriptor) owner(m *Member) *Member {
	if m.Slot == SlotIndex {
		return td.index[m.Name]
	}
	return td.slots[m.Slot]
}

func (td *TypeDescriptor) put(m *Member) {
	if m.Slot == SlotIndex {
		td.index[m.Name] = m
		return
	}
	td.slots[m.Slot] = m
}

func (td *TypeDescriptor) evict(m *Member) {
	if m.Slot == SlotIndex {
		if td.index[m.Name] == m {
			delete(td.index, m.Name)
		}
		return
	}
	if td.slots[m.Slot] == m {
		delete(td.slots, m.Slot)
	}
}

// inheritedByNative returns the members with the given Go name that were
// introduced by a type other than td's.
func (td *TypeDescriptor) inheritedByNative(nativeID string) []*Member {
	var out []*Member
	for _, m := range td.index {
		if m.NativeID == nativeID && m.Owner != td.typ {
			out = append(out, m)
		}
	}
	for _, m := range td.slots {
		if m.NativeID == nativeID && m.Owner != td.typ {
			out = append(out, m)
		}
	}
	return out
}

// seal builds the Go-name lookup table once registration is done.
func (td *TypeDescriptor) seal() {
	td.byNative = make(map[string][]*Member)
	for _, m := range td.Members() {
		td.byNative[m.NativeID] = append(td.byNative[m.NativeID], m)
	}
	for _, s := range td.Slots() {
		m := td.slots[s]
		td.byNative[m.NativeID] = append(td.byNative[m.NativeID], m)
	}
}
