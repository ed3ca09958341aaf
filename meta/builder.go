package meta

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/luabridge/binding"
	"github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/naming"
)

// builder resolves one declaration into a descriptor. Members apply in
// this order, later entries winning name and slot collisions: inherited,
// bulk-discovered methods, declared methods, delegate methods, then
// fields and statics.
type builder struct {
	policy naming.Policy
	decl   *Decl
	td     *TypeDescriptor
	mset   reflect.Type
	log    *zap.Logger
}

func (b *builder) build() error {
	declared := make(map[string]bool, len(b.decl.members))
	for _, md := range b.decl.members {
		declared[md.native] = true
	}

	if b.decl.filter != nil {
		b.bulkMethods(declared)
	}
	for _, md := range b.decl.members {
		m, err := b.member(md)
		if err != nil {
			return err
		}
		b.install(m)
	}
	for _, dd := range b.decl.delegates {
		if err := b.delegate(dd); err != nil {
			return err
		}
	}

	if b.decl.filter != nil {
		b.bulkFields()
	}
	for _, fd := range b.decl.fields {
		f, err := b.field(fd)
		if err != nil {
			return err
		}
		b.installField(f)
	}

	for _, sd := range b.decl.statics {
		bd, err := binding.ForFunc(sd.native, sd.fn)
		if err != nil {
			return err
		}
		if len(sd.hints) > 0 {
			bd = bd.WithHints(sd.hints...)
		}
		name := b.policy.MemberName(sd.native, sd.name)
		if _, dup := b.td.statics[name]; dup {
			b.log.Warn("static name collision", zap.String("name", name))
		}
		b.td.statics[name] = &Member{NativeID: sd.native, Name: name, Binding: bd, Owner: b.td.typ}
	}
	return nil
}

// inherit merges an ancestor's members and fields, resolving instance
// bindings against the child so that its own methods shadow promoted ones.
func (b *builder) inherit(a *TypeDescriptor) {
	members := a.Members()
	for _, s := range a.Slots() {
		members = append(members, a.slots[s])
	}
	for _, m := range members {
		c := *m
		if m.Binding != nil {
			nb, ok := m.Binding.Rebind(b.mset)
			if !ok {
				b.log.Debug("inherited member not callable on child",
					zap.String("ancestor", a.name),
					zap.String("member", m.NativeID))
				continue
			}
			c.Binding = nb
		}
		if old := b.td.owner(&c); old != nil {
			b.log.Debug("inherited member replaced by later ancestor",
				zap.String("name", old.Name),
				zap.String("ancestor", a.name))
			b.td.evict(old)
		}
		b.td.put(&c)
	}

	if b.td.typ.Kind() != reflect.Struct {
		return
	}
	for _, f := range a.Fields() {
		sf, ok := b.td.typ.FieldByName(f.NativeID)
		if !ok {
			continue
		}
		c := *f
		c.Index = sf.Index
		c.Type = sf.Type
		b.td.fields[c.Name] = &c
	}
}

func (b *builder) member(md memberDecl) (*Member, error) {
	m := &Member{
		NativeID:    md.native,
		Name:        b.policy.MemberName(md.native, md.name),
		Slot:        md.slot,
		Overridable: md.overridable,
		Owner:       b.td.typ,
	}
	bd, ok := binding.ForMethod(b.mset, md.native)
	if !ok {
		if !md.overridable {
			return nil, errors.NotFound(errors.PhaseRegister, "method", typeName(b.td.typ)+"."+md.native)
		}
		b.log.Debug("abstract member declared", zap.String("member", md.native))
		return m, nil
	}
	if len(md.hints) > 0 {
		bd = bd.WithHints(md.hints...)
	}
	m.Binding = bd
	return m, nil
}

// install places m, evicting inherited members with the same Go name and
// whatever member currently holds m's name or slot. A method also wins
// over a field exposed under the same name.
func (b *builder) install(m *Member) {
	td := b.td
	for _, old := range td.inheritedByNative(m.NativeID) {
		td.evict(old)
		b.log.Debug("inherited member overridden",
			zap.String("member", old.NativeID),
			zap.String("name", old.Name),
			zap.Stringer("slot", old.Slot))
	}
	if old := td.owner(m); old != nil {
		if old.Owner == td.typ && old.NativeID != m.NativeID {
			b.log.Warn("exposed name collision",
				zap.String("name", m.Name),
				zap.Stringer("slot", m.Slot),
				zap.String("replaced", old.NativeID),
				zap.String("by", m.NativeID))
		}
		td.evict(old)
	}
	if m.Slot == SlotIndex {
		if f, ok := td.fields[m.Name]; ok {
			b.log.Debug("field displaced by method", zap.String("name", m.Name), zap.String("field", f.NativeID))
			delete(td.fields, m.Name)
		}
	}
	td.put(m)
}

// installField places f unless a method already holds its name.
func (b *builder) installField(f *Field) {
	td := b.td
	if m, ok := td.index[f.Name]; ok {
		b.log.Debug("field not bound: name held by method",
			zap.String("name", f.Name),
			zap.String("field", f.NativeID),
			zap.String("method", m.NativeID))
		return
	}
	for name, old := range td.fields {
		if old.NativeID == f.NativeID && old.Owner != td.typ {
			delete(td.fields, name)
		}
	}
	if old, ok := td.fields[f.Name]; ok && old.Owner == td.typ && old.NativeID != f.NativeID {
		b.log.Warn("exposed name collision",
			zap.String("name", f.Name),
			zap.String("replaced", old.NativeID),
			zap.String("by", f.NativeID))
	}
	td.fields[f.Name] = f
}

func (b *builder) field(fd memberDecl) (*Field, error) {
	t := b.td.typ
	if t.Kind() != reflect.Struct {
		return nil, errors.InvalidInput(errors.PhaseRegister,
			fmt.Sprintf("field %s declared on non-struct type %s", fd.native, t))
	}
	sf, ok := t.FieldByName(fd.native)
	if !ok || !sf.IsExported() {
		return nil, errors.NotFound(errors.PhaseRegister, "field", typeName(t)+"."+fd.native)
	}
	return &Field{
		NativeID: fd.native,
		Name:     b.policy.MemberName(fd.native, fd.name),
		Type:     sf.Type,
		Index:    sf.Index,
		Owner:    t,
	}, nil
}

// bulkMethods exposes the filtered exported methods, in reflect's
// lexicographic order, skipping explicitly declared ones.
func (b *builder) bulkMethods(declared map[string]bool) {
	for i := 0; i < b.mset.NumMethod(); i++ {
		name := b.mset.Method(i).Name
		if declared[name] {
			continue
		}
		exposed, ok := b.decl.filter(name)
		if !ok {
			continue
		}
		bd, _ := binding.ForMethod(b.mset, name)
		b.install(&Member{
			NativeID: name,
			Name:     b.policy.MemberName(name, exposed),
			Binding:  bd,
			Owner:    b.td.typ,
		})
	}
}

func (b *builder) bulkFields() {
	t := b.td.typ
	if t.Kind() != reflect.Struct {
		return
	}
	declared := make(map[string]bool, len(b.decl.fields))
	for _, fd := range b.decl.fields {
		declared[fd.native] = true
	}
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() || declared[sf.Name] {
			continue
		}
		exposed, ok := b.decl.filter(sf.Name)
		if !ok {
			continue
		}
		b.installField(&Field{
			NativeID: sf.Name,
			Name:     b.policy.MemberName(sf.Name, exposed),
			Type:     sf.Type,
			Index:    sf.Index,
			Owner:    t,
		})
	}
}
