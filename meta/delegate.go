package meta

import (
	"fmt"
	"reflect"

	"github.com/wippyai/luabridge/binding"
	"github.com/wippyai/luabridge/errors"
)

// delegate exposes the methods of a helper type on behalf of the target.
// A helper method whose signature matches a target method of the same name
// binds the target's method. Any other helper method is called with the
// target as its first argument.
func (b *builder) delegate(dd delegateDecl) error {
	helper := dd.helper
	base := baseType(helper)
	if base == nil || base.Kind() != reflect.Struct {
		return errors.InvalidDelegate(fmt.Sprint(helper),
			fmt.Sprintf("helper for %s must be a struct or pointer to struct", b.td.name))
	}
	inst := reflect.New(base)
	if helper.Kind() != reflect.Pointer {
		inst = inst.Elem()
	}
	it := inst.Type()

	candidates := dd.methods
	if len(candidates) == 0 {
		for i := 0; i < it.NumMethod(); i++ {
			candidates = append(candidates, memberDecl{native: it.Method(i).Name})
		}
	}

	for _, md := range candidates {
		hm, ok := it.MethodByName(md.native)
		if !ok {
			return errors.NotFound(errors.PhaseRegister, "delegate method", base.String()+"."+md.native)
		}

		var bd *binding.Binding
		if tm, ok := b.mset.MethodByName(md.native); ok && sameSignature(hm.Type, tm.Type) {
			bd, _ = binding.ForMethod(b.mset, md.native)
		} else {
			var err error
			if bd, err = binding.ForDelegate(inst, hm, b.mset); err != nil {
				return err
			}
		}
		if len(md.hints) > 0 {
			bd = bd.WithHints(md.hints...)
		}
		b.install(&Member{
			NativeID:    md.native,
			Name:        b.policy.MemberName(md.native, md.name),
			Slot:        md.slot,
			Overridable: md.overridable,
			Binding:     bd,
			Owner:       b.td.typ,
		})
	}
	return nil
}

// sameSignature compares two method types ignoring their receivers.
func sameSignature(a, b reflect.Type) bool {
	if a.NumIn() != b.NumIn() || a.NumOut() != b.NumOut() || a.IsVariadic() != b.IsVariadic() {
		return false
	}
	for i := 1; i < a.NumIn(); i++ {
		if a.In(i) != b.In(i) {
			return false
		}
	}
	for i := 0; i < a.NumOut(); i++ {
		if a.Out(i) != b.Out(i) {
			return false
		}
	}
	return true
}
