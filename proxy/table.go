package proxy

import (
	"reflect"
	"weak"
)

// identity keys a native object by its dynamic type and address.
type identity struct {
	typ reflect.Type
	ptr uintptr
}

// identityOf returns the key for values with reference semantics.
// Struct values and basic types have no stable identity.
func identityOf(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	}
	return identity{}, false
}

type entry struct {
	ref    weak.Pointer[Proxy]
	pinned *Proxy // strong reference while the proxy holds script bindings
	key    identity
	valid  bool
}

// handleTable stores proxies by handle with free-list reuse. Callers
// hold the cache lock.
type handleTable struct {
	entries  []entry
	freeList []Handle
	live     int
}

func newHandleTable() handleTable {
	return handleTable{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

func (t *handleTable) insert(key identity, ref weak.Pointer[Proxy]) Handle {
	e := entry{
		ref:   ref,
		key:   key,
		valid: true,
	}
	t.live++

	if len(t.freeList) > 0 {
		handle := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[handle-1] = e
		return handle
	}

	t.entries = append(t.entries, e)
	return Handle(len(t.entries))
}

func (t *handleTable) at(handle Handle) *entry {
	if handle == 0 || int(handle) > len(t.entries) {
		return nil
	}
	e := &t.entries[handle-1]
	if !e.valid {
		return nil
	}
	return e
}

// get returns the live proxy for handle.
func (t *handleTable) get(handle Handle) (*Proxy, bool) {
	e := t.at(handle)
	if e == nil {
		return nil, false
	}
	p := e.ref.Value()
	return p, p != nil
}

func (t *handleTable) drop(handle Handle) (identity, bool) {
	e := t.at(handle)
	if e == nil {
		return identity{}, false
	}
	key := e.key
	*e = entry{}
	t.live--
	t.freeList = append(t.freeList, handle)
	return key, true
}

func (t *handleTable) each(fn func(Handle, *Proxy)) {
	for i := range t.entries {
		if !t.entries[i].valid {
			continue
		}
		if p := t.entries[i].ref.Value(); p != nil {
			fn(Handle(i+1), p)
		}
	}
}
