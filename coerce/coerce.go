// Package coerce converts values between Go and gopher-lua.
//
// Primitives map onto Lua primitives, slices, arrays and maps onto tables,
// and every other value is handed to an ObjectWrapper which produces the
// script-visible proxy. The reverse direction is driven by the static Go
// type of the destination, with a Hint narrowing numbers for untyped
// (interface) destinations.
package coerce

import (
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabridge/errors"
)

// ObjectWrapper turns opaque Go values into Lua values and back.
type ObjectWrapper interface {
	// ForeignObject returns the Lua value standing for v in L.
	ForeignObject(L *lua.LState, v any) lua.LValue
	// NativeObject returns the Go value behind lv if lv wraps one.
	NativeObject(lv lua.LValue) (any, bool)
}

// TypeNamer reports the exposed name of a registered Go type.
type TypeNamer interface {
	DisplayName(t reflect.Type) (string, bool)
}

var (
	lvalueType = reflect.TypeFor[lua.LValue]()
	errorType  = reflect.TypeFor[error]()
)

// Engine performs the conversions. It is safe for concurrent use as long
// as each *lua.LState is driven by one goroutine.
type Engine struct {
	wrapper ObjectWrapper
	namer   TypeNamer
}

// New creates an engine. namer may be nil.
func New(namer TypeNamer) *Engine {
	return &Engine{namer: namer}
}

// SetWrapper installs the object wrapper. Without one, opaque values
// travel as bare userdata.
func (e *Engine) SetWrapper(w ObjectWrapper) {
	e.wrapper = w
}

// ToForeign converts a Go value into a Lua value. L is needed for tables
// and objects; primitives convert without it. Lua numbers are float64, so
// integers beyond 2^53 are rounded; ToForeignExact rejects them instead.
func (e *Engine) ToForeign(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case []byte:
		if x == nil {
			return lua.LNil
		}
		return lua.LString(x)
	}
	return e.ValueToForeign(L, reflect.ValueOf(v))
}

// ValueToForeign is ToForeign for a reflect.Value.
func (e *Engine) ValueToForeign(L *lua.LState, rv reflect.Value) lua.LValue {
	if !rv.IsValid() {
		return lua.LNil
	}
	t := rv.Type()
	if nilable(rv.Kind()) && rv.IsNil() {
		return lua.LNil
	}
	if t.Implements(lvalueType) {
		return rv.Interface().(lua.LValue)
	}
	if rv.Kind() == reflect.Interface {
		return e.ValueToForeign(L, rv.Elem())
	}
	if t.PkgPath() != "" && e.registered(t) {
		return e.object(L, rv.Interface())
	}

	switch rv.Kind() {
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return lua.LString(rv.Bytes())
		}
		return e.sequence(L, rv)
	case reflect.Array:
		return e.sequence(L, rv)
	case reflect.Map:
		tb := L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := e.ValueToForeign(L, iter.Key())
			if k == lua.LNil {
				continue
			}
			tb.RawSet(k, e.ValueToForeign(L, iter.Value()))
		}
		return tb
	}
	return e.object(L, rv.Interface())
}

// maxExact is the largest magnitude an integer keeps as a Lua number.
const maxExact = 1 << 53

// ToForeignExact is ToForeign that fails with KindTypeMismatch instead of
// rounding an integer, or an integer nested in a slice, array or map, that
// a Lua number cannot hold.
func (e *Engine) ToForeignExact(L *lua.LState, v any) (lua.LValue, error) {
	return e.ValueToForeignExact(L, reflect.ValueOf(v))
}

// ValueToForeignExact is ToForeignExact for a reflect.Value.
func (e *Engine) ValueToForeignExact(L *lua.LState, rv reflect.Value) (lua.LValue, error) {
	if err := e.exact(rv); err != nil {
		return lua.LNil, err
	}
	return e.ValueToForeign(L, rv), nil
}

func (e *Engine) exact(rv reflect.Value) error {
	if !rv.IsValid() {
		return nil
	}
	t := rv.Type()
	if t.Implements(lvalueType) || (t.PkgPath() != "" && e.registered(t)) {
		return nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int64:
		if n := rv.Int(); n > maxExact || n < -maxExact {
			return e.inexact(rv)
		}
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		if rv.Uint() > maxExact {
			return e.inexact(rv)
		}
	case reflect.Interface:
		if !rv.IsNil() {
			return e.exact(rv.Elem())
		}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := e.exact(rv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if err := e.exact(iter.Key()); err != nil {
				return err
			}
			if err := e.exact(iter.Value()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) inexact(rv reflect.Value) *errors.Error {
	return errors.New(errors.PhaseCoerce, errors.KindTypeMismatch).
		Expected("number").
		Given(rv.Type().String()).
		Value(rv.Interface()).
		Detail("%v exceeds the exact integer range of a Lua number", rv.Interface()).
		Build()
}

func (e *Engine) sequence(L *lua.LState, rv reflect.Value) *lua.LTable {
	n := rv.Len()
	tb := L.CreateTable(n, 0)
	for i := 0; i < n; i++ {
		tb.RawSetInt(i+1, e.ValueToForeign(L, rv.Index(i)))
	}
	return tb
}

func (e *Engine) object(L *lua.LState, v any) lua.LValue {
	if e.wrapper != nil {
		return e.wrapper.ForeignObject(L, v)
	}
	ud := L.NewUserData()
	ud.Value = v
	return ud
}

// NativeObject returns the Go value wrapped by lv, if any.
func (e *Engine) NativeObject(lv lua.LValue) (any, bool) {
	if e.wrapper != nil {
		return e.wrapper.NativeObject(lv)
	}
	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	return ud.Value, true
}

func (e *Engine) registered(t reflect.Type) bool {
	if e.namer == nil {
		return false
	}
	_, ok := e.namer.DisplayName(t)
	return ok
}

// ToNative converts lv into a value of type t.
func (e *Engine) ToNative(L *lua.LState, lv lua.LValue, t reflect.Type) (reflect.Value, error) {
	return e.ToNativeHint(L, lv, t, HintNone)
}

// ToNativeHint converts lv into a value of type t. The hint only matters
// for numbers headed into an interface-typed destination.
func (e *Engine) ToNativeHint(L *lua.LState, lv lua.LValue, t reflect.Type, hint Hint) (reflect.Value, error) {
	if lv == nil || lv == lua.LNil {
		return reflect.Zero(t), nil
	}

	anyTarget := t.Kind() == reflect.Interface && t.NumMethod() == 0
	if !anyTarget && reflect.TypeOf(lv).AssignableTo(t) {
		return reflect.ValueOf(lv), nil
	}

	if _, ok := lv.(*lua.LUserData); ok {
		if native, ok := e.NativeObject(lv); ok {
			if native == nil {
				return reflect.Zero(t), nil
			}
			if v, ok := upcast(reflect.ValueOf(native), t); ok {
				return v, nil
			}
			return reflect.Value{}, e.mismatch(lv, t)
		}
	}

	if anyTarget {
		return e.dynamic(lv, t, hint), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		if b, ok := lv.(lua.LBool); ok {
			out := reflect.New(t).Elem()
			out.SetBool(bool(b))
			return out, nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		if n, ok := lv.(lua.LNumber); ok {
			return narrow(float64(n), t), nil
		}
	case reflect.String:
		if s, ok := lv.(lua.LString); ok {
			out := reflect.New(t).Elem()
			out.SetString(string(s))
			return out, nil
		}
	case reflect.Slice:
		if s, ok := lv.(lua.LString); ok && t.Elem().Kind() == reflect.Uint8 {
			out := reflect.MakeSlice(t, len(s), len(s))
			reflect.Copy(out, reflect.ValueOf([]byte(s)))
			return out, nil
		}
		if tb, ok := lv.(*lua.LTable); ok {
			return e.tableToSlice(L, tb, t)
		}
	case reflect.Array:
		if tb, ok := lv.(*lua.LTable); ok {
			return e.tableToArray(L, tb, t)
		}
	case reflect.Map:
		if tb, ok := lv.(*lua.LTable); ok {
			return e.tableToMap(L, tb, t)
		}
	case reflect.Func:
		if fn, ok := lv.(*lua.LFunction); ok {
			return e.luaFunc(L, fn, t), nil
		}
	}
	return reflect.Value{}, e.mismatch(lv, t)
}

// dynamic converts lv for an empty-interface destination.
func (e *Engine) dynamic(lv lua.LValue, t reflect.Type, hint Hint) reflect.Value {
	var x any
	switch v := lv.(type) {
	case lua.LBool:
		x = bool(v)
	case lua.LString:
		x = string(v)
	case lua.LNumber:
		if ht := hint.Type(); ht != nil {
			x = narrow(float64(v), ht).Interface()
		} else if integral(float64(v)) {
			x = int(v)
		} else {
			x = float64(v)
		}
	default:
		x = lv
	}
	out := reflect.New(t).Elem()
	out.Set(reflect.ValueOf(x))
	return out
}

// narrow converts f to the numeric type t, truncating toward zero for
// integer types.
func narrow(f float64, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if f < 0 {
			out.SetUint(uint64(int64(f)))
		} else {
			out.SetUint(uint64(f))
		}
	case reflect.Float32:
		out.SetFloat(float64(float32(f)))
	case reflect.Float64:
		out.SetFloat(f)
	}
	return out
}

func integral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<53
}

func (e *Engine) tableToSlice(L *lua.LState, tb *lua.LTable, t reflect.Type) (reflect.Value, error) {
	n := tb.Len()
	out := reflect.MakeSlice(t, n, n)
	for i := 0; i < n; i++ {
		v, err := e.ToNative(L, tb.RawGetInt(i+1), t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func (e *Engine) tableToArray(L *lua.LState, tb *lua.LTable, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	n := min(tb.Len(), t.Len())
	for i := 0; i < n; i++ {
		v, err := e.ToNative(L, tb.RawGetInt(i+1), t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func (e *Engine) tableToMap(L *lua.LState, tb *lua.LTable, t reflect.Type) (reflect.Value, error) {
	out := reflect.MakeMap(t)
	var err error
	tb.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		var kv, vv reflect.Value
		if kv, err = e.ToNative(L, k, t.Key()); err != nil {
			return
		}
		if vv, err = e.ToNative(L, v, t.Elem()); err != nil {
			return
		}
		out.SetMapIndex(kv, vv)
	})
	if err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

func (e *Engine) mismatch(lv lua.LValue, t reflect.Type) *errors.Error {
	return errors.New(errors.PhaseCoerce, errors.KindTypeMismatch).
		Expected(e.NativeTypeName(t)).
		Given(e.ForeignTypeName(lv)).
		Value(lv).
		Build()
}

// upcast reaches t from v through assignment, pointer indirection or
// embedded fields.
func upcast(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	for depth := 0; depth < 32; depth++ {
		if v.Type().AssignableTo(t) {
			return v, true
		}
		if t.Kind() == reflect.Pointer && v.Type() == t.Elem() {
			p := reflect.New(t.Elem())
			p.Elem().Set(v)
			return p, true
		}
		if v.Kind() != reflect.Pointer {
			break
		}
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}

	vt := v.Type()
	for i := 0; i < vt.NumField(); i++ {
		f := vt.Field(i)
		if !f.Anonymous || !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		if t.Kind() == reflect.Pointer && fv.Type() == t.Elem() && fv.CanAddr() {
			return fv.Addr(), true
		}
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			continue
		}
		if r, ok := upcast(fv, t); ok {
			return r, true
		}
	}
	return reflect.Value{}, false
}

func nilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}
