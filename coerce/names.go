package coerce

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// NativeTypeName returns the script-facing name of a Go type, as used in
// type mismatch messages.
func (e *Engine) NativeTypeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if e.namer != nil {
		if name, ok := e.namer.DisplayName(t); ok {
			return name
		}
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "string"
		}
		return "table"
	case reflect.Array, reflect.Map:
		return "table"
	case reflect.Func:
		return "function"
	case reflect.Interface:
		if t.NumMethod() == 0 || t == lvalueType {
			return "value"
		}
	}
	return "<unregistered " + t.String() + ">"
}

// ForeignTypeName returns the name of a Lua value's type. Numbers with no
// fractional part are reported as "integer"; wrapped objects report the
// name of their Go type.
func (e *Engine) ForeignTypeName(lv lua.LValue) string {
	switch v := lv.(type) {
	case nil:
		return "nil"
	case lua.LNumber:
		if integral(float64(v)) {
			return "integer"
		}
		return "number"
	case *lua.LUserData:
		if native, ok := e.NativeObject(v); ok && native != nil {
			return e.NativeTypeName(reflect.TypeOf(native))
		}
	}
	return lv.Type().String()
}
