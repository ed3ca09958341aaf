package coerce

import (
	"fmt"
	"reflect"
	"strings"
)

// Hint selects the native numeric width a Lua number is narrowed to.
// Lua has a single number type, so a call site that accepts an untyped
// value (an interface parameter) uses a hint to pick the width.
type Hint uint8

const (
	HintNone Hint = iota
	HintInt
	HintInt8
	HintInt16
	HintInt32
	HintInt64
	HintUint
	HintUint8
	HintUint16
	HintUint32
	HintUint64
	HintFloat32
	HintFloat64
)

var hintNames = [...]string{
	HintNone:    "none",
	HintInt:     "int",
	HintInt8:    "int8",
	HintInt16:   "int16",
	HintInt32:   "int32",
	HintInt64:   "int64",
	HintUint:    "uint",
	HintUint8:   "uint8",
	HintUint16:  "uint16",
	HintUint32:  "uint32",
	HintUint64:  "uint64",
	HintFloat32: "float32",
	HintFloat64: "float64",
}

var hintTypes = [...]reflect.Type{
	HintInt:     reflect.TypeFor[int](),
	HintInt8:    reflect.TypeFor[int8](),
	HintInt16:   reflect.TypeFor[int16](),
	HintInt32:   reflect.TypeFor[int32](),
	HintInt64:   reflect.TypeFor[int64](),
	HintUint:    reflect.TypeFor[uint](),
	HintUint8:   reflect.TypeFor[uint8](),
	HintUint16:  reflect.TypeFor[uint16](),
	HintUint32:  reflect.TypeFor[uint32](),
	HintUint64:  reflect.TypeFor[uint64](),
	HintFloat32: reflect.TypeFor[float32](),
	HintFloat64: reflect.TypeFor[float64](),
}

func (h Hint) String() string {
	if int(h) < len(hintNames) {
		return hintNames[h]
	}
	return fmt.Sprintf("hint(%d)", uint8(h))
}

// Type returns the Go type a hint narrows to, or nil for HintNone.
func (h Hint) Type() reflect.Type {
	if h == HintNone || int(h) >= len(hintTypes) {
		return nil
	}
	return hintTypes[h]
}

// HintFor derives the hint implied by a static Go type.
func HintFor(t reflect.Type) Hint {
	if t == nil {
		return HintNone
	}
	switch t.Kind() {
	case reflect.Int:
		return HintInt
	case reflect.Int8:
		return HintInt8
	case reflect.Int16:
		return HintInt16
	case reflect.Int32:
		return HintInt32
	case reflect.Int64:
		return HintInt64
	case reflect.Uint:
		return HintUint
	case reflect.Uint8:
		return HintUint8
	case reflect.Uint16:
		return HintUint16
	case reflect.Uint32:
		return HintUint32
	case reflect.Uint64, reflect.Uintptr:
		return HintUint64
	case reflect.Float32:
		return HintFloat32
	case reflect.Float64:
		return HintFloat64
	}
	return HintNone
}

// ParseHint parses a hint name such as "int32" or "float32".
func ParseHint(s string) (Hint, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range hintNames {
		if name == s {
			return Hint(i), nil
		}
	}
	return HintNone, fmt.Errorf("coerce: unknown numeric hint %q", s)
}
