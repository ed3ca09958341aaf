package coerce

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	lua "github.com/yuin/gopher-lua"

	lberrors "github.com/wippyai/luabridge/errors"
)

type Base struct {
	N int
}

type Derived struct {
	Base
	M int
}

type Other struct{}

type namer map[reflect.Type]string

func (n namer) DisplayName(t reflect.Type) (string, bool) {
	if name, ok := n[t]; ok {
		return name, true
	}
	if t.Kind() == reflect.Pointer {
		name, ok := n[t.Elem()]
		return name, ok
	}
	return "", false
}

func TestRoundTripPrimitives(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	e := New(nil)

	values := []any{
		true, false,
		int(-7), int8(-128), int16(300), int32(-70000), int64(1 << 40),
		uint(7), uint8(255), uint16(65535), uint32(1 << 31), uint64(1 << 52),
		float32(1.5), float32(0.1), float64(3.25), float64(-0.001),
		"text", "",
	}

	for _, v := range values {
		t.Run(fmt.Sprintf("%T(%v)", v, v), func(t *testing.T) {
			lv := e.ToForeign(L, v)
			got, err := e.ToNative(L, lv, reflect.TypeOf(v))
			if err != nil {
				t.Fatalf("ToNative: %v", err)
			}
			if got.Interface() != v {
				t.Errorf("round trip = %#v, want %#v", got.Interface(), v)
			}
		})
	}
}

func TestNarrowing(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name  string
		input lua.LNumber
		want  any
	}{
		{"truncate positive", 3.9, int(3)},
		{"truncate negative", -3.9, int(-3)},
		{"int8 wraps", 300, int8(44)},
		{"uint16", 65535, uint16(65535)},
		{"float32", 0.1, float32(0.1)},
		{"int64", 1 << 40, int64(1 << 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ToNative(nil, tt.input, reflect.TypeOf(tt.want))
			if err != nil {
				t.Fatalf("ToNative: %v", err)
			}
			if got.Interface() != tt.want {
				t.Errorf("got %#v, want %#v", got.Interface(), tt.want)
			}
		})
	}
}

func TestInterfaceTargetHints(t *testing.T) {
	e := New(nil)
	anyType := reflect.TypeFor[any]()

	tests := []struct {
		name  string
		input lua.LValue
		hint  Hint
		want  any
	}{
		{"integral number", lua.LNumber(3), HintNone, 3},
		{"fractional number", lua.LNumber(2.5), HintNone, 2.5},
		{"int32 hint", lua.LNumber(2.5), HintInt32, int32(2)},
		{"float32 hint", lua.LNumber(0.1), HintFloat32, float32(0.1)},
		{"uint8 hint", lua.LNumber(7), HintUint8, uint8(7)},
		{"string", lua.LString("x"), HintNone, "x"},
		{"bool", lua.LTrue, HintInt, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ToNativeHint(nil, tt.input, anyType, tt.hint)
			if err != nil {
				t.Fatalf("ToNativeHint: %v", err)
			}
			if got.Interface() != tt.want {
				t.Errorf("got %#v, want %#v", got.Interface(), tt.want)
			}
		})
	}
}

func TestNilToZero(t *testing.T) {
	e := New(nil)

	for _, typ := range []reflect.Type{
		reflect.TypeFor[int](),
		reflect.TypeFor[bool](),
		reflect.TypeFor[string](),
		reflect.TypeFor[*Base](),
		reflect.TypeFor[[]int](),
	} {
		got, err := e.ToNative(nil, lua.LNil, typ)
		if err != nil {
			t.Fatalf("ToNative(nil, %v): %v", typ, err)
		}
		if !got.IsZero() {
			t.Errorf("ToNative(nil, %v) = %v, want zero", typ, got)
		}
	}
}

func TestTypeMismatch(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name         string
		input        lua.LValue
		target       reflect.Type
		wantExpected string
		wantGiven    string
	}{
		{"string for int", lua.LString("5"), reflect.TypeFor[int](), "integer", "string"},
		{"number for string", lua.LNumber(2.5), reflect.TypeFor[string](), "string", "number"},
		{"integer for bool", lua.LNumber(1), reflect.TypeFor[bool](), "boolean", "integer"},
		{"bool for struct", lua.LFalse, reflect.TypeFor[Base](), "<unregistered coerce.Base>", "boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ToNative(nil, tt.input, tt.target)
			if !errors.Is(err, lberrors.ErrTypeMismatch) {
				t.Fatalf("err = %v, want type mismatch", err)
			}
			be, _ := lberrors.As(err)
			if be.Expected != tt.wantExpected || be.Given != tt.wantGiven {
				t.Errorf("Expected=%q Given=%q, want %q/%q", be.Expected, be.Given, tt.wantExpected, tt.wantGiven)
			}
		})
	}
}

func TestExactIntegers(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	e := New(nil)

	tests := []struct {
		name string
		v    any
		ok   bool
	}{
		{"int64 at limit", int64(1 << 53), true},
		{"negative int64 at limit", int64(-1 << 53), true},
		{"int64 beyond limit", int64(1<<53 + 1), false},
		{"uint64 max", uint64(math.MaxUint64), false},
		{"int32", int32(math.MaxInt32), true},
		{"large float", float64(1 << 60), true},
		{"nested slice", []int64{1, 1 << 60}, false},
		{"nested map", map[string]any{"n": uint64(1 << 60)}, false},
		{"bytes", []byte("abc"), true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ToForeignExact(L, tt.v)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, lberrors.ErrTypeMismatch) {
				t.Fatalf("err = %v, want type mismatch", err)
			}
		})
	}
}

func TestTables(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	e := New(nil)

	t.Run("slice to table", func(t *testing.T) {
		tb, ok := e.ToForeign(L, []int{10, 20, 30}).(*lua.LTable)
		if !ok {
			t.Fatal("expected table")
		}
		if tb.Len() != 3 || tb.RawGetInt(1) != lua.LNumber(10) || tb.RawGetInt(3) != lua.LNumber(30) {
			t.Errorf("unexpected table contents, len=%d", tb.Len())
		}
	})

	t.Run("map to table", func(t *testing.T) {
		tb := e.ToForeign(L, map[string]int{"a": 1}).(*lua.LTable)
		if tb.RawGetString("a") != lua.LNumber(1) {
			t.Errorf("a = %v", tb.RawGetString("a"))
		}
	})

	t.Run("bytes to string", func(t *testing.T) {
		if got := e.ToForeign(L, []byte("hi")); got != lua.LString("hi") {
			t.Errorf("got %v", got)
		}
	})

	if err := L.DoString(`seq = {1, 2, 3}; dict = {x = 1.5, y = 2}; words = {"a", "b"}`); err != nil {
		t.Fatal(err)
	}

	t.Run("table to slice", func(t *testing.T) {
		got, err := e.ToNative(L, L.GetGlobal("seq"), reflect.TypeFor[[]int64]())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got.Interface(), []int64{1, 2, 3}) {
			t.Errorf("got %v", got.Interface())
		}
	})

	t.Run("table to map", func(t *testing.T) {
		got, err := e.ToNative(L, L.GetGlobal("dict"), reflect.TypeFor[map[string]float64]())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got.Interface(), map[string]float64{"x": 1.5, "y": 2}) {
			t.Errorf("got %v", got.Interface())
		}
	})

	t.Run("table to array", func(t *testing.T) {
		got, err := e.ToNative(L, L.GetGlobal("words"), reflect.TypeFor[[3]string]())
		if err != nil {
			t.Fatal(err)
		}
		if got.Interface() != [3]string{"a", "b", ""} {
			t.Errorf("got %v", got.Interface())
		}
	})

	t.Run("element mismatch", func(t *testing.T) {
		_, err := e.ToNative(L, L.GetGlobal("words"), reflect.TypeFor[[]int]())
		if !errors.Is(err, lberrors.ErrTypeMismatch) {
			t.Errorf("err = %v, want type mismatch", err)
		}
	})
}

func TestObjects(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	e := New(namer{reflect.TypeFor[Derived](): "derived"})

	d := &Derived{Base: Base{N: 1}, M: 2}
	ud := e.ToForeign(L, d)
	if _, ok := ud.(*lua.LUserData); !ok {
		t.Fatalf("ToForeign(%T) = %T, want userdata", d, ud)
	}

	t.Run("unwrap identity", func(t *testing.T) {
		got, err := e.ToNative(L, ud, reflect.TypeFor[*Derived]())
		if err != nil {
			t.Fatal(err)
		}
		if got.Interface().(*Derived) != d {
			t.Error("unwrap returned a different object")
		}
	})

	t.Run("upcast to embedded pointer", func(t *testing.T) {
		got, err := e.ToNative(L, ud, reflect.TypeFor[*Base]())
		if err != nil {
			t.Fatal(err)
		}
		if got.Interface().(*Base) != &d.Base {
			t.Error("upcast did not reach the embedded field")
		}
	})

	t.Run("upcast to embedded value", func(t *testing.T) {
		got, err := e.ToNative(L, ud, reflect.TypeFor[Base]())
		if err != nil {
			t.Fatal(err)
		}
		if got.Interface().(Base).N != 1 {
			t.Errorf("got %v", got.Interface())
		}
	})

	t.Run("any target", func(t *testing.T) {
		got, err := e.ToNative(L, ud, reflect.TypeFor[any]())
		if err != nil {
			t.Fatal(err)
		}
		if got.Interface() != any(d) {
			t.Error("any target should receive the native object")
		}
	})

	t.Run("unrelated type", func(t *testing.T) {
		_, err := e.ToNative(L, ud, reflect.TypeFor[*Other]())
		be, ok := lberrors.As(err)
		if !ok || be.Kind != lberrors.KindTypeMismatch {
			t.Fatalf("err = %v, want type mismatch", err)
		}
		if be.Given != "derived" {
			t.Errorf("Given = %q, want derived", be.Given)
		}
	})

	t.Run("raw lua targets", func(t *testing.T) {
		got, err := e.ToNative(L, ud, reflect.TypeFor[lua.LValue]())
		if err != nil {
			t.Fatal(err)
		}
		if got.Interface() != ud {
			t.Error("lua.LValue target should receive the userdata itself")
		}
	})
}

func TestFunctions(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	e := New(nil)

	if err := L.DoString(`
		function add(a, b) return a + b end
		function fail() error("boom") end
		function pair(s) return s .. "!", #s end
	`); err != nil {
		t.Fatal(err)
	}

	t.Run("typed call", func(t *testing.T) {
		v, err := e.ToNative(L, L.GetGlobal("add"), reflect.TypeFor[func(int, int) int]())
		if err != nil {
			t.Fatal(err)
		}
		if got := v.Interface().(func(int, int) int)(2, 3); got != 5 {
			t.Errorf("add(2, 3) = %d", got)
		}
	})

	t.Run("multiple results", func(t *testing.T) {
		v, err := e.ToNative(L, L.GetGlobal("pair"), reflect.TypeFor[func(string) (string, int)]())
		if err != nil {
			t.Fatal(err)
		}
		s, n := v.Interface().(func(string) (string, int))("abc")
		if s != "abc!" || n != 3 {
			t.Errorf("pair = %q, %d", s, n)
		}
	})

	t.Run("error result", func(t *testing.T) {
		v, err := e.ToNative(L, L.GetGlobal("fail"), reflect.TypeFor[func() error]())
		if err != nil {
			t.Fatal(err)
		}
		if err := v.Interface().(func() error)(); err == nil {
			t.Error("expected the Lua error to surface")
		}
		if L.GetTop() != 0 {
			t.Errorf("stack not balanced: top = %d", L.GetTop())
		}
	})
}

func TestTypeNames(t *testing.T) {
	e := New(namer{reflect.TypeFor[Derived](): "derived"})

	natives := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeFor[int32](), "integer"},
		{reflect.TypeFor[uint64](), "integer"},
		{reflect.TypeFor[float32](), "number"},
		{reflect.TypeFor[bool](), "boolean"},
		{reflect.TypeFor[string](), "string"},
		{reflect.TypeFor[[]byte](), "string"},
		{reflect.TypeFor[map[string]int](), "table"},
		{reflect.TypeFor[func()](), "function"},
		{reflect.TypeFor[Derived](), "derived"},
		{reflect.TypeFor[*Other](), "<unregistered *coerce.Other>"},
	}
	for _, tt := range natives {
		if got := e.NativeTypeName(tt.typ); got != tt.want {
			t.Errorf("NativeTypeName(%v) = %q, want %q", tt.typ, got, tt.want)
		}
	}

	foreigns := []struct {
		lv   lua.LValue
		want string
	}{
		{lua.LNil, "nil"},
		{lua.LNumber(2), "integer"},
		{lua.LNumber(2.5), "number"},
		{lua.LString(""), "string"},
		{lua.LTrue, "boolean"},
		{&lua.LUserData{Value: Derived{}}, "derived"},
		{&lua.LUserData{Value: &Other{}}, "<unregistered *coerce.Other>"},
	}
	for _, tt := range foreigns {
		if got := e.ForeignTypeName(tt.lv); got != tt.want {
			t.Errorf("ForeignTypeName(%v) = %q, want %q", tt.lv, got, tt.want)
		}
	}
}

func TestHints(t *testing.T) {
	if got := HintFor(reflect.TypeFor[int16]()); got != HintInt16 {
		t.Errorf("HintFor(int16) = %v", got)
	}
	if got := HintFor(reflect.TypeFor[string]()); got != HintNone {
		t.Errorf("HintFor(string) = %v", got)
	}
	h, err := ParseHint("Float32")
	if err != nil || h != HintFloat32 {
		t.Errorf("ParseHint(Float32) = %v, %v", h, err)
	}
	if _, err := ParseHint("decimal"); err == nil {
		t.Error("ParseHint should reject unknown names")
	}
	if HintUint32.Type() != reflect.TypeFor[uint32]() {
		t.Errorf("HintUint32.Type() = %v", HintUint32.Type())
	}
}
