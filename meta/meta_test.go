package meta

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/luabridge/coerce"
	lberrors "github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/naming"
)

type Shape struct {
	Label string
	Sides int
}

func (s *Shape) Area() float64    { return 0 }
func (s *Shape) Describe() string { return "shape " + s.Label }
func (s *Shape) M() string        { return "parent" }

type Square struct {
	Shape
	Size float64
}

func (s *Square) Area() float64 { return s.Size * s.Size }

type Tagged struct {
	*Shape
}

func (t *Tagged) Label() string { return "tag" }

type Doc struct {
	Title string
}

func (d *Doc) Describe() string { return d.Title }

type Greeter struct{}

type Text struct {
	S string
}

func (t *Text) Len() int { return len(t.S) }

type TextLib struct{}

func (TextLib) Len() int                    { return -1 }
func (TextLib) Upper(t *Text) string        { return strings.ToUpper(t.S) }
func (TextLib) Repeat(t Text, n int) string { return strings.Repeat(t.S, n) }

type BadLib struct{}

func (BadLib) Shout(s string) string { return s }

type HTTPServer struct{}

func (h *HTTPServer) GetURL() string { return "" }

type Loose struct{}

func (l *Loose) Describe() string { return "loose" }

type Scaler struct {
	F int
}

func (s *Scaler) Scale(n int) int { return s.F * n }

type PairScaler struct {
	Scaler
}

func (p *PairScaler) Scale(a, b int) int { return p.F * (a + b) }

func newRegistry() *Registry {
	return NewRegistry(naming.Default(), nil)
}

func shapeDecl() *Decl {
	return For[Shape]().
		Method("Area", Overridable()).
		Method("Describe").
		Method("Describe", At(SlotToString)).
		Method("M").
		Field("Label")
}

func mustRegister(t *testing.T, r *Registry, d *Decl) *TypeDescriptor {
	t.Helper()
	td, err := r.Register(d)
	if err != nil {
		t.Fatalf("Register(%v): %v", d.Type(), err)
	}
	return td
}

func TestRegister(t *testing.T) {
	r := newRegistry()
	td := mustRegister(t, r, shapeDecl())

	if td.Name() != "shape" || td.ID() == 0 {
		t.Errorf("Name=%q ID=%d", td.Name(), td.ID())
	}
	if _, ok := td.Index("area"); !ok {
		t.Error("area not exposed")
	}
	if m, ok := td.Slot(SlotToString); !ok || m.NativeID != "Describe" {
		t.Error("Describe should occupy TOSTRING")
	}
	if name, ok := td.ExposedName("Describe"); !ok || name != "describe" {
		t.Errorf("ExposedName(Describe) = %q, %v", name, ok)
	}
	if m, ok := td.Member("Describe"); !ok || m.Slot != SlotIndex {
		t.Error("Member should prefer the INDEX entry")
	}
	if f, ok := td.Field("label"); !ok || f.Type.Kind() != reflect.String {
		t.Error("label field not exposed")
	}

	again, err := r.Register(shapeDecl())
	if err != nil || again != td {
		t.Error("Register should be idempotent")
	}
	if got, ok := r.Lookup(reflect.TypeFor[*Shape]()); !ok || got != td {
		t.Error("Lookup should resolve pointer types")
	}
	if name, ok := r.DisplayName(reflect.TypeFor[Shape]()); !ok || name != "shape" {
		t.Errorf("DisplayName = %q", name)
	}
	if got, ok := r.Named("shape"); !ok || got != td {
		t.Error("Named(shape) failed")
	}
}

func TestUnregisteredParent(t *testing.T) {
	r := newRegistry()
	r.Declare(shapeDecl())

	_, err := r.Register(For[Square]().Method("Area"))
	if !errors.Is(err, lberrors.ErrUnregisteredParent) {
		t.Fatalf("err = %v, want unregistered parent", err)
	}

	mustRegister(t, r, shapeDecl())
	mustRegister(t, r, For[Square]().Method("Area"))
}

func TestRegisterType(t *testing.T) {
	r := newRegistry()
	if _, err := r.RegisterType(reflect.TypeFor[Shape]()); !errors.Is(err, &lberrors.Error{Kind: lberrors.KindNotFound}) {
		t.Errorf("err = %v, want not found", err)
	}
	r.Declare(shapeDecl())
	td, err := r.RegisterType(reflect.TypeFor[*Shape]())
	if err != nil || td.Name() != "shape" {
		t.Fatalf("RegisterType: %v", err)
	}
}

func TestInheritance(t *testing.T) {
	r := newRegistry()
	mustRegister(t, r, shapeDecl())
	td := mustRegister(t, r, For[Square]().Method("Area"))

	describe, ok := td.Index("describe")
	if !ok {
		t.Fatal("describe not inherited")
	}
	if describe.Binding.Receiver() != reflect.TypeFor[*Square]() {
		t.Errorf("inherited binding receiver = %v", describe.Binding.Receiver())
	}
	if _, ok := td.Slot(SlotToString); !ok {
		t.Error("TOSTRING slot not inherited")
	}
	if f, ok := td.Field("label"); !ok || len(f.Index) != 2 {
		t.Error("label field not inherited through embedding")
	}

	L := lua.NewState()
	defer L.Close()
	e := coerce.New(r)
	sq := &Square{Size: 3}
	area, _ := td.Index("area")
	rets, err := area.Binding.Invoke(L, e, e.ToForeign(L, sq), nil)
	if err != nil {
		t.Fatal(err)
	}
	if rets[0] != lua.LNumber(9) {
		t.Errorf("area() = %v, want 9", rets[0])
	}
	if area.Overridable {
		t.Error("the child's declaration should replace the inherited one")
	}
}

func TestInheritanceShadowSignature(t *testing.T) {
	r := newRegistry()
	mustRegister(t, r, For[Scaler]().Method("Scale"))
	td := mustRegister(t, r, For[PairScaler]())

	scale, ok := td.Index("scale")
	if !ok {
		t.Fatal("scale not inherited")
	}

	L := lua.NewState()
	defer L.Close()
	e := coerce.New(r)
	ps := &PairScaler{Scaler{F: 2}}
	rets, err := scale.Binding.Invoke(L, e, e.ToForeign(L, ps), []lua.LValue{lua.LNumber(3), lua.LNumber(4)})
	if err != nil {
		t.Fatal(err)
	}
	if rets[0] != lua.LNumber(14) {
		t.Errorf("scale(3, 4) = %v, want 14", rets[0])
	}
}

func TestInheritanceRename(t *testing.T) {
	r := newRegistry()
	mustRegister(t, r, shapeDecl())
	td := mustRegister(t, r, For[Square]().Method("M", Name("mm")))

	if _, ok := td.Index("m"); ok {
		t.Error("m should be evicted by the child's rename")
	}
	if m, ok := td.Index("mm"); !ok || m.Binding == nil {
		t.Error("mm should be callable")
	}
	if name, _ := td.ExposedName("M"); name != "mm" {
		t.Errorf("ExposedName(M) = %q", name)
	}
}

func TestSlotEviction(t *testing.T) {
	r := newRegistry()
	mustRegister(t, r, shapeDecl())
	td := mustRegister(t, r, For[Square]().Method("Area", At(SlotToString)))

	m, ok := td.Slot(SlotToString)
	if !ok || m.NativeID != "Area" {
		t.Fatalf("TOSTRING = %v", m)
	}
	if _, ok := td.Index("describe"); !ok {
		t.Error("describe INDEX entry should survive the slot eviction")
	}
	if _, ok := td.Index("area"); ok {
		t.Error("the inherited area INDEX entry is overridden by the child's declaration of Area")
	}
}

func TestFieldVersusMethod(t *testing.T) {
	t.Run("same declaration", func(t *testing.T) {
		r := newRegistry()
		td := mustRegister(t, r, For[Doc]().Field("Title", Name("describe")).Method("Describe"))
		if _, ok := td.Field("describe"); ok {
			t.Error("field should not displace the method")
		}
		if _, ok := td.Index("describe"); !ok {
			t.Error("method should be kept")
		}
	})

	t.Run("child method over inherited field", func(t *testing.T) {
		r := newRegistry()
		mustRegister(t, r, shapeDecl())
		td := mustRegister(t, r, For[Tagged]().Method("Label"))
		if _, ok := td.Field("label"); ok {
			t.Error("inherited field should give way to the method")
		}
		if _, ok := td.Index("label"); !ok {
			t.Error("label method missing")
		}
	})
}

func TestAbstractMembers(t *testing.T) {
	r := newRegistry()
	td := mustRegister(t, r, For[Greeter]().Method("Greet", Overridable()))
	m, ok := td.Index("greet")
	if !ok || !m.Abstract() || !m.Overridable {
		t.Errorf("greet = %+v", m)
	}

	_, err := newRegistry().Register(For[Greeter]().Method("Greet"))
	if !errors.Is(err, &lberrors.Error{Kind: lberrors.KindNotFound}) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestDelegate(t *testing.T) {
	r := newRegistry()
	td := mustRegister(t, r, For[Text]().Delegate(reflect.TypeFor[TextLib]()))

	length, ok := td.Index("len")
	if !ok || length.Binding.Delegated() {
		t.Error("len should bind the target's own method")
	}
	upper, ok := td.Index("upper")
	if !ok || !upper.Binding.Delegated() {
		t.Error("upper should be delegated")
	}

	L := lua.NewState()
	defer L.Close()
	e := coerce.New(r)
	self := e.ToForeign(L, &Text{S: "ab"})
	for name, want := range map[string]lua.LValue{"len": lua.LNumber(2), "upper": lua.LString("AB")} {
		m, _ := td.Index(name)
		rets, err := m.Binding.Invoke(L, e, self, nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if rets[0] != want {
			t.Errorf("%s() = %v, want %v", name, rets[0], want)
		}
	}
	repeat, _ := td.Index("repeat")
	rets, err := repeat.Binding.Invoke(L, e, self, []lua.LValue{lua.LNumber(2)})
	if err != nil || rets[0] != lua.LString("abab") {
		t.Errorf("repeat(2) = %v, %v", rets, err)
	}
}

func TestDelegateSelection(t *testing.T) {
	r := newRegistry()
	td := mustRegister(t, r, For[Text]().Delegate(reflect.TypeFor[*TextLib](), Use("Upper", Name("up"), At(SlotCall))))

	if m, ok := td.Slot(SlotCall); !ok || m.Name != "up" {
		t.Error("Upper should occupy CALL")
	}
	if _, ok := td.Index("len"); ok {
		t.Error("undeclared helper methods should not be exposed")
	}
}

func TestInvalidDelegate(t *testing.T) {
	tests := []struct {
		name   string
		helper reflect.Type
	}{
		{"first parameter", reflect.TypeFor[BadLib]()},
		{"not a struct", reflect.TypeFor[int]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRegistry().Register(For[Text]().Delegate(tt.helper))
			if !errors.Is(err, lberrors.ErrInvalidDelegate) {
				t.Errorf("err = %v, want invalid delegate", err)
			}
		})
	}
}

func TestRegisterFiltered(t *testing.T) {
	r := newRegistry()
	td, err := r.RegisterFiltered(reflect.TypeFor[Shape](), func(native string) (string, bool) {
		switch native {
		case "M":
			return "", false
		case "Describe":
			return "desc", true
		}
		return "", true
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := td.Index("m"); ok {
		t.Error("M should be skipped")
	}
	for _, name := range []string{"desc", "area"} {
		if _, ok := td.Index(name); !ok {
			t.Errorf("%s missing", name)
		}
	}
	for _, name := range []string{"label", "sides"} {
		if _, ok := td.Field(name); !ok {
			t.Errorf("field %s missing", name)
		}
	}
}

func TestNamingPolicy(t *testing.T) {
	r := NewRegistry(naming.Policy{FirstLower: true, Underscore: true, Scope: naming.ScopeBoth}, nil)
	td := mustRegister(t, r, For[HTTPServer]().Method("GetURL"))
	if td.Name() != "http_server" {
		t.Errorf("Name = %q", td.Name())
	}
	if _, ok := td.Index("get_url"); !ok {
		t.Error("get_url missing")
	}
	if got := r.FallbackName(reflect.TypeFor[*Loose]()); got != "loose" {
		t.Errorf("FallbackName = %q", got)
	}
}

func TestCollisionLaterWins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRegistry(naming.Default(), zap.New(core))

	td := mustRegister(t, r, For[Shape]().Method("Area", Name("x")).Method("Describe", Name("x")))
	m, _ := td.Index("x")
	if m.NativeID != "Describe" {
		t.Errorf("x = %s, want the later declaration", m.NativeID)
	}
	if logs.FilterMessage("exposed name collision").Len() != 1 {
		t.Errorf("collision not logged: %v", logs.All())
	}
}

func TestStatics(t *testing.T) {
	r := newRegistry()
	td := mustRegister(t, r, For[Shape]().Static("New", func(label string) *Shape { return &Shape{Label: label} }))
	m, ok := td.Static("new")
	if !ok || !m.Binding.Static() {
		t.Fatal("static new missing")
	}
	if len(td.Statics()) != 1 {
		t.Errorf("Statics = %v", td.Statics())
	}
}

func TestExtends(t *testing.T) {
	r := newRegistry()
	if _, err := r.Register(For[Loose]().Extends(reflect.TypeFor[Shape]())); !errors.Is(err, lberrors.ErrUnregisteredParent) {
		t.Errorf("err = %v, want unregistered parent", err)
	}

	mustRegister(t, r, shapeDecl())
	td := mustRegister(t, r, For[Loose]().Extends(reflect.TypeFor[Shape]()))
	if _, ok := td.Index("describe"); !ok {
		t.Error("describe should resolve against Loose")
	}
	if _, ok := td.Index("area"); ok {
		t.Error("area has no method on Loose and should be dropped")
	}
}

func TestFieldAccess(t *testing.T) {
	r := newRegistry()
	mustRegister(t, r, shapeDecl())
	td := mustRegister(t, r, For[Square]().Field("Size"))

	sq := &Square{Shape: Shape{Label: "a"}, Size: 2}
	label, _ := td.Field("label")
	v, err := label.Get(reflect.ValueOf(sq))
	if err != nil || v.String() != "a" {
		t.Fatalf("Get = %v, %v", v, err)
	}
	if err := label.Set(reflect.ValueOf(sq), reflect.ValueOf("b")); err != nil {
		t.Fatal(err)
	}
	if sq.Label != "b" {
		t.Errorf("Label = %q", sq.Label)
	}

	size, _ := td.Field("size")
	if err := size.Set(reflect.ValueOf(*sq), reflect.ValueOf(1.0)); err == nil {
		t.Error("Set on a struct copy should fail")
	}
}

func TestSlots(t *testing.T) {
	tests := []struct {
		input string
		want  Slot
	}{
		{"INDEX", SlotIndex},
		{"tostring", SlotToString},
		{"__add", SlotAdd},
		{" LE ", SlotLe},
	}
	for _, tt := range tests {
		got, err := ParseSlot(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseSlot(%q) = %v, %v", tt.input, got, err)
		}
	}
	if _, err := ParseSlot("__gc"); err == nil {
		t.Error("ParseSlot should reject unknown slots")
	}
	if SlotConcat.Metamethod() != "__concat" || SlotIndex.Metamethod() != "" {
		t.Error("unexpected metamethod names")
	}
	if !SlotEq.Binary() || SlotUnm.Binary() {
		t.Error("unexpected arity")
	}
	if !SlotAdd.Commutative() || SlotSub.Commutative() || SlotConcat.Commutative() {
		t.Error("unexpected commutativity")
	}
	if len(OperatorSlots()) != 14 {
		t.Errorf("OperatorSlots = %d", len(OperatorSlots()))
	}
}
