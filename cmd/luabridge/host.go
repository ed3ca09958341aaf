package main

import (
	"fmt"
	"reflect"
	"time"

	"github.com/wippyai/luabridge"
	"github.com/wippyai/luabridge/meta"
)

// Shape is the base of the demo model.
type Shape struct {
	Name string
}

func (s *Shape) Describe() string { return s.Name }

// Rect embeds Shape and lets scripts replace Area.
type Rect struct {
	Shape
	W, H float64

	bridge *luabridge.Bridge
}

func (r *Rect) Area() (float64, error) {
	return luabridge.Override(r.bridge, r, "Area", func() (float64, error) {
		return r.W * r.H, nil
	})
}

func (r *Rect) Describe() string {
	return fmt.Sprintf("%s %gx%g", r.Name, r.W, r.H)
}

// Counter demonstrates operator slots.
type Counter struct {
	N int
}

func (c *Counter) Inc() int {
	c.N++
	return c.N
}

func (c *Counter) Add(n int) *Counter    { return &Counter{N: c.N + n} }
func (c *Counter) Equal(o *Counter) bool { return c.N == o.N }
func (c *Counter) Less(o *Counter) bool  { return c.N < o.N }
func (c *Counter) String() string        { return fmt.Sprintf("counter(%d)", c.N) }

// Greeter has no Go implementation of Greet; a script must supply one.
type Greeter struct {
	bridge *luabridge.Bridge
}

func (g *Greeter) Greet(name string) (string, error) {
	return luabridge.Override[string](g.bridge, g, "Greet", nil, name)
}

// Clock is registered by catalog name so configuration bulk rules can
// shape it.
type Clock struct {
	Zone string
}

func (c *Clock) Now() string {
	loc, err := time.LoadLocation(c.Zone)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format(time.TimeOnly)
}

func (c *Clock) Unix() int64 { return time.Now().Unix() }

func registerHost(b *luabridge.Bridge) error {
	err := b.Register(
		meta.For[Shape]().Method("Describe").Field("Name"),
		meta.For[Rect]().
			Method("Area", meta.Overridable()).
			Method("Describe").
			Method("Describe", meta.At(meta.SlotToString)).
			Field("W").
			Field("H").
			Static("New", func(name string, w, h float64) *Rect {
				return &Rect{Shape: Shape{Name: name}, W: w, H: h, bridge: b}
			}),
		meta.For[Counter]().
			Method("Inc").
			Method("Add", meta.At(meta.SlotAdd)).
			Method("Equal", meta.At(meta.SlotEq)).
			Method("Less", meta.At(meta.SlotLt)).
			Method("String", meta.At(meta.SlotToString)).
			Field("N").
			Static("New", func(n int) *Counter { return &Counter{N: n} }),
		meta.For[Greeter]().Method("Greet", meta.Overridable()),
	)
	if err != nil {
		return err
	}

	td, err := b.Catalog("Clock", reflect.TypeFor[Clock]())
	if err != nil {
		return err
	}
	if td == nil {
		_, err = b.RegisterFiltered(reflect.TypeFor[Clock](), meta.AllExported)
	}
	return err
}

// exposeHost publishes the demo objects and type tables to env.
func exposeHost(env *luabridge.Env) error {
	b := env.Bridge()
	env.Set("square", &Rect{Shape: Shape{Name: "square"}, W: 2, H: 2, bridge: b})
	env.Set("clicks", &Counter{})
	env.Set("greeter", &Greeter{bridge: b})
	env.Set("clock", &Clock{Zone: "UTC"})

	// Go-side callers, so scripts can watch their overrides take effect.
	env.Set("area_of", func(r *Rect) (float64, error) { return r.Area() })
	env.Set("greet", func(g *Greeter, name string) (string, error) { return g.Greet(name) })

	for _, t := range []reflect.Type{reflect.TypeFor[Rect](), reflect.TypeFor[Counter]()} {
		if err := env.OpenType(t); err != nil {
			return err
		}
	}
	return nil
}
