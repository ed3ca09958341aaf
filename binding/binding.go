// Package binding wraps one Go method or function into a handle Lua can
// invoke. Argument types, numeric hints and the calling convention are
// computed once when the binding is built; Invoke only converts and calls.
package binding

import (
	stderrors "errors"
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabridge/coerce"
	"github.com/wippyai/luabridge/errors"
)

var (
	stateType = reflect.TypeFor[*lua.LState]()
	errorType = reflect.TypeFor[error]()
)

// Binding is an immutable invocable handle.
type Binding struct {
	name      string
	fn        reflect.Value
	recv      reflect.Type // nil for static bindings
	selfParam reflect.Type // type the receiver is converted to
	delegate  reflect.Value
	params    []reflect.Type
	hints     []coerce.Hint
	variadic  bool
	withState bool
	errResult bool
}

// ForMethod binds the method name of t. t should be the type whose method
// set is searched, usually a pointer type.
func ForMethod(t reflect.Type, name string) (*Binding, bool) {
	if t.Kind() == reflect.Interface {
		return nil, false
	}
	m, ok := t.MethodByName(name)
	if !ok {
		return nil, false
	}
	b := newBinding(name, m.Func, 1)
	b.recv = t
	b.selfParam = m.Type.In(0)
	return b, true
}

// ForFunc binds a plain function. It has no receiver.
func ForFunc(name string, fn any) (*Binding, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.InvalidInput(errors.PhaseRegister, fmt.Sprintf("static %s: %T is not a function", name, fn))
	}
	return newBinding(name, rv, 0), nil
}

// ForDelegate binds method m of the helper instance so that it operates on
// target. The first parameter of m after its receiver must accept target.
func ForDelegate(helper reflect.Value, m reflect.Method, target reflect.Type) (*Binding, error) {
	mt := m.Type
	if mt.NumIn() < 2 {
		return nil, errors.InvalidDelegate(helper.Type().String(),
			fmt.Sprintf("method %s takes no target parameter", m.Name))
	}
	first := mt.In(1)
	if !accepts(first, target) {
		return nil, errors.InvalidDelegate(helper.Type().String(),
			fmt.Sprintf("method %s: first parameter %s does not accept %s", m.Name, first, target))
	}
	b := newBinding(m.Name, m.Func, 2)
	b.delegate = helper
	b.recv = target
	b.selfParam = first
	return b, nil
}

func accepts(param, target reflect.Type) bool {
	if target.AssignableTo(param) {
		return true
	}
	return target.Kind() == reflect.Pointer && target.Elem().AssignableTo(param)
}

func newBinding(name string, fn reflect.Value, skip int) *Binding {
	ft := fn.Type()
	b := &Binding{
		name:     name,
		fn:       fn,
		variadic: ft.IsVariadic(),
	}
	if ft.NumIn() > skip && ft.In(skip) == stateType {
		b.withState = true
		skip++
	}
	for i := skip; i < ft.NumIn(); i++ {
		p := ft.In(i)
		b.params = append(b.params, p)
		if b.variadic && i == ft.NumIn()-1 {
			p = p.Elem()
		}
		b.hints = append(b.hints, coerce.HintFor(p))
	}
	if n := ft.NumOut(); n > 0 && ft.Out(n-1) == errorType {
		b.errResult = true
	}
	return b
}

// Name returns the Go name of the bound method or the static name.
func (b *Binding) Name() string { return b.name }

// Static reports whether the binding has no receiver.
func (b *Binding) Static() bool { return b.recv == nil }

// Receiver returns the receiver type, or nil for static bindings.
func (b *Binding) Receiver() reflect.Type { return b.recv }

// Delegated reports whether a helper instance implements the binding.
func (b *Binding) Delegated() bool { return b.delegate.IsValid() }

// Params returns the script-visible parameter types.
func (b *Binding) Params() []reflect.Type { return b.params }

// Hints returns the per-parameter numeric hints.
func (b *Binding) Hints() []coerce.Hint { return b.hints }

// Variadic reports whether the last parameter is variadic.
func (b *Binding) Variadic() bool { return b.variadic }

// WithHints returns a copy with the leading parameter hints replaced.
// HintNone entries keep the hint derived from the parameter type.
func (b *Binding) WithHints(hints ...coerce.Hint) *Binding {
	c := *b
	c.hints = append([]coerce.Hint(nil), b.hints...)
	for i, h := range hints {
		if i < len(c.hints) && h != coerce.HintNone {
			c.hints[i] = h
		}
	}
	return &c
}

// Rebind resolves the binding against t, a type that embeds the original
// receiver. Methods are looked up again so that a method declared on t
// shadows the promoted one.
func (b *Binding) Rebind(t reflect.Type) (*Binding, bool) {
	if b.recv == nil || b.recv == t {
		return b, true
	}
	if b.delegate.IsValid() {
		c := *b
		c.recv = t
		return &c, true
	}
	nb, ok := ForMethod(t, b.name)
	if !ok {
		return nil, false
	}
	if b.sameParams(nb) {
		nb.hints = append([]coerce.Hint(nil), b.hints...)
	}
	return nb, true
}

// sameParams reports whether o takes the same script-visible parameters,
// so that hints set on b also apply to o.
func (b *Binding) sameParams(o *Binding) bool {
	if len(b.params) != len(o.params) || b.variadic != o.variadic || b.withState != o.withState {
		return false
	}
	for i, p := range b.params {
		if o.params[i] != p {
			return false
		}
	}
	return true
}

// Invoke converts self and args, calls the bound function and converts
// the results back.
func (b *Binding) Invoke(L *lua.LState, e *coerce.Engine, self lua.LValue, args []lua.LValue) ([]lua.LValue, error) {
	in := make([]reflect.Value, 0, len(b.params)+3)
	if b.delegate.IsValid() {
		in = append(in, b.delegate)
	}
	if b.recv != nil {
		if self == nil || self == lua.LNil {
			return nil, errors.MissingSelf(b.name, e.NativeTypeName(b.recv))
		}
		rv, err := e.ToNative(L, self, b.selfParam)
		if err != nil {
			return nil, withPath(err, b.name, "self")
		}
		in = append(in, rv)
	}
	if b.withState {
		in = append(in, reflect.ValueOf(L))
	}

	fixed := len(b.params)
	if b.variadic {
		fixed--
	}
	for i := 0; i < fixed; i++ {
		v, err := e.ToNativeHint(L, arg(args, i), b.params[i], b.hints[i])
		if err != nil {
			return nil, withPath(err, b.name, fmt.Sprintf("argument %d", i+1))
		}
		in = append(in, v)
	}
	if b.variadic {
		elem := b.params[fixed].Elem()
		for i := fixed; i < len(args); i++ {
			v, err := e.ToNativeHint(L, args[i], elem, b.hints[fixed])
			if err != nil {
				return nil, withPath(err, b.name, fmt.Sprintf("argument %d", i+1))
			}
			in = append(in, v)
		}
	}

	out, err := b.call(in)
	if err != nil {
		return nil, err
	}
	rets := make([]lua.LValue, len(out))
	for i, v := range out {
		lv, err := e.ValueToForeignExact(L, v)
		if err != nil {
			return nil, withPath(err, b.name, "result")
		}
		rets[i] = lv
	}
	return rets, nil
}

func (b *Binding) call(in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, nativeFailure(r)
		}
	}()

	out = b.fn.Call(in)
	if b.errResult {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, nativeFailure(last.Interface())
		}
	}
	return out, nil
}

// nativeFailure converts a panic value or returned error into the error
// surfaced to the caller. Errors that already came from Lua or from the
// bridge pass through unchanged.
func nativeFailure(r any) error {
	switch x := r.(type) {
	case *lua.ApiError:
		return x
	case *errors.Error:
		return x
	case error:
		var apiErr *lua.ApiError
		if stderrors.As(x, &apiErr) {
			return apiErr
		}
		return errors.Native(fmt.Sprintf("%T", x), x.Error(), x)
	default:
		return errors.Native(fmt.Sprintf("%T", r), fmt.Sprint(r), nil)
	}
}

func withPath(err error, path ...string) error {
	if be, ok := err.(*errors.Error); ok && len(be.Path) == 0 {
		be.Path = path
	}
	return err
}

func arg(args []lua.LValue, i int) lua.LValue {
	if i < len(args) {
		return args[i]
	}
	return lua.LNil
}
