package coerce

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// luaFunc builds a Go function of type ft that calls fn in L. A trailing
// error result receives call and conversion failures; without one they
// panic.
func (e *Engine) luaFunc(L *lua.LState, fn *lua.LFunction, ft reflect.Type) reflect.Value {
	nout := ft.NumOut()
	hasErr := nout > 0 && ft.Out(nout-1) == errorType
	nret := nout
	if hasErr {
		nret--
	}

	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		args := make([]lua.LValue, 0, len(in))
		for i, v := range in {
			if ft.IsVariadic() && i == len(in)-1 {
				for j := 0; j < v.Len(); j++ {
					args = append(args, e.ValueToForeign(L, v.Index(j)))
				}
				continue
			}
			args = append(args, e.ValueToForeign(L, v))
		}

		out := make([]reflect.Value, nout)
		for i := range out {
			out[i] = reflect.Zero(ft.Out(i))
		}

		err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...)
		if err == nil && nret > 0 {
			base := L.GetTop() - nret
			for i := 0; i < nret; i++ {
				v, cerr := e.ToNative(L, L.Get(base+i+1), ft.Out(i))
				if cerr != nil {
					err = cerr
					break
				}
				out[i] = v
			}
			L.Pop(nret)
		}

		if err != nil {
			if !hasErr {
				panic(err)
			}
			out[nout-1] = reflect.ValueOf(&err).Elem()
		}
		return out
	})
}
