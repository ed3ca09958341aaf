package proxy

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/meta"
)

// slot builds the metamethod for an operator slot. A script assignment
// under the metamethod name wins, then the member bound to the slot, then
// the default behavior. A bound member receives the proxy as self, so a
// non-commutative slot requires the proxy on the left.
func (tv *typeView) slot(s meta.Slot) lua.LGFunction {
	key := lua.LString(s.Metamethod())
	return func(L *lua.LState) int {
		args := stackArgs(L, 1)
		p, at := operand(args)
		if p == nil {
			L.ArgError(1, tv.name+" expected")
		}
		if !p.Valid() {
			Raise(L, invalidated(p))
		}

		if a, ok := p.Assigned(key); ok && a.owns(L) {
			base := L.GetTop()
			L.Push(a.Value)
			for _, arg := range args {
				L.Push(arg)
			}
			L.Call(len(args), lua.MultRet)
			return L.GetTop() - base
		}

		if p.desc != nil {
			if m, ok := p.desc.Slot(s); ok {
				var rest []lua.LValue
				switch {
				case s == meta.SlotCall:
					rest = args[at+1:]
				case s.Binary():
					if at != 0 && !s.Commutative() {
						Raise(L, errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
							Path(tv.name, s.Metamethod()).
							Expected(tv.name).
							Given(tv.cache.eng.ForeignTypeName(args[0])).
							Detail("%s needs %s as its left operand", s, tv.name).
							Build())
					}
					for i, arg := range args {
						if i != at {
							rest = append(rest, arg)
						}
					}
				}
				return tv.invoke(L, m, args[at], rest)
			}
		}
		return tv.fallback(L, s, p, args)
	}
}

func (tv *typeView) fallback(L *lua.LState, s meta.Slot, p *Proxy, args []lua.LValue) int {
	switch s {
	case meta.SlotToString:
		L.Push(lua.LString(fmt.Sprintf("%s: %p", p.name, p)))
		return 1
	case meta.SlotEq:
		L.Push(lua.LBool(sameObject(args)))
		return 1
	}
	Raise(L, errors.Unsupported(errors.PhaseInvoke,
		fmt.Sprintf("attempt to use %s on a %s value", s, p.name)))
	return 0
}

// operand returns the first proxy among the metamethod arguments.
func operand(args []lua.LValue) (*Proxy, int) {
	for i, arg := range args {
		if p, ok := FromLua(arg); ok {
			return p, i
		}
	}
	return nil, 0
}

func sameObject(args []lua.LValue) bool {
	if len(args) < 2 {
		return false
	}
	a, ok1 := FromLua(args[0])
	b, ok2 := FromLua(args[1])
	if !ok1 || !ok2 {
		return false
	}
	if a == b {
		return true
	}
	if a.handle != 0 || b.handle != 0 {
		return false
	}
	defer func() { _ = recover() }()
	return a.native == b.native
}
