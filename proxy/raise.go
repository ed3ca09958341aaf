package proxy

import (
	stderrors "errors"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabridge/errors"
)

const errorTypeName = "luabridge.error"

// errorValue carries a bridge error through Lua as a userdata, so pcall
// receives the structured error and Go callers can recover it.
type errorValue struct {
	err *errors.Error
}

// Raise raises err in L. Errors that came from Lua are re-raised with
// their original value; bridge errors travel as userdata.
func Raise(L *lua.LState, err error) {
	var apiErr *lua.ApiError
	if stderrors.As(err, &apiErr) && apiErr.Object != nil {
		L.Error(apiErr.Object, 0)
		return
	}
	if be, ok := errors.As(err); ok {
		L.Error(ErrorValue(L, be), 0)
		return
	}
	L.RaiseError("%s", err.Error())
}

// ErrorValue returns the Lua representation of a bridge error.
func ErrorValue(L *lua.LState, err *errors.Error) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = &errorValue{err: err}
	ud.Metatable = errorMetatable(L)
	return ud
}

// Unraise recovers the bridge error carried by a Lua error, or returns
// err unchanged.
func Unraise(err error) error {
	var apiErr *lua.ApiError
	if !stderrors.As(err, &apiErr) {
		return err
	}
	if ud, ok := apiErr.Object.(*lua.LUserData); ok {
		if ev, ok := ud.Value.(*errorValue); ok {
			return ev.err
		}
	}
	return err
}

func errorMetatable(L *lua.LState) *lua.LTable {
	if mt, ok := L.GetTypeMetatable(errorTypeName).(*lua.LTable); ok {
		return mt
	}
	mt := L.NewTypeMetatable(errorTypeName)
	mt.RawSetString("__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkError(L).Error()))
		return 1
	}))
	mt.RawSetString("__index", L.NewFunction(errorIndex))
	mt.RawSetString("__type", lua.LString("error"))
	return mt
}

func checkError(L *lua.LState) *errors.Error {
	ud := L.CheckUserData(1)
	ev, ok := ud.Value.(*errorValue)
	if !ok {
		L.ArgError(1, "error expected")
	}
	return ev.err
}

// errorIndex exposes the error's fields: kind, phase, expected, given,
// gotype, detail, path and message.
func errorIndex(L *lua.LState) int {
	e := checkError(L)
	var v string
	switch L.CheckString(2) {
	case "kind":
		v = string(e.Kind)
	case "phase":
		v = string(e.Phase)
	case "expected":
		v = e.Expected
	case "given":
		v = e.Given
	case "gotype":
		v = e.GoType
	case "detail":
		v = e.Detail
	case "path":
		v = strings.Join(e.Path, ".")
	case "message":
		v = e.Error()
	default:
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(v))
	return 1
}
