// Package proxy implements the script-visible side of native objects.
//
// A Cache maps each native object with pointer identity to at most one
// live Proxy. The cache holds proxies through weak pointers plus a handle
// table with free-list reuse; runtime cleanups evict entries whose proxy
// was collected. A proxy carrying script assignments is pinned until the
// assignments go away or the host calls Invalidate.
//
// # Lua views
//
// Each proxy has one userdata per *lua.LState; coroutines use their main
// thread's. Its metatable, shared by every object of the type in that
// state, resolves:
//
//	obj.name          script assignment, then live field read, then the
//	                  member's placeholder function, then nil
//	obj.name = v      field write (nil writes the zero value), assigning
//	                  the placeholder back resets an override, anything
//	                  else is stored on the proxy
//	tostring(obj) ... operator slots: a script assignment under the
//	                  metamethod name, then the member in the slot;
//	                  except for ==, + and * the proxy must be on the left
//
// # Errors
//
// Bridge errors cross into Lua as userdata with kind, phase, expected,
// given, gotype, detail, path and message fields. Unraise recovers them
// from a *lua.ApiError.
//
// # Observers
//
//	cache.Subscribe(observer)
//	// observer.OnProxyEvent receives EventCreated, EventInvalidated
//	// and EventCollected
package proxy
