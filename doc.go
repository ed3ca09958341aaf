// Package luabridge exposes Go objects to Lua scripts running in
// gopher-lua and lets scripts override selected Go methods.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	luabridge/           Bridge, Env, options and the Override helpers
//	├── meta/            Declarations, registry and type descriptors
//	├── binding/         Reflect-based method and function bindings
//	├── coerce/          Conversion between Go values and Lua values
//	├── proxy/           Identity cache, proxies and Lua metatables
//	├── dispatch/        Script override dispatch for Go methods
//	├── naming/          Casing policy for exposed names
//	├── config/          YAML and TOML configuration
//	├── errors/          Structured error types for debugging
//	└── cmd/luabridge/   Script runner and interactive REPL
//
// # Quick Start
//
// Declare and register types, then run scripts against live objects:
//
//	b, err := luabridge.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = b.Register(
//	    meta.For[Shape]().
//	        Method("Area", meta.Overridable()).
//	        Method("Describe", meta.At(meta.SlotToString)).
//	        Field("W").Field("H"),
//	)
//
//	env := b.NewEnv()
//	defer env.Close()
//
//	env.Set("shape", &Shape{W: 2, H: 3})
//	err = env.DoString(`print(shape:area(), tostring(shape))`)
//
// # Overrides
//
// An override-capable method asks the bridge first and passes its own
// body as the default:
//
//	func (s *Shape) Area() (float64, error) {
//	    return luabridge.Override(b, s, "Area", func() (float64, error) {
//	        return s.W * s.H, nil
//	    })
//	}
//
// After a script runs shape.area = function(self) return 42 end, Go callers
// of Area get 42. Assigning the original value back restores the Go body.
//
// # Errors
//
// Bridge failures are *errors.Error values. Inside Lua they are raised as
// userdata with kind, phase, path and message fields, so pcall can
// inspect them; Env.DoString returns the original *errors.Error.
//
// # Thread Safety
//
// Bridge is safe for concurrent use once registration is done. Env is NOT
// thread-safe and should be used by a single goroutine.
package luabridge
