// Package meta builds the descriptors that say how Go types appear to Lua.
//
// A Decl names the methods, fields, static functions and delegate helpers
// a type exposes. Registry.Register resolves it into an immutable
// TypeDescriptor:
//
//   - Ancestors are the exposed types embedded in the struct (or named with
//     Extends). Their members are merged first, re-resolved against the
//     child so that a method the child declares shadows the promoted one.
//     An ancestor that is declared but not yet built fails registration
//     with an unregistered-parent error: register parents first.
//   - Own members replace inherited members with the same Go name and
//     evict whatever member holds their exposed name or operator slot.
//   - A field never displaces a method exposed under the same name.
//   - Delegates expose helper methods on behalf of the type. The helper
//     is instantiated once and captured by the bindings.
//
// Collisions between a type's own declarations resolve in declaration
// order, the later one winning, and are logged at warn level.
package meta
