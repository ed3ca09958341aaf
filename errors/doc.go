// Package errors provides structured error types for the luabridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the expected and given type names for coercion failures,
// the Go type of wrapped host failures, a member path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCoerce, errors.KindTypeMismatch).
//		Path("widget", "resize", "argument 1").
//		Expected("integer").
//		Given("string").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseCoerce, path, "integer", "string")
//	err := errors.UnimplementedOverride("greeter", "greet")
//
// Kind-only sentinels (ErrTypeMismatch, ErrMissingSelf, ...) match any phase:
//
//	if errors.Is(err, lberrors.ErrUnimplementedOverride) { ... }
package errors
