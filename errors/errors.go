package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // type registration
	PhaseCoerce   Phase = "coerce"   // value conversion
	PhaseInvoke   Phase = "invoke"   // method binding calls
	PhaseDispatch Phase = "dispatch" // override dispatch
	PhaseScript   Phase = "script"   // script execution
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindUnregisteredParent    Kind = "unregistered_parent"
	KindInvalidDelegate       Kind = "invalid_delegate"
	KindTypeMismatch          Kind = "type_mismatch"
	KindMissingSelf           Kind = "missing_self"
	KindUnimplementedOverride Kind = "unimplemented_override"
	KindNative                Kind = "native"
	KindNotFound              Kind = "not_found"
	KindInvalidInput          Kind = "invalid_input"
	KindUnsupported           Kind = "unsupported"
)

// Sentinels for errors.Is checks that only care about the kind.
var (
	ErrUnregisteredParent    = &Error{Kind: KindUnregisteredParent}
	ErrInvalidDelegate       = &Error{Kind: KindInvalidDelegate}
	ErrTypeMismatch          = &Error{Kind: KindTypeMismatch}
	ErrMissingSelf           = &Error{Kind: KindMissingSelf}
	ErrUnimplementedOverride = &Error{Kind: KindUnimplementedOverride}
	ErrNative                = &Error{Kind: KindNative}
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Expected string // exposed name of the expected type
	Given    string // exposed name of the given type
	GoType   string // dynamic Go type of a wrapped native failure
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	hasTypes := e.Expected != "" || e.Given != ""
	if hasTypes {
		b.WriteString(": ")
		switch {
		case e.Expected != "" && e.Given != "":
			b.WriteString(e.Expected)
			b.WriteString(" expected, got ")
			b.WriteString(e.Given)
		case e.Expected != "":
			b.WriteString(e.Expected)
			b.WriteString(" expected")
		default:
			b.WriteString("got ")
			b.WriteString(e.Given)
		}
	}

	if e.GoType != "" {
		if hasTypes {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.GoType)
		if e.Detail != "" {
			b.WriteString(": ")
			b.WriteString(e.Detail)
		}
	} else if e.Detail != "" {
		if hasTypes {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Expected sets the expected type name
func (b *Builder) Expected(t string) *Builder {
	b.err.Expected = t
	return b
}

// Given sets the given type name
func (b *Builder) Given(t string) *Builder {
	b.err.Given = t
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, expected, given string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		Expected: expected,
		Given:    given,
	}
}

// UnregisteredParent creates an error for a child registered before its parent
func UnregisteredParent(parent, child string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindUnregisteredParent,
		Path:   []string{child},
		Detail: fmt.Sprintf("parent type %s of %s has not been registered; could not inherit", parent, child),
	}
}

// InvalidDelegate creates a delegate shape error
func InvalidDelegate(typeName, detail string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindInvalidDelegate,
		Path:   []string{typeName},
		Detail: detail,
	}
}

// MissingSelf creates an error for an instance call made without a receiver
func MissingSelf(member, expected string) *Error {
	return &Error{
		Phase:    PhaseInvoke,
		Kind:     KindMissingSelf,
		Path:     []string{member},
		Expected: expected,
		Detail:   "instance method called without self",
	}
}

// UnimplementedOverride creates an error for an override-capable method
// that neither the host nor the script implements
func UnimplementedOverride(typeName, member string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindUnimplementedOverride,
		Path:   []string{typeName, member},
		Detail: "method has no host default and no script implementation",
	}
}

// Native wraps a failure raised by host code
func Native(goType, message string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindNative,
		GoType: goType,
		Detail: message,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// As returns err as a bridge error if it is one.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
