package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseCoerce,
				Kind:     KindTypeMismatch,
				Path:     []string{"widget", "resize", "argument 1"},
				Expected: "integer",
				Given:    "string",
				Detail:   "cannot convert",
			},
			contains: []string{"[coerce]", "type_mismatch", "widget.resize.argument 1", "integer expected, got string", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDispatch,
				Kind:  KindUnimplementedOverride,
			},
			contains: []string{"[dispatch]", "unimplemented_override"},
		},
		{
			name: "native error",
			err: &Error{
				Phase:  PhaseInvoke,
				Kind:   KindNative,
				GoType: "*fs.PathError",
				Detail: "open x: no such file",
			},
			contains: []string{"[invoke]", "native", "*fs.PathError: open x: no such file"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseConfig,
				Kind:   KindInvalidInput,
				Detail: "bad scope",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[config]", "invalid_input", "bad scope", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseInvoke,
		Kind:  KindNative,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseCoerce,
		Kind:  KindTypeMismatch,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseCoerce, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseInvoke, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseCoerce, Kind: KindMissingSelf}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrTypeMismatch) {
		t.Error("errors.Is should match the kind-only sentinel")
	}
	if errors.Is(err, ErrMissingSelf) {
		t.Error("errors.Is should not match a different sentinel")
	}

	wrapped := fmt.Errorf("calling resize: %w", err)
	if !errors.Is(wrapped, ErrTypeMismatch) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseCoerce, KindTypeMismatch).
		Path("widget", "size").
		Expected("integer").
		Given("table").
		GoType("int32").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "integer", "table").
		Build()

	if err.Phase != PhaseCoerce {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseCoerce)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "widget" || err.Path[1] != "size" {
		t.Errorf("Path = %v, want [widget size]", err.Path)
	}
	if err.Expected != "integer" || err.Given != "table" {
		t.Errorf("Expected=%v Given=%v", err.Expected, err.Given)
	}
	if err.GoType != "int32" {
		t.Errorf("GoType = %v, want 'int32'", err.GoType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected integer, got table" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseCoerce, []string{"arg"}, "integer", "string")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
		if err.Expected != "integer" || err.Given != "string" {
			t.Errorf("Expected=%v Given=%v", err.Expected, err.Given)
		}
	})

	t.Run("UnregisteredParent", func(t *testing.T) {
		err := UnregisteredParent("*pkg.Base", "*pkg.Child")
		if !errors.Is(err, ErrUnregisteredParent) {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "*pkg.Base") {
			t.Errorf("Detail = %v, should name the parent", err.Detail)
		}
	})

	t.Run("InvalidDelegate", func(t *testing.T) {
		err := InvalidDelegate("helper", "first parameter must accept the target")
		if err.Phase != PhaseRegister || err.Kind != KindInvalidDelegate {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
	})

	t.Run("MissingSelf", func(t *testing.T) {
		err := MissingSelf("describe", "widget")
		if err.Kind != KindMissingSelf || err.Expected != "widget" {
			t.Errorf("Kind=%v Expected=%v", err.Kind, err.Expected)
		}
	})

	t.Run("UnimplementedOverride", func(t *testing.T) {
		err := UnimplementedOverride("greeter", "greet")
		if err.Kind != KindUnimplementedOverride {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Error(), "greeter.greet") {
			t.Errorf("Error() = %v, should contain path", err.Error())
		}
	})

	t.Run("Native", func(t *testing.T) {
		cause := errors.New("boom")
		err := Native("*errors.errorString", "boom", cause)
		if err.Kind != KindNative || err.GoType != "*errors.errorString" {
			t.Errorf("Kind=%v GoType=%v", err.Kind, err.GoType)
		}
		if !errors.Is(err, cause) {
			t.Error("Native should unwrap to its cause")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseConfig, "catalog type", "Widget")
		if err.Kind != KindNotFound || !strings.Contains(err.Detail, `"Widget"`) {
			t.Errorf("Kind=%v Detail=%v", err.Kind, err.Detail)
		}
	})
}

func TestAs(t *testing.T) {
	inner := MissingSelf("describe", "widget")
	wrapped := fmt.Errorf("outer: %w", inner)

	got, ok := As(wrapped)
	if !ok || got != inner {
		t.Fatalf("As(wrapped) = %v, %v", got, ok)
	}

	if _, ok := As(errors.New("plain")); ok {
		t.Error("As should not match a plain error")
	}
	if _, ok := As(nil); ok {
		t.Error("As(nil) should not match")
	}
}
