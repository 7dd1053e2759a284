package errors

import (
	"errors"
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
				Phase:     PhaseMarshal,
				Kind:      KindTypeMismatch,
				Path:      []string{"env", "tick"},
				HostType:  "number",
				GuestType: "i64",
				Detail:    "i64 arguments require a bigint",
			},
			contains: []string{"[marshal]", "type_mismatch", "env.tick", "number", "i64", "bigint"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRuntime,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[runtime]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseInstantiate,
				Kind:   KindTrap,
				Detail: "guest trapped",
				Cause:  errors.New("wasm error: unreachable"),
			},
			contains: []string{"[instantiate]", "trap", "guest trapped", "caused by", "unreachable"},
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
		Phase: PhaseCompile,
		Kind:  KindInvalidModule,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	// Test with errors.Unwrap
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseMarshal,
		Kind:  KindTypeMismatch,
		Path:  []string{"foo"},
	}

	// Same phase and kind
	if !err.Is(&Error{Phase: PhaseMarshal, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}

	// Different phase
	if err.Is(&Error{Phase: PhaseLink, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}

	// Different kind
	if err.Is(&Error{Phase: PhaseMarshal, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	// Instantiate trap and runtime trap stay distinguishable
	startTrap := Trap(PhaseInstantiate, errors.New("unreachable"))
	callTrap := Trap(PhaseRuntime, errors.New("unreachable"))
	if errors.Is(startTrap, callTrap) {
		t.Error("instantiate trap should not match runtime trap")
	}

	// Test with errors.Is
	target := &Error{Phase: PhaseMarshal, Kind: KindTypeMismatch}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseMarshal, KindTypeMismatch).
		Path("env", "add").
		HostType("string").
		GuestType("i32").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "number", "string").
		Build()

	if err.Phase != PhaseMarshal {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseMarshal)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "env" || err.Path[1] != "add" {
		t.Errorf("Path = %v, want [env add]", err.Path)
	}
	if err.HostType != "string" {
		t.Errorf("HostType = %v, want 'string'", err.HostType)
	}
	if err.GuestType != "i32" {
		t.Errorf("GuestType = %v, want 'i32'", err.GuestType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected number, got string" {
		t.Errorf("Detail = %v, want 'expected number, got string'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("CompileFailed", func(t *testing.T) {
		cause := errors.New("invalid magic number")
		err := CompileFailed(cause, "decode module")
		if err.Phase != PhaseCompile || err.Kind != KindInvalidModule {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
		if !errors.Is(err, cause) {
			t.Error("cause not wrapped")
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseMarshal, []string{"arg", "0"}, "number", "i64")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
		if err.HostType != "number" || err.GuestType != "i64" {
			t.Errorf("HostType=%v GuestType=%v", err.HostType, err.GuestType)
		}
	})

	t.Run("KindMismatch", func(t *testing.T) {
		err := KindMismatch([]string{"env", "memory"}, "memory", "global")
		if err.Phase != PhaseLink || err.Kind != KindKindMismatch {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Error(), "env.memory") {
			t.Errorf("Error() = %q, should name the import", err.Error())
		}
	})

	t.Run("NotCallable", func(t *testing.T) {
		err := NotCallable([]string{"env", "add"}, "number")
		if err.Kind != KindNotCallable {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotCallable)
		}
		if err.HostType != "number" {
			t.Errorf("HostType = %v, want number", err.HostType)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseMarshal, "externref values")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})

	t.Run("Trap", func(t *testing.T) {
		cause := errors.New("wasm error: integer divide by zero")
		err := Trap(PhaseRuntime, cause)
		if err.Kind != KindTrap {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTrap)
		}
		if !errors.Is(err, cause) {
			t.Error("cause not wrapped")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseRuntime, "export", "main")
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
		if !strings.Contains(err.Detail, `"main"`) {
			t.Errorf("Detail = %v, should quote the name", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseRuntime, []string{"memory"}, 70000, 65536)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 70000 {
			t.Errorf("Value = %v, want 70000", err.Value)
		}
	})

	t.Run("UnresolvedFuncref", func(t *testing.T) {
		err := UnresolvedFuncref("callback")
		if err.Phase != PhaseMarshal || err.Kind != KindUnresolvedFuncref {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
	})

	t.Run("Immutable", func(t *testing.T) {
		err := Immutable("counter")
		if err.Kind != KindImmutable {
			t.Errorf("Kind = %v, want %v", err.Kind, KindImmutable)
		}
	})

	t.Run("NotInitialized", func(t *testing.T) {
		err := NotInitialized(PhaseRuntime, "store")
		if err.Kind != KindNotInitialized {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotInitialized)
		}
	})

	t.Run("ParseFailed", func(t *testing.T) {
		err := ParseFailed("module text", errors.New("unexpected token"))
		if err.Phase != PhaseParse {
			t.Errorf("Phase = %v, want %v", err.Phase, PhaseParse)
		}
	})
}

func TestMissingImportsError(t *testing.T) {
	t.Run("single import", func(t *testing.T) {
		err := NewMissingImportsError([]MissingImport{
			{Namespace: "env", Name: "foo", Kind: "function"},
		})
		if len(err.Imports) != 1 {
			t.Errorf("expected 1 import, got %d", len(err.Imports))
		}
		msg := err.Error()
		if !strings.Contains(msg, "env") || !strings.Contains(msg, "foo") {
			t.Errorf("error %q should name env.foo", msg)
		}
		if !strings.Contains(msg, "function") {
			t.Errorf("error %q should name the extern kind", msg)
		}
	})

	t.Run("multiple namespaces grouped", func(t *testing.T) {
		err := NewMissingImportsError([]MissingImport{
			{Namespace: "env", Name: "add", Kind: "function"},
			{Namespace: "host", Name: "mem", Kind: "memory"},
			{Namespace: "env", Name: "counter", Kind: "global"},
		})
		msg := err.Error()
		if !strings.Contains(msg, "missing 3 import(s)") {
			t.Errorf("error should carry the count, got: %s", msg)
		}
		if !strings.Contains(msg, "env:") || !strings.Contains(msg, "host:") {
			t.Errorf("error should group by namespace, got: %s", msg)
		}
		// env listed once even though it misses twice
		if strings.Count(msg, "env:") != 1 {
			t.Errorf("namespace env should appear once, got: %s", msg)
		}
	})

	t.Run("empty imports", func(t *testing.T) {
		err := NewMissingImportsError(nil)
		if !strings.Contains(err.Error(), "no imports specified") {
			t.Errorf("empty error should have specific message, got: %s", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := NewMissingImportsError([]MissingImport{{Namespace: "ns", Name: "fn"}})
		if !errors.Is(err, &MissingImportsError{}) {
			t.Error("errors.Is should match MissingImportsError")
		}
	})
}

func TestDemangleRust(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			input:    "foo",
			expected: "foo",
		},
		{
			input:    "_ZN10hello_http8bindings4wasi4http5types6Fields3new11wit_import017ha931456e169eb010E",
			expected: "hello_http::bindings::wasi::http::types::Fields::new",
		},
		{
			input:    "_ZN4core3ptr8write_fn17ha1b2c3d4e5f67890E",
			expected: "core::ptr::write_fn",
		},
	}

	for _, tt := range tests {
		name := tt.input
		if len(name) > 30 {
			name = name[:30]
		}
		t.Run(name, func(t *testing.T) {
			result := demangleRust(tt.input)
			if result != tt.expected {
				t.Errorf("demangleRust(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
