package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile     Phase = "compile"     // binary decoding and validation
	PhaseValidate    Phase = "validate"    // standalone validation checks
	PhaseLink        Phase = "link"        // import resolution
	PhaseInstantiate Phase = "instantiate" // instance construction and start
	PhaseRuntime     Phase = "runtime"     // guest calls and entity access
	PhaseMarshal     Phase = "marshal"     // host <-> guest value conversion
	PhaseParse       Phase = "parse"       // text format parsing
	PhaseLoad        Phase = "load"        // module loading from files
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidModule     Kind = "invalid_module"
	KindMissingImport     Kind = "missing_import"
	KindKindMismatch      Kind = "kind_mismatch"
	KindTypeMismatch      Kind = "type_mismatch"
	KindNotCallable       Kind = "not_callable"
	KindUnsupported       Kind = "unsupported"
	KindTrap              Kind = "trap"
	KindNotFound          Kind = "not_found"
	KindNotInitialized    Kind = "not_initialized"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidData       Kind = "invalid_data"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindUnresolvedFuncref Kind = "unresolved_funcref"
	KindImmutable         Kind = "immutable"
)

// Error is the structured error type used throughout the embedding
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	HostType  string
	GuestType string
	Detail    string
	Path      []string
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

	if e.HostType != "" || e.GuestType != "" {
		b.WriteString(": ")
		if e.HostType != "" && e.GuestType != "" {
			b.WriteString("host ")
			b.WriteString(e.HostType)
			b.WriteString(", guest ")
			b.WriteString(e.GuestType)
		} else if e.HostType != "" {
			b.WriteString("host ")
			b.WriteString(e.HostType)
		} else {
			b.WriteString("guest ")
			b.WriteString(e.GuestType)
		}
	}

	if e.Detail != "" {
		if e.HostType != "" || e.GuestType != "" {
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// Path sets the location path, e.g. the import namespace and name
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// HostType sets the host value kind name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// GuestType sets the guest value type name
func (b *Builder) GuestType(t string) *Builder {
	b.err.GuestType = t
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

// CompileFailed creates a module rejection error
func CompileFailed(cause error, detail string) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInvalidModule,
		Detail: detail,
		Cause:  cause,
	}
}

// TypeMismatch creates a value type mismatch error
func TypeMismatch(phase Phase, path []string, hostType, guestType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		Path:      path,
		HostType:  hostType,
		GuestType: guestType,
	}
}

// KindMismatch creates an extern kind mismatch error for import resolution
func KindMismatch(path []string, want, got string) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindKindMismatch,
		Path:   path,
		Detail: fmt.Sprintf("import requires %s, provided value is %s", want, got),
	}
}

// NotCallable creates an error for a function import bound to a non-callable value
func NotCallable(path []string, got string) *Error {
	return &Error{
		Phase:    PhaseLink,
		Kind:     KindNotCallable,
		Path:     path,
		HostType: got,
		Detail:   "function import requires a callable value",
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

// Trap creates a guest trap error. Traps raised while running a start
// function carry PhaseInstantiate; traps from explicit calls carry
// PhaseRuntime.
func Trap(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrap,
		Detail: "guest trapped",
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

// NotInitialized creates a not-initialized error for a closed or absent component
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
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

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("offset %d out of bounds (size %d)", index, length),
		Value:  index,
	}
}

// UnresolvedFuncref creates an error for a callable with no guest address
func UnresolvedFuncref(name string) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindUnresolvedFuncref,
		Detail: fmt.Sprintf("callable %q does not wrap a guest function", name),
	}
}

// Immutable creates an error for writes to a constant global
func Immutable(name string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindImmutable,
		Detail: fmt.Sprintf("global %q is immutable", name),
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

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// MissingImport identifies a single unresolved import
type MissingImport struct {
	Namespace string // first-level import object key, e.g. "env"
	Name      string // second-level key, e.g. "memory"
	Kind      string // required extern kind, e.g. "function"
}

// MissingImportsError is returned when linking fails because the import
// object does not satisfy every declared import. Resolution keeps scanning
// after the first miss so the error lists all of them at once.
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from collected misses
func NewMissingImportsError(imports []MissingImport) *MissingImportsError {
	return &MissingImportsError{Imports: imports}
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[link] missing_import: no imports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d import(s):\n", len(e.Imports)))

	// Group by namespace for cleaner output
	byNS := make(map[string][]string)
	var nsOrder []string
	for _, imp := range e.Imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		entry := demangleRust(imp.Name)
		if imp.Kind != "" {
			entry += " (" + imp.Kind + ")"
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], entry)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, fn := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}

// demangleRust attempts to extract a readable function name from a mangled
// Rust symbol. Rust-built guests commonly import host functions under their
// mangled names, which are unreadable in diagnostics otherwise.
func demangleRust(name string) string {
	// Rust mangled names start with _ZN
	if !strings.HasPrefix(name, "_ZN") {
		return name
	}

	// Extract path segments from mangled name
	// Format: _ZN<len><name><len><name>...E
	s := name[3:] // skip "_ZN"
	var parts []string

	for len(s) > 0 && s[0] != 'E' {
		// Read length (can be multiple digits)
		lenEnd := 0
		for lenEnd < len(s) && s[lenEnd] >= '0' && s[lenEnd] <= '9' {
			lenEnd++
		}
		if lenEnd == 0 {
			break
		}

		length := 0
		for i := 0; i < lenEnd; i++ {
			length = length*10 + int(s[i]-'0')
		}
		s = s[lenEnd:]

		if length > len(s) {
			break
		}

		part := s[:length]
		s = s[length:]

		// Skip wit_import markers and hash suffixes (17 char hashes starting with 'h')
		if strings.HasPrefix(part, "wit_import") {
			continue
		}
		if len(part) == 17 && part[0] == 'h' {
			allHex := true
			for i := 1; i < 17; i++ {
				c := part[i]
				if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
					allHex = false
					break
				}
			}
			if allHex {
				continue
			}
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return name
	}

	return strings.Join(parts, "::")
}
