// Package errors provides structured error types for the wasm-embed library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: an import or export path,
// the host and guest type names involved, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
//		Path("env", "tick").
//		HostType("number").
//		GuestType("i64").
//		Detail("i64 arguments require a bigint").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseMarshal, path, "number", "i64")
//	err := errors.Trap(errors.PhaseRuntime, cause)
//
// Linking failure is the one multi-error case: resolution scans every
// declared import before reporting, so MissingImportsError carries the full
// list of unsatisfied imports rather than just the first.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
