package runtime

import (
	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/wasm"
)

// Module is a compiled, validated guest module held by the registry.
// It is immutable: the declarations below never change after Compile.
type Module struct {
	runtime  *Runtime
	handle   int
	compiled *store.CompiledModule
}

// Handle returns the module's registry handle. Handles are stable for
// the life of the runtime and never reused.
func (m *Module) Handle() int {
	return m.handle
}

// Size returns the binary size in bytes.
func (m *Module) Size() int {
	return m.compiled.Size()
}

// Imports lists the module's declared imports in declaration order.
// The returned slice is shared; treat it as read-only.
func (m *Module) Imports() []wasm.Import {
	return m.compiled.Meta().Imports
}

// Exports lists the module's declared exports in declaration order.
// The returned slice is shared; treat it as read-only.
func (m *Module) Exports() []wasm.Export {
	return m.compiled.Meta().Exports
}

// TypeOfExport resolves an export declaration to its extern type.
func (m *Module) TypeOfExport(e wasm.Export) (wasmembed.ExternType, bool) {
	return m.compiled.Meta().TypeOfExport(e)
}
