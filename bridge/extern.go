package bridge

import (
	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/hostval"
)

// The embedding's entity wrappers surface to linking through these
// interfaces, so import resolution can recover the address behind a
// wrapper without knowing the wrapper type.

// MemoryRef is a host value wrapping a guest memory.
type MemoryRef interface {
	hostval.Value
	MemAddr() wasmembed.MemAddr
}

// TableRef is a host value wrapping a guest table.
type TableRef interface {
	hostval.Value
	TableAddr() wasmembed.TableAddr
}

// GlobalRef is a host value wrapping a guest global.
type GlobalRef interface {
	hostval.Value
	GlobalAddr() wasmembed.GlobalAddr
}
