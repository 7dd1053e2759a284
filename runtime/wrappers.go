package runtime

import (
	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/hostval"
)

// Export wrappers are host values over store entities. Each instance
// caches one wrapper per address, so repeated export lookups hand the
// host the identical object; the linker recognizes them through the
// bridge's ref interfaces and reuses the wrapped address directly.

// Memory is a host value wrapping a guest linear memory.
type Memory struct {
	hostval.Extern
	runtime *Runtime
	addr    wasmembed.MemAddr
}

// MemAddr returns the wrapped memory address.
func (m *Memory) MemAddr() wasmembed.MemAddr {
	return m.addr
}

// Type returns the memory's declared limits.
func (m *Memory) Type() (wasmembed.MemoryType, error) {
	return m.runtime.store.MemoryType(m.addr)
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() (uint32, error) {
	return m.runtime.store.MemorySize(m.addr)
}

// PageCount returns the current memory size in 64KB pages.
func (m *Memory) PageCount() (uint32, error) {
	size, err := m.runtime.store.MemorySize(m.addr)
	if err != nil {
		return 0, err
	}
	return size / 65536, nil
}

// Grow extends the memory by delta pages and returns the previous size
// in pages. Growing past the declared maximum fails.
func (m *Memory) Grow(delta uint32) (uint32, error) {
	return m.runtime.store.MemoryGrow(m.addr, delta)
}

// Read copies count bytes starting at offset out of guest memory.
func (m *Memory) Read(offset, count uint32) ([]byte, error) {
	view, err := m.runtime.store.MemoryRead(m.addr, offset, count)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// Write copies data into guest memory starting at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	return m.runtime.store.MemoryWrite(m.addr, offset, data)
}

// Global is a host value wrapping a guest global.
type Global struct {
	hostval.Extern
	runtime *Runtime
	addr    wasmembed.GlobalAddr
}

// GlobalAddr returns the wrapped global address.
func (g *Global) GlobalAddr() wasmembed.GlobalAddr {
	return g.addr
}

// Type returns the global's declared value type and mutability.
func (g *Global) Type() (wasmembed.GlobalType, error) {
	return g.runtime.store.GlobalType(g.addr)
}

// Get reads the global's current value as a host value: numbers for
// 32-bit and float types, a bigint for i64.
func (g *Global) Get() (hostval.Value, error) {
	v, err := g.runtime.store.GlobalGet(g.addr)
	if err != nil {
		return nil, err
	}
	return g.runtime.bridge.ToHost(v)
}

// Set writes the global. The global must be declared mutable, and v
// must marshal to its value type under the usual rules: an i64 global
// takes a bigint, never a plain number.
func (g *Global) Set(v hostval.Value) error {
	gt, err := g.runtime.store.GlobalType(g.addr)
	if err != nil {
		return err
	}
	gv, err := g.runtime.bridge.ToGuest(v, gt.Val)
	if err != nil {
		return err
	}
	return g.runtime.store.GlobalSet(g.addr, gv)
}

// Table is a host value wrapping a guest table. The engine exposes no
// table contents to the host, so the wrapper carries the declared type
// and links by address; element access is unsupported.
type Table struct {
	hostval.Extern
	runtime *Runtime
	addr    wasmembed.TableAddr
}

// TableAddr returns the wrapped table address.
func (t *Table) TableAddr() wasmembed.TableAddr {
	return t.addr
}

// Type returns the table's declared element type and limits.
func (t *Table) Type() (wasmembed.TableType, error) {
	return t.runtime.store.TableType(t.addr)
}

// Get reports that element access is unsupported.
func (t *Table) Get(uint32) (hostval.Value, error) {
	return nil, errors.Unsupported(errors.PhaseRuntime, "table element access")
}
