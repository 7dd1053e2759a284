package wasm

import (
	wasmembed "github.com/wippyai/wasm-embed"
)

// Module is the static metadata view of a guest module: declared imports in
// section order, exports, and the types of every entity either can name.
type Module struct {
	Types   []wasmembed.FuncType
	Imports []Import
	Exports []Export

	// Defined (non-imported) entities, in definition order. Entity index
	// spaces put imports first, so the entity at index i of a kind is
	// imported when i < NumImported(kind) and defined otherwise.
	FuncTypeIndices []uint32
	Tables          []wasmembed.TableType
	Memories        []wasmembed.MemoryType
	Globals         []wasmembed.GlobalType

	StartFunc uint32
	HasStart  bool
}

// Import is one declared import: a two-level name plus the required type.
type Import struct {
	Module string
	Name   string
	Type   wasmembed.ExternType
}

// Kind returns the extern kind the import requires.
func (i Import) Kind() wasmembed.ExternKind {
	return wasmembed.KindOf(i.Type)
}

// Export is one declared export with its index into the kind's entity space.
// Two exports of the same kind and index name the same entity.
type Export struct {
	Name  string
	Kind  wasmembed.ExternKind
	Index uint32
}

// NumImported counts the imports of one kind. That count is also the first
// defined entity's index in the kind's entity space.
func (m *Module) NumImported(kind wasmembed.ExternKind) int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Kind() == kind {
			count++
		}
	}
	return count
}

// ImportAt returns the position in Imports of the i-th import of the given
// kind, or -1 when out of range.
func (m *Module) ImportAt(kind wasmembed.ExternKind, i int) int {
	seen := 0
	for pos, imp := range m.Imports {
		if imp.Kind() != kind {
			continue
		}
		if seen == i {
			return pos
		}
		seen++
	}
	return -1
}

// FuncTypeAt resolves the signature of the function at the given entity
// index, covering both imported and defined functions.
func (m *Module) FuncTypeAt(idx uint32) (wasmembed.FuncType, bool) {
	numImported := uint32(m.NumImported(wasmembed.KindFunc))
	if idx < numImported {
		pos := m.ImportAt(wasmembed.KindFunc, int(idx))
		ft, ok := m.Imports[pos].Type.(wasmembed.FuncType)
		return ft, ok
	}
	local := idx - numImported
	if int(local) >= len(m.FuncTypeIndices) {
		return wasmembed.FuncType{}, false
	}
	typeIdx := m.FuncTypeIndices[local]
	if int(typeIdx) >= len(m.Types) {
		return wasmembed.FuncType{}, false
	}
	return m.Types[typeIdx], true
}

// GlobalTypeAt resolves the type of the global at the given entity index.
func (m *Module) GlobalTypeAt(idx uint32) (wasmembed.GlobalType, bool) {
	numImported := uint32(m.NumImported(wasmembed.KindGlobal))
	if idx < numImported {
		pos := m.ImportAt(wasmembed.KindGlobal, int(idx))
		gt, ok := m.Imports[pos].Type.(wasmembed.GlobalType)
		return gt, ok
	}
	local := idx - numImported
	if int(local) >= len(m.Globals) {
		return wasmembed.GlobalType{}, false
	}
	return m.Globals[local], true
}

// MemoryTypeAt resolves the type of the memory at the given entity index.
func (m *Module) MemoryTypeAt(idx uint32) (wasmembed.MemoryType, bool) {
	numImported := uint32(m.NumImported(wasmembed.KindMemory))
	if idx < numImported {
		pos := m.ImportAt(wasmembed.KindMemory, int(idx))
		mt, ok := m.Imports[pos].Type.(wasmembed.MemoryType)
		return mt, ok
	}
	local := idx - numImported
	if int(local) >= len(m.Memories) {
		return wasmembed.MemoryType{}, false
	}
	return m.Memories[local], true
}

// TableTypeAt resolves the type of the table at the given entity index.
func (m *Module) TableTypeAt(idx uint32) (wasmembed.TableType, bool) {
	numImported := uint32(m.NumImported(wasmembed.KindTable))
	if idx < numImported {
		pos := m.ImportAt(wasmembed.KindTable, int(idx))
		tt, ok := m.Imports[pos].Type.(wasmembed.TableType)
		return tt, ok
	}
	local := idx - numImported
	if int(local) >= len(m.Tables) {
		return wasmembed.TableType{}, false
	}
	return m.Tables[local], true
}

// TypeOfExport resolves an export's full extern type.
func (m *Module) TypeOfExport(e Export) (wasmembed.ExternType, bool) {
	switch e.Kind {
	case wasmembed.KindFunc:
		ft, ok := m.FuncTypeAt(e.Index)
		return ft, ok
	case wasmembed.KindGlobal:
		gt, ok := m.GlobalTypeAt(e.Index)
		return gt, ok
	case wasmembed.KindMemory:
		mt, ok := m.MemoryTypeAt(e.Index)
		return mt, ok
	case wasmembed.KindTable:
		tt, ok := m.TableTypeAt(e.Index)
		return tt, ok
	}
	return nil, false
}
