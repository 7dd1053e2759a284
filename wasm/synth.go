package wasm

import (
	"fmt"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/wasm/internal/binary"
)

// ModuleBuilder assembles a guest module from scratch. The store uses it to
// synthesize single-entity modules backing host-created globals, memories,
// and tables; the text compiler uses it as its encoding backend.
//
// Imports of a kind must be declared before definitions of that kind, since
// entity indices returned by the Add methods count imports first.
type ModuleBuilder struct {
	types   []wasmembed.FuncType
	imports []builderImport
	funcs   []builderFunc
	tables  []wasmembed.TableType
	mems    []wasmembed.MemoryType
	globals []builderGlobal
	exports []builderExport
	elems   []builderElem
	start   int64

	importedFuncs   int
	importedTables  int
	importedMems    int
	importedGlobals int
}

type builderImport struct {
	module string
	name   string
	kind   wasmembed.ExternKind
	// typeIdx for functions; full types otherwise
	typeIdx uint32
	table   wasmembed.TableType
	mem     wasmembed.MemoryType
	global  wasmembed.GlobalType
}

type builderFunc struct {
	typeIdx uint32
	locals  []wasmembed.ValType
	code    []byte // instructions without the trailing end opcode
}

type builderGlobal struct {
	typ  wasmembed.GlobalType
	init wasmembed.Value
}

type builderExport struct {
	name string
	kind wasmembed.ExternKind
	idx  uint32
}

type builderElem struct {
	offset   int32
	funcIdxs []uint32
}

// NewModuleBuilder creates an empty builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{start: -1}
}

// TypeIndex interns a function type and returns its index.
func (b *ModuleBuilder) TypeIndex(ft wasmembed.FuncType) uint32 {
	for i, t := range b.types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	b.types = append(b.types, ft)
	return uint32(len(b.types) - 1)
}

// ImportFunc declares a function import and returns its entity index.
func (b *ModuleBuilder) ImportFunc(module, name string, ft wasmembed.FuncType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasm: function import after function definition")
	}
	b.imports = append(b.imports, builderImport{
		module: module, name: name, kind: wasmembed.KindFunc, typeIdx: b.TypeIndex(ft),
	})
	b.importedFuncs++
	return uint32(b.importedFuncs - 1)
}

// ImportTable declares a table import and returns its entity index.
func (b *ModuleBuilder) ImportTable(module, name string, tt wasmembed.TableType) uint32 {
	if len(b.tables) > 0 {
		panic("wasm: table import after table definition")
	}
	b.imports = append(b.imports, builderImport{
		module: module, name: name, kind: wasmembed.KindTable, table: tt,
	})
	b.importedTables++
	return uint32(b.importedTables - 1)
}

// ImportMemory declares a memory import and returns its entity index.
func (b *ModuleBuilder) ImportMemory(module, name string, mt wasmembed.MemoryType) uint32 {
	if len(b.mems) > 0 {
		panic("wasm: memory import after memory definition")
	}
	b.imports = append(b.imports, builderImport{
		module: module, name: name, kind: wasmembed.KindMemory, mem: mt,
	})
	b.importedMems++
	return uint32(b.importedMems - 1)
}

// ImportGlobal declares a global import and returns its entity index.
func (b *ModuleBuilder) ImportGlobal(module, name string, gt wasmembed.GlobalType) uint32 {
	if len(b.globals) > 0 {
		panic("wasm: global import after global definition")
	}
	b.imports = append(b.imports, builderImport{
		module: module, name: name, kind: wasmembed.KindGlobal, global: gt,
	})
	b.importedGlobals++
	return uint32(b.importedGlobals - 1)
}

// AddFunc defines a function. code holds its instructions without the
// trailing end opcode; the builder appends it.
func (b *ModuleBuilder) AddFunc(ft wasmembed.FuncType, locals []wasmembed.ValType, code []byte) uint32 {
	b.funcs = append(b.funcs, builderFunc{typeIdx: b.TypeIndex(ft), locals: locals, code: code})
	return uint32(b.importedFuncs + len(b.funcs) - 1)
}

// AddTable defines a table.
func (b *ModuleBuilder) AddTable(tt wasmembed.TableType) uint32 {
	b.tables = append(b.tables, tt)
	return uint32(b.importedTables + len(b.tables) - 1)
}

// AddMemory defines a memory.
func (b *ModuleBuilder) AddMemory(mt wasmembed.MemoryType) uint32 {
	b.mems = append(b.mems, mt)
	return uint32(b.importedMems + len(b.mems) - 1)
}

// AddGlobal defines a global with an initial value. The value's type must
// match the declared type; null funcref and externref initialize to null.
func (b *ModuleBuilder) AddGlobal(gt wasmembed.GlobalType, init wasmembed.Value) uint32 {
	b.globals = append(b.globals, builderGlobal{typ: gt, init: init})
	return uint32(b.importedGlobals + len(b.globals) - 1)
}

// AddElem appends an active element segment for table 0 placing funcIdxs
// starting at the given offset.
func (b *ModuleBuilder) AddElem(offset int32, funcIdxs []uint32) {
	b.elems = append(b.elems, builderElem{offset: offset, funcIdxs: funcIdxs})
}

// Export declares an export of the entity at idx.
func (b *ModuleBuilder) Export(name string, kind wasmembed.ExternKind, idx uint32) {
	b.exports = append(b.exports, builderExport{name: name, kind: kind, idx: idx})
}

// SetStart marks the function at idx as the start function.
func (b *ModuleBuilder) SetStart(idx uint32) {
	b.start = int64(idx)
}

// Build assembles the module bytes.
func (b *ModuleBuilder) Build() []byte {
	w := binary.NewWriter()
	w.WriteBytes(magicVersion)

	if len(b.types) > 0 {
		writeSection(w, sectionType, b.buildTypeSection())
	}
	if len(b.imports) > 0 {
		writeSection(w, sectionImport, b.buildImportSection())
	}
	if len(b.funcs) > 0 {
		writeSection(w, sectionFunction, b.buildFuncSection())
	}
	if len(b.tables) > 0 {
		writeSection(w, sectionTable, b.buildTableSection())
	}
	if len(b.mems) > 0 {
		writeSection(w, sectionMemory, b.buildMemorySection())
	}
	if len(b.globals) > 0 {
		writeSection(w, sectionGlobal, b.buildGlobalSection())
	}
	if len(b.exports) > 0 {
		writeSection(w, sectionExport, b.buildExportSection())
	}
	if b.start >= 0 {
		sw := binary.NewWriter()
		sw.WriteU32(uint32(b.start))
		writeSection(w, sectionStart, sw.Bytes())
	}
	if len(b.elems) > 0 {
		writeSection(w, sectionElement, b.buildElemSection())
	}
	if len(b.funcs) > 0 {
		writeSection(w, sectionCode, b.buildCodeSection())
	}

	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, payload []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(payload)))
	w.WriteBytes(payload)
}

func (b *ModuleBuilder) buildTypeSection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.types)))
	for _, ft := range b.types {
		w.Byte(0x60)
		w.WriteU32(uint32(len(ft.Params)))
		for _, p := range ft.Params {
			w.Byte(byte(p))
		}
		w.WriteU32(uint32(len(ft.Results)))
		for _, r := range ft.Results {
			w.Byte(byte(r))
		}
	}
	return w.Bytes()
}

func (b *ModuleBuilder) buildImportSection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.imports)))
	for _, imp := range b.imports {
		w.WriteName(imp.module)
		w.WriteName(imp.name)
		w.Byte(byte(imp.kind))
		switch imp.kind {
		case wasmembed.KindFunc:
			w.WriteU32(imp.typeIdx)
		case wasmembed.KindTable:
			w.Byte(byte(imp.table.Elem))
			writeLimits(w, imp.table.Limits)
		case wasmembed.KindMemory:
			writeLimits(w, imp.mem.Limits)
		case wasmembed.KindGlobal:
			writeGlobalType(w, imp.global)
		}
	}
	return w.Bytes()
}

func (b *ModuleBuilder) buildFuncSection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		w.WriteU32(f.typeIdx)
	}
	return w.Bytes()
}

func (b *ModuleBuilder) buildTableSection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.tables)))
	for _, tt := range b.tables {
		w.Byte(byte(tt.Elem))
		writeLimits(w, tt.Limits)
	}
	return w.Bytes()
}

func (b *ModuleBuilder) buildMemorySection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.mems)))
	for _, mt := range b.mems {
		writeLimits(w, mt.Limits)
	}
	return w.Bytes()
}

func (b *ModuleBuilder) buildGlobalSection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.globals)))
	for _, g := range b.globals {
		writeGlobalType(w, g.typ)
		writeConstExpr(w, g.typ.Val, g.init)
	}
	return w.Bytes()
}

func (b *ModuleBuilder) buildExportSection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.exports)))
	for _, e := range b.exports {
		w.WriteName(e.name)
		w.Byte(byte(e.kind))
		w.WriteU32(e.idx)
	}
	return w.Bytes()
}

func (b *ModuleBuilder) buildElemSection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.elems)))
	for _, e := range b.elems {
		w.Byte(0x00) // active, table 0, funcidx vector
		w.Byte(0x41) // i32.const offset
		w.WriteS32(e.offset)
		w.Byte(0x0B)
		w.WriteU32(uint32(len(e.funcIdxs)))
		for _, idx := range e.funcIdxs {
			w.WriteU32(idx)
		}
	}
	return w.Bytes()
}

func (b *ModuleBuilder) buildCodeSection() []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		body := binary.NewWriter()
		writeLocals(body, f.locals)
		body.WriteBytes(f.code)
		body.Byte(0x0B)

		w.WriteU32(uint32(body.Len()))
		w.WriteBytes(body.Bytes())
	}
	return w.Bytes()
}

// writeLocals encodes locals as runs of equal types.
func writeLocals(w *binary.Writer, locals []wasmembed.ValType) {
	type run struct {
		typ   wasmembed.ValType
		count uint32
	}
	var runs []run
	for _, l := range locals {
		if len(runs) > 0 && runs[len(runs)-1].typ == l {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{typ: l, count: 1})
	}
	w.WriteU32(uint32(len(runs)))
	for _, r := range runs {
		w.WriteU32(r.count)
		w.Byte(byte(r.typ))
	}
}

func writeLimits(w *binary.Writer, l wasmembed.Limits) {
	if l.HasMax {
		w.Byte(0x01)
		w.WriteU32(l.Min)
		w.WriteU32(l.Max)
	} else {
		w.Byte(0x00)
		w.WriteU32(l.Min)
	}
}

func writeGlobalType(w *binary.Writer, gt wasmembed.GlobalType) {
	w.Byte(byte(gt.Val))
	if gt.Mutable {
		w.Byte(0x01)
	} else {
		w.Byte(0x00)
	}
}

// writeConstExpr emits the initializer for a defined global. The value's
// raw bits carry the payload for all four numeric types; reference typed
// globals initialize to null.
func writeConstExpr(w *binary.Writer, vt wasmembed.ValType, v wasmembed.Value) {
	switch vt {
	case wasmembed.TypeI32:
		w.Byte(0x41)
		w.WriteS32(int32(uint32(v.Raw())))
	case wasmembed.TypeI64:
		w.Byte(0x42)
		w.WriteS64(int64(v.Raw()))
	case wasmembed.TypeF32:
		w.Byte(0x43)
		w.WriteU32LE(uint32(v.Raw()))
	case wasmembed.TypeF64:
		w.Byte(0x44)
		w.WriteU64LE(v.Raw())
	case wasmembed.TypeFuncref, wasmembed.TypeExternref:
		w.Byte(0xD0)
		w.Byte(byte(vt))
	default:
		panic(fmt.Sprintf("wasm: cannot initialize global of type %s", vt))
	}
	w.Byte(0x0B)
}
