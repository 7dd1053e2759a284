package wasm

import (
	"testing"

	wasmembed "github.com/wippyai/wasm-embed"
)

// Hand-assembled module pinning the exact binary layout:
//
//	(module
//	  (import "env" "add" (func (param i32 i32) (result i32)))
//	  (memory (export "mem") 1 2)
//	  (export "add2" (func 0)))
var handMod = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
	// type section: (i32, i32) -> i32
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7F,
	// import section: env.add func type 0
	0x02, 0x0B, 0x01, 0x03, 'e', 'n', 'v', 0x03, 'a', 'd', 'd', 0x00, 0x00,
	// memory section: min 1 max 2
	0x05, 0x04, 0x01, 0x01, 0x01, 0x02,
	// export section: mem (memory 0), add2 (func 0)
	0x07, 0x0E, 0x02,
	0x03, 'm', 'e', 'm', 0x02, 0x00,
	0x04, 'a', 'd', 'd', '2', 0x00, 0x00,
}

func TestDecodeHandAssembled(t *testing.T) {
	m, err := Decode(handMod)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(m.Types) != 1 {
		t.Fatalf("Types = %d, want 1", len(m.Types))
	}
	wantType := wasmembed.FuncType{
		Params:  []wasmembed.ValType{wasmembed.TypeI32, wasmembed.TypeI32},
		Results: []wasmembed.ValType{wasmembed.TypeI32},
	}
	if !m.Types[0].Equal(wantType) {
		t.Errorf("Types[0] = %v, want %v", m.Types[0], wantType)
	}

	if len(m.Imports) != 1 {
		t.Fatalf("Imports = %d, want 1", len(m.Imports))
	}
	imp := m.Imports[0]
	if imp.Module != "env" || imp.Name != "add" || imp.Kind() != wasmembed.KindFunc {
		t.Errorf("Imports[0] = %+v", imp)
	}

	if len(m.Memories) != 1 {
		t.Fatalf("Memories = %d, want 1", len(m.Memories))
	}
	if lim := m.Memories[0].Limits; lim.Min != 1 || !lim.HasMax || lim.Max != 2 {
		t.Errorf("memory limits = %+v", lim)
	}

	if len(m.Exports) != 2 {
		t.Fatalf("Exports = %d, want 2", len(m.Exports))
	}
	if m.Exports[0].Name != "mem" || m.Exports[0].Kind != wasmembed.KindMemory || m.Exports[0].Index != 0 {
		t.Errorf("Exports[0] = %+v", m.Exports[0])
	}
	if m.Exports[1].Name != "add2" || m.Exports[1].Kind != wasmembed.KindFunc || m.Exports[1].Index != 0 {
		t.Errorf("Exports[1] = %+v", m.Exports[1])
	}

	// The exported function aliases the import.
	if n := m.NumImported(wasmembed.KindFunc); n != 1 {
		t.Errorf("NumImported(func) = %d, want 1", n)
	}
	ft, ok := m.FuncTypeAt(0)
	if !ok || !ft.Equal(wantType) {
		t.Errorf("FuncTypeAt(0) = %v, %v", ft, ok)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not wasm")); err == nil {
		t.Error("Decode accepted garbage")
	}
	if _, err := Decode(nil); err == nil {
		t.Error("Decode accepted empty input")
	}
	// Valid magic, truncated section.
	trunc := append([]byte{}, magicVersion...)
	trunc = append(trunc, 0x01, 0x10, 0x01)
	if _, err := Decode(trunc); err == nil {
		t.Error("Decode accepted truncated section")
	}
}

func TestBuilderDecodeRoundTrip(t *testing.T) {
	i32 := wasmembed.TypeI32
	b := NewModuleBuilder()

	addType := wasmembed.FuncType{Params: []wasmembed.ValType{i32, i32}, Results: []wasmembed.ValType{i32}}
	tickType := wasmembed.FuncType{Params: []wasmembed.ValType{wasmembed.TypeI64}}

	impAdd := b.ImportFunc("env", "add", addType)
	b.ImportFunc("env", "tick", tickType)
	b.ImportGlobal("env", "base", wasmembed.GlobalType{Val: wasmembed.TypeF64, Mutable: true})

	// (func (param i32) (result i32): local.get 0, local.get 0, call $add)
	double := b.AddFunc(
		wasmembed.FuncType{Params: []wasmembed.ValType{i32}, Results: []wasmembed.ValType{i32}},
		[]wasmembed.ValType{i32, i32, wasmembed.TypeF32},
		[]byte{0x20, 0x00, 0x20, 0x00, 0x10, byte(impAdd)},
	)
	tbl := b.AddTable(wasmembed.TableType{Elem: wasmembed.TypeFuncref, Limits: wasmembed.Limits{Min: 2, Max: 4, HasMax: true}})
	mem := b.AddMemory(wasmembed.MemoryType{Limits: wasmembed.Limits{Min: 1}})
	glob := b.AddGlobal(wasmembed.GlobalType{Val: wasmembed.TypeI64, Mutable: false}, wasmembed.I64(-7))

	b.Export("double", wasmembed.KindFunc, double)
	b.Export("double_alias", wasmembed.KindFunc, double)
	b.Export("t", wasmembed.KindTable, tbl)
	b.Export("m", wasmembed.KindMemory, mem)
	b.Export("g", wasmembed.KindGlobal, glob)
	b.SetStart(double)
	b.AddElem(0, []uint32{double})

	m, err := Decode(b.Build())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(m.Imports) != 3 {
		t.Fatalf("Imports = %d, want 3", len(m.Imports))
	}
	if m.Imports[1].Name != "tick" {
		t.Errorf("Imports[1] = %+v", m.Imports[1])
	}
	gt, ok := m.Imports[2].Type.(wasmembed.GlobalType)
	if !ok || gt.Val != wasmembed.TypeF64 || !gt.Mutable {
		t.Errorf("Imports[2].Type = %v", m.Imports[2].Type)
	}

	if n := m.NumImported(wasmembed.KindFunc); n != 2 {
		t.Errorf("NumImported(func) = %d, want 2", n)
	}
	ft, ok := m.FuncTypeAt(double)
	if !ok || len(ft.Params) != 1 || len(ft.Results) != 1 {
		t.Errorf("FuncTypeAt(%d) = %v, %v", double, ft, ok)
	}

	ggt, ok := m.GlobalTypeAt(glob)
	if !ok || ggt.Val != wasmembed.TypeI64 || ggt.Mutable {
		t.Errorf("GlobalTypeAt(%d) = %v, %v", glob, ggt, ok)
	}

	tt, ok := m.TableTypeAt(tbl)
	if !ok || tt.Elem != wasmembed.TypeFuncref || tt.Limits.Min != 2 || tt.Limits.Max != 4 {
		t.Errorf("TableTypeAt(%d) = %v, %v", tbl, tt, ok)
	}

	if !m.HasStart || m.StartFunc != double {
		t.Errorf("start = %v %d, want %d", m.HasStart, m.StartFunc, double)
	}

	// Aliased exports share kind and index.
	var first, second *Export
	for i := range m.Exports {
		switch m.Exports[i].Name {
		case "double":
			first = &m.Exports[i]
		case "double_alias":
			second = &m.Exports[i]
		}
	}
	if first == nil || second == nil {
		t.Fatalf("alias exports missing: %+v", m.Exports)
	}
	if first.Index != second.Index || first.Kind != second.Kind {
		t.Errorf("aliases diverge: %+v vs %+v", first, second)
	}
}

func TestBuilderGlobalInitForms(t *testing.T) {
	b := NewModuleBuilder()
	b.AddGlobal(wasmembed.GlobalType{Val: wasmembed.TypeI32, Mutable: true}, wasmembed.I32(-1))
	b.AddGlobal(wasmembed.GlobalType{Val: wasmembed.TypeF32}, wasmembed.F32(1.5))
	b.AddGlobal(wasmembed.GlobalType{Val: wasmembed.TypeF64}, wasmembed.F64(-2.25))
	b.AddGlobal(wasmembed.GlobalType{Val: wasmembed.TypeFuncref}, wasmembed.NullFuncref())

	m, err := Decode(b.Build())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Globals) != 4 {
		t.Fatalf("Globals = %d, want 4", len(m.Globals))
	}
	want := []wasmembed.ValType{wasmembed.TypeI32, wasmembed.TypeF32, wasmembed.TypeF64, wasmembed.TypeFuncref}
	for i, gt := range m.Globals {
		if gt.Val != want[i] {
			t.Errorf("Globals[%d].Val = %v, want %v", i, gt.Val, want[i])
		}
	}
}

func TestDecodeToleratesV128Types(t *testing.T) {
	b := NewModuleBuilder()
	b.ImportFunc("env", "simd", wasmembed.FuncType{Params: []wasmembed.ValType{wasmembed.TypeV128}})

	m, err := Decode(b.Build())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ft := m.Imports[0].Type.(wasmembed.FuncType)
	if ft.Params[0] != wasmembed.TypeV128 {
		t.Errorf("param = %v, want v128", ft.Params[0])
	}
}
