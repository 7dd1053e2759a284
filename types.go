package wasmembed

import "strings"

// ValType identifies a guest value type. The byte values match the
// guest binary encoding so introspection and synthesis can use them
// directly.
type ValType byte

const (
	TypeI32       ValType = 0x7F
	TypeI64       ValType = 0x7E
	TypeF32       ValType = 0x7D
	TypeF64       ValType = 0x7C
	TypeV128      ValType = 0x7B
	TypeFuncref   ValType = 0x70
	TypeExternref ValType = 0x6F
)

func (t ValType) String() string {
	switch t {
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeV128:
		return "v128"
	case TypeFuncref:
		return "funcref"
	case TypeExternref:
		return "externref"
	}
	return "unknown"
}

// IsNumeric reports whether t is one of the four numeric value types.
func (t ValType) IsNumeric() bool {
	switch t {
	case TypeI32, TypeI64, TypeF32, TypeF64:
		return true
	}
	return false
}

// IsRef reports whether t is a reference type.
func (t ValType) IsRef() bool {
	return t == TypeFuncref || t == TypeExternref
}

// ExternKind identifies the category of an import or export. The values
// match the guest binary encoding of import/export descriptors.
type ExternKind byte

const (
	KindFunc   ExternKind = 0x00
	KindTable  ExternKind = 0x01
	KindMemory ExternKind = 0x02
	KindGlobal ExternKind = 0x03
)

func (k ExternKind) String() string {
	switch k {
	case KindFunc:
		return "function"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	}
	return "unknown"
}

// ExternType is the declared type of one import or export slot. Exactly
// FuncType, GlobalType, MemoryType, and TableType implement it; linking
// and marshalling dispatch exhaustively over these four.
type ExternType interface {
	externKind() ExternKind
}

// KindOf returns the extern kind of a declared type.
func KindOf(t ExternType) ExternKind {
	return t.externKind()
}

// Limits bounds a memory or table size. Min and Max count pages for
// memories and elements for tables.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// FuncType is a guest function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (FuncType) externKind() ExternKind { return KindFunc }

// Equal reports whether two signatures match exactly.
func (t FuncType) Equal(other FuncType) bool {
	if len(t.Params) != len(other.Params) || len(t.Results) != len(other.Results) {
		return false
	}
	for i, p := range t.Params {
		if other.Params[i] != p {
			return false
		}
	}
	for i, r := range t.Results {
		if other.Results[i] != r {
			return false
		}
	}
	return true
}

func (t FuncType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	if len(t.Results) > 0 {
		b.WriteString(" -> ")
		if len(t.Results) > 1 {
			b.WriteByte('(')
		}
		for i, r := range t.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		if len(t.Results) > 1 {
			b.WriteByte(')')
		}
	}
	return b.String()
}

// GlobalType is the declared type of a guest global.
type GlobalType struct {
	Val     ValType
	Mutable bool
}

func (GlobalType) externKind() ExternKind { return KindGlobal }

func (t GlobalType) String() string {
	if t.Mutable {
		return "mut " + t.Val.String()
	}
	return t.Val.String()
}

// MemoryType is the declared type of a guest linear memory.
type MemoryType struct {
	Limits Limits
}

func (MemoryType) externKind() ExternKind { return KindMemory }

// TableType is the declared type of a guest table.
type TableType struct {
	Elem   ValType
	Limits Limits
}

func (TableType) externKind() ExternKind { return KindTable }
