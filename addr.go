package wasmembed

import "fmt"

// Addresses are stable integer handles into the guest store's entity
// tables. The tables are append-only, so an address, once issued, refers
// to the same entity for the life of the store.

// FuncAddr addresses one guest function.
type FuncAddr int

// GlobalAddr addresses one guest global.
type GlobalAddr int

// MemAddr addresses one guest linear memory.
type MemAddr int

// TableAddr addresses one guest table.
type TableAddr int

// ExternAddr is the address of an entity of any extern kind, used where
// imports and exports of all kinds flow together.
type ExternAddr struct {
	Kind ExternKind
	Addr int
}

func FuncExtern(a FuncAddr) ExternAddr     { return ExternAddr{Kind: KindFunc, Addr: int(a)} }
func GlobalExtern(a GlobalAddr) ExternAddr { return ExternAddr{Kind: KindGlobal, Addr: int(a)} }
func MemExtern(a MemAddr) ExternAddr       { return ExternAddr{Kind: KindMemory, Addr: int(a)} }
func TableExtern(a TableAddr) ExternAddr   { return ExternAddr{Kind: KindTable, Addr: int(a)} }

// Func returns the address as a function address. It panics when the kind
// does not match; callers dispatch on Kind first.
func (a ExternAddr) Func() FuncAddr {
	if a.Kind != KindFunc {
		panic(fmt.Sprintf("extern address is %s, not function", a.Kind))
	}
	return FuncAddr(a.Addr)
}

func (a ExternAddr) Global() GlobalAddr {
	if a.Kind != KindGlobal {
		panic(fmt.Sprintf("extern address is %s, not global", a.Kind))
	}
	return GlobalAddr(a.Addr)
}

func (a ExternAddr) Mem() MemAddr {
	if a.Kind != KindMemory {
		panic(fmt.Sprintf("extern address is %s, not memory", a.Kind))
	}
	return MemAddr(a.Addr)
}

func (a ExternAddr) Table() TableAddr {
	if a.Kind != KindTable {
		panic(fmt.Sprintf("extern address is %s, not table", a.Kind))
	}
	return TableAddr(a.Addr)
}

func (a ExternAddr) String() string {
	return fmt.Sprintf("%s@%d", a.Kind, a.Addr)
}
