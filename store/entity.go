package store

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
)

// GlobalType returns the declared type of the global at addr.
func (s *Store) GlobalType(addr wasmembed.GlobalAddr) (wasmembed.GlobalType, error) {
	ent, err := s.globalAt(addr)
	if err != nil {
		return wasmembed.GlobalType{}, err
	}
	return ent.typ, nil
}

// GlobalGet reads the current value of the global at addr.
func (s *Store) GlobalGet(addr wasmembed.GlobalAddr) (wasmembed.Value, error) {
	ent, err := s.globalAt(addr)
	if err != nil {
		return wasmembed.Value{}, err
	}
	if !ent.typ.Val.IsNumeric() {
		return wasmembed.Value{}, errors.Unsupported(errors.PhaseRuntime, fmt.Sprintf("reading %s globals", ent.typ.Val))
	}
	return wasmembed.FromRaw(ent.typ.Val, ent.g.Get()), nil
}

// GlobalSet writes the global at addr. The global must be declared
// mutable and v must match its value type exactly.
func (s *Store) GlobalSet(addr wasmembed.GlobalAddr, v wasmembed.Value) error {
	ent, err := s.globalAt(addr)
	if err != nil {
		return err
	}
	if !ent.typ.Mutable {
		return errors.Immutable(ent.name)
	}
	if !ent.typ.Val.IsNumeric() {
		return errors.Unsupported(errors.PhaseRuntime, fmt.Sprintf("writing %s globals", ent.typ.Val))
	}
	if v.Type() != ent.typ.Val {
		return errors.TypeMismatch(errors.PhaseRuntime, nil, v.Type().String(), ent.typ.Val.String())
	}
	mg, ok := ent.g.(api.MutableGlobal)
	if !ok {
		return errors.Immutable(ent.name)
	}
	mg.Set(v.Raw())
	return nil
}

// MemoryType returns the declared limits of the memory at addr.
func (s *Store) MemoryType(addr wasmembed.MemAddr) (wasmembed.MemoryType, error) {
	ent, err := s.memoryAt(addr)
	if err != nil {
		return wasmembed.MemoryType{}, err
	}
	return ent.typ, nil
}

// MemorySize returns the current size in bytes of the memory at addr.
func (s *Store) MemorySize(addr wasmembed.MemAddr) (uint32, error) {
	ent, err := s.memoryAt(addr)
	if err != nil {
		return 0, err
	}
	return ent.mem.Size(), nil
}

// MemoryGrow extends the memory at addr by delta pages and returns the
// previous size in pages. Growing past the declared or configured
// maximum fails.
func (s *Store) MemoryGrow(addr wasmembed.MemAddr, delta uint32) (uint32, error) {
	ent, err := s.memoryAt(addr)
	if err != nil {
		return 0, err
	}
	prev, ok := ent.mem.Grow(delta)
	if !ok {
		return 0, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Detail("grow by %d page(s) exceeds the memory limit", delta).
			Build()
	}
	return prev, nil
}

// MemoryRead returns a view of count bytes at offset. The view aliases
// guest memory directly: writes through it are visible to the guest,
// and it is invalidated by memory growth.
func (s *Store) MemoryRead(addr wasmembed.MemAddr, offset, count uint32) ([]byte, error) {
	ent, err := s.memoryAt(addr)
	if err != nil {
		return nil, err
	}
	buf, ok := ent.mem.Read(offset, count)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseRuntime, nil, int(offset), int(ent.mem.Size()))
	}
	return buf, nil
}

// MemoryWrite copies data into the memory at addr starting at offset.
func (s *Store) MemoryWrite(addr wasmembed.MemAddr, offset uint32, data []byte) error {
	ent, err := s.memoryAt(addr)
	if err != nil {
		return err
	}
	if !ent.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseRuntime, nil, int(offset), int(ent.mem.Size()))
	}
	return nil
}

// TableType returns the declared element type and limits of the table
// at addr.
func (s *Store) TableType(addr wasmembed.TableAddr) (wasmembed.TableType, error) {
	ent, err := s.tableAt(addr)
	if err != nil {
		return wasmembed.TableType{}, err
	}
	return ent.typ, nil
}
