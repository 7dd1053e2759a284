package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

// Store is the authoritative table of guest entities. All addresses
// handed out by instantiation and allocation index into it.
type Store struct {
	cfg Config
	rt  wazero.Runtime

	mu      sync.RWMutex
	funcs   []funcEntity
	globals []globalEntity
	mems    []memEntity
	tables  []tableEntity
	closed  bool
}

// funcEntity is one addressable guest or host function. Host functions
// are backed by a dedicated host module, so every entity has an owner
// registered in the runtime namespace.
type funcEntity struct {
	owner api.Module
	name  string
	typ   wasmembed.FuncType
	fn    api.Function
}

type globalEntity struct {
	owner api.Module
	name  string
	typ   wasmembed.GlobalType
	g     api.Global
}

type memEntity struct {
	owner api.Module
	name  string
	typ   wasmembed.MemoryType
	mem   api.Memory
}

// tableEntity carries no engine handle. The engine exposes no table
// API to the host; tables are addressable only so imports can be
// redirected at the owning module's export.
type tableEntity struct {
	owner api.Module
	name  string
	typ   wasmembed.TableType
}

// New creates a store backed by a fresh engine runtime.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if c.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
	}

	return &Store{
		cfg: c,
		rt:  wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
	}, nil
}

// Close releases the engine runtime and every entity in the store.
// Addresses handed out earlier become invalid.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.rt.Close(ctx)
	s.funcs = nil
	s.globals = nil
	s.mems = nil
	s.tables = nil
	return err
}

// callContext applies the configured call budget to ctx.
func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallBudget > 0 {
		return context.WithTimeout(ctx, s.cfg.CallBudget)
	}
	return ctx, func() {}
}

func (s *Store) addFunc(e funcEntity) wasmembed.FuncAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs = append(s.funcs, e)
	return wasmembed.FuncAddr(len(s.funcs) - 1)
}

func (s *Store) addGlobal(e globalEntity) wasmembed.GlobalAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals = append(s.globals, e)
	return wasmembed.GlobalAddr(len(s.globals) - 1)
}

func (s *Store) addMemory(e memEntity) wasmembed.MemAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mems = append(s.mems, e)
	return wasmembed.MemAddr(len(s.mems) - 1)
}

func (s *Store) addTable(e tableEntity) wasmembed.TableAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, e)
	return wasmembed.TableAddr(len(s.tables) - 1)
}

func (s *Store) funcAt(addr wasmembed.FuncAddr) (funcEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return funcEntity{}, errors.NotInitialized(errors.PhaseRuntime, "store")
	}
	if addr < 0 || int(addr) >= len(s.funcs) {
		return funcEntity{}, errors.NotFound(errors.PhaseRuntime, "function address", fmt.Sprintf("%d", addr))
	}
	return s.funcs[addr], nil
}

func (s *Store) globalAt(addr wasmembed.GlobalAddr) (globalEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return globalEntity{}, errors.NotInitialized(errors.PhaseRuntime, "store")
	}
	if addr < 0 || int(addr) >= len(s.globals) {
		return globalEntity{}, errors.NotFound(errors.PhaseRuntime, "global address", fmt.Sprintf("%d", addr))
	}
	return s.globals[addr], nil
}

func (s *Store) memoryAt(addr wasmembed.MemAddr) (memEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return memEntity{}, errors.NotInitialized(errors.PhaseRuntime, "store")
	}
	if addr < 0 || int(addr) >= len(s.mems) {
		return memEntity{}, errors.NotFound(errors.PhaseRuntime, "memory address", fmt.Sprintf("%d", addr))
	}
	return s.mems[addr], nil
}

func (s *Store) tableAt(addr wasmembed.TableAddr) (tableEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return tableEntity{}, errors.NotInitialized(errors.PhaseRuntime, "store")
	}
	if addr < 0 || int(addr) >= len(s.tables) {
		return tableEntity{}, errors.NotFound(errors.PhaseRuntime, "table address", fmt.Sprintf("%d", addr))
	}
	return s.tables[addr], nil
}

// importTarget names the module export backing addr, for import rewriting.
func (s *Store) importTarget(addr wasmembed.ExternAddr) (wasm.ImportTarget, error) {
	switch addr.Kind {
	case wasmembed.KindFunc:
		e, err := s.funcAt(wasmembed.FuncAddr(addr.Addr))
		if err != nil {
			return wasm.ImportTarget{}, err
		}
		return wasm.ImportTarget{Module: e.owner.Name(), Name: e.name}, nil
	case wasmembed.KindGlobal:
		e, err := s.globalAt(wasmembed.GlobalAddr(addr.Addr))
		if err != nil {
			return wasm.ImportTarget{}, err
		}
		return wasm.ImportTarget{Module: e.owner.Name(), Name: e.name}, nil
	case wasmembed.KindMemory:
		e, err := s.memoryAt(wasmembed.MemAddr(addr.Addr))
		if err != nil {
			return wasm.ImportTarget{}, err
		}
		return wasm.ImportTarget{Module: e.owner.Name(), Name: e.name}, nil
	case wasmembed.KindTable:
		e, err := s.tableAt(wasmembed.TableAddr(addr.Addr))
		if err != nil {
			return wasm.ImportTarget{}, err
		}
		return wasm.ImportTarget{Module: e.owner.Name(), Name: e.name}, nil
	default:
		return wasm.ImportTarget{}, errors.InvalidInput(errors.PhaseLink, fmt.Sprintf("unknown extern kind %d", addr.Kind))
	}
}

func valueTypes(ts []wasmembed.ValType) []api.ValueType {
	if len(ts) == 0 {
		return nil
	}
	out := make([]api.ValueType, len(ts))
	for i, t := range ts {
		out[i] = api.ValueType(byte(t))
	}
	return out
}
