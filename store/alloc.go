package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

// Export names used by synthesized single-entity modules.
const (
	exportFunc   = "fn"
	exportGlobal = "global"
	exportMemory = "memory"
	exportTable  = "table"
)

// HostFunc is the signature host callables are registered with. It
// receives already-typed guest values and must return exactly the
// values the declared result list asks for.
type HostFunc func(ctx context.Context, args []wasmembed.Value) ([]wasmembed.Value, error)

// AllocHostFunc registers a host callable as an addressable guest
// function with the declared type. Guests reach it like any other
// function entity, including through import rewriting.
//
// Failures inside the callable surface to the guest caller as traps.
// Calls through signatures with reference or vector typed values fail
// at call time; the engine cannot carry those across the host boundary.
func (s *Store) AllocHostFunc(ctx context.Context, ft wasmembed.FuncType, call HostFunc) (wasmembed.FuncAddr, error) {
	if call == nil {
		return 0, errors.InvalidInput(errors.PhaseLink, "nil host function")
	}

	goFn := api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		for _, p := range ft.Params {
			if !p.IsNumeric() {
				panic(errors.Unsupported(errors.PhaseMarshal, fmt.Sprintf("%s values cannot cross the host function boundary", p)))
			}
		}
		args := make([]wasmembed.Value, len(ft.Params))
		for i, p := range ft.Params {
			args[i] = wasmembed.FromRaw(p, stack[i])
		}

		out, err := call(ctx, args)
		if err != nil {
			panic(err)
		}
		if len(out) != len(ft.Results) {
			panic(errors.InvalidInput(errors.PhaseRuntime,
				fmt.Sprintf("host function returned %d value(s), want %d", len(out), len(ft.Results))))
		}
		for i, r := range ft.Results {
			if !r.IsNumeric() {
				panic(errors.Unsupported(errors.PhaseMarshal, fmt.Sprintf("%s values cannot cross the host function boundary", r)))
			}
			if out[i].Type() != r {
				panic(errors.TypeMismatch(errors.PhaseMarshal, nil, out[i].Type().String(), r.String()))
			}
			stack[i] = out[i].Raw()
		}
	})

	name := "host-" + uuid.NewString()
	hostMod, err := s.rt.NewHostModuleBuilder(name).
		NewFunctionBuilder().
		WithGoModuleFunction(goFn, valueTypes(ft.Params), valueTypes(ft.Results)).
		Export(exportFunc).
		Instantiate(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseLink, errors.KindInvalidInput, err, "register host function")
	}

	// The engine refuses ExportedFunction on host modules, so the entity
	// is reached through a synthesized module that imports the host
	// export and re-exports it. The trampoline also gives the entity a
	// regular owner for import rewriting.
	b := wasm.NewModuleBuilder()
	idx := b.ImportFunc(name, exportFunc, ft)
	b.Export(exportFunc, wasmembed.KindFunc, idx)

	mod, err := s.instantiateSynth(ctx, b.Build(), "host-fn")
	if err != nil {
		_ = hostMod.Close(ctx)
		return 0, err
	}
	fn := mod.ExportedFunction(exportFunc)
	if fn == nil {
		_ = mod.Close(ctx)
		_ = hostMod.Close(ctx)
		return 0, errors.NotFound(errors.PhaseLink, "host function export", exportFunc)
	}

	debugf("allocated host function %s as %s", ft, name)

	return s.addFunc(funcEntity{owner: mod, name: exportFunc, typ: ft, fn: fn}), nil
}

// AllocGlobal mints a global entity of the declared type. Only numeric
// globals can be conjured by the host; the initializer must match the
// declared value type exactly.
func (s *Store) AllocGlobal(ctx context.Context, gt wasmembed.GlobalType, init wasmembed.Value) (wasmembed.GlobalAddr, error) {
	if !gt.Val.IsNumeric() {
		return 0, errors.Unsupported(errors.PhaseLink, fmt.Sprintf("allocating %s globals", gt.Val))
	}
	if init.Type() != gt.Val {
		return 0, errors.InvalidInput(errors.PhaseLink,
			fmt.Sprintf("global initializer is %s, want %s", init.Type(), gt.Val))
	}

	b := wasm.NewModuleBuilder()
	idx := b.AddGlobal(gt, init)
	b.Export(exportGlobal, wasmembed.KindGlobal, idx)

	mod, err := s.instantiateSynth(ctx, b.Build(), "global")
	if err != nil {
		return 0, err
	}
	g := mod.ExportedGlobal(exportGlobal)
	if g == nil {
		return 0, errors.NotFound(errors.PhaseLink, "synthesized export", exportGlobal)
	}

	return s.addGlobal(globalEntity{owner: mod, name: exportGlobal, typ: gt, g: g}), nil
}

// AllocMemory mints a linear memory entity with the given limits.
func (s *Store) AllocMemory(ctx context.Context, mt wasmembed.MemoryType) (wasmembed.MemAddr, error) {
	b := wasm.NewModuleBuilder()
	idx := b.AddMemory(mt)
	b.Export(exportMemory, wasmembed.KindMemory, idx)

	mod, err := s.instantiateSynth(ctx, b.Build(), "memory")
	if err != nil {
		return 0, err
	}
	mem := mod.ExportedMemory(exportMemory)
	if mem == nil {
		return 0, errors.NotFound(errors.PhaseLink, "synthesized export", exportMemory)
	}

	return s.addMemory(memEntity{owner: mod, name: exportMemory, typ: mt, mem: mem}), nil
}

// AllocTable mints a table entity with the given element type and
// limits. The entity is import-linkable but carries no engine handle.
func (s *Store) AllocTable(ctx context.Context, tt wasmembed.TableType) (wasmembed.TableAddr, error) {
	b := wasm.NewModuleBuilder()
	idx := b.AddTable(tt)
	b.Export(exportTable, wasmembed.KindTable, idx)

	mod, err := s.instantiateSynth(ctx, b.Build(), "table")
	if err != nil {
		return 0, err
	}

	return s.addTable(tableEntity{owner: mod, name: exportTable, typ: tt}), nil
}

// instantiateSynth compiles and instantiates a synthesized entity
// module under a unique name so its export is import-linkable.
func (s *Store) instantiateSynth(ctx context.Context, bin []byte, kind string) (api.Module, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, errors.NotInitialized(errors.PhaseLink, "store")
	}

	compiled, err := s.rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLink, errors.KindInvalidModule, err, "compile synthesized "+kind+" module")
	}
	mod, err := s.rt.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(kind+"-"+uuid.NewString()).WithStartFunctions())
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLink, errors.KindInvalidModule, err, "instantiate synthesized "+kind+" module")
	}
	return mod, nil
}
