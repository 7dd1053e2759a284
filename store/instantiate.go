package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

// ExportBinding pairs an export name with the store address backing it
// and the type the module declares for it.
type ExportBinding struct {
	Name string
	Addr wasmembed.ExternAddr
	Type wasmembed.ExternType
}

// ModuleInstance is one successfully instantiated module. Its exports
// are already registered as store entities.
type ModuleInstance struct {
	name    string
	mod     api.Module
	exports []ExportBinding
}

// Name returns the unique name the instance is registered under.
func (mi *ModuleInstance) Name() string {
	return mi.name
}

// Exports returns the instance's export bindings in declaration order.
func (mi *ModuleInstance) Exports() []ExportBinding {
	return mi.exports
}

// Instantiate builds an instance of cm with one resolved address per
// declared import, in declaration order. The start function runs before
// Instantiate returns; if it traps, no instance is created.
//
// Exports that alias a provided import keep the provided address, and
// exports naming the same entity twice share one address. Entities for
// module-defined exports enter the store tables only after the whole
// export walk succeeds; a failing export leaves the store unchanged.
func (s *Store) Instantiate(ctx context.Context, cm *CompiledModule, imports []wasmembed.ExternAddr) (*ModuleInstance, error) {
	meta := cm.meta
	if len(imports) != len(meta.Imports) {
		return nil, errors.InvalidInput(errors.PhaseLink,
			fmt.Sprintf("module declares %d import(s), %d resolved", len(meta.Imports), len(imports)))
	}

	compiled := cm.compiled
	if len(imports) > 0 {
		targets := make([]wasm.ImportTarget, len(imports))
		for i, addr := range imports {
			t, err := s.importTarget(addr)
			if err != nil {
				return nil, err
			}
			targets[i] = t
		}
		bin, err := wasm.RewriteImports(cm.raw, targets)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLink, errors.KindInvalidModule, err, "rewrite import names")
		}
		compiled, err = s.rt.CompileModule(ctx, bin)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLink, errors.KindInvalidModule, err, "recompile with resolved imports")
		}
	}

	name := "instance-" + uuid.NewString()
	runCtx, cancel := s.callContext(ctx)
	defer cancel()

	mod, err := s.rt.InstantiateModule(runCtx, compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		if compiled != cm.compiled {
			_ = compiled.Close(ctx)
		}
		return nil, classifyInstantiateError(err)
	}

	debugf("instantiated %s: %d imports, %d exports", name, len(imports), len(meta.Exports))

	inst := &ModuleInstance{name: name, mod: mod}

	type entityKey struct {
		kind wasmembed.ExternKind
		idx  uint32
	}
	// adopted holds addresses already known (import aliases); pendingIdx
	// maps entities captured this walk to their slot in pending. patch
	// records, per binding, which pending slot fills its address after
	// commit (-1 when the address is already final).
	adopted := make(map[entityKey]wasmembed.ExternAddr)
	pendingIdx := make(map[entityKey]int)
	var pending []pendingEntity
	var patch []int

	for _, exp := range meta.Exports {
		key := entityKey{exp.Kind, exp.Index}
		typ, _ := meta.TypeOfExport(exp)

		if addr, ok := adopted[key]; ok {
			inst.exports = append(inst.exports, ExportBinding{Name: exp.Name, Addr: addr, Type: typ})
			patch = append(patch, -1)
			continue
		}
		if pi, ok := pendingIdx[key]; ok {
			inst.exports = append(inst.exports, ExportBinding{Name: exp.Name, Type: typ})
			patch = append(patch, pi)
			continue
		}
		if pos := meta.ImportAt(exp.Kind, int(exp.Index)); pos >= 0 {
			adopted[key] = imports[pos]
			inst.exports = append(inst.exports, ExportBinding{Name: exp.Name, Addr: imports[pos], Type: typ})
			patch = append(patch, -1)
			continue
		}

		p, err := captureExport(mod, meta, exp)
		if err != nil {
			_ = mod.Close(ctx)
			return nil, err
		}
		pendingIdx[key] = len(pending)
		pending = append(pending, p)
		inst.exports = append(inst.exports, ExportBinding{Name: exp.Name, Type: typ})
		patch = append(patch, len(pending)-1)
	}

	if len(pending) > 0 {
		addrs := s.commitEntities(pending)
		for i, pi := range patch {
			if pi >= 0 {
				inst.exports[i].Addr = addrs[pi]
			}
		}
	}

	return inst, nil
}

// pendingEntity is one module-defined export captured during the export
// walk but not yet committed to the store tables. Only the field
// matching kind is populated.
type pendingEntity struct {
	kind wasmembed.ExternKind
	fe   funcEntity
	ge   globalEntity
	me   memEntity
	te   tableEntity
}

// captureExport resolves a module-defined export against the live
// instance without touching the store tables.
func captureExport(mod api.Module, meta *wasm.Module, exp wasm.Export) (pendingEntity, error) {
	switch exp.Kind {
	case wasmembed.KindFunc:
		ft, ok := meta.FuncTypeAt(exp.Index)
		if !ok {
			return pendingEntity{}, errors.InvalidInput(errors.PhaseInstantiate,
				fmt.Sprintf("export %q references function %d out of range", exp.Name, exp.Index))
		}
		fn := mod.ExportedFunction(exp.Name)
		if fn == nil {
			return pendingEntity{}, errors.NotFound(errors.PhaseInstantiate, "exported function", exp.Name)
		}
		return pendingEntity{kind: exp.Kind, fe: funcEntity{owner: mod, name: exp.Name, typ: ft, fn: fn}}, nil

	case wasmembed.KindGlobal:
		gt, ok := meta.GlobalTypeAt(exp.Index)
		if !ok {
			return pendingEntity{}, errors.InvalidInput(errors.PhaseInstantiate,
				fmt.Sprintf("export %q references global %d out of range", exp.Name, exp.Index))
		}
		g := mod.ExportedGlobal(exp.Name)
		if g == nil {
			return pendingEntity{}, errors.NotFound(errors.PhaseInstantiate, "exported global", exp.Name)
		}
		return pendingEntity{kind: exp.Kind, ge: globalEntity{owner: mod, name: exp.Name, typ: gt, g: g}}, nil

	case wasmembed.KindMemory:
		mt, ok := meta.MemoryTypeAt(exp.Index)
		if !ok {
			return pendingEntity{}, errors.InvalidInput(errors.PhaseInstantiate,
				fmt.Sprintf("export %q references memory %d out of range", exp.Name, exp.Index))
		}
		mem := mod.ExportedMemory(exp.Name)
		if mem == nil {
			return pendingEntity{}, errors.NotFound(errors.PhaseInstantiate, "exported memory", exp.Name)
		}
		return pendingEntity{kind: exp.Kind, me: memEntity{owner: mod, name: exp.Name, typ: mt, mem: mem}}, nil

	case wasmembed.KindTable:
		tt, ok := meta.TableTypeAt(exp.Index)
		if !ok {
			return pendingEntity{}, errors.InvalidInput(errors.PhaseInstantiate,
				fmt.Sprintf("export %q references table %d out of range", exp.Name, exp.Index))
		}
		return pendingEntity{kind: exp.Kind, te: tableEntity{owner: mod, name: exp.Name, typ: tt}}, nil

	default:
		return pendingEntity{}, errors.InvalidInput(errors.PhaseInstantiate,
			fmt.Sprintf("export %q has unknown kind %d", exp.Name, exp.Kind))
	}
}

// commitEntities appends captured entities to the store tables in one
// critical section and returns their addresses in pending order.
func (s *Store) commitEntities(pending []pendingEntity) []wasmembed.ExternAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]wasmembed.ExternAddr, len(pending))
	for i, p := range pending {
		switch p.kind {
		case wasmembed.KindFunc:
			s.funcs = append(s.funcs, p.fe)
			addrs[i] = wasmembed.FuncExtern(wasmembed.FuncAddr(len(s.funcs) - 1))
		case wasmembed.KindGlobal:
			s.globals = append(s.globals, p.ge)
			addrs[i] = wasmembed.GlobalExtern(wasmembed.GlobalAddr(len(s.globals) - 1))
		case wasmembed.KindMemory:
			s.mems = append(s.mems, p.me)
			addrs[i] = wasmembed.MemExtern(wasmembed.MemAddr(len(s.mems) - 1))
		case wasmembed.KindTable:
			s.tables = append(s.tables, p.te)
			addrs[i] = wasmembed.TableExtern(wasmembed.TableAddr(len(s.tables) - 1))
		}
	}
	return addrs
}

// classifyInstantiateError separates traps raised by the start function
// from import incompatibilities the engine detects while wiring the
// instance. Host errors tunneled through a start-invoked import pass
// through unchanged.
func classifyInstantiateError(err error) error {
	var structured *errors.Error
	if stderrors.As(err, &structured) {
		return structured
	}
	var exit *sys.ExitError
	if stderrors.As(err, &exit) || strings.Contains(err.Error(), "wasm error") {
		return errors.Trap(errors.PhaseInstantiate, err)
	}
	return errors.Wrap(errors.PhaseLink, errors.KindTypeMismatch, err, "engine rejected resolved imports")
}
