package linker

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/bridge"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/hostval"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/wasm"
)

// Linker resolves a module's declared imports against a host import
// object, allocating store entities for host-authored values as needed.
type Linker struct {
	store  *store.Store
	bridge *bridge.Bridge
}

// New creates a linker that allocates through st and converts values
// through br.
func New(st *store.Store, br *bridge.Bridge) *Linker {
	return &Linker{store: st, bridge: br}
}

// Resolve binds every import declared by meta to a store address using
// the two-level import object. The result holds one address per
// declared import, in declaration order, ready for instantiation.
//
// Resolution scans all imports before reporting: absent entries
// accumulate into a MissingImportsError, which takes priority over any
// mismatched entry found along the way.
func (l *Linker) Resolve(ctx context.Context, meta *wasm.Module, imports *hostval.Object) ([]wasmembed.ExternAddr, error) {
	if meta == nil {
		return nil, errors.InvalidInput(errors.PhaseLink, "module metadata is nil")
	}
	if len(meta.Imports) == 0 {
		return nil, nil
	}

	resolved := make([]wasmembed.ExternAddr, len(meta.Imports))
	var missing []errors.MissingImport
	var firstMismatch error

	for i, imp := range meta.Imports {
		v, ok := lookup(imports, imp.Module, imp.Name)
		if !ok {
			missing = append(missing, errors.MissingImport{
				Namespace: imp.Module,
				Name:      imp.Name,
				Kind:      imp.Kind().String(),
			})
			continue
		}

		addr, err := l.resolveOne(ctx, imp, v)
		if err != nil {
			if firstMismatch == nil {
				firstMismatch = err
			}
			continue
		}
		resolved[i] = addr
	}

	if len(missing) > 0 {
		Logger().Debug("import resolution incomplete",
			zap.Int("missing", len(missing)),
			zap.Int("declared", len(meta.Imports)))
		return nil, errors.NewMissingImportsError(missing)
	}
	if firstMismatch != nil {
		return nil, firstMismatch
	}
	return resolved, nil
}

// lookup walks the two-level import object. An absent namespace, a
// namespace that is not an object, an absent entry, and an undefined
// entry all count as missing.
func lookup(imports *hostval.Object, module, name string) (hostval.Value, bool) {
	if imports == nil {
		return nil, false
	}
	ns, ok := imports.Get(module)
	if !ok {
		return nil, false
	}
	nsObj, ok := ns.(*hostval.Object)
	if !ok {
		return nil, false
	}
	entry, ok := nsObj.Get(name)
	if !ok || entry == nil {
		return nil, false
	}
	if _, undef := entry.(hostval.Undefined); undef {
		return nil, false
	}
	return entry, true
}

// resolveOne maps a single provided value to a store address according
// to the import's declared extern kind.
func (l *Linker) resolveOne(ctx context.Context, imp wasm.Import, v hostval.Value) (wasmembed.ExternAddr, error) {
	path := []string{imp.Module, imp.Name}

	switch declared := imp.Type.(type) {
	case wasmembed.FuncType:
		return l.resolveFunc(ctx, path, declared, v)

	case wasmembed.GlobalType:
		return l.resolveGlobal(ctx, path, declared, v)

	case wasmembed.MemoryType:
		ref, ok := v.(bridge.MemoryRef)
		if !ok {
			return wasmembed.ExternAddr{}, errors.KindMismatch(path, "a memory", v.Kind().String())
		}
		return wasmembed.MemExtern(ref.MemAddr()), nil

	case wasmembed.TableType:
		ref, ok := v.(bridge.TableRef)
		if !ok {
			return wasmembed.ExternAddr{}, errors.KindMismatch(path, "a table", v.Kind().String())
		}
		return wasmembed.TableExtern(ref.TableAddr()), nil

	default:
		return wasmembed.ExternAddr{}, errors.InvalidInput(errors.PhaseLink, "import declares an unknown extern kind")
	}
}

// resolveFunc binds a callable to a function import. A callable that
// already wraps a guest function with the declared signature is bound
// to its existing address, so a re-imported export keeps its identity.
// Anything else is wrapped in a fresh host function whose signature
// follows the declaration.
func (l *Linker) resolveFunc(ctx context.Context, path []string, declared wasmembed.FuncType, v hostval.Value) (wasmembed.ExternAddr, error) {
	fn, ok := v.(*hostval.Function)
	if !ok {
		return wasmembed.ExternAddr{}, errors.NotCallable(path, v.Kind().String())
	}

	if addr, ok := l.bridge.Cache().AddrOf(fn); ok {
		if ft, err := l.store.FuncType(addr); err == nil && ft.Equal(declared) {
			return wasmembed.FuncExtern(addr), nil
		}
		// Declared signature differs from the one on record, so the
		// callable crosses the boundary again through a new host shim.
	}

	addr, err := l.store.AllocHostFunc(ctx, declared, l.bridge.HostFunc(declared, fn))
	if err != nil {
		return wasmembed.ExternAddr{}, err
	}
	l.bridge.Cache().Put(addr, fn)
	return wasmembed.FuncExtern(addr), nil
}

// resolveGlobal binds a value to a global import. A global wrapper is
// bound to the entity it already names. A number or bigint becomes a
// fresh global carrying the declared type and mutability.
func (l *Linker) resolveGlobal(ctx context.Context, path []string, declared wasmembed.GlobalType, v hostval.Value) (wasmembed.ExternAddr, error) {
	if ref, ok := v.(bridge.GlobalRef); ok {
		return wasmembed.GlobalExtern(ref.GlobalAddr()), nil
	}

	switch v.(type) {
	case hostval.Number, *hostval.BigInt:
	default:
		return wasmembed.ExternAddr{}, errors.New(errors.PhaseLink, errors.KindKindMismatch).
			Path(path...).
			Detail("global import requires a number or bigint, provided value is %s", v.Kind()).
			Build()
	}

	init, err := l.bridge.ToGuest(v, declared.Val)
	if err != nil {
		return wasmembed.ExternAddr{}, atPath(err, path)
	}
	addr, err := l.store.AllocGlobal(ctx, declared, init)
	if err != nil {
		return wasmembed.ExternAddr{}, err
	}
	return wasmembed.GlobalExtern(addr), nil
}

// atPath pins the import path onto a conversion error and moves it to
// the link phase, since the conversion happened while resolving an
// import rather than during a call.
func atPath(err error, path []string) error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return err
	}
	pinned := *e
	pinned.Phase = errors.PhaseLink
	pinned.Path = path
	return &pinned
}
