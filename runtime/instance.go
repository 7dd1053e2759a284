package runtime

import (
	"sync"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/hostval"
	"github.com/wippyai/wasm-embed/store"
)

// Instance is an instantiated module held by the registry. Its exports
// surface as host values: functions through the global wrapper cache,
// memories, globals, and tables through per-instance wrappers. Export
// names aliasing the same entity yield the identical wrapper.
type Instance struct {
	runtime *Runtime
	handle  int
	inst    *store.ModuleInstance
	module  *Module

	mu       sync.Mutex
	exports  *hostval.Object
	wrappers map[wasmembed.ExternAddr]hostval.Ref
}

// Handle returns the instance's registry handle.
func (i *Instance) Handle() int {
	return i.handle
}

// Name returns the store-level instance name.
func (i *Instance) Name() string {
	return i.inst.Name()
}

// Module returns the module this instance was implicitly compiled
// from, or nil when it was instantiated from a precompiled module the
// caller already holds.
func (i *Instance) Module() *Module {
	return i.module
}

// Exports returns the instance's export object, built on first use.
// Repeated calls return the same object with the same wrapper values.
func (i *Instance) Exports() (*hostval.Object, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.exports != nil {
		return i.exports, nil
	}

	exports := hostval.NewObject()
	for _, b := range i.inst.Exports() {
		ref, err := i.wrapperLocked(b)
		if err != nil {
			return nil, err
		}
		exports.Set(b.Name, ref)
	}
	i.exports = exports
	return exports, nil
}

// Export looks up a single export by name.
func (i *Instance) Export(name string) (hostval.Value, error) {
	exports, err := i.Exports()
	if err != nil {
		return nil, err
	}
	v, ok := exports.Get(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	return v, nil
}

// ExportedFunction looks up a function export by name.
func (i *Instance) ExportedFunction(name string) (*hostval.Function, error) {
	v, err := i.Export(name)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(*hostval.Function)
	if !ok {
		return nil, errors.New(errors.PhaseRuntime, errors.KindKindMismatch).
			Path(name).
			Detail("export is a %s, not a function", v.Kind()).
			Build()
	}
	return fn, nil
}

// wrapperLocked returns the wrapper for one export binding, creating
// and caching it on first sight of the address.
func (i *Instance) wrapperLocked(b store.ExportBinding) (hostval.Ref, error) {
	if ref, ok := i.wrappers[b.Addr]; ok {
		return ref, nil
	}

	var ref hostval.Ref
	switch b.Addr.Kind {
	case wasmembed.KindFunc:
		fn, err := i.runtime.bridge.GuestFunction(b.Addr.Func(), b.Name)
		if err != nil {
			return nil, err
		}
		ref = fn
	case wasmembed.KindMemory:
		ref = &Memory{runtime: i.runtime, addr: b.Addr.Mem()}
	case wasmembed.KindGlobal:
		ref = &Global{runtime: i.runtime, addr: b.Addr.Global()}
	case wasmembed.KindTable:
		ref = &Table{runtime: i.runtime, addr: b.Addr.Table()}
	default:
		return nil, errors.InvalidInput(errors.PhaseRuntime, "export has an unknown extern kind")
	}

	i.wrappers[b.Addr] = ref
	return ref, nil
}

// eachWrapper visits every wrapper this instance has created.
func (i *Instance) eachWrapper(visit func(hostval.Ref)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, ref := range i.wrappers {
		visit(ref)
	}
}
