package runtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/bridge"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/hostval"
	"github.com/wippyai/wasm-embed/linker"
	"github.com/wippyai/wasm-embed/store"
)

// Runtime owns everything the embedding accumulates over its lifetime:
// the guest store, the append-only module and instance registries, and
// the wrapper caches. Pass it explicitly; there is no ambient global.
type Runtime struct {
	store  *store.Store
	bridge *bridge.Bridge
	linker *linker.Linker

	mu        sync.RWMutex
	modules   []*Module
	instances []*Instance
}

// New creates a runtime backed by a fresh guest store. A nil cfg uses
// store defaults.
func New(ctx context.Context, cfg *store.Config) (*Runtime, error) {
	st, err := store.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	br := bridge.New(st)
	return &Runtime{
		store:  st,
		bridge: br,
		linker: linker.New(st, br),
	}, nil
}

// Close releases the guest store and every instance it backs.
// Wrappers handed out earlier fail on use afterward.
func (r *Runtime) Close(ctx context.Context) error {
	return r.store.Close(ctx)
}

// Store exposes the backing guest store.
func (r *Runtime) Store() *store.Store {
	return r.store
}

// Bridge exposes the value bridge and its global wrapper cache.
func (r *Runtime) Bridge() *bridge.Bridge {
	return r.bridge
}

// Compile parses and validates bin. On success the module is appended
// to the registry and returned with a stable handle; on failure the
// registry is untouched.
func (r *Runtime) Compile(ctx context.Context, bin []byte) (*Module, error) {
	cm, err := r.store.Compile(ctx, bin)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	m := &Module{
		runtime:  r,
		handle:   len(r.modules),
		compiled: cm,
	}
	r.modules = append(r.modules, m)
	r.mu.Unlock()

	Logger().Debug("module compiled",
		zap.Int("handle", m.handle),
		zap.Int("size", cm.Size()))
	return m, nil
}

// Validate reports whether bin compiles and validates as a guest
// module. The compiled form is discarded unconditionally; the module
// registry is exactly as it was before the call.
func (r *Runtime) Validate(ctx context.Context, bin []byte) bool {
	cm, err := r.store.Compile(ctx, bin)
	if err != nil {
		return false
	}
	_ = cm.Close(ctx)
	return true
}

// Instantiate links m against the import object and instantiates it.
// A failed attempt registers nothing.
func (r *Runtime) Instantiate(ctx context.Context, m *Module, imports *hostval.Object) (*Instance, error) {
	return r.instantiate(ctx, m, imports, false)
}

// InstantiateBytes compiles bin, then links and instantiates it. The
// implicitly compiled module is registered and reachable through
// Instance.Module.
func (r *Runtime) InstantiateBytes(ctx context.Context, bin []byte, imports *hostval.Object) (*Instance, error) {
	m, err := r.Compile(ctx, bin)
	if err != nil {
		return nil, err
	}
	return r.instantiate(ctx, m, imports, true)
}

func (r *Runtime) instantiate(ctx context.Context, m *Module, imports *hostval.Object, keepModule bool) (*Instance, error) {
	if m == nil || m.compiled == nil {
		return nil, errors.NotInitialized(errors.PhaseLink, "module")
	}

	addrs, err := r.linker.Resolve(ctx, m.compiled.Meta(), imports)
	if err != nil {
		return nil, err
	}

	si, err := r.store.Instantiate(ctx, m.compiled, addrs)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		runtime:  r,
		inst:     si,
		wrappers: make(map[wasmembed.ExternAddr]hostval.Ref),
	}
	if keepModule {
		inst.module = m
	}

	r.mu.Lock()
	inst.handle = len(r.instances)
	r.instances = append(r.instances, inst)
	r.mu.Unlock()

	Logger().Debug("module instantiated",
		zap.Int("module", m.handle),
		zap.Int("instance", inst.handle),
		zap.String("name", si.Name()))
	return inst, nil
}

// CompileDeferred is Compile behind a deferred result, settled before
// return. Rejection carries the structured compile error.
func (r *Runtime) CompileDeferred(ctx context.Context, bin []byte) *hostval.Deferred[*Module] {
	d := hostval.NewDeferred[*Module]()
	if m, err := r.Compile(ctx, bin); err != nil {
		d.Reject(err)
	} else {
		d.Resolve(m)
	}
	return d
}

// ValidateDeferred is Validate behind a deferred result. Validation
// never rejects; malformed input resolves to false.
func (r *Runtime) ValidateDeferred(ctx context.Context, bin []byte) *hostval.Deferred[bool] {
	d := hostval.NewDeferred[bool]()
	d.Resolve(r.Validate(ctx, bin))
	return d
}

// InstantiateDeferred is InstantiateBytes behind a deferred result,
// settled before return. The resolved instance carries the implicitly
// compiled module.
func (r *Runtime) InstantiateDeferred(ctx context.Context, bin []byte, imports *hostval.Object) *hostval.Deferred[*Instance] {
	d := hostval.NewDeferred[*Instance]()
	if inst, err := r.InstantiateBytes(ctx, bin, imports); err != nil {
		d.Reject(err)
	} else {
		d.Resolve(inst)
	}
	return d
}

// Module returns the registered module for handle.
func (r *Runtime) Module(handle int) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handle < 0 || handle >= len(r.modules) {
		return nil, false
	}
	return r.modules[handle], true
}

// Instance returns the registered instance for handle.
func (r *Runtime) Instance(handle int) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handle < 0 || handle >= len(r.instances) {
		return nil, false
	}
	return r.instances[handle], true
}

// ModuleCount reports the number of registered modules.
func (r *Runtime) ModuleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// InstanceCount reports the number of registered instances.
func (r *Runtime) InstanceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// ForEachHeldReference enumerates every wrapper the runtime holds: the
// global function wrapper cache plus each instance's export wrappers.
// The host collector calls this during reachability analysis; the
// runtime's caches do not themselves keep wrappers alive.
func (r *Runtime) ForEachHeldReference(visit func(hostval.Ref)) {
	r.bridge.Cache().Range(func(_ wasmembed.FuncAddr, fn *hostval.Function) bool {
		visit(fn)
		return true
	})

	r.mu.RLock()
	instances := make([]*Instance, len(r.instances))
	copy(instances, r.instances)
	r.mu.RUnlock()

	for _, inst := range instances {
		inst.eachWrapper(visit)
	}
}
