package bridge

import (
	"context"
	stderrors "errors"
	"fmt"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/hostval"
	"github.com/wippyai/wasm-embed/store"
)

// Bridge converts values across the host boundary for one store. All
// wrappers it creates share one cache, so conversion is identity-stable
// for the life of the store.
type Bridge struct {
	store *store.Store
	cache *Cache
}

// New creates a bridge over st with an empty wrapper cache.
func New(st *store.Store) *Bridge {
	return &Bridge{store: st, cache: NewCache()}
}

// Cache returns the bridge's wrapper cache.
func (b *Bridge) Cache() *Cache {
	return b.cache
}

// GuestFunction returns the canonical host wrapper for the function at
// addr, creating it on first use. name labels a newly created wrapper;
// an already cached wrapper keeps the name it was created with.
func (b *Bridge) GuestFunction(addr wasmembed.FuncAddr, name string) (*hostval.Function, error) {
	if fn, ok := b.cache.Function(addr); ok {
		return fn, nil
	}
	ft, err := b.store.FuncType(addr)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = fmt.Sprintf("wasm-function[%d]", addr)
	}
	fn := hostval.NewFunction(name, func(args []hostval.Value) (hostval.Value, error) {
		return b.callGuest(addr, ft, args)
	})
	return b.cache.Put(addr, fn), nil
}

// callGuest marshals host arguments per the declared signature, runs
// the guest function, and marshals results back. Missing arguments
// read as undefined; extra arguments are dropped.
func (b *Bridge) callGuest(addr wasmembed.FuncAddr, ft wasmembed.FuncType, args []hostval.Value) (hostval.Value, error) {
	guestArgs := make([]wasmembed.Value, len(ft.Params))
	for i, p := range ft.Params {
		var hv hostval.Value = hostval.Undefined{}
		if i < len(args) && args[i] != nil {
			hv = args[i]
		}
		gv, err := b.ToGuest(hv, p)
		if err != nil {
			return nil, err
		}
		guestArgs[i] = gv
	}

	out, err := b.store.Call(context.Background(), addr, guestArgs)
	if err != nil {
		return nil, err
	}
	return b.resultsToHost(out)
}

// resultsToHost shapes a result list the way the host engine expects:
// no results read as undefined, one result as the value itself, and
// several as an array.
func (b *Bridge) resultsToHost(out []wasmembed.Value) (hostval.Value, error) {
	switch len(out) {
	case 0:
		return hostval.Undefined{}, nil
	case 1:
		return b.ToHost(out[0])
	default:
		elems := make([]hostval.Value, len(out))
		for i, v := range out {
			hv, err := b.ToHost(v)
			if err != nil {
				return nil, err
			}
			elems[i] = hv
		}
		return hostval.NewArray(elems...), nil
	}
}

// HostFunc adapts a host callable to a declared import signature so the
// store can register it as a guest-callable function. Signatures with
// more than one result are rejected at call time.
func (b *Bridge) HostFunc(ft wasmembed.FuncType, fn *hostval.Function) store.HostFunc {
	return func(ctx context.Context, args []wasmembed.Value) ([]wasmembed.Value, error) {
		hostArgs := make([]hostval.Value, len(args))
		for i, a := range args {
			hv, err := b.ToHost(a)
			if err != nil {
				return nil, err
			}
			hostArgs[i] = hv
		}

		out, err := fn.Call(hostArgs...)
		if err != nil {
			return nil, hostError(err)
		}
		if out == nil {
			out = hostval.Undefined{}
		}

		switch len(ft.Results) {
		case 0:
			// The host engine drops the return value.
			return nil, nil
		case 1:
			gv, err := b.ToGuest(out, ft.Results[0])
			if err != nil {
				return nil, err
			}
			return []wasmembed.Value{gv}, nil
		default:
			return nil, errors.Unsupported(errors.PhaseMarshal,
				fmt.Sprintf("host-backed imports with %d results", len(ft.Results)))
		}
	}
}

// hostError keeps structured errors intact and marks anything else as a
// failure of the host callable so it traps the guest caller.
func hostError(err error) error {
	var structured *errors.Error
	if stderrors.As(err, &structured) {
		return structured
	}
	return errors.New(errors.PhaseRuntime, errors.KindTrap).
		Cause(err).
		Detail("host function failed").
		Build()
}
