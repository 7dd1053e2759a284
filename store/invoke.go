package store

import (
	"context"
	stderrors "errors"
	"fmt"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
)

// Call invokes the function at addr with already-typed guest values.
// Arguments must match the declared parameter list exactly; results
// come back typed from the declared result list.
//
// Every engine-reported failure is a trap. Structured host errors that
// tunneled through the guest frame pass through unchanged.
func (s *Store) Call(ctx context.Context, addr wasmembed.FuncAddr, args []wasmembed.Value) ([]wasmembed.Value, error) {
	ent, err := s.funcAt(addr)
	if err != nil {
		return nil, err
	}
	ft := ent.typ

	if len(args) != len(ft.Params) {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("function takes %d argument(s), %d given", len(ft.Params), len(args)))
	}
	for i, p := range ft.Params {
		if !p.IsNumeric() {
			return nil, errors.Unsupported(errors.PhaseMarshal, fmt.Sprintf("%s parameters", p))
		}
		if args[i].Type() != p {
			return nil, errors.InvalidInput(errors.PhaseRuntime,
				fmt.Sprintf("argument %d is %s, want %s", i, args[i].Type(), p))
		}
	}
	for _, r := range ft.Results {
		if !r.IsNumeric() {
			return nil, errors.Unsupported(errors.PhaseMarshal, fmt.Sprintf("%s results", r))
		}
	}

	stackLen := len(ft.Params)
	if n := len(ft.Results); n > stackLen {
		stackLen = n
	}
	var stack []uint64
	if stackLen > 0 {
		stack = make([]uint64, stackLen)
	}
	for i := range args {
		stack[i] = args[i].Raw()
	}

	runCtx, cancel := s.callContext(ctx)
	defer cancel()

	if err := ent.fn.CallWithStack(runCtx, stack); err != nil {
		return nil, wrapCallError(err)
	}

	out := make([]wasmembed.Value, len(ft.Results))
	for i, r := range ft.Results {
		out[i] = wasmembed.FromRaw(r, stack[i])
	}
	return out, nil
}

// FuncType returns the declared type of the function at addr.
func (s *Store) FuncType(addr wasmembed.FuncAddr) (wasmembed.FuncType, error) {
	ent, err := s.funcAt(addr)
	if err != nil {
		return wasmembed.FuncType{}, err
	}
	return ent.typ, nil
}

// wrapCallError turns engine failures into runtime traps. Structured
// errors raised host-side inside the call tree keep their identity.
func wrapCallError(err error) error {
	var structured *errors.Error
	if stderrors.As(err, &structured) {
		return structured
	}
	return errors.Trap(errors.PhaseRuntime, err)
}
