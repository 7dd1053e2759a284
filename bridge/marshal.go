package bridge

import (
	"fmt"
	"math"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/hostval"
)

// ToGuest converts a host value to a guest value of type t.
//
// Numeric slots take numbers, with booleans, null and undefined
// coercing the way the host engine coerces them to numbers. i64 slots
// take bigints only; a number in an i64 slot is an error, never a
// coercion. funcref slots take null or a callable that already has a
// guest address.
func (b *Bridge) ToGuest(v hostval.Value, t wasmembed.ValType) (wasmembed.Value, error) {
	if v == nil {
		v = hostval.Undefined{}
	}

	switch t {
	case wasmembed.TypeI32:
		f, ok := numberOf(v)
		if !ok {
			return wasmembed.Value{}, errors.TypeMismatch(errors.PhaseMarshal, nil, v.Kind().String(), "i32")
		}
		return wasmembed.I32(toInt32(f)), nil

	case wasmembed.TypeI64:
		big, ok := v.(*hostval.BigInt)
		if !ok {
			return wasmembed.Value{}, errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
				HostType(v.Kind().String()).
				GuestType("i64").
				Detail("i64 values require a bigint").
				Build()
		}
		return wasmembed.I64(big.Int64()), nil

	case wasmembed.TypeF32:
		f, ok := numberOf(v)
		if !ok {
			return wasmembed.Value{}, errors.TypeMismatch(errors.PhaseMarshal, nil, v.Kind().String(), "f32")
		}
		return wasmembed.F32(float32(f)), nil

	case wasmembed.TypeF64:
		f, ok := numberOf(v)
		if !ok {
			return wasmembed.Value{}, errors.TypeMismatch(errors.PhaseMarshal, nil, v.Kind().String(), "f64")
		}
		return wasmembed.F64(f), nil

	case wasmembed.TypeFuncref:
		switch x := v.(type) {
		case hostval.Null:
			return wasmembed.NullFuncref(), nil
		case *hostval.Function:
			addr, ok := b.cache.AddrOf(x)
			if !ok {
				return wasmembed.Value{}, errors.UnresolvedFuncref(x.Name)
			}
			return wasmembed.Funcref(addr), nil
		default:
			return wasmembed.Value{}, errors.TypeMismatch(errors.PhaseMarshal, nil, v.Kind().String(), "funcref")
		}

	case wasmembed.TypeExternref:
		return wasmembed.Value{}, errors.Unsupported(errors.PhaseMarshal, "externref values")

	default:
		return wasmembed.Value{}, errors.Unsupported(errors.PhaseMarshal, fmt.Sprintf("%s values", t))
	}
}

// ToHost converts a guest value to a host value. i64 surfaces as a
// bigint so 64-bit integers keep exact precision; funcref surfaces as
// null or the canonical wrapper for its address.
func (b *Bridge) ToHost(v wasmembed.Value) (hostval.Value, error) {
	switch v.Type() {
	case wasmembed.TypeI32:
		return hostval.Number(float64(v.I32())), nil
	case wasmembed.TypeI64:
		return hostval.BigIntFromInt64(v.I64()), nil
	case wasmembed.TypeF32:
		return hostval.Number(float64(v.F32())), nil
	case wasmembed.TypeF64:
		return hostval.Number(v.F64()), nil
	case wasmembed.TypeFuncref:
		if v.IsNull() {
			return hostval.Null{}, nil
		}
		return b.GuestFunction(v.FuncAddr(), "")
	default:
		return nil, errors.Unsupported(errors.PhaseMarshal, fmt.Sprintf("%s values", v.Type()))
	}
}

// numberOf applies the host engine's number coercion to the kinds that
// coerce silently. Everything else must be a real number.
func numberOf(v hostval.Value) (float64, bool) {
	switch x := v.(type) {
	case hostval.Number:
		return float64(x), true
	case hostval.Bool:
		if x {
			return 1, true
		}
		return 0, true
	case hostval.Undefined:
		return math.NaN(), true
	case hostval.Null:
		return 0, true
	default:
		return 0, false
	}
}

// toInt32 truncates toward zero and wraps modulo 2^32, the way the
// host engine converts numbers to 32-bit integers. NaN and infinities
// become zero.
func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return 0
	}
	t := math.Trunc(f)
	m := math.Mod(t, 4294967296.0)
	if m < 0 {
		m += 4294967296.0
	}
	return int32(uint32(m))
}
