package bridge

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/hostval"
	"github.com/wippyai/wasm-embed/store"
)

func newBridge(t *testing.T) *Bridge {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(ctx, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(ctx) })
	return New(st)
}

func TestToGuestI32(t *testing.T) {
	b := newBridge(t)

	tests := []struct {
		name string
		in   hostval.Value
		want int32
	}{
		{"integer", hostval.Number(42), 42},
		{"truncates toward zero", hostval.Number(42.9), 42},
		{"negative truncates toward zero", hostval.Number(-1.5), -1},
		{"wraps modulo 2^32", hostval.Number(4294967296 + 5), 5},
		{"nan is zero", hostval.Number(math.NaN()), 0},
		{"infinity is zero", hostval.Number(math.Inf(1)), 0},
		{"true is one", hostval.Bool(true), 1},
		{"false is zero", hostval.Bool(false), 0},
		{"null is zero", hostval.Null{}, 0},
		{"undefined is zero", hostval.Undefined{}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := b.ToGuest(tc.in, wasmembed.TypeI32)
			if err != nil {
				t.Fatalf("conversion failed: %v", err)
			}
			if got.I32() != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got.I32())
			}
		})
	}

	_, err := b.ToGuest(hostval.String("12"), wasmembed.TypeI32)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindTypeMismatch}) {
		t.Errorf("expected type mismatch for string, got %v", err)
	}
	_, err = b.ToGuest(hostval.BigIntFromInt64(1), wasmembed.TypeI32)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindTypeMismatch}) {
		t.Errorf("expected type mismatch for bigint, got %v", err)
	}
}

func TestToGuestI64RequiresBigInt(t *testing.T) {
	b := newBridge(t)

	got, err := b.ToGuest(hostval.BigIntFromInt64(math.MaxInt64), wasmembed.TypeI64)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got.I64() != math.MaxInt64 {
		t.Errorf("expected %d, got %d", int64(math.MaxInt64), got.I64())
	}

	big := hostval.BigIntFromUint64(math.MaxUint64)
	got, err = b.ToGuest(big, wasmembed.TypeI64)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got.I64() != -1 {
		t.Errorf("expected 2^64-1 to wrap to -1, got %d", got.I64())
	}

	_, err = b.ToGuest(hostval.Number(5), wasmembed.TypeI64)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindTypeMismatch}) {
		t.Errorf("expected type mismatch for number in i64 slot, got %v", err)
	}
}

func TestToGuestFloats(t *testing.T) {
	b := newBridge(t)

	got, err := b.ToGuest(hostval.Number(1.5), wasmembed.TypeF32)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got.F32() != 1.5 {
		t.Errorf("expected 1.5, got %v", got.F32())
	}

	got, err = b.ToGuest(hostval.Number(0.1), wasmembed.TypeF32)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got.F32() != float32(0.1) {
		t.Errorf("expected narrowed 0.1, got %v", got.F32())
	}

	got, err = b.ToGuest(hostval.Number(-2.25), wasmembed.TypeF64)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got.F64() != -2.25 {
		t.Errorf("expected -2.25, got %v", got.F64())
	}

	got, err = b.ToGuest(hostval.Undefined{}, wasmembed.TypeF64)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if !math.IsNaN(got.F64()) {
		t.Errorf("expected undefined to read as NaN, got %v", got.F64())
	}
}

func TestGuestRoundTrip(t *testing.T) {
	b := newBridge(t)

	values := []wasmembed.Value{
		wasmembed.I32(-7),
		wasmembed.I32(math.MaxInt32),
		wasmembed.I64(math.MinInt64),
		wasmembed.I64(123456789123456789),
		wasmembed.F32(1.5),
		wasmembed.F64(-2.25),
	}
	for _, v := range values {
		hv, err := b.ToHost(v)
		if err != nil {
			t.Fatalf("to host failed for %s: %v", v, err)
		}
		back, err := b.ToGuest(hv, v.Type())
		if err != nil {
			t.Fatalf("back to guest failed for %s: %v", v, err)
		}
		if back != v {
			t.Errorf("round trip changed %s into %s", v, back)
		}
	}
}

func TestToHostKinds(t *testing.T) {
	b := newBridge(t)

	hv, err := b.ToHost(wasmembed.I32(-3))
	if err != nil {
		t.Fatalf("to host failed: %v", err)
	}
	if n, ok := hv.(hostval.Number); !ok || n != -3 {
		t.Errorf("expected number -3, got %v", hv)
	}

	hv, err = b.ToHost(wasmembed.I64(9))
	if err != nil {
		t.Fatalf("to host failed: %v", err)
	}
	if _, ok := hv.(*hostval.BigInt); !ok {
		t.Errorf("expected i64 to surface as bigint, got %s", hv.Kind())
	}

	hv, err = b.ToHost(wasmembed.NullFuncref())
	if err != nil {
		t.Fatalf("to host failed: %v", err)
	}
	if _, ok := hv.(hostval.Null); !ok {
		t.Errorf("expected null funcref to surface as null, got %s", hv.Kind())
	}
}

func TestFuncrefConversions(t *testing.T) {
	b := newBridge(t)

	got, err := b.ToGuest(hostval.Null{}, wasmembed.TypeFuncref)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if !got.IsNull() {
		t.Error("expected null funcref")
	}

	stray := hostval.NewFunction("stray", func([]hostval.Value) (hostval.Value, error) {
		return hostval.Undefined{}, nil
	})
	_, err = b.ToGuest(stray, wasmembed.TypeFuncref)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindUnresolvedFuncref}) {
		t.Errorf("expected unresolved funcref error, got %v", err)
	}

	_, err = b.ToGuest(hostval.Number(1), wasmembed.TypeFuncref)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindTypeMismatch}) {
		t.Errorf("expected type mismatch, got %v", err)
	}

	_, err = b.ToGuest(hostval.Null{}, wasmembed.TypeExternref)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindUnsupported}) {
		t.Errorf("expected externref to be unsupported, got %v", err)
	}
}
