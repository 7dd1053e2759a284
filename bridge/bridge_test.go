package bridge

import (
	"context"
	stderrors "errors"
	"testing"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/hostval"
	"github.com/wippyai/wasm-embed/wasm"
)

var i32BinOp = wasmembed.FuncType{
	Params:  []wasmembed.ValType{wasmembed.TypeI32, wasmembed.TypeI32},
	Results: []wasmembed.ValType{wasmembed.TypeI32},
}

// instantiateAdd compiles a module exporting add(i32, i32) -> i32 and
// returns the export's address.
func instantiateAdd(t *testing.T, b *Bridge) wasmembed.FuncAddr {
	t.Helper()
	ctx := context.Background()

	mb := wasm.NewModuleBuilder()
	idx := mb.AddFunc(i32BinOp, nil, []byte{0x20, 0x00, 0x20, 0x01, 0x6A})
	mb.Export("add", wasmembed.KindFunc, idx)

	cm, err := b.store.Compile(ctx, mb.Build())
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	inst, err := b.store.Instantiate(ctx, cm, nil)
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	for _, exp := range inst.Exports() {
		if exp.Name == "add" {
			return exp.Addr.Func()
		}
	}
	t.Fatal("add export not found")
	return 0
}

func TestGuestFunctionIdentity(t *testing.T) {
	b := newBridge(t)
	addr := instantiateAdd(t, b)

	first, err := b.GuestFunction(addr, "add")
	if err != nil {
		t.Fatalf("failed to create wrapper: %v", err)
	}
	second, err := b.GuestFunction(addr, "other-name")
	if err != nil {
		t.Fatalf("failed to fetch wrapper: %v", err)
	}
	if first != second {
		t.Error("expected one wrapper per address")
	}
	if first.Name != "add" {
		t.Errorf("expected first creation to fix the name, got %q", first.Name)
	}

	hv, err := b.ToHost(wasmembed.Funcref(addr))
	if err != nil {
		t.Fatalf("to host failed: %v", err)
	}
	if hv != hostval.Value(first) {
		t.Error("expected funcref to surface as the cached wrapper")
	}

	back, err := b.ToGuest(first, wasmembed.TypeFuncref)
	if err != nil {
		t.Fatalf("back to guest failed: %v", err)
	}
	if back.FuncAddr() != addr {
		t.Errorf("expected wrapper to recover address %d, got %d", addr, back.FuncAddr())
	}
}

func TestGuestFunctionCall(t *testing.T) {
	b := newBridge(t)
	addr := instantiateAdd(t, b)

	fn, err := b.GuestFunction(addr, "add")
	if err != nil {
		t.Fatalf("failed to create wrapper: %v", err)
	}

	out, err := fn.Call(hostval.Number(40), hostval.Number(2))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if n, ok := out.(hostval.Number); !ok || n != 42 {
		t.Errorf("expected 42, got %v", out)
	}

	// Missing arguments read as undefined, which coerces to zero.
	out, err = fn.Call(hostval.Number(40))
	if err != nil {
		t.Fatalf("call with missing argument failed: %v", err)
	}
	if n := out.(hostval.Number); n != 40 {
		t.Errorf("expected 40, got %v", n)
	}

	// Extra arguments are dropped.
	out, err = fn.Call(hostval.Number(1), hostval.Number(2), hostval.String("junk"))
	if err != nil {
		t.Fatalf("call with extra argument failed: %v", err)
	}
	if n := out.(hostval.Number); n != 3 {
		t.Errorf("expected 3, got %v", n)
	}
}

func TestGuestFunctionI64Exact(t *testing.T) {
	b := newBridge(t)
	ctx := context.Background()

	ident := wasmembed.FuncType{
		Params:  []wasmembed.ValType{wasmembed.TypeI64},
		Results: []wasmembed.ValType{wasmembed.TypeI64},
	}
	mb := wasm.NewModuleBuilder()
	idx := mb.AddFunc(ident, nil, []byte{0x20, 0x00})
	mb.Export("ident", wasmembed.KindFunc, idx)

	cm, err := b.store.Compile(ctx, mb.Build())
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	inst, err := b.store.Instantiate(ctx, cm, nil)
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}

	fn, err := b.GuestFunction(inst.Exports()[0].Addr.Func(), "ident")
	if err != nil {
		t.Fatalf("failed to create wrapper: %v", err)
	}

	const want = int64(9007199254740993) // 2^53 + 1, not representable as a float
	out, err := fn.Call(hostval.BigIntFromInt64(want))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	got, ok := out.(*hostval.BigInt)
	if !ok {
		t.Fatalf("expected bigint result, got %s", out.Kind())
	}
	if got.Int64() != want {
		t.Errorf("expected %d, got %d", want, got.Int64())
	}

	_, err = fn.Call(hostval.Number(5))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindTypeMismatch}) {
		t.Errorf("expected type mismatch for number argument, got %v", err)
	}
}

func TestHostFuncAdapter(t *testing.T) {
	b := newBridge(t)
	ctx := context.Background()

	callable := hostval.NewFunction("add", func(args []hostval.Value) (hostval.Value, error) {
		return hostval.Number(float64(args[0].(hostval.Number)) + float64(args[1].(hostval.Number))), nil
	})

	addr, err := b.store.AllocHostFunc(ctx, i32BinOp, b.HostFunc(i32BinOp, callable))
	if err != nil {
		t.Fatalf("failed to register host function: %v", err)
	}

	mb := wasm.NewModuleBuilder()
	imp := mb.ImportFunc("env", "add", i32BinOp)
	idx := mb.AddFunc(i32BinOp, nil, []byte{0x20, 0x00, 0x20, 0x01, 0x10, byte(imp)})
	mb.Export("call_add", wasmembed.KindFunc, idx)

	cm, err := b.store.Compile(ctx, mb.Build())
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	inst, err := b.store.Instantiate(ctx, cm, []wasmembed.ExternAddr{wasmembed.FuncExtern(addr)})
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}

	out, err := b.store.Call(ctx, inst.Exports()[0].Addr.Func(),
		[]wasmembed.Value{wasmembed.I32(19), wasmembed.I32(23)})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if out[0].I32() != 42 {
		t.Errorf("expected 42, got %d", out[0].I32())
	}
}

func TestHostFuncAdapterResultMismatch(t *testing.T) {
	b := newBridge(t)
	ctx := context.Background()

	callable := hostval.NewFunction("bad", func([]hostval.Value) (hostval.Value, error) {
		return hostval.String("not a number"), nil
	})

	getter := wasmembed.FuncType{Results: []wasmembed.ValType{wasmembed.TypeI32}}
	addr, err := b.store.AllocHostFunc(ctx, getter, b.HostFunc(getter, callable))
	if err != nil {
		t.Fatalf("failed to register host function: %v", err)
	}

	mb := wasm.NewModuleBuilder()
	imp := mb.ImportFunc("env", "bad", getter)
	idx := mb.AddFunc(getter, nil, []byte{0x10, byte(imp)})
	mb.Export("run", wasmembed.KindFunc, idx)

	cm, err := b.store.Compile(ctx, mb.Build())
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	inst, err := b.store.Instantiate(ctx, cm, []wasmembed.ExternAddr{wasmembed.FuncExtern(addr)})
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}

	_, err = b.store.Call(ctx, inst.Exports()[0].Addr.Func(), nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindTypeMismatch}) {
		t.Errorf("expected marshal error to surface from the call, got %v", err)
	}
}

func TestHostFuncAdapterMultiResultUnsupported(t *testing.T) {
	b := newBridge(t)
	ctx := context.Background()

	callable := hostval.NewFunction("pair", func([]hostval.Value) (hostval.Value, error) {
		return hostval.NewArray(hostval.Number(1), hostval.Number(2)), nil
	})

	pair := wasmembed.FuncType{Results: []wasmembed.ValType{wasmembed.TypeI32, wasmembed.TypeI32}}
	addr, err := b.store.AllocHostFunc(ctx, pair, b.HostFunc(pair, callable))
	if err != nil {
		t.Fatalf("failed to register host function: %v", err)
	}

	_, err = b.store.Call(ctx, addr, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindUnsupported}) {
		t.Errorf("expected a two-result import to be unsupported, got %v", err)
	}
}

func TestCacheCanonicalWrapper(t *testing.T) {
	c := NewCache()

	a := hostval.NewFunction("a", nil)
	b := hostval.NewFunction("b", nil)

	if got := c.Put(3, a); got != a {
		t.Error("expected first registration to win")
	}
	if got := c.Put(3, b); got != a {
		t.Error("expected existing wrapper to be canonical")
	}

	fn, ok := c.Function(3)
	if !ok || fn != a {
		t.Error("expected lookup to return the canonical wrapper")
	}
	addr, ok := c.AddrOf(a)
	if !ok || addr != 3 {
		t.Errorf("expected reverse lookup to find address 3, got %d", addr)
	}
	if _, ok := c.AddrOf(b); ok {
		t.Error("discarded wrapper must not resolve to an address")
	}
	if c.Len() != 1 {
		t.Errorf("expected one cached wrapper, got %d", c.Len())
	}

	seen := 0
	c.Range(func(wasmembed.FuncAddr, *hostval.Function) bool {
		seen++
		return true
	})
	if seen != 1 {
		t.Errorf("expected range over one wrapper, got %d", seen)
	}
}
