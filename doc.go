// Package wasmembed embeds a WebAssembly guest VM inside a dynamically
// typed host scripting engine.
//
// Host code compiles, links, instantiates, and calls into guest modules;
// guest modules call back into host functions. The library owns module
// compilation caching, import resolution, instantiation bookkeeping, and
// bidirectional value marshalling between the host's dynamic values and the
// guest's typed values, including the wrapper-identity caching the host
// garbage collector needs to see.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmembed/          Root package with the guest-side type and address model
//	├── hostval/        Host engine values: numbers, bigints, objects, callables
//	├── store/          Guest VM service over wazero: parse, allocate,
//	│                   instantiate, invoke against integer addresses
//	├── bridge/         Value marshalling and the host function bridge
//	├── linker/         Import resolution against a host namespace object
//	├── runtime/        High-level embedding API: registries, deferred
//	│                   results, export wrappers, GC trace hook
//	├── wasm/           Guest binary introspection, synthesis, and rewriting
//	├── wat/            WAT text format to binary compiler (subset)
//	└── errors/         Structured error types for debugging
//
// # Quick Start
//
// Compile and call into a guest module:
//
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Compile(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := rt.Instantiate(ctx, mod, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	add, _ := inst.Exports().Get("add")
//	sum, err := add.(*hostval.Function).Call(hostval.Number(2), hostval.Number(3))
//
// Host functions reach the guest through import objects:
//
//	imports := hostval.NewObject()
//	env := hostval.NewObject()
//	env.Set("double", hostval.NewFunction("double", func(args []hostval.Value) (hostval.Value, error) {
//	    n := args[0].(hostval.Number)
//	    return hostval.Number(n * 2), nil
//	}))
//	imports.Set("env", env)
//
//	inst, err := rt.Instantiate(ctx, mod, imports)
//
// # Thread Safety
//
// Runtime, Module, and the wrapper caches are safe for concurrent use.
// Guest calls run to completion on the calling goroutine; a non-terminating
// guest function blocks its caller unless a call budget is configured.
//
// # Value Model
//
// Guest i32/f32/f64 values travel as host numbers. Guest i64 values travel
// as host big integers so no precision is lost; a plain host number where
// the guest expects i64 (or a big integer where it expects i32) is a type
// error, never a coercion. Function references map to host callables with
// stable identity: looking up the same guest function twice yields the same
// host wrapper object.
package wasmembed
