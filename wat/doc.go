// Package wat compiles a subset of the WebAssembly Text format into
// binary modules, enabling human-readable module definitions for tests,
// examples, and CLI input.
//
// Basic usage:
//
//	bin, err := wat.Compile(`(module
//		(func (export "add") (param i32 i32) (result i32)
//			(i32.add (local.get 0) (local.get 1)))
//	)`)
//
// Supported constructs:
//   - Functions with params, results, and locals (named and indexed)
//   - Imports (module fields and the inline func form) and exports
//     (module fields and inline abbreviations)
//   - Memory, global, and table declarations
//   - Start functions and active element segments
//   - Flat and folded instructions
//   - Control flow: block, loop, if/then/else, br, br_if, return
//   - The full i32/i64/f32/f64 numeric instruction set and conversions
//   - Memory load/store with offset= and align= immediates
//   - call, drop, select, unreachable, nop
//   - Line (;;) and block (; ;) comments
//
// Anything else errors with the source position of the construct.
package wat
