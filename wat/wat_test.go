package wat

import (
	stderrors "errors"
	"strings"
	"testing"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/wasm"
)

func compileAndDecode(t *testing.T, src string) *wasm.Module {
	t.Helper()
	bin, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m, err := wasm.Decode(bin)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m
}

func TestCompileAddFunction(t *testing.T) {
	m := compileAndDecode(t, `(module
		(func (export "add") (param i32 i32) (result i32)
			(i32.add (local.get 0) (local.get 1)))
	)`)

	if len(m.Exports) != 1 || m.Exports[0].Name != "add" {
		t.Fatalf("exports = %+v", m.Exports)
	}
	ft, ok := m.FuncTypeAt(m.Exports[0].Index)
	if !ok {
		t.Fatal("no type for exported function")
	}
	want := wasmembed.FuncType{
		Params:  []wasmembed.ValType{wasmembed.TypeI32, wasmembed.TypeI32},
		Results: []wasmembed.ValType{wasmembed.TypeI32},
	}
	if !ft.Equal(want) {
		t.Fatalf("type = %s, want %s", ft, want)
	}
}

func TestCompileFlatBody(t *testing.T) {
	m := compileAndDecode(t, `(module
		(func (export "answer") (result i32)
			i32.const 40
			i32.const 2
			i32.add)
	)`)
	if len(m.Exports) != 1 {
		t.Fatalf("exports = %+v", m.Exports)
	}
}

func TestCompileImports(t *testing.T) {
	m := compileAndDecode(t, `(module
		(import "env" "double" (func $double (param i32) (result i32)))
		(import "env" "base" (global i64))
		(import "env" "mem" (memory 1 4))
		(func (export "quad") (param i32) (result i32)
			(call $double (call $double (local.get 0))))
	)`)

	if len(m.Imports) != 3 {
		t.Fatalf("imports = %+v", m.Imports)
	}
	if m.Imports[0].Module != "env" || m.Imports[0].Name != "double" {
		t.Fatalf("first import = %+v", m.Imports[0])
	}
	if m.Imports[0].Kind() != wasmembed.KindFunc {
		t.Fatalf("first import kind = %s", m.Imports[0].Kind())
	}
	if gt, ok := m.Imports[1].Type.(wasmembed.GlobalType); !ok || gt.Val != wasmembed.TypeI64 {
		t.Fatalf("second import type = %+v", m.Imports[1].Type)
	}
	if mt, ok := m.Imports[2].Type.(wasmembed.MemoryType); !ok || mt.Limits.Min != 1 || !mt.Limits.HasMax {
		t.Fatalf("third import type = %+v", m.Imports[2].Type)
	}
}

func TestCompileInlineFuncImport(t *testing.T) {
	m := compileAndDecode(t, `(module
		(func $log (import "env" "log") (param i32))
		(func (export "run") (call $log (i32.const 7)))
	)`)
	if len(m.Imports) != 1 || m.Imports[0].Name != "log" {
		t.Fatalf("imports = %+v", m.Imports)
	}
}

func TestCompileMemoryGlobalTable(t *testing.T) {
	m := compileAndDecode(t, `(module
		(memory (export "mem") 2 10)
		(global (export "counter") (mut i32) (i32.const 0))
		(global $pi f64 (f64.const 3.141592653589793))
		(table (export "tab") 4 funcref)
	)`)

	if len(m.Memories) != 1 || m.Memories[0].Limits.Min != 2 || m.Memories[0].Limits.Max != 10 {
		t.Fatalf("memories = %+v", m.Memories)
	}
	if len(m.Globals) != 2 || !m.Globals[0].Mutable || m.Globals[1].Val != wasmembed.TypeF64 {
		t.Fatalf("globals = %+v", m.Globals)
	}
	if len(m.Tables) != 1 || m.Tables[0].Elem != wasmembed.TypeFuncref {
		t.Fatalf("tables = %+v", m.Tables)
	}
	if len(m.Exports) != 3 {
		t.Fatalf("exports = %+v", m.Exports)
	}
}

func TestCompileExportField(t *testing.T) {
	m := compileAndDecode(t, `(module
		(export "first" (func $f))
		(func $f (result i32) (i32.const 1))
		(export "second" (func $f))
	)`)

	if len(m.Exports) != 2 {
		t.Fatalf("exports = %+v", m.Exports)
	}
	if m.Exports[0].Index != m.Exports[1].Index {
		t.Fatal("aliased exports should share one index")
	}
}

func TestCompileControlFlow(t *testing.T) {
	srcs := map[string]string{
		"folded if": `(module
			(func (export "abs") (param i32) (result i32)
				(if (result i32) (i32.lt_s (local.get 0) (i32.const 0))
					(then (i32.sub (i32.const 0) (local.get 0)))
					(else (local.get 0))))
		)`,
		"flat block": `(module
			(func (export "ten") (result i32) (local $n i32)
				block $done
					i32.const 10
					local.set $n
					br $done
				end
				local.get $n)
		)`,
		"loop": `(module
			(func (export "count") (param i32) (result i32) (local $acc i32)
				(block $exit
					(loop $top
						(br_if $exit (i32.eqz (local.get 0)))
						(local.set $acc (i32.add (local.get $acc) (i32.const 1)))
						(local.set 0 (i32.sub (local.get 0) (i32.const 1)))
						(br $top)))
				local.get $acc)
		)`,
	}
	for name, src := range srcs {
		t.Run(name, func(t *testing.T) {
			compileAndDecode(t, src)
		})
	}
}

func TestCompileMemoryOps(t *testing.T) {
	compileAndDecode(t, `(module
		(memory 1)
		(func (export "poke") (param i32 i32)
			(i32.store offset=16 (local.get 0) (local.get 1)))
		(func (export "peek") (param i32) (result i32)
			(i32.load8_u align=1 (local.get 0)))
		(func (export "pages") (result i32) memory.size)
	)`)
}

func TestCompileStartAndElem(t *testing.T) {
	m := compileAndDecode(t, `(module
		(table 2 funcref)
		(func $init)
		(func $other)
		(start $init)
		(elem (i32.const 0) $init $other)
	)`)
	if !m.HasStart {
		t.Fatal("start function not recorded")
	}
}

func TestCompileConstants(t *testing.T) {
	compileAndDecode(t, `(module
		(global i32 (i32.const -2147483648))
		(global i32 (i32.const 0xff))
		(global i64 (i64.const 9223372036854775807))
		(global i64 (i64.const -1))
		(global f32 (f32.const -0.5))
		(global f64 (f64.const 1e308))
		(func (result i64) (i64.const 1_000_000))
	)`)
}

func TestCompileComments(t *testing.T) {
	compileAndDecode(t, `(module
		;; line comment
		(func (export "f") (result i32)
			(; block
			   comment ;)
			(i32.const 3))
	)`)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"not a module", `(func)`, "expected (module"},
		{"unclosed paren", `(module (func`, "unclosed"},
		{"unknown field", `(module (data 0))`, "unsupported module field"},
		{"unknown instruction", `(module (func v128.not))`, "unsupported instruction"},
		{"unknown local", `(module (func (local.get $missing)))`, "unknown local"},
		{"bad index", `(module (func (call 5)))`, "out of range"},
		{"import after define", `(module (func) (import "a" "b" (func)))`, "after function definition"},
		{"bad constant", `(module (global i32 (i32.const banana)))`, "invalid i32 constant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := Compile("(module\n  (bogus))")
	if err == nil {
		t.Fatal("expected error")
	}
	var se *SyntaxError
	if !stderrors.As(err, &se) {
		t.Fatalf("error %v does not wrap a *SyntaxError", err)
	}
	if se.Line != 2 {
		t.Fatalf("line = %d, want 2", se.Line)
	}
}
