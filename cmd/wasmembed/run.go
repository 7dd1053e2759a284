package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/hostval"
	"github.com/wippyai/wasm-embed/runtime"
	"github.com/wippyai/wasm-embed/wasm"
)

var (
	runFunc        string
	runInteractive bool
)

var runCmd = &cobra.Command{
	Use:   "run <file> [arg...]",
	Short: "Instantiate a module and call an exported function",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runInteractive {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("interactive mode requires a terminal")
			}
			return runTUI(args[0])
		}
		return run(cmd, args[0], runFunc, args[1:])
	},
}

func init() {
	runCmd.Flags().StringVar(&runFunc, "func", "", "function to call (default: sole function export)")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "pick functions and arguments in a TUI")
}

func run(cmd *cobra.Command, path, funcName string, rawArgs []string) error {
	ctx := cmd.Context()

	bin, err := loadBinary(path)
	if err != nil {
		return err
	}
	meta, err := wasm.Decode(bin)
	if err != nil {
		return err
	}

	rt, err := runtime.New(ctx, cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	inst, err := rt.InstantiateBytes(ctx, bin, nil)
	if err != nil {
		return err
	}

	if funcName == "" {
		funcName, err = soleFunctionExport(meta)
		if err != nil {
			return err
		}
	}

	ft, err := exportedFuncType(meta, funcName)
	if err != nil {
		return err
	}
	if len(rawArgs) != len(ft.Params) {
		return fmt.Errorf("%s takes %d argument(s), %d given", funcName, len(ft.Params), len(rawArgs))
	}

	callArgs := make([]hostval.Value, len(rawArgs))
	for i, raw := range rawArgs {
		callArgs[i], err = parseArg(raw, ft.Params[i])
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
	}

	fn, err := inst.ExportedFunction(funcName)
	if err != nil {
		return err
	}
	result, err := fn.Call(callArgs...)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), formatResult(result))
	return nil
}

func soleFunctionExport(meta *wasm.Module) (string, error) {
	var names []string
	for _, exp := range meta.Exports {
		if exp.Kind == wasmembed.KindFunc {
			names = append(names, exp.Name)
		}
	}
	switch len(names) {
	case 0:
		return "", fmt.Errorf("module exports no functions")
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("module exports %d functions, pick one with --func: %s",
			len(names), strings.Join(names, ", "))
	}
}

func exportedFuncType(meta *wasm.Module, name string) (wasmembed.FuncType, error) {
	for _, exp := range meta.Exports {
		if exp.Name != name || exp.Kind != wasmembed.KindFunc {
			continue
		}
		t, ok := meta.TypeOfExport(exp)
		if !ok {
			break
		}
		return t.(wasmembed.FuncType), nil
	}
	return wasmembed.FuncType{}, fmt.Errorf("no function export named %q", name)
}

// parseArg converts one command-line argument according to the declared
// parameter type. 64-bit integers take a plain integer literal; the
// other numeric types take any float literal.
func parseArg(raw string, t wasmembed.ValType) (hostval.Value, error) {
	switch t {
	case wasmembed.TypeI64:
		n, err := strconv.ParseInt(strings.TrimSuffix(raw, "n"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an i64 literal", raw)
		}
		return hostval.BigIntFromInt64(n), nil
	case wasmembed.TypeI32, wasmembed.TypeF32, wasmembed.TypeF64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return hostval.Number(f), nil
	default:
		return nil, fmt.Errorf("cannot build a %s argument from the command line", t)
	}
}

func formatResult(v hostval.Value) string {
	switch r := v.(type) {
	case nil, hostval.Undefined:
		return "(no result)"
	case *hostval.BigInt:
		return r.String() + "n"
	default:
		return fmt.Sprintf("%v", r)
	}
}
