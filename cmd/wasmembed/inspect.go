package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	wasmembed "github.com/wippyai/wasm-embed"
	"github.com/wippyai/wasm-embed/wasm"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "List a module's imports and exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bin, err := loadBinary(args[0])
		if err != nil {
			return err
		}
		meta, err := wasm.Decode(bin)
		if err != nil {
			return err
		}
		printModule(cmd.OutOrStdout(), args[0], meta)
		return nil
	},
}

func printModule(w io.Writer, path string, meta *wasm.Module) {
	fmt.Fprintf(w, "Module: %s (%d import(s), %d export(s))\n", path, len(meta.Imports), len(meta.Exports))

	if len(meta.Imports) > 0 {
		fmt.Fprintln(w, "\nImports:")
		for _, imp := range meta.Imports {
			fmt.Fprintf(w, "  %s.%s  %s %s\n", imp.Module, imp.Name, imp.Kind(), externTypeString(imp.Type))
		}
	}

	if len(meta.Exports) > 0 {
		fmt.Fprintln(w, "\nExports:")
		for _, exp := range meta.Exports {
			t, _ := meta.TypeOfExport(exp)
			fmt.Fprintf(w, "  %s  %s %s\n", exp.Name, exp.Kind, externTypeString(t))
		}
	}
}

func externTypeString(t wasmembed.ExternType) string {
	switch v := t.(type) {
	case wasmembed.FuncType:
		return v.String()
	case wasmembed.GlobalType:
		return v.String()
	case wasmembed.MemoryType:
		return limitsString(v.Limits)
	case wasmembed.TableType:
		return v.Elem.String() + " " + limitsString(v.Limits)
	default:
		return ""
	}
}

func limitsString(l wasmembed.Limits) string {
	if l.HasMax {
		return fmt.Sprintf("[%d..%d]", l.Min, l.Max)
	}
	return fmt.Sprintf("[%d..]", l.Min)
}
