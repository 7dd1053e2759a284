package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-embed/runtime"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a module compiles and validates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bin, err := loadBinary(args[0])
		if err != nil {
			return err
		}

		rt, err := runtime.New(ctx, cfg.StoreConfig())
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		if !rt.Validate(ctx, bin) {
			return fmt.Errorf("%s: invalid module", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return nil
	},
}
