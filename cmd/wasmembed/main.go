// Command wasmembed loads, inspects, and runs guest modules from the
// command line, with an interactive mode for exploring exports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
