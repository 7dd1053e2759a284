package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/internal/config"
	"github.com/wippyai/wasm-embed/linker"
	"github.com/wippyai/wasm-embed/runtime"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/wat"
)

var (
	cfgFile  string
	logLevel string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "wasmembed",
	Short:         "Load, inspect, and run guest wasm modules",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return setupLogging(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default wasmembed.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)
}

// setupLogging builds one zap logger from the loaded config and hands
// it to every package that logs.
func setupLogging(cfg *config.Config) error {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	runtime.SetLogger(logger.Named("runtime"))
	store.SetLogger(logger.Named("store"))
	linker.SetLogger(logger.Named("linker"))
	return nil
}

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D}

// loadBinary reads path and returns module bytes. Text-format sources,
// recognized by a .wat suffix or by not starting with the binary magic,
// are compiled first.
func loadBinary(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(path, err)
	}
	if strings.HasSuffix(path, ".wat") || !bytes.HasPrefix(data, wasmMagic) {
		bin, err := wat.Compile(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return bin, nil
	}
	return data, nil
}
