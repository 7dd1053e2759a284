// Package config loads the embedder's runtime configuration from a
// wasmembed.yaml file, WASMEMBED_* environment variables, and built-in
// defaults, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wippyai/wasm-embed/store"
)

var validate = validator.New()

// Config holds every tunable the CLI and runtime accept.
type Config struct {
	// Store limits applied to every guest instance.
	Store struct {
		// MemoryLimitPages caps linear memory growth in 64 KiB pages.
		// Zero means the engine default.
		MemoryLimitPages uint32 `mapstructure:"memory_limit_pages" validate:"lte=65536"`
		// CallBudget bounds the wall-clock duration of a single guest
		// call, including nested host calls. Zero disables the budget.
		CallBudget time.Duration `mapstructure:"call_budget" validate:"gte=0"`
	} `mapstructure:"store"`

	// Logging configuration.
	Log struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format string `mapstructure:"format" validate:"oneof=console json"`
	} `mapstructure:"log"`
}

// Load reads configuration from path when non-empty, otherwise from
// wasmembed.yaml in the working directory or $HOME/.wasmembed. A
// missing file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wasmembed")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.wasmembed")
	}

	setDefaults(v)

	v.SetEnvPrefix("WASMEMBED")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if path != "" || !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.memory_limit_pages", 0)
	v.SetDefault("store.call_budget", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// StoreConfig converts the loaded settings into the store's own config.
func (c *Config) StoreConfig() *store.Config {
	return &store.Config{
		MemoryLimitPages: c.Store.MemoryLimitPages,
		CallBudget:       c.Store.CallBudget,
	}
}
