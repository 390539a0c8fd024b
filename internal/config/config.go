// Package config loads hotwatch.yaml via Viper, applying defaults and the
// six __HOTWATCH_* environment overrides named in spec.md §6 (renamed from
// the original tool's __ELM_WATCH_* convention).
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of hotwatch.yaml plus CLI-derived fields.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Build       BuildConfig       `yaml:"build"`
	Development DevelopmentConfig `yaml:"development"`
	TargetFiles []string          `yaml:"-"` // CLI positional arguments, not from config file
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// BuildConfig controls the scheduler's concurrency and timing.
type BuildConfig struct {
	MaxParallel           int      `yaml:"max_parallel"`
	DebounceMs            int      `yaml:"debounce_ms"`
	WorkerLimitTimeoutMs  int      `yaml:"worker_limit_timeout_ms"`
	OpenEditorTimeoutMs   int      `yaml:"open_editor_timeout_ms"`
	Ignore                []string `yaml:"ignore"`
	CacheDir               string   `yaml:"cache_dir"`
	CompilerCommand        string   `yaml:"compiler_command"`
	WalkerWorkers          int      `yaml:"walker_workers"`
}

type DevelopmentConfig struct {
	ExitOnError       bool `yaml:"exit_on_error"`
	ExitOnWorkerLimit bool `yaml:"exit_on_worker_limit"`
	Debug             bool `yaml:"debug"`
	NotTTY            bool `yaml:"not_tty"`
}

// WorkerLimitTimeout and OpenEditorTimeout return the configured durations.
func (c *Config) WorkerLimitTimeout() time.Duration {
	return time.Duration(c.Build.WorkerLimitTimeoutMs) * time.Millisecond
}

func (c *Config) OpenEditorTimeout() time.Duration {
	return time.Duration(c.Build.OpenEditorTimeoutMs) * time.Millisecond
}

func (c *Config) DebounceDuration() time.Duration {
	return time.Duration(c.Build.DebounceMs) * time.Millisecond
}

// Load reads hotwatch.yaml (if present) and the __HOTWATCH_* environment
// overrides, applying defaults for anything left unset.
func Load() (*Config, error) {
	viper.SetEnvPrefix("__HOTWATCH")
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding hotwatch.yaml: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Build.MaxParallel <= 0 {
		cfg.Build.MaxParallel = runtime.NumCPU()
	}
	if cfg.Build.DebounceMs <= 0 {
		cfg.Build.DebounceMs = 10
	}
	if cfg.Build.WorkerLimitTimeoutMs <= 0 {
		cfg.Build.WorkerLimitTimeoutMs = 10_000
	}
	if cfg.Build.OpenEditorTimeoutMs <= 0 {
		cfg.Build.OpenEditorTimeoutMs = 5_000
	}
	if len(cfg.Build.Ignore) == 0 {
		cfg.Build.Ignore = []string{"node_modules", ".git"}
	}
	if cfg.Build.CacheDir == "" {
		cfg.Build.CacheDir = ".hotwatch/cache"
	}
	if cfg.Build.CompilerCommand == "" {
		cfg.Build.CompilerCommand = "compiler"
	}
	if cfg.Build.WalkerWorkers <= 0 {
		cfg.Build.WalkerWorkers = runtime.NumCPU()
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", cfg.Server.Port)
	}
	if err := validateNoDangerousChars(cfg.Server.Host, "host"); err != nil {
		return err
	}
	if cfg.Build.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be >= 1")
	}
	if err := validateNoDangerousChars(cfg.Build.CompilerCommand, "compiler_command"); err != nil {
		return err
	}

	cleanCache := filepath.Clean(cfg.Build.CacheDir)
	if strings.Contains(cleanCache, "..") {
		return fmt.Errorf("cache_dir contains path traversal: %s", cfg.Build.CacheDir)
	}
	if filepath.IsAbs(cleanCache) {
		return fmt.Errorf("cache_dir should be a relative path: %s", cfg.Build.CacheDir)
	}

	return nil
}

func validateNoDangerousChars(s, field string) error {
	dangerous := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerous {
		if strings.Contains(s, char) {
			return fmt.Errorf("%s contains dangerous character: %s", field, char)
		}
	}
	return nil
}
