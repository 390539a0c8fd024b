package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsInMissingValues(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Greater(t, cfg.Build.MaxParallel, 0)
	assert.Equal(t, 10, cfg.Build.DebounceMs)
	assert.Equal(t, 10_000, cfg.Build.WorkerLimitTimeoutMs)
	assert.Equal(t, 5_000, cfg.Build.OpenEditorTimeoutMs)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "compiler", cfg.Build.CompilerCommand)
	assert.Greater(t, cfg.Build.WalkerWorkers, 0)
}

func TestValidateConfigRejectsDangerousCompilerCommand(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Build.CompilerCommand = "compiler; rm -rf /"
	require.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsBadPort(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Server.Port = 70000
	require.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsDangerousHost(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Server.Host = "evil;rm -rf /"
	require.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsAbsoluteCacheDir(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Build.CacheDir = "/tmp/cache"
	require.Error(t, validateConfig(cfg))
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{Build: BuildConfig{DebounceMs: 10, WorkerLimitTimeoutMs: 10000, OpenEditorTimeoutMs: 5000}}
	assert.Equal(t, int64(10_000_000), cfg.DebounceDuration().Nanoseconds())
	assert.Equal(t, int64(10_000_000_000), cfg.WorkerLimitTimeout().Nanoseconds())
	assert.Equal(t, int64(5_000_000_000), cfg.OpenEditorTimeout().Nanoseconds())
}
