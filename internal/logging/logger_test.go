package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultsToInfoText(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	log := NewLogger(config)
	log.Debug(context.Background(), "debug message")
	log.Info(context.Background(), "info message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.Contains(t, out, "info message")
}

func TestLoggerWarnErrorIncludeErrorAttr(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	log := NewLogger(config)
	log.Warn(context.Background(), errors.New("fizz"), "compile slow")
	log.Error(context.Background(), errors.New("boom"), "compile failed")

	assert.Contains(t, buf.String(), "fizz")
	assert.Contains(t, buf.String(), "compile slow")
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "compile failed")
}

func TestLoggerWithComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	log := NewLogger(config).WithComponent("reporter")
	log.Info(context.Background(), "compiled successfully")

	assert.Contains(t, buf.String(), "component=reporter")
}

func TestLoggerWithAddsPersistentFields(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	log := NewLogger(config).With("target", "main")
	log.Info(context.Background(), "status changed")

	assert.Contains(t, buf.String(), "target=main")
}

func TestLoggerFatalDoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	log := NewLogger(config)
	log.Fatal(context.Background(), errors.New("stopped"), "hotwatch stopped")

	assert.Contains(t, buf.String(), "hotwatch stopped")
}

func TestNewLoggerNilConfigUsesDefault(t *testing.T) {
	log := NewLogger(nil)
	require.NotNil(t, log)
	assert.Equal(t, LevelInfo, log.level)
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "password field",
			input:    "user password: secret123",
			expected: "[REDACTED]",
		},
		{
			name:     "token field",
			input:    "auth token abc123",
			expected: "[REDACTED]",
		},
		{
			name:     "normal text",
			input:    "normal log message",
			expected: "normal log message",
		},
		{
			name:     "long text truncation",
			input:    string(make([]byte, 1500)),
			expected: string(make([]byte, 1000)) + "...[TRUNCATED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeForLog(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
