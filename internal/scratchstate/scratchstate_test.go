package scratchstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/types"
)

func TestLoadMissingFileReturnsEmptyState(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Port)
	assert.NotNil(t, s.Targets)
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s := New()
	s.Port = 54321
	s.WebSocketToken = "deadbeef"
	s.ApplyTarget("a", types.ModeDebug, "TopLeft", true)

	require.NoError(t, Write(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.Port, loaded.Port)
	assert.Equal(t, s.WebSocketToken, loaded.WebSocketToken)
	assert.Equal(t, s.Targets, loaded.Targets)
}

func TestTargetOrDefaultFallsBackToStandard(t *testing.T) {
	s := New()
	ts := s.TargetOrDefault("missing")
	assert.Equal(t, string(types.ModeStandard), ts.CompilationMode)
}

func TestNewWebSocketTokenIsHexAndNonEmpty(t *testing.T) {
	tok, err := NewWebSocketToken()
	require.NoError(t, err)
	assert.Len(t, tok, 32)
}
