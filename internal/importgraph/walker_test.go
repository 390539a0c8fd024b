package importgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWalkFollowsTransitiveImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "A.elm", "module A exposing (..)\nimport B\n")
	writeFile(t, dir, "B.elm", "module B exposing (..)\nimport C\n")
	writeFile(t, dir, "C.elm", "module C exposing (..)\n")

	w := New(2)
	result, err := w.Walk(context.Background(), []string{dir}, []types.InputPath{types.InputPath(filepath.Join(dir, "A.elm"))})
	require.NoError(t, err)
	assert.False(t, result.Partial)
	assert.Len(t, result.AllRelatedSourcePaths, 3)
}

func TestWalkEmptyInputsReturnsEmptySet(t *testing.T) {
	w := New(1)
	result, err := w.Walk(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.AllRelatedSourcePaths)
	assert.False(t, result.Partial)
}

func TestWalkIgnoresUnresolvableImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "A.elm", "module A exposing (..)\nimport NotOnDisk\n")

	w := New(1)
	result, err := w.Walk(context.Background(), []string{dir}, []types.InputPath{types.InputPath(filepath.Join(dir, "A.elm"))})
	require.NoError(t, err)
	assert.Len(t, result.AllRelatedSourcePaths, 1)
}
