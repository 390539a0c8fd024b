package project

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectsReturnsOnePerFile(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	pathA := writeConfig(t, dirA, "targets:\n  main:\n    inputs: [src/Main.elm]\n    output: dist/main.js\n")
	pathB := writeConfig(t, dirB, "targets:\n  admin:\n    inputs: [src/Admin.elm]\n    output: dist/admin.js\n")

	projects, err := LoadProjects([]string{pathA, pathB}, nil)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, pathA, projects[0].ConfigPath)
	assert.Equal(t, pathB, projects[1].ConfigPath)
}

func TestLoadProjectsPropagatesFirstError(t *testing.T) {
	_, err := LoadProjects([]string{filepath.Join(t.TempDir(), "missing.yaml")}, nil)
	require.Error(t, err)
}

func TestLoadProjectsEmptyPathsReturnsEmpty(t *testing.T) {
	projects, err := LoadProjects(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, projects)
}
