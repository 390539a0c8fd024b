package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

func TestMakeRejectsUnknownCommand(t *testing.T) {
	inv := New("definitely-not-on-the-allowlist")
	inv.allowedCommands = map[string]bool{"elm": true}

	_, err := inv.Make(context.Background(), []types.InputPath{"src/A.elm"}, types.ModeStandard, nil, nil)
	require.Error(t, err)
}

func TestMakeRejectsEmptyInputs(t *testing.T) {
	inv := New("true")
	_, err := inv.buildArgs(nil, types.ModeStandard, nil)
	require.Error(t, err)
}

func TestBuildArgsTypecheckOnlyHasNoOutput(t *testing.T) {
	inv := New("elm")
	args, err := inv.buildArgs([]types.InputPath{"src/A.elm", "src/B.elm"}, types.ModeOptimize, nil)
	require.NoError(t, err)
	assert.Contains(t, args, "--optimize")
	assert.Contains(t, args, "--output=/dev/null")
}

func TestBuildArgsWithOutputPath(t *testing.T) {
	inv := New("elm")
	out := &types.OutputPath{Absolute: "/tmp/app.js"}
	args, err := inv.buildArgs([]types.InputPath{"src/A.elm"}, types.ModeDebug, out)
	require.NoError(t, err)
	assert.Contains(t, args, "--debug")
	assert.Contains(t, args, "--output=/tmp/app.js")
}

var _ interfaces.Compiler = (*Invoker)(nil)
