package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/herrors"
	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

func TestTypecheckOnlyBatchEmptyReturnsEmpty(t *testing.T) {
	e := newTestExecutor(nil, nil)
	res := e.TypecheckOnlyBatch(context.Background(), nil, nil, nil)
	assert.Empty(t, res)
}

func TestTypecheckOnlyBatchAllSucceed(t *testing.T) {
	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	walker := &fakeWalker{result: interfaces.WalkResult{AllRelatedSourcePaths: map[string]struct{}{"/src/a.elm": {}}}}
	e := newTestExecutor(compiler, walker)

	a := types.NewOutputState("a", []types.InputPath{"a.elm"})
	b := types.NewOutputState("b", []types.InputPath{"b.elm"})

	results := e.TypecheckOnlyBatch(context.Background(), []*types.OutputState{a, b}, nil, nil)

	require.Len(t, results, 2)
	assert.Equal(t, ResultNothing, results["a"].Kind)
	assert.Equal(t, ResultNothing, results["b"].Kind)
	assert.Equal(t, types.StatusNotWrittenToDisk, a.Status.Kind)
}

func TestTypecheckOnlyBatchCompileErrorFilteredPerTarget(t *testing.T) {
	compiler := &fakeCompiler{result: interfaces.CompileResult{
		Kind: interfaces.CompileResultCompileErrors,
		PerFileErrors: []interfaces.CompileFileError{
			{Path: "/src/a.elm", Message: "type mismatch"},
			{Path: "/src/b.elm", Message: "unused import"},
		},
	}}
	walker := &fakeWalker{} // reports no paths, so each target keeps the set assigned below

	e := newTestExecutor(compiler, walker)
	a := types.NewOutputState("a", []types.InputPath{"a.elm"})
	a.AllRelatedSourcePaths = map[string]struct{}{"/src/a.elm": {}}
	b := types.NewOutputState("b", []types.InputPath{"b.elm"})
	b.AllRelatedSourcePaths = map[string]struct{}{"/src/b.elm": {}}

	results := e.TypecheckOnlyBatch(context.Background(), []*types.OutputState{a, b}, nil, nil)

	require.Equal(t, ResultCompileError, results["a"].Kind)
	require.Equal(t, ResultCompileError, results["b"].Kind)
	assert.Equal(t, types.StatusError, a.Status.Kind)

	aErr := a.Status.Err
	require.NotNil(t, aErr)
	herr, ok := aErr.(*herrors.HotwatchError)
	require.True(t, ok)
	require.Len(t, herr.PerFileErrors, 1)
	assert.Equal(t, "/src/a.elm", herr.PerFileErrors[0].Path)
}

func TestUniqueInputsDeduplicatesAcrossTargets(t *testing.T) {
	a := types.NewOutputState("a", []types.InputPath{"shared.elm", "a.elm"})
	b := types.NewOutputState("b", []types.InputPath{"shared.elm", "b.elm"})

	inputs := uniqueInputs([]*types.OutputState{a, b})
	assert.ElementsMatch(t, []types.InputPath{"shared.elm", "a.elm", "b.elm"}, inputs)
}

func TestTypecheckOnlyBatchWritesProxyWhenArtifactMissing(t *testing.T) {
	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	e := newTestExecutor(compiler, &fakeWalker{})

	a := types.NewOutputState("a", []types.InputPath{"a.elm"})

	var wrote types.TargetID
	writer := func(target types.TargetID, existing []byte) error {
		wrote = target
		return nil
	}

	_ = e.TypecheckOnlyBatch(context.Background(), []*types.OutputState{a}, nil, writer)
	assert.Equal(t, types.TargetID("a"), wrote)
}
