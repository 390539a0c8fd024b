package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type fakeCompiler struct {
	result interfaces.CompileResult
	err    error
}

func (f *fakeCompiler) Make(ctx context.Context, inputs []types.InputPath, mode types.CompilationMode, outputPath *types.OutputPath, env map[string]string) (interfaces.CompileResult, error) {
	return f.result, f.err
}

type fakeWalker struct {
	result interfaces.WalkResult
	err    error
}

func (f *fakeWalker) Walk(ctx context.Context, sourceDirs []string, inputs []types.InputPath) (interfaces.WalkResult, error) {
	return f.result, f.err
}

type fakePool struct{}

func (fakePool) Run(ctx context.Context, argv []string, code []byte, mode types.CompilationMode, runMode types.RunMode) (interfaces.RunHandle, error) {
	return nil, nil
}
func (fakePool) Limit(max int) int                             { return 0 }
func (fakePool) Terminate()                                    {}
func (fakePool) SetCalculateMax(f func(liveTargets int) int) {}

func newTestExecutor(compiler interfaces.Compiler, walker interfaces.Walker) *Executor {
	return New(compiler, walker, fakePool{}, fakeClock{t: time.Unix(1000, 0)}, []string{"/src"}, 8765, false)
}

func TestQueueForCompileSetsStatus(t *testing.T) {
	e := newTestExecutor(nil, nil)
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})

	res := e.QueueForCompile(out)

	assert.Equal(t, ResultNothing, res.Kind)
	assert.Equal(t, types.StatusQueuedForCompile, out.Status.Kind)
}

func TestCompileMakeModeSuccessReturnsFullyCompiledJS(t *testing.T) {
	dir := t.TempDir()
	outputFile := filepath.Join(dir, "out.js")
	require.NoError(t, os.WriteFile(outputFile, []byte(`console.log(1)`), 0o644))

	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	e := newTestExecutor(compiler, nil)
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})

	res := e.Compile(context.Background(), out, types.RunModeMake, &types.OutputPath{Absolute: outputFile}, types.PostprocessConfig{}, nil)

	assert.Equal(t, ResultFullyCompiledJS, res.Kind)
	assert.Equal(t, types.StatusSuccess, out.Status.Kind)
}

func TestCompileMakeModePostprocessQueuesInsteadOfFinishing(t *testing.T) {
	dir := t.TempDir()
	outputFile := filepath.Join(dir, "out.js")
	require.NoError(t, os.WriteFile(outputFile, []byte(`console.log(1)`), 0o644))

	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	e := newTestExecutor(compiler, nil)
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})

	res := e.Compile(context.Background(), out, types.RunModeMake, &types.OutputPath{Absolute: outputFile}, types.PostprocessConfig{Enabled: true, Argv: []string{"./script"}}, nil)

	assert.Equal(t, ResultNothing, res.Kind)
	assert.Equal(t, types.StatusQueuedForPostprocess, out.Status.Kind)
}

// dirtyingCompiler marks its target dirty while it "compiles", standing in
// for a watcher event that arrives while the compiler is running.
type dirtyingCompiler struct{ out *types.OutputState }

func (d *dirtyingCompiler) Make(ctx context.Context, inputs []types.InputPath, mode types.CompilationMode, outputPath *types.OutputPath, env map[string]string) (interfaces.CompileResult, error) {
	d.out.MarkDirty()
	return interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}, nil
}

func TestCompileInterruptedWhenDirtyFlippedDuringRun(t *testing.T) {
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})
	e := newTestExecutor(&dirtyingCompiler{out: out}, nil)

	res := e.Compile(context.Background(), out, types.RunModeMake, &types.OutputPath{Absolute: "/tmp/out.js"}, types.PostprocessConfig{}, nil)

	assert.Equal(t, ResultNothing, res.Kind)
	assert.Equal(t, types.StatusInterrupted, out.Status.Kind)
}

func TestCompileCompilerFailureSetsErrorStatus(t *testing.T) {
	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSpawnNotFound}}
	e := newTestExecutor(compiler, nil)
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})

	res := e.Compile(context.Background(), out, types.RunModeMake, &types.OutputPath{Absolute: "/tmp/out.js"}, types.PostprocessConfig{}, nil)

	require.Equal(t, ResultCompileError, res.Kind)
	assert.Equal(t, types.StatusError, out.Status.Kind)
}

func TestCompileHotModeNoPostprocessWritesAtomicallyAndSucceeds(t *testing.T) {
	dir := t.TempDir()
	outputFile := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(outputFile, []byte(`{"Main":1}`), 0o644))

	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	walker := &fakeWalker{result: interfaces.WalkResult{AllRelatedSourcePaths: map[string]struct{}{"/src/a.elm": {}}}}
	e := newTestExecutor(compiler, walker)
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})
	outputPath := &types.OutputPath{Absolute: outputFile, TempSibling: outputFile + ".tmp"}

	res := e.Compile(context.Background(), out, types.RunModeHot, outputPath, types.PostprocessConfig{}, nil)

	assert.Equal(t, ResultFullyCompiledJS, res.Kind)
	assert.Equal(t, types.StatusSuccess, out.Status.Kind)
	assert.Len(t, out.AllRelatedSourcePaths, 1)

	written, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(written), prologueHeader)
}

func TestCompileHotModePostprocessQueuesInjectedCode(t *testing.T) {
	dir := t.TempDir()
	outputFile := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(outputFile, []byte(`{"Main":1}`), 0o644))

	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	walker := &fakeWalker{result: interfaces.WalkResult{AllRelatedSourcePaths: map[string]struct{}{}}}
	e := newTestExecutor(compiler, walker)
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})

	res := e.Compile(context.Background(), out, types.RunModeHot, &types.OutputPath{Absolute: outputFile}, types.PostprocessConfig{Enabled: true, Argv: []string{"./script"}}, nil)

	assert.Equal(t, ResultNothing, res.Kind)
	assert.Equal(t, types.StatusQueuedForPostprocess, out.Status.Kind)
	assert.Contains(t, string(out.Status.Code), prologueHeader)
}

func TestCompileHotModeRecordFieldsChangeIsReported(t *testing.T) {
	dir := t.TempDir()
	outputFile := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(outputFile, []byte(`{"Main":1}`), 0o644))

	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	walker := &fakeWalker{result: interfaces.WalkResult{AllRelatedSourcePaths: map[string]struct{}{}}}
	e := newTestExecutor(compiler, walker)
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})
	out.RecordFields = map[string]bool{"OldField": true}
	outputPath := &types.OutputPath{Absolute: outputFile, TempSibling: outputFile + ".tmp"}

	res := e.Compile(context.Background(), out, types.RunModeHot, outputPath, types.PostprocessConfig{}, nil)

	assert.Equal(t, ResultFullyCompiledJSButRecordFieldsChanged, res.Kind)
}
