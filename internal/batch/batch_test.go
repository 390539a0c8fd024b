package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/executor"
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

type noopWalker struct{}

func (noopWalker) Walk(ctx context.Context, sourceDirs []string, inputs []types.InputPath) (interfaces.WalkResult, error) {
	return interfaces.WalkResult{}, nil
}

type noopPool struct{}

func (noopPool) Run(ctx context.Context, argv []string, code []byte, mode types.CompilationMode, runMode types.RunMode) (interfaces.RunHandle, error) {
	return nil, nil
}
func (noopPool) Limit(max int) int                      { return 0 }
func (noopPool) Terminate()                              {}
func (noopPool) SetCalculateMax(f func(liveTargets int) int) {}

type recordingReporter struct {
	statuses []types.StatusKind
}

func (r *recordingReporter) ReportStatus(target types.TargetID, status types.Status) {
	r.statuses = append(r.statuses, status.Kind)
}
func (r *recordingReporter) ReportTimeline(events []types.Event) {}
func (r *recordingReporter) ReportFatal(err error)               {}

func newProjectWithOutputFiles(t *testing.T, targets ...types.TargetID) *types.Project {
	t.Helper()
	dir := t.TempDir()
	p := types.NewProject(filepath.Join(dir, "hotwatch.yml"), dir)

	for _, id := range targets {
		outputFile := filepath.Join(dir, string(id)+".js")
		require.NoError(t, os.WriteFile(outputFile, []byte("placeholder"), 0o644))

		out := types.NewOutputState(id, []types.InputPath{filepath.Join(dir, string(id)+".elm")})
		out.GroupKey = p.ConfigPath
		out.Output = types.OutputPath{Absolute: outputFile, TempSibling: outputFile + ".tmp"}
		p.AddTarget(out)
	}
	return p
}

func TestRunCompilesEveryTargetToSuccess(t *testing.T) {
	project := newProjectWithOutputFiles(t, "a", "b")

	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	exec := executor.New(compiler, noopWalker{}, noopPool{}, fakeClock{t: time.Unix(1000, 0)}, nil, 8765, false)
	reporter := &recordingReporter{}

	driver := New(exec, reporter, 4)
	result := driver.Run(context.Background(), project)

	assert.Equal(t, 0, result.NumErrors)
	assert.Equal(t, 0, result.ExitCode())
	for _, id := range project.TargetOrder {
		assert.Equal(t, types.StatusSuccess, project.Targets[id].Status.Kind)
	}
}

func TestRunReportsCompileErrorsAndNonZeroExitCode(t *testing.T) {
	project := newProjectWithOutputFiles(t, "a")

	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultCompileErrors}}
	exec := executor.New(compiler, noopWalker{}, noopPool{}, fakeClock{t: time.Unix(1000, 0)}, nil, 8765, false)
	reporter := &recordingReporter{}

	driver := New(exec, reporter, 4)
	result := driver.Run(context.Background(), project)

	assert.Equal(t, 1, result.NumErrors)
	assert.Equal(t, 1, result.ExitCode())
	assert.Equal(t, types.StatusError, project.Targets["a"].Status.Kind)
}

func TestRunHonorsMaxParallelAcrossTicks(t *testing.T) {
	project := newProjectWithOutputFiles(t, "a", "b", "c")

	compiler := &fakeCompiler{result: interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}}
	exec := executor.New(compiler, noopWalker{}, noopPool{}, fakeClock{t: time.Unix(1000, 0)}, nil, 8765, false)

	driver := New(exec, nil, 1)
	result := driver.Run(context.Background(), project)

	assert.Equal(t, 0, result.NumErrors)
	for _, id := range project.TargetOrder {
		assert.Equal(t, types.StatusSuccess, project.Targets[id].Status.Kind)
	}
}
