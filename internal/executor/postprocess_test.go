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

type fakeHandle struct {
	result  interfaces.PostprocessResult
	waitErr error
	killed  bool
}

func (h *fakeHandle) Wait(ctx context.Context) (interfaces.PostprocessResult, error) {
	return h.result, h.waitErr
}
func (h *fakeHandle) Kill(force bool) { h.killed = true }

type fakePoolWithHandle struct {
	handle interfaces.RunHandle
	err    error
}

func (f fakePoolWithHandle) Run(ctx context.Context, argv []string, code []byte, mode types.CompilationMode, runMode types.RunMode) (interfaces.RunHandle, error) {
	return f.handle, f.err
}
func (fakePoolWithHandle) Limit(max int) int                           { return 0 }
func (fakePoolWithHandle) Terminate()                                  {}
func (fakePoolWithHandle) SetCalculateMax(f func(liveTargets int) int) {}

func queuedOut() *types.OutputState {
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})
	out.Status = types.NewQueuedForPostprocess([]byte("code"), time.Unix(1, 0), map[string]bool{"X": true})
	return out
}

func testOutputPath(t *testing.T) *types.OutputPath {
	dir := t.TempDir()
	return &types.OutputPath{
		Absolute:    filepath.Join(dir, "app.js"),
		TempSibling: filepath.Join(dir, "app.js.tmp"),
	}
}

func TestPostprocessSuccessReturnsFullyCompiledJS(t *testing.T) {
	handle := &fakeHandle{result: interfaces.PostprocessResult{Code: []byte("processed"), ExitCode: 0}}
	e := New(nil, nil, fakePoolWithHandle{handle: handle}, fakeClock{t: time.Unix(5, 0)}, nil, 0, false)

	out := queuedOut()
	outputPath := testOutputPath(t)
	res := e.Postprocess(context.Background(), out, []string{"./script"}, types.RunModeHot, outputPath)

	require.Equal(t, ResultFullyCompiledJS, res.Kind)
	assert.Equal(t, types.StatusSuccess, out.Status.Kind)
	written, err := os.ReadFile(outputPath.Absolute)
	require.NoError(t, err)
	assert.Equal(t, "processed", string(written))
}

func TestPostprocessKilledMarksInterrupted(t *testing.T) {
	handle := &fakeHandle{result: interfaces.PostprocessResult{Killed: true}}
	e := New(nil, nil, fakePoolWithHandle{handle: handle}, fakeClock{t: time.Unix(5, 0)}, nil, 0, false)

	out := queuedOut()
	res := e.Postprocess(context.Background(), out, []string{"./script"}, types.RunModeHot, testOutputPath(t))

	assert.Equal(t, ResultNothing, res.Kind)
	assert.Equal(t, types.StatusInterrupted, out.Status.Kind)
}

func TestPostprocessNonZeroExitIsCompileError(t *testing.T) {
	handle := &fakeHandle{result: interfaces.PostprocessResult{ExitCode: 1}}
	e := New(nil, nil, fakePoolWithHandle{handle: handle}, fakeClock{t: time.Unix(5, 0)}, nil, 0, false)

	out := queuedOut()
	res := e.Postprocess(context.Background(), out, []string{"./script"}, types.RunModeHot, testOutputPath(t))

	assert.Equal(t, ResultCompileError, res.Kind)
	assert.Equal(t, types.StatusError, out.Status.Kind)
}

func TestPostprocessSkipsWhenNotQueued(t *testing.T) {
	e := New(nil, nil, fakePoolWithHandle{}, fakeClock{t: time.Unix(5, 0)}, nil, 0, false)
	out := types.NewOutputState("a", []types.InputPath{"a.elm"})

	res := e.Postprocess(context.Background(), out, []string{"./script"}, types.RunModeHot, testOutputPath(t))
	assert.Equal(t, ResultNothing, res.Kind)
}
