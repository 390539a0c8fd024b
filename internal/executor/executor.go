// Package executor implements the per-target build executor (component H):
// orchestrates one target through QueueForCompile, Compile, OnSuccess, and
// Postprocess, including client injection and the batched typecheck-only
// path (spec.md §4.H).
package executor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/conneroisu/hotwatch/internal/herrors"
	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

// ResultKind tags the closed sum type HandleResult implements.
type ResultKind int

const (
	ResultCompileError ResultKind = iota
	ResultFullyCompiledJS
	ResultFullyCompiledJSButRecordFieldsChanged
	ResultNothing
)

// HandleResult is execute's return value, per spec.md §4.H's HandleResult.
type HandleResult struct {
	Kind              ResultKind
	Code              []byte
	CompiledTimestamp time.Time
	Mode              types.CompilationMode
}

// Executor ties components A+B+C+D together for one target at a time.
type Executor struct {
	Compiler   interfaces.Compiler
	Walker     interfaces.Walker
	Pool       interfaces.WorkerPool
	Clock      interfaces.Clock
	SourceDirs []string
	WSPort     int
	Debug      bool
}

// New builds an Executor from its collaborators.
func New(compiler interfaces.Compiler, walker interfaces.Walker, pool interfaces.WorkerPool, clock interfaces.Clock, sourceDirs []string, wsPort int, debug bool) *Executor {
	return &Executor{
		Compiler:   compiler,
		Walker:     walker,
		Pool:       pool,
		Clock:      clock,
		SourceDirs: sourceDirs,
		WSPort:     wsPort,
		Debug:      debug,
	}
}

// QueueForCompile sets a target's status to QueuedForCompile and returns
// Nothing, per spec.md §4.H.
func (e *Executor) QueueForCompile(out *types.OutputState) HandleResult {
	out.Status = types.NewQueuedForCompile(e.Clock.Now())
	return HandleResult{Kind: ResultNothing}
}

// Compile runs the compiler and (in hot mode) the import-graph walker in
// parallel, then dispatches to OnSuccess or records a compile error.
func (e *Executor) Compile(ctx context.Context, out *types.OutputState, runMode types.RunMode, outputPath *types.OutputPath, postprocess types.PostprocessConfig, env map[string]string) HandleResult {
	out.Dirty = false
	out.Status = types.NewCompiling(out.CompilationMode, nil)

	var compileRes interfaces.CompileResult
	var compileErr error
	var walkRes interfaces.WalkResult
	var walkErr error

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		compileRes, compileErr = e.Compiler.Make(ctx, out.Inputs, out.CompilationMode, outputPath, env)
	}()

	if runMode == types.RunModeHot {
		wg.Add(1)
		go func() {
			defer wg.Done()
			walkRes, walkErr = e.Walker.Walk(ctx, e.SourceDirs, out.Inputs)
		}()
	}
	wg.Wait()

	if out.Dirty {
		out.Status = types.NewInterrupted()
		return HandleResult{Kind: ResultNothing}
	}

	if runMode == types.RunModeHot {
		e.applyWalkResult(out, walkRes, walkErr)
	}

	if compileErr != nil {
		out.Status = types.NewError(herrors.New(herrors.ErrorTypeSpawn, herrors.CodeCompilerSpawnOther, "compiler invocation failed", compileErr))
		return HandleResult{Kind: ResultCompileError}
	}

	if compileRes.Kind != interfaces.CompileResultSuccess {
		out.Status = types.NewError(compileErrorToHError(compileRes))
		return HandleResult{Kind: ResultCompileError}
	}

	// A walker failure that came without a partial result overrides a
	// successful compile with a walker error status. A partial result has
	// already been kept in AllRelatedSourcePaths by applyWalkResult, and the
	// successful compile stands.
	if runMode == types.RunModeHot && walkErr == nil && walkRes.Err != nil && !walkRes.Partial {
		out.Status = types.NewError(herrors.New(herrors.ErrorTypeWalker, herrors.CodeWalkerIOError, "import graph walk failed", walkRes.Err))
		return HandleResult{Kind: ResultCompileError}
	}

	return e.onSuccess(ctx, out, runMode, outputPath, postprocess)
}

// applyWalkResult updates AllRelatedSourcePaths, keeping whatever partial
// set the walker discovered before failing (I4's failsafe re-population
// handles the empty-set case on the next watcher event).
func (e *Executor) applyWalkResult(out *types.OutputState, res interfaces.WalkResult, err error) {
	if err != nil {
		return
	}
	if res.AllRelatedSourcePaths != nil {
		out.AllRelatedSourcePaths = res.AllRelatedSourcePaths
	}
}

// compileErrorToHError maps a non-success CompileResult onto the terminal
// error taxonomy in spec.md §3/§7.
func compileErrorToHError(res interfaces.CompileResult) *herrors.HotwatchError {
	switch res.Kind {
	case interfaces.CompileResultSpawnNotFound:
		return herrors.New(herrors.ErrorTypeSpawn, herrors.CodeCompilerNotFound, "compiler binary not found", res.Err)
	case interfaces.CompileResultSpawnOther:
		return herrors.New(herrors.ErrorTypeSpawn, herrors.CodeCompilerSpawnOther, "compiler failed to start", res.Err)
	case interfaces.CompileResultKilled:
		return herrors.New(herrors.ErrorTypeSpawn, herrors.CodeCompilerKilled, "compiler invocation was killed", res.Err)
	case interfaces.CompileResultUnexpectedOutput:
		return herrors.New(herrors.ErrorTypeCompiler, herrors.CodeCompilerJSONParseFailure, "could not parse compiler output", res.Err)
	case interfaces.CompileResultGeneralError:
		return herrors.New(herrors.ErrorTypeCompiler, herrors.CodeCompilerGeneralError, "compiler reported a general error", res.Err)
	case interfaces.CompileResultCompileErrors:
		err := herrors.New(herrors.ErrorTypeCompiler, herrors.CodeCompilerCompileErrors, "compiler reported structured errors", res.Err)
		for _, fe := range res.PerFileErrors {
			err.PerFileErrors = append(err.PerFileErrors, herrors.FileErrorDetail{Path: fe.Path, Message: fe.Message})
		}
		return err
	default:
		return herrors.New(herrors.ErrorTypeCompiler, herrors.CodeCompilerGeneralError, "unrecognized compiler result", res.Err)
	}
}

// onSuccess implements spec.md §4.H's OnSuccess branch on run mode and
// post-process configuration. readArtifact/writeAtomic are the collaborator
// boundary: the actual file read/stat/write happens here since it is core
// bookkeeping (tracked sizes, timestamps), not an external collaborator.
func (e *Executor) onSuccess(ctx context.Context, out *types.OutputState, runMode types.RunMode, outputPath *types.OutputPath, postprocess types.PostprocessConfig) HandleResult {
	now := e.Clock.Now()

	if runMode == types.RunModeMake {
		if postprocess.IsNoPostprocess() {
			info, err := os.Stat(outputPath.Absolute)
			if err != nil {
				out.Status = types.NewError(herrors.New(herrors.ErrorTypeIO, herrors.CodeReadOutputError, "failed to stat compiled artifact", err))
				return HandleResult{Kind: ResultCompileError}
			}
			out.Status = types.NewSuccess(info.Size(), 0, now, nil)
			return HandleResult{Kind: ResultFullyCompiledJS, CompiledTimestamp: now, Mode: out.CompilationMode}
		}

		code, err := readArtifact(outputPath)
		if err != nil {
			out.Status = types.NewError(herrors.New(herrors.ErrorTypeIO, herrors.CodeReadOutputError, "failed to read compiled artifact", err))
			return HandleResult{Kind: ResultCompileError}
		}
		out.Status = types.NewQueuedForPostprocess(code, now, nil)
		return HandleResult{Kind: ResultNothing}
	}

	// hot mode: inject the WebSocket client, then branch on postprocess.
	code, err := readArtifact(outputPath)
	if err != nil {
		out.Status = types.NewError(herrors.New(herrors.ErrorTypeIO, herrors.CodeReadOutputError, "failed to read compiled artifact", err))
		return HandleResult{Kind: ResultCompileError}
	}

	injected, fields, err := Inject(outputPath, code, out.Target, e.WSPort, out.CompilationMode, now, e.Debug)
	if err != nil {
		out.Status = types.NewError(herrors.New(herrors.ErrorTypeIO, herrors.CodeInjectError, "failed to inject hot-reload client", err))
		return HandleResult{Kind: ResultCompileError}
	}

	if postprocess.IsNoPostprocess() {
		if err := writeAtomic(outputPath, injected); err != nil {
			out.Status = types.NewError(herrors.NewWriteOutputError(herrors.WriteReasonInjectWebSocketClient, err))
			return HandleResult{Kind: ResultCompileError}
		}

		changed := recordFieldsChanged(out.RecordFields, fields)
		out.RecordFields = fields
		out.Status = types.NewSuccess(int64(len(injected)), 0, now, nil)

		if changed {
			return HandleResult{Kind: ResultFullyCompiledJSButRecordFieldsChanged, Code: injected, CompiledTimestamp: now, Mode: out.CompilationMode}
		}
		return HandleResult{Kind: ResultFullyCompiledJS, Code: injected, CompiledTimestamp: now, Mode: out.CompilationMode}
	}

	out.Status = types.NewQueuedForPostprocess(injected, now, fields)
	return HandleResult{Kind: ResultNothing}
}

// readArtifact loads the just-compiled artifact from disk so it can be
// injected and (optionally) post-processed.
func readArtifact(outputPath *types.OutputPath) ([]byte, error) {
	if outputPath == nil {
		return nil, fmt.Errorf("onSuccess called with no output path")
	}
	return os.ReadFile(outputPath.Absolute)
}

// writeAtomic writes data to outputPath's temp sibling then renames it into
// place, so a page reloading mid-write never observes a truncated artifact.
func writeAtomic(outputPath *types.OutputPath, data []byte) error {
	if outputPath == nil {
		return fmt.Errorf("writeAtomic called with no output path")
	}
	tmp := outputPath.TempSibling
	if tmp == "" {
		tmp = outputPath.Absolute + ".tmp"
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, outputPath.Absolute)
}

func recordFieldsChanged(prev, next map[string]bool) bool {
	if prev == nil {
		return false
	}
	if len(prev) != len(next) {
		return true
	}
	for k := range prev {
		if !next[k] {
			return true
		}
	}
	return false
}

// Postprocess runs the worker pool on the buffered code and reports the
// outcome, per spec.md §4.H's Postprocess operation.
func (e *Executor) Postprocess(ctx context.Context, out *types.OutputState, argv []string, runMode types.RunMode, outputPath *types.OutputPath) HandleResult {
	if out.Status.Kind != types.StatusQueuedForPostprocess {
		return HandleResult{Kind: ResultNothing}
	}

	code := out.Status.Code
	ts := out.Status.CompiledTimestamp
	fields := out.Status.RecordFields
	mode := out.CompilationMode

	handle, err := e.Pool.Run(ctx, argv, code, mode, runMode)
	if err != nil {
		out.Status = types.NewError(herrors.New(herrors.ErrorTypePostproc, herrors.CodePostprocessRunError, "failed to start post-process worker", err))
		return HandleResult{Kind: ResultCompileError}
	}

	out.Status = types.NewPostprocessing(handle.Kill)

	result, err := handle.Wait(ctx)
	if out.Dirty {
		handle.Kill(false)
	}

	if err != nil {
		out.Status = types.NewError(herrors.New(herrors.ErrorTypePostproc, herrors.CodePostprocessRunError, "post-process worker failed", err))
		return HandleResult{Kind: ResultCompileError}
	}

	if result.Killed {
		out.Dirty = true
		out.Status = types.NewInterrupted()
		return HandleResult{Kind: ResultNothing}
	}

	if result.ExitCode != 0 {
		out.Status = types.NewError(herrors.New(herrors.ErrorTypePostproc, herrors.CodePostprocessNonZeroExit, "post-process exited non-zero", nil))
		return HandleResult{Kind: ResultCompileError}
	}

	if err := writeAtomic(outputPath, result.Code); err != nil {
		out.Status = types.NewError(herrors.NewWriteOutputError(herrors.WriteReasonPostprocess, err))
		return HandleResult{Kind: ResultCompileError}
	}

	changed := recordFieldsChanged(out.RecordFields, fields)
	out.RecordFields = fields
	out.Status = types.NewSuccess(int64(len(code)), int64(len(result.Code)), ts, nil)

	if changed {
		return HandleResult{Kind: ResultFullyCompiledJSButRecordFieldsChanged, Code: result.Code, CompiledTimestamp: ts, Mode: mode}
	}
	return HandleResult{Kind: ResultFullyCompiledJS, Code: result.Code, CompiledTimestamp: ts, Mode: mode}
}
