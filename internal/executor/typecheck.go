package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/conneroisu/hotwatch/internal/herrors"
	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

// ProxyArtifactWriter is the out-of-scope collaborator that generates a
// lightweight proxy artifact for a not-yet-compiled target (spec.md §1).
// TypecheckOnlyBatch only calls it when the existing artifact is absent or
// does not start with a recognizable header.
type ProxyArtifactWriter func(target types.TargetID, existing []byte) error

// TypecheckOnlyBatch implements spec.md §4.H's batched typecheck-only
// operation for every target in targets, which must all share one
// project-config group (I2). writeProxy may be nil to skip step 6.
func (e *Executor) TypecheckOnlyBatch(ctx context.Context, targets []*types.OutputState, existingArtifacts map[types.TargetID][]byte, writeProxy ProxyArtifactWriter) map[types.TargetID]HandleResult {
	results := make(map[types.TargetID]HandleResult, len(targets))
	if len(targets) == 0 {
		return results
	}

	for _, out := range targets {
		out.Dirty = false
		out.Status = types.NewTypecheckOnly(out.CompilationMode)
	}

	inputs := uniqueInputs(targets)
	mode := targets[0].CompilationMode

	compileRes, compileErr := e.Compiler.Make(ctx, inputs, mode, nil, nil)

	walkResults := make(map[types.TargetID]interfaces.WalkResult, len(targets))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, out := range targets {
		out := out
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Walker.Walk(ctx, e.SourceDirs, out.Inputs)
			if err == nil {
				mu.Lock()
				walkResults[out.Target] = res
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, out := range targets {
		if out.Dirty {
			out.Status = types.NewInterrupted()
			results[out.Target] = HandleResult{Kind: ResultNothing}
			continue
		}

		if res, ok := walkResults[out.Target]; ok && res.AllRelatedSourcePaths != nil {
			out.AllRelatedSourcePaths = res.AllRelatedSourcePaths
		}

		if compileErr != nil {
			out.Status = types.NewError(herrors.New(herrors.ErrorTypeSpawn, herrors.CodeCompilerSpawnOther, "compiler invocation failed", compileErr))
			results[out.Target] = HandleResult{Kind: ResultCompileError}
			continue
		}

		if compileRes.Kind == interfaces.CompileResultSuccess {
			out.Status = types.NewNotWrittenToDisk()
			results[out.Target] = HandleResult{Kind: ResultNothing}
			if writeProxy != nil {
				existing := existingArtifacts[out.Target]
				if len(existing) == 0 || !HasRecognizableHeader(existing) {
					if err := writeProxy(out.Target, existing); err != nil {
						out.Status = types.NewError(herrors.New(herrors.ErrorTypeIO, herrors.CodeWriteProxyOutputError, "failed to write proxy artifact", err))
						results[out.Target] = HandleResult{Kind: ResultCompileError}
					}
				}
			}
			continue
		}

		out.Status = types.NewError(filterCompileError(compileRes, out))
		results[out.Target] = HandleResult{Kind: ResultCompileError}
	}

	return results
}

// uniqueInputs computes uniq(realpath, union(inputs)) across all targets,
// sorted by path, matching spec.md §4.H step 2. realpath resolution
// itself is the out-of-scope "file-path canonicalisation" collaborator
// (spec.md §1); inputs are already canonical InputPath values here.
func uniqueInputs(targets []*types.OutputState) []types.InputPath {
	seen := make(map[types.InputPath]bool)
	var out []types.InputPath
	for _, t := range targets {
		for _, in := range t.Inputs {
			if !seen[in] {
				seen[in] = true
				out = append(out, in)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// filterCompileError implements step 5: only errors whose source path is
// in the target's AllRelatedSourcePaths are attributed to it; a non-"per
// file" error kind is attributed to every target.
func filterCompileError(res interfaces.CompileResult, out *types.OutputState) *herrors.HotwatchError {
	if res.Kind != interfaces.CompileResultCompileErrors {
		return compileErrorToHError(res)
	}

	var relevant []interfaces.CompileFileError
	for _, fe := range res.PerFileErrors {
		if _, ok := out.AllRelatedSourcePaths[fe.Path]; ok {
			relevant = append(relevant, fe)
		}
	}
	filtered := res
	filtered.PerFileErrors = relevant
	return compileErrorToHError(filtered)
}
