// Package postprocess runs user-supplied post-processing on compiled
// artifacts (component D): an elastic worker pool adapted from the
// object-pool/worker-manager idiom used for build-task dispatch elsewhere
// in this codebase, here driving out-of-process post-process scripts
// instead of in-process compilation.
package postprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
	"github.com/conneroisu/hotwatch/internal/validation"
)

// Pool is the elastic worker pool described in spec component D. Each Run
// call spawns its own goroutine bounded by a semaphore sized at maxWorkers,
// rather than persistent worker goroutines, since post-process jobs are
// short-lived and bursty.
type Pool struct {
	mu           sync.Mutex
	maxWorkers   int
	sem          chan struct{}
	active       map[*handle]struct{}
	calculateMax func(liveTargets int) int
}

// New creates a Pool capped at maxWorkers concurrent post-process runs.
func New(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		maxWorkers: maxWorkers,
		sem:        make(chan struct{}, maxWorkers),
		active:     make(map[*handle]struct{}),
	}
}

var _ interfaces.WorkerPool = (*Pool)(nil)

type handle struct {
	cancel context.CancelFunc
	done   chan outcome
}

type outcome struct {
	result interfaces.PostprocessResult
	err    error
}

func (h *handle) Wait(ctx context.Context) (interfaces.PostprocessResult, error) {
	select {
	case o := <-h.done:
		return o.result, o.err
	case <-ctx.Done():
		return interfaces.PostprocessResult{}, ctx.Err()
	}
}

func (h *handle) Kill(force bool) {
	h.cancel()
}

// Run spawns argv with code on stdin, respecting the pool's concurrency
// cap. It blocks until a slot is free (or ctx is done), then returns a
// handle the caller awaits while the script runs.
func (p *Pool) Run(ctx context.Context, argv []string, code []byte, mode types.CompilationMode, runMode types.RunMode) (interfaces.RunHandle, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("postprocess: empty argv")
	}
	if err := validation.ValidatePath(argv[0]); err != nil {
		return nil, fmt.Errorf("postprocess: script path rejected: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan outcome, 1)}

	p.mu.Lock()
	p.active[h] = struct{}{}
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	case <-runCtx.Done():
		cancel()
		p.untrack(h)
		return nil, runCtx.Err()
	}

	go func() {
		defer func() {
			<-p.sem
			p.untrack(h)
		}()

		cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
		cmd.Stdin = bytes.NewReader(code)
		cmd.Env = append(cmd.Env,
			"HOTWATCH_COMPILATION_MODE="+string(mode),
			"HOTWATCH_RUN_MODE="+string(runMode),
		)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()

		if runCtx.Err() != nil {
			h.done <- outcome{result: interfaces.PostprocessResult{Killed: true}, err: nil}
			return
		}

		if err != nil {
			exitCode := -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			}
			h.done <- outcome{
				result: interfaces.PostprocessResult{ExitCode: exitCode},
				err:    fmt.Errorf("postprocess: %s exited with error: %w: %s", argv[0], err, stderr.String()),
			}
			return
		}

		h.done <- outcome{result: interfaces.PostprocessResult{Code: stdout.Bytes(), ExitCode: 0}}
	}()

	return h, nil
}

func (p *Pool) untrack(h *handle) {
	p.mu.Lock()
	delete(p.active, h)
	p.mu.Unlock()
}

// Limit resizes the pool's concurrency cap, killing the excess in-flight
// runs when shrinking, and returns how many were terminated.
func (p *Pool) Limit(max int) int {
	if max < 1 {
		max = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	terminated := 0
	if max < p.maxWorkers && len(p.active) > max {
		i := 0
		for h := range p.active {
			if i >= max {
				h.cancel()
				terminated++
			}
			i++
		}
	}

	p.maxWorkers = max
	newSem := make(chan struct{}, max)
	for i := 0; i < len(p.sem) && i < max; i++ {
		newSem <- struct{}{}
	}
	p.sem = newSem
	return terminated
}

// Terminate kills every in-flight run, used on full shutdown.
func (p *Pool) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for h := range p.active {
		h.cancel()
	}
}

// SetCalculateMax stores the callback the hot controller uses to compute a
// new cap from the count of targets with live WebSocket connections
// (spec's worker-pool right-sizing, "+1 keeps a warm worker").
func (p *Pool) SetCalculateMax(f func(liveTargets int) int) {
	p.mu.Lock()
	p.calculateMax = f
	p.mu.Unlock()
}

// CalculateMax applies the stored callback, defaulting to max(1, liveTargets).
func (p *Pool) CalculateMax(liveTargets int) int {
	p.mu.Lock()
	f := p.calculateMax
	p.mu.Unlock()
	if f != nil {
		return f(liveTargets)
	}
	if liveTargets < 1 {
		return 1
	}
	return liveTargets
}
