// Package interfaces defines the collaborator abstractions (components
// B, C, D, E, F) so the controller, planner, and executor can depend on
// behavior rather than concrete packages, avoiding import cycles.
package interfaces

import (
	"context"
	"time"

	"github.com/conneroisu/hotwatch/internal/types"
)

// CompileResult is the tagged union the compiler invoker reports.
type CompileResult struct {
	Kind CompileResultKind

	// CompileResultSuccess
	GeneralErrorJSON []byte

	// CompileResultCompileErrors
	PerFileErrors []CompileFileError

	Err error
}

type CompileResultKind int

const (
	CompileResultSuccess CompileResultKind = iota
	CompileResultSpawnNotFound
	CompileResultSpawnOther
	CompileResultUnexpectedOutput
	CompileResultGeneralError
	CompileResultCompileErrors
	CompileResultKilled
)

// CompileFileError is one per-file entry inside a structured compiler
// error report.
type CompileFileError struct {
	Path    string
	Message string
}

// Compiler is component B: spawns the external compiler in build or
// typecheck-only mode.
type Compiler interface {
	Make(ctx context.Context, inputs []types.InputPath, mode types.CompilationMode, outputPath *types.OutputPath, env map[string]string) (CompileResult, error)
}

// WalkResult is component C's return shape: either a full success or a
// partial result carrying whatever was discovered before an I/O error.
type WalkResult struct {
	AllRelatedSourcePaths map[string]struct{}
	Partial               bool
	Err                   error
}

// Walker is component C: returns the transitive source closure of a
// target's inputs.
type Walker interface {
	Walk(ctx context.Context, sourceDirs []string, inputs []types.InputPath) (WalkResult, error)
}

// RunHandle is returned by the worker pool's Run and lets the caller kill
// an in-flight post-process job.
type RunHandle interface {
	Wait(ctx context.Context) (PostprocessResult, error)
	Kill(force bool)
}

// PostprocessResult is the worker pool's completion payload.
type PostprocessResult struct {
	Code     []byte
	Killed   bool
	ExitCode int
}

// WorkerPool is component D: the elastic pool running user-supplied
// post-processing on compiled artifacts.
type WorkerPool interface {
	Run(ctx context.Context, argv []string, code []byte, mode types.CompilationMode, runMode types.RunMode) (RunHandle, error)
	Limit(max int) (terminated int)
	Terminate()
	SetCalculateMax(f func(liveTargets int) int)
}

// WatcherEventKind mirrors types.WatcherEventKind for collaborator events.
type WatcherCallback func(kind types.WatcherEventKind, absolutePath string)

// Watcher is component E: emits add/change/remove events under the
// project root.
type Watcher interface {
	Start(ctx context.Context, root string, onEvent WatcherCallback, onFatal func(error)) error
	Stop() error
}

// WSConnection is a thin handle to one connected browser client.
type WSConnection interface {
	Send(ctx context.Context, frame []byte) error
	Close() error
	RemoteOrigin() string
}

// WSServerEvents is the callback surface component F dispatches to.
type WSServerEvents struct {
	OnConnected         func(conn WSConnection, rawURL string)
	OnMessage           func(conn WSConnection, data []byte)
	OnClosed            func(conn WSConnection)
	OnConnectionRejected func(origin, reason string)
	OnServerError       func(portConflict bool, err error)
}

// WSServer is component F: accepts client connections on a chosen or
// persisted port.
type WSServer interface {
	Listen(ctx context.Context, preferredPort int, events WSServerEvents) (port int, err error)
	Close() error
}

// Reporter is component K: consumes per-target status transitions for
// logging.
type Reporter interface {
	ReportStatus(target types.TargetID, status types.Status)
	ReportTimeline(events []types.Event)
	ReportFatal(err error)
}

// Clock abstracts time.Now for deterministic tests of debounce/priority
// logic.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
