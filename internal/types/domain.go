// Package types holds the shared data model for the compilation scheduler:
// targets, output state, projects, and the controller's top-level Model.
// Kept free of behavior so every other package can import it without cycles.
package types

import "time"

// TargetID is an opaque identifier chosen by configuration, unique within a
// project-config group.
type TargetID string

// InputPath is a source file explicitly listed as a target's entry point.
type InputPath string

// OutputPath is a canonicalised absolute artifact path plus the original
// textual form and a temporary sibling used for atomic writes.
type OutputPath struct {
	Absolute    string
	Original    string
	TempSibling string
}

// CompilationMode is mutable from client WebSocket messages.
type CompilationMode string

const (
	ModeStandard CompilationMode = "standard"
	ModeDebug    CompilationMode = "debug"
	ModeOptimize CompilationMode = "optimize"
)

func (m CompilationMode) Valid() bool {
	switch m {
	case ModeStandard, ModeDebug, ModeOptimize:
		return true
	}
	return false
}

// BrowserUIPosition is opaque to the core; it is only stored and echoed back.
type BrowserUIPosition string

// RunMode selects batch vs watch behavior; threaded through the planner and
// executor so both can share the same pure logic.
type RunMode string

const (
	RunModeMake RunMode = "make"
	RunModeHot  RunMode = "hot"
)

// PostprocessConfig is either disabled or an argv array, whose first element
// may name an in-process runner known to the worker pool.
type PostprocessConfig struct {
	Enabled bool
	Argv    []string
}

func (p PostprocessConfig) IsNoPostprocess() bool { return !p.Enabled }

// StatusKind tags the closed sum type Status implements below.
type StatusKind int

const (
	StatusNotWrittenToDisk StatusKind = iota
	StatusQueuedForCompile
	StatusCompiling
	StatusQueuedForPostprocess
	StatusPostprocessing
	StatusInterrupted
	StatusTypecheckOnly
	StatusSuccess
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusNotWrittenToDisk:
		return "NotWrittenToDisk"
	case StatusQueuedForCompile:
		return "QueuedForCompile"
	case StatusCompiling:
		return "Compiling"
	case StatusQueuedForPostprocess:
		return "QueuedForPostprocess"
	case StatusPostprocessing:
		return "Postprocessing"
	case StatusInterrupted:
		return "Interrupted"
	case StatusTypecheckOnly:
		return "TypecheckOnly"
	case StatusSuccess:
		return "Success"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsTransient reports whether work is currently in flight for this status.
func (k StatusKind) IsTransient() bool {
	switch k {
	case StatusQueuedForCompile, StatusCompiling, StatusQueuedForPostprocess,
		StatusPostprocessing, StatusTypecheckOnly:
		return true
	default:
		return false
	}
}

// DurationEntry labels one phase timing entry recorded for a completed build.
type DurationEntry struct {
	Label string
	Took  time.Duration
}

// Status is the tagged struct implementing OutputStatus's closed sum type:
// exactly one constructor below should be used to build any given value, and
// callers must switch on Kind exhaustively.
type Status struct {
	Kind StatusKind

	// StatusQueuedForCompile
	EnqueuedAt time.Time

	// StatusCompiling / StatusTypecheckOnly
	Mode CompilationMode

	// StatusQueuedForPostprocess / StatusPostprocessing
	Code              []byte
	CompiledTimestamp time.Time
	RecordFields      map[string]bool
	Kill              func(force bool)

	// StatusSuccess
	ArtifactSize     int64
	PostprocessSize  int64
	Durations        []DurationEntry

	// StatusError
	Err error
}

func NewNotWrittenToDisk() Status { return Status{Kind: StatusNotWrittenToDisk} }

func NewQueuedForCompile(enqueuedAt time.Time) Status {
	return Status{Kind: StatusQueuedForCompile, EnqueuedAt: enqueuedAt}
}

func NewCompiling(mode CompilationMode, durations []DurationEntry) Status {
	return Status{Kind: StatusCompiling, Mode: mode, Durations: durations}
}

func NewQueuedForPostprocess(code []byte, ts time.Time, recordFields map[string]bool) Status {
	return Status{Kind: StatusQueuedForPostprocess, Code: code, CompiledTimestamp: ts, RecordFields: recordFields}
}

func NewPostprocessing(kill func(force bool)) Status {
	return Status{Kind: StatusPostprocessing, Kill: kill}
}

func NewInterrupted() Status { return Status{Kind: StatusInterrupted} }

func NewTypecheckOnly(mode CompilationMode) Status {
	return Status{Kind: StatusTypecheckOnly, Mode: mode}
}

func NewSuccess(artifactSize, postprocessSize int64, ts time.Time, durations []DurationEntry) Status {
	return Status{
		Kind:              StatusSuccess,
		ArtifactSize:      artifactSize,
		PostprocessSize:   postprocessSize,
		CompiledTimestamp: ts,
		Durations:         durations,
	}
}

func NewError(err error) Status { return Status{Kind: StatusError, Err: err} }

// OutputState is the per-target mutable record, owned exclusively by the
// controller while it runs (§3 Ownership & lifecycle).
type OutputState struct {
	Target TargetID

	// GroupKey is the path of the project-config file that actually owns
	// this target's mutual-exclusion group (I2/P2). It defaults to the
	// enclosing Project's ConfigPath but can differ when one watch-config
	// file spans targets owned by distinct project-config files.
	GroupKey string

	CompilationMode    CompilationMode
	BrowserUIPosition  BrowserUIPosition
	OpenErrorOverlay   bool

	// Output is the canonicalised artifact path this target compiles to.
	Output OutputPath

	Dirty bool

	Inputs                []InputPath
	AllRelatedSourcePaths map[string]struct{}
	RecordFields          map[string]bool

	Status Status

	LastConnectedTimestamp time.Time
}

// NewOutputState builds a fresh target with the given non-empty input set,
// per the Target/OutputState invariant in §3. Dirty starts true: a target
// that has never been compiled has no artifact to call up to date, the
// same way elm-watch's own OutputState starts every fresh target dirty.
func NewOutputState(target TargetID, inputs []InputPath) *OutputState {
	return &OutputState{
		Target:                target,
		CompilationMode:       ModeStandard,
		Inputs:                inputs,
		AllRelatedSourcePaths: make(map[string]struct{}),
		Status:                NewNotWrittenToDisk(),
		Dirty:                 true,
	}
}

// MarkDirty sets Dirty=true. Per I3, if a transient status is in flight the
// caller (executor/controller) is responsible for transitioning it to
// Interrupted once the in-flight work completes.
func (o *OutputState) MarkDirty() { o.Dirty = true }

// Project groups targets owned by one project-config file.
type Project struct {
	ConfigPath       string
	Root             string
	Targets          map[TargetID]*OutputState
	TargetOrder      []TargetID
	DisabledTargets  map[TargetID]bool
	Postprocess      PostprocessConfig
	WatchConfigPath  string
	ScratchStatePath string
}

// NewProject creates an empty project rooted at root, owned by configPath.
func NewProject(configPath, root string) *Project {
	return &Project{
		ConfigPath:      configPath,
		Root:            root,
		Targets:         make(map[TargetID]*OutputState),
		DisabledTargets: make(map[TargetID]bool),
	}
}

// AddTarget registers a target in configuration order.
func (p *Project) AddTarget(state *OutputState) {
	if _, exists := p.Targets[state.Target]; !exists {
		p.TargetOrder = append(p.TargetOrder, state.Target)
	}
	p.Targets[state.Target] = state
}

// NumExecuting counts targets currently Compiling, TypecheckOnly, or
// Postprocessing, used by the planner to enforce the parallelism cap (§5).
func (p *Project) NumExecuting() int {
	n := 0
	for _, t := range p.TargetOrder {
		switch p.Targets[t].Status.Kind {
		case StatusCompiling, StatusTypecheckOnly, StatusPostprocessing:
			n++
		}
	}
	return n
}

// HotStateKind tags the controller's HotState sum type.
type HotStateKind int

const (
	HotIdle HotStateKind = iota
	HotInstallingDependencies
	HotCompiling
	HotRestarting
)

type HotState struct {
	Kind  HotStateKind
	Start time.Time
}

// NextAction collapses concurrent triggers into the single action the
// controller will take on its next tick.
type NextAction int

const (
	NoAction NextAction = iota
	ActionCompile
	ActionRestart
)

// EventKind tags the controller's timeline Event sum type.
type EventKind int

const (
	EventWatcher EventKind = iota
	EventWebSocketConnectedNeedingCompilation
	EventWebSocketConnectedNoAction
	EventWebSocketConnectedWithErrors
	EventWebSocketClosed
	EventWebSocketChangedCompilationMode
	EventWebSocketChangedBrowserUiPosition
	EventWorkersLimitedAfterWebSocketClosed
)

// WatcherEventKind mirrors the file-system watcher's add/change/remove
// vocabulary.
type WatcherEventKind int

const (
	WatcherAdded WatcherEventKind = iota
	WatcherChanged
	WatcherRemoved
)

// Event is one entry in the controller's timeline, used both for
// user-facing logs and for deciding debounce durations.
type Event struct {
	Kind EventKind
	Time time.Time

	// EventWatcher fields.
	WatcherKind    WatcherEventKind
	Path           string
	AffectsAnyTarget bool

	// WebSocket-related fields.
	Target TargetID
}

// Model is the controller's single owned state, per §3's Ownership &
// lifecycle and §9's single-writer-discipline guidance.
type Model struct {
	NextAction   NextAction
	HotStateVal  HotState
	LatestEvents []Event
	Project      *Project
}

func NewModel(project *Project) *Model {
	return &Model{HotStateVal: HotState{Kind: HotIdle}, Project: project}
}

// AppendEvent records an event on the timeline.
func (m *Model) AppendEvent(e Event) { m.LatestEvents = append(m.LatestEvents, e) }

// ClearEvents resets the timeline, done when a compiling batch finishes.
func (m *Model) ClearEvents() { m.LatestEvents = nil }
