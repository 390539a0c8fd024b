// Package hotcontrol implements the top-level hot controller (component I):
// a Mealy machine where each input Msg deterministically maps the owned
// state to an updated state plus a list of Cmds, exactly mirroring spec.md
// §4.I. All scheduling decisions live in update.go's pure transition
// function; all I/O lives in controller.go's interpreter loop.
package hotcontrol

import (
	"time"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

// MsgKind tags the closed sum type Msg implements.
type MsgKind int

const (
	MsgGotWatcherEvent MsgKind = iota
	MsgSleepBeforeNextActionDone
	MsgCompilationPartDone
	MsgInstallDependenciesDone
	MsgWebSocketConnected
	MsgWebSocketMessageReceived
	MsgWebSocketClosed
	MsgWorkerLimitTimeoutPassed
	MsgWorkersLimited
	MsgExitRequested
)

// Msg is every event the controller's event loop can receive.
type Msg struct {
	Kind MsgKind

	// MsgGotWatcherEvent
	WatcherKind types.WatcherEventKind
	Path        string

	// MsgWebSocketConnected / MessageReceived / Closed
	Conn   interfaces.WSConnection
	RawURL string
	Data   []byte

	// MsgInstallDependenciesDone
	InstallErr error

	// MsgWorkersLimited
	Terminated int

	Time time.Time
}

// CmdKind tags the closed sum type Cmd implements.
type CmdKind int

const (
	CmdClearScreen CmdKind = iota
	CmdInstallDependencies
	CmdCompileAllOutputsAsNeeded
	CmdMarkAsDirty
	CmdRestartWorkers
	CmdLimitWorkers
	CmdRestart
	CmdExitOnIdle
	CmdLogInfoMessageWithTimeline
	CmdPrintCompileErrors
	CmdHandleWatchStateJSONWriteError
	CmdOpenEditor
	CmdSleepBeforeNextAction
	CmdWebSocketSend
	CmdWebSocketSendAll
	CmdWebSocketSendCompileErrorToOutput
	CmdWebSocketSendToOutput
	CmdWebSocketUpdatePriority
	CmdChangeCompilationMode
	CmdChangeBrowserUiPosition
	CmdChangeOpenErrorOverlay
	CmdThrow
	CmdNoCmd
)

// CompileTrigger mirrors CompileAllOutputsAsNeeded's mode parameter.
type CompileTrigger int

const (
	AfterIdle CompileTrigger = iota
	AfterInstallDependencies
	ContinueCompilation
)

// Cmd is one effect the interpreter must run; at most the fields relevant
// to Kind are populated.
type Cmd struct {
	Kind CmdKind

	// CmdCompileAllOutputsAsNeeded
	Trigger            CompileTrigger
	IncludeInterrupted bool

	// CmdMarkAsDirty
	Targets                 []types.TargetID
	KillInstallDependencies bool

	// CmdSleepBeforeNextAction
	SleepFor time.Duration

	// CmdRestart / CmdLogInfoMessageWithTimeline
	Reasons []types.Event

	// CmdWebSocketSend / SendToOutput / SendCompileErrorToOutput
	Conn   interfaces.WSConnection
	Target types.TargetID
	Frame  []byte

	// CmdWebSocketUpdatePriority
	Priority time.Time

	// CmdChangeCompilationMode / ChangeBrowserUiPosition / ChangeOpenErrorOverlay
	Mode     types.CompilationMode
	Position types.BrowserUIPosition
	Overlay  bool

	// CmdOpenEditor
	File   string
	Line   int
	Column int

	// CmdRestart
	WatchConfigChanged bool

	// CmdThrow / CmdHandleWatchStateJSONWriteError
	Err error
}
