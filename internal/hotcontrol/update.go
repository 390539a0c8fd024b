package hotcontrol

import (
	"crypto/subtle"
	"fmt"
	"path/filepath"
	"time"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/planner"
	"github.com/conneroisu/hotwatch/internal/types"
	"github.com/conneroisu/hotwatch/internal/wsserver"
)

// compilerScratchDirName is the base name of the compiler's own scratch
// directory; its removal anywhere under the project root triggers a
// restart (renamed from the original tool's "elm-stuff" convention).
const compilerScratchDirName = "compiler-cache"

// Update implements spec.md §4.I's Mealy machine transition: it mutates
// the owned state and returns the Cmds the interpreter must run. Update is
// only ever called from the controller's single event-loop goroutine, so
// it may freely mutate the Project and OutputStates it owns (spec.md §9's
// single-writer discipline) rather than returning a fresh copy.
func (s *state) Update(msg Msg, maxParallel int) []Cmd {
	switch msg.Kind {
	case MsgGotWatcherEvent:
		return s.handleWatcherEvent(msg)
	case MsgSleepBeforeNextActionDone:
		return s.consumeNextAction(msg.Time)
	case MsgCompilationPartDone:
		return s.handleCompilationPartDone(msg, maxParallel)
	case MsgInstallDependenciesDone:
		return s.handleInstallDependenciesDone(msg)
	case MsgWebSocketConnected:
		return s.handleWSConnected(msg)
	case MsgWebSocketMessageReceived:
		return s.handleWSMessage(msg)
	case MsgWebSocketClosed:
		return s.handleWSClosed(msg)
	case MsgWorkerLimitTimeoutPassed:
		return []Cmd{{Kind: CmdLimitWorkers}}
	case MsgWorkersLimited:
		return nil
	case MsgExitRequested:
		return []Cmd{{Kind: CmdExitOnIdle}}
	default:
		return nil
	}
}

// setNextAction merges a's to-be-decided intent with whatever is already
// pending, per spec.md §3's "collapses many simultaneous triggers into a
// single upcoming decision": Restart always wins, Compile never downgrades
// a pending Restart.
func (s *state) setNextAction(a types.NextAction) {
	if a == types.ActionRestart {
		s.model.NextAction = types.ActionRestart
		return
	}
	if a == types.ActionCompile && s.model.NextAction != types.ActionRestart {
		s.model.NextAction = types.ActionCompile
	}
}

func (s *state) debounceCmd(d time.Duration) []Cmd {
	return []Cmd{{Kind: CmdSleepBeforeNextAction, SleepFor: d}}
}

func allTargetIDs(p *types.Project) []types.TargetID {
	out := make([]types.TargetID, len(p.TargetOrder))
	copy(out, p.TargetOrder)
	return out
}

// handleWatcherEvent implements spec.md §4.I's watcher-event classification.
func (s *state) handleWatcherEvent(msg Msg) []Cmd {
	project := s.model.Project
	path := msg.Path

	if project.WatchConfigPath != "" && path == project.WatchConfigPath {
		return s.restartFor(msg, path, true)
	}
	if path == project.ConfigPath {
		return s.restartFor(msg, path, false)
	}
	if msg.WatcherKind == types.WatcherRemoved && filepath.Base(path) == compilerScratchDirName {
		return s.restartFor(msg, path, false)
	}
	if len(project.Postprocess.Argv) > 0 && path == project.Postprocess.Argv[0] {
		for _, id := range project.TargetOrder {
			project.Targets[id].MarkDirty()
		}
		s.setNextAction(types.ActionCompile)
		s.model.AppendEvent(types.Event{Kind: types.EventWatcher, Time: msg.Time, WatcherKind: msg.WatcherKind, Path: path, AffectsAnyTarget: true})
		return append([]Cmd{{Kind: CmdRestartWorkers}}, s.debounceCmd(10*time.Millisecond)...)
	}

	if msg.WatcherKind == types.WatcherRemoved && s.isKnownInput(path) {
		return s.restartFor(msg, path, false)
	}

	affectsAny := false
	for _, id := range project.TargetOrder {
		out := project.Targets[id]
		if _, ok := out.AllRelatedSourcePaths[path]; ok {
			out.MarkDirty()
			affectsAny = true
		}
	}
	if affectsAny {
		s.setNextAction(types.ActionCompile)
	}
	s.model.AppendEvent(types.Event{Kind: types.EventWatcher, Time: msg.Time, WatcherKind: msg.WatcherKind, Path: path, AffectsAnyTarget: affectsAny})
	return s.debounceCmd(10 * time.Millisecond)
}

func (s *state) isKnownInput(path string) bool {
	for _, id := range s.model.Project.TargetOrder {
		for _, in := range s.model.Project.Targets[id].Inputs {
			if string(in) == path {
				return true
			}
		}
	}
	return false
}

func (s *state) restartFor(msg Msg, path string, watchConfigChanged bool) []Cmd {
	project := s.model.Project
	for _, id := range project.TargetOrder {
		project.Targets[id].MarkDirty()
	}
	s.setNextAction(types.ActionRestart)
	if watchConfigChanged {
		s.watchConfigChanged = true
	}
	s.model.AppendEvent(types.Event{Kind: types.EventWatcher, Time: msg.Time, WatcherKind: msg.WatcherKind, Path: path, AffectsAnyTarget: true})
	return append(
		[]Cmd{{Kind: CmdMarkAsDirty, Targets: allTargetIDs(project), KillInstallDependencies: true}},
		s.debounceCmd(10*time.Millisecond)...,
	)
}

// consumeNextAction interprets next_action once a debounce window closes,
// per spec.md §4.I's HotState transition diagram.
func (s *state) consumeNextAction(now time.Time) []Cmd {
	action := s.model.NextAction
	s.model.NextAction = types.NoAction

	switch action {
	case types.ActionRestart:
		s.model.HotStateVal = types.HotState{Kind: types.HotRestarting, Start: now}
		if s.model.Project.NumExecuting() == 0 {
			changed := s.watchConfigChanged
			s.watchConfigChanged = false
			return []Cmd{{Kind: CmdRestart, Reasons: s.model.LatestEvents, WatchConfigChanged: changed}}
		}
		return nil

	case types.ActionCompile:
		if s.model.HotStateVal.Kind != types.HotIdle {
			return nil
		}
		s.model.HotStateVal = types.HotState{Kind: types.HotCompiling, Start: now}
		return []Cmd{{Kind: CmdCompileAllOutputsAsNeeded, Trigger: AfterIdle, IncludeInterrupted: true}}

	default:
		return nil
	}
}

// handleCompilationPartDone re-plans using the already-updated Project
// state (every in-flight action mutates its OutputState's Status directly
// when it completes, so by the time this message arrives the Project
// already reflects the outcome) and decides whether the batch continues,
// waits, or has finished, per spec.md §4.I. While Restarting it schedules
// no new work and emits Restart once nothing is executing.
func (s *state) handleCompilationPartDone(msg Msg, maxParallel int) []Cmd {
	if s.model.HotStateVal.Kind == types.HotRestarting {
		if s.model.Project.NumExecuting() > 0 {
			return nil
		}
		changed := s.watchConfigChanged
		s.watchConfigChanged = false
		return []Cmd{{Kind: CmdRestart, Reasons: s.model.LatestEvents, WatchConfigChanged: changed}}
	}

	plan := planner.Plan(s.model.Project, types.RunModeHot, true, s.priorityMap(), maxParallel)

	if len(plan.Actions) > 0 {
		return []Cmd{{Kind: CmdCompileAllOutputsAsNeeded, Trigger: ContinueCompilation, IncludeInterrupted: true}}
	}
	if plan.NumExecuting > 0 || plan.NumInterrupted > 0 {
		return nil
	}

	var cmds []Cmd
	if plan.NumErrors > 0 {
		cmds = append(cmds, Cmd{Kind: CmdPrintCompileErrors})
	}
	cmds = append(cmds, Cmd{Kind: CmdLogInfoMessageWithTimeline, Reasons: s.model.LatestEvents})
	s.model.ClearEvents()
	s.model.HotStateVal = types.HotState{Kind: types.HotIdle}

	if restartCmds := s.consumeNextAction(msg.Time); restartCmds != nil {
		cmds = append(cmds, restartCmds...)
	}
	return cmds
}

func (s *state) handleInstallDependenciesDone(msg Msg) []Cmd {
	if msg.InstallErr != nil {
		s.model.HotStateVal = types.HotState{Kind: types.HotIdle}
		return []Cmd{{Kind: CmdThrow, Err: msg.InstallErr}}
	}
	s.model.HotStateVal = types.HotState{Kind: types.HotCompiling, Start: msg.Time}
	return []Cmd{{Kind: CmdCompileAllOutputsAsNeeded, Trigger: AfterInstallDependencies, IncludeInterrupted: true}}
}

// handleWSConnected implements spec.md §4.I's WebSocket connect path.
func (s *state) handleWSConnected(msg Msg) []Cmd {
	params, err := wsserver.ParseConnectURL(msg.RawURL)
	if err != nil {
		return s.clientErrorCmd(msg.Conn, "wrong URL: "+err.Error())
	}
	if params.Version != s.version {
		return s.clientErrorCmd(msg.Conn, fmt.Sprintf("WrongVersion: server is %s, client is %s", s.version, params.Version))
	}
	if subtle.ConstantTimeCompare([]byte(params.WebSocketToken), []byte(s.wsToken)) != 1 {
		return s.clientErrorCmd(msg.Conn, "invalid webSocketToken")
	}

	out, ok := s.model.Project.Targets[params.TargetName]
	if !ok {
		return s.clientErrorCmd(msg.Conn, "unknown target: "+string(params.TargetName))
	}
	if s.model.Project.DisabledTargets[params.TargetName] {
		return s.clientErrorCmd(msg.Conn, "target is disabled: "+string(params.TargetName))
	}

	s.connections[msg.Conn] = &connInfo{target: params.TargetName, priority: msg.Time}

	lastMs := out.LastConnectedTimestamp.UnixNano() / int64(time.Millisecond)
	if !out.LastConnectedTimestamp.IsZero() && params.CompiledTimestampMs == lastMs {
		frame, _ := wsserver.EncodeServerFrame(wsserver.ServerFrame{
			Tag: wsserver.TagStatusChanged,
			Status: &wsserver.StatusPayload{
				Tag:               wsserver.StatusTagAlreadyUpToDate,
				CompilationMode:   string(out.CompilationMode),
				BrowserUiPosition: string(out.BrowserUIPosition),
			},
		})
		return append(s.debounceCmd(100*time.Millisecond), Cmd{Kind: CmdWebSocketSend, Conn: msg.Conn, Frame: frame})
	}

	out.MarkDirty()
	s.setNextAction(types.ActionCompile)
	s.model.AppendEvent(types.Event{Kind: types.EventWebSocketConnectedNeedingCompilation, Time: msg.Time, Target: params.TargetName})

	frame, _ := wsserver.EncodeServerFrame(wsserver.ServerFrame{
		Tag: wsserver.TagStatusChanged,
		Status: &wsserver.StatusPayload{
			Tag:               wsserver.StatusTagBusy,
			CompilationMode:   string(out.CompilationMode),
			BrowserUiPosition: string(out.BrowserUIPosition),
		},
	})
	return append(s.debounceCmd(100*time.Millisecond), Cmd{Kind: CmdWebSocketSend, Conn: msg.Conn, Frame: frame})
}

func (s *state) clientErrorCmd(conn interfaces.WSConnection, message string) []Cmd {
	frame, _ := wsserver.EncodeServerFrame(wsserver.ServerFrame{
		Tag: wsserver.TagStatusChanged,
		Status: &wsserver.StatusPayload{
			Tag:     wsserver.StatusTagClientError,
			Message: message,
		},
	})
	return []Cmd{{Kind: CmdWebSocketSend, Conn: conn, Frame: frame}}
}

func (s *state) handleWSClosed(msg Msg) []Cmd {
	delete(s.connections, msg.Conn)
	s.lastWSClosedAt = msg.Time
	s.model.AppendEvent(types.Event{Kind: types.EventWebSocketClosed, Time: msg.Time})
	return nil
}

// handleWSMessage implements spec.md §4.I's WebSocket message path.
func (s *state) handleWSMessage(msg Msg) []Cmd {
	info, ok := s.connections[msg.Conn]
	if !ok {
		return nil
	}
	frame, err := wsserver.DecodeClientFrame(msg.Data)
	if err != nil {
		return nil
	}
	out, ok := s.model.Project.Targets[info.target]
	if !ok {
		return nil
	}

	switch frame.Tag {
	case wsserver.TagChangedCompilationMode:
		mode := types.CompilationMode(frame.CompilationMode)
		if !mode.Valid() {
			return nil
		}
		out.CompilationMode = mode
		out.MarkDirty()
		s.setNextAction(types.ActionCompile)
		s.model.AppendEvent(types.Event{Kind: types.EventWebSocketChangedCompilationMode, Time: msg.Time, Target: info.target})
		return append([]Cmd{{Kind: CmdChangeCompilationMode, Target: info.target, Mode: mode}}, s.debounceCmd(10*time.Millisecond)...)

	case wsserver.TagChangedBrowserUiPosition:
		pos := types.BrowserUIPosition(frame.BrowserUiPosition)
		out.BrowserUIPosition = pos
		out.MarkDirty()
		s.setNextAction(types.ActionCompile)
		s.model.AppendEvent(types.Event{Kind: types.EventWebSocketChangedBrowserUiPosition, Time: msg.Time, Target: info.target})
		return append([]Cmd{{Kind: CmdChangeBrowserUiPosition, Target: info.target, Position: pos}}, s.debounceCmd(10*time.Millisecond)...)

	case wsserver.TagChangedOpenErrorOverlay:
		overlay := frame.OpenErrorOverlay != nil && *frame.OpenErrorOverlay
		out.OpenErrorOverlay = overlay
		return []Cmd{{Kind: CmdChangeOpenErrorOverlay, Target: info.target, Overlay: overlay}}

	case wsserver.TagFocusedTab:
		info.priority = msg.Time
		ack, _ := wsserver.EncodeServerFrame(wsserver.ServerFrame{Tag: wsserver.TagFocusedTabAcknowledged})
		return []Cmd{
			{Kind: CmdWebSocketUpdatePriority, Target: info.target, Priority: msg.Time},
			{Kind: CmdWebSocketSend, Conn: msg.Conn, Frame: ack},
		}

	case wsserver.TagPressedOpenEditor:
		return []Cmd{{Kind: CmdOpenEditor, Conn: msg.Conn, File: frame.File, Line: frame.Line, Column: frame.Column}}

	default:
		return nil
	}
}
