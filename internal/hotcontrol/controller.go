// controller.go is the interpreter half of the hot controller: it owns
// every real collaborator (watcher, WebSocket server, executor, worker
// pool, scratch state) and translates each Cmd the pure reducer in
// update.go emits into the matching side effect, feeding results back
// through a single Msg channel. Nothing here decides WHAT to do; update.go
// already decided that, this file only does it.
package hotcontrol

import (
	"context"
	"fmt"
	"time"

	"github.com/conneroisu/hotwatch/internal/executor"
	"github.com/conneroisu/hotwatch/internal/herrors"
	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/logging"
	"github.com/conneroisu/hotwatch/internal/planner"
	"github.com/conneroisu/hotwatch/internal/scratchstate"
	"github.com/conneroisu/hotwatch/internal/types"
	"github.com/conneroisu/hotwatch/internal/wsserver"
)

// RunResultKind tags why Controller.Run returned.
type RunResultKind int

const (
	RunExited RunResultKind = iota
	RunRestart
	RunFatal
)

// RunResult is Controller.Run's outcome, letting the caller decide whether
// to reload the project config and run again.
type RunResult struct {
	Kind               RunResultKind
	Reasons            []types.Event
	WatchConfigChanged bool
	FatalErr           error
}

// Controller owns one hot-mode run: every collaborator plus the pure state
// machine that decides what they should do next.
type Controller struct {
	Project  *types.Project
	Executor *executor.Executor
	Pool     interfaces.WorkerPool
	Watcher  interfaces.Watcher
	WS       interfaces.WSServer
	Reporter interfaces.Reporter
	Clock    interfaces.Clock
	Log      logging.Logger

	ScratchStatePath   string
	MaxParallel        int
	WorkerLimitTimeout time.Duration
	OpenEditorTimeout  time.Duration
	Version            string
	EditorCommand      string

	msgs          chan Msg
	s             *state
	installCancel context.CancelFunc
	sleepTimer    *time.Timer
	workerTimer   *time.Timer
	cancelAll     context.CancelFunc
	fatalResult   *RunResult
}

// New builds a Controller ready to Run.
func New(project *types.Project, exec *executor.Executor, pool interfaces.WorkerPool, watcher interfaces.Watcher, ws interfaces.WSServer, reporter interfaces.Reporter, clock interfaces.Clock, log logging.Logger, scratchStatePath string, maxParallel int, workerLimitTimeout, openEditorTimeout time.Duration, version, editorCommand string) *Controller {
	return &Controller{
		Project:            project,
		Executor:           exec,
		Pool:               pool,
		Watcher:            watcher,
		WS:                 ws,
		Reporter:           reporter,
		Clock:              clock,
		Log:                log.WithComponent("hotcontrol"),
		ScratchStatePath:   scratchStatePath,
		MaxParallel:        maxParallel,
		WorkerLimitTimeout: workerLimitTimeout,
		OpenEditorTimeout:  openEditorTimeout,
		Version:            version,
		EditorCommand:      editorCommand,
		msgs:               make(chan Msg, 256),
	}
}

func calculateMaxWorkers(live int) int {
	if live < 1 {
		return 1
	}
	return live
}

// Run drives one hot session to completion: a clean exit, a restart
// request (watch-config or project-config changed), or a fatal error.
func (c *Controller) Run(ctx context.Context) (RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelAll = cancel
	defer cancel()

	scratch, err := scratchstate.Load(c.ScratchStatePath)
	if err != nil {
		return RunResult{}, fmt.Errorf("loading scratch state: %w", err)
	}
	if scratch.WebSocketToken == "" {
		tok, err := scratchstate.NewWebSocketToken()
		if err != nil {
			return RunResult{}, err
		}
		scratch.WebSocketToken = tok
	}
	for _, id := range c.Project.TargetOrder {
		out := c.Project.Targets[id]
		ts := scratch.TargetOrDefault(id)
		if ts.CompilationMode != "" {
			out.CompilationMode = types.CompilationMode(ts.CompilationMode)
		}
		out.BrowserUIPosition = types.BrowserUIPosition(ts.BrowserUiPosition)
		out.OpenErrorOverlay = ts.OpenErrorOverlay
	}

	model := types.NewModel(c.Project)
	c.s = newState(model, c.Version, scratch.WebSocketToken)

	if pc, ok := c.Pool.(interface{ SetCalculateMax(func(int) int) }); ok {
		pc.SetCalculateMax(calculateMaxWorkers)
	}

	if err := c.Watcher.Start(ctx, c.Project.Root, c.onWatcherEvent, c.onWatcherFatal); err != nil {
		return RunResult{}, fmt.Errorf("starting watcher: %w", err)
	}
	defer c.Watcher.Stop()

	port, err := c.WS.Listen(ctx, scratch.Port, interfaces.WSServerEvents{
		OnConnected:          c.onWSConnected,
		OnMessage:            c.onWSMessage,
		OnClosed:             c.onWSClosed,
		OnConnectionRejected: c.onWSRejected,
		OnServerError:        c.onWSServerError,
	})
	if err != nil {
		herr := herrors.New(herrors.ErrorTypeWebSocket, herrors.CodePortConflict,
			fmt.Sprintf("failed to bind websocket server on port %d", scratch.Port), err)
		c.Reporter.ReportFatal(herr)
		return RunResult{Kind: RunFatal, FatalErr: herr}, nil
	}
	scratch.Port = port
	if err := scratchstate.Write(c.ScratchStatePath, scratch); err != nil {
		c.Log.Warn(ctx, err, "failed to persist scratch state")
	}

	c.s.model.HotStateVal = types.HotState{Kind: types.HotInstallingDependencies, Start: c.Clock.Now()}
	c.runDispatch(ctx, []Cmd{{Kind: CmdInstallDependencies}})

	for {
		select {
		case <-ctx.Done():
			if c.fatalResult != nil {
				return *c.fatalResult, nil
			}
			return RunResult{Kind: RunExited}, nil

		case msg := <-c.msgs:
			cmds := c.s.Update(msg, c.MaxParallel)
			if msg.Kind == MsgWebSocketClosed {
				c.armWorkerLimitTimer()
			}
			if res, done := c.runDispatch(ctx, cmds); done {
				return res, nil
			}
		}
	}
}

// runDispatch applies every Cmd in order, stopping (and returning the
// terminal result) the first time one ends the run.
func (c *Controller) runDispatch(ctx context.Context, cmds []Cmd) (RunResult, bool) {
	for _, cmd := range cmds {
		if res, done := c.dispatch(ctx, cmd); done {
			return res, true
		}
	}
	return RunResult{}, false
}

func (c *Controller) dispatch(ctx context.Context, cmd Cmd) (RunResult, bool) {
	switch cmd.Kind {
	case CmdClearScreen, CmdNoCmd:
		// Terminal rendering is out of scope; nothing to interpret.

	case CmdInstallDependencies:
		c.startInstallDependencies(ctx)

	case CmdMarkAsDirty:
		if cmd.KillInstallDependencies && c.installCancel != nil {
			c.installCancel()
		}

	case CmdCompileAllOutputsAsNeeded:
		c.startCompileBatch(ctx, cmd.IncludeInterrupted)

	case CmdRestartWorkers:
		c.Pool.Terminate()

	case CmdLimitWorkers:
		c.limitWorkers()

	case CmdRestart:
		c.Watcher.Stop()
		if cmd.WatchConfigChanged {
			c.WS.Close()
			c.Pool.Terminate()
		}
		return RunResult{Kind: RunRestart, Reasons: cmd.Reasons, WatchConfigChanged: cmd.WatchConfigChanged}, true

	case CmdExitOnIdle:
		c.Watcher.Stop()
		c.WS.Close()
		c.Pool.Terminate()
		return RunResult{Kind: RunExited}, true

	case CmdLogInfoMessageWithTimeline:
		c.Reporter.ReportTimeline(cmd.Reasons)

	case CmdPrintCompileErrors:
		for _, id := range c.Project.TargetOrder {
			if out := c.Project.Targets[id]; out.Status.Kind == types.StatusError {
				c.Reporter.ReportStatus(id, out.Status)
			}
		}

	case CmdHandleWatchStateJSONWriteError:
		c.Log.Warn(ctx, cmd.Err, "failed to persist scratch state")

	case CmdOpenEditor:
		go c.openEditor(ctx, cmd)

	case CmdSleepBeforeNextAction:
		c.armSleepTimer(cmd.SleepFor)

	case CmdWebSocketSend:
		c.send(ctx, cmd.Conn, cmd.Frame)

	case CmdWebSocketSendAll:
		for conn := range c.s.connections {
			c.send(ctx, conn, cmd.Frame)
		}

	case CmdWebSocketSendToOutput, CmdWebSocketSendCompileErrorToOutput:
		c.sendToConnections(ctx, cmd.Target, cmd.Frame)

	case CmdWebSocketUpdatePriority:
		// Applied directly to connInfo inside update(); nothing left to do.

	case CmdChangeCompilationMode, CmdChangeBrowserUiPosition, CmdChangeOpenErrorOverlay:
		c.persistScratchState(ctx)

	case CmdThrow:
		c.Reporter.ReportFatal(cmd.Err)
		return RunResult{Kind: RunFatal, FatalErr: cmd.Err}, true
	}
	return RunResult{}, false
}

func (c *Controller) send(ctx context.Context, conn interfaces.WSConnection, frame []byte) {
	if conn == nil || frame == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = conn.Send(sendCtx, frame)
}

func (c *Controller) sendToConnections(ctx context.Context, target types.TargetID, frame []byte) {
	for conn, info := range c.s.connections {
		if info.target == target {
			c.send(ctx, conn, frame)
		}
	}
}

// startInstallDependencies simulates component A's out-of-scope
// dependency-install phase (spec.md §1) with an immediate success so the
// HotState machine still exercises InstallingDependencies -> Compiling.
func (c *Controller) startInstallDependencies(ctx context.Context) {
	instCtx, cancel := context.WithCancel(ctx)
	c.installCancel = cancel
	go func() {
		defer cancel()
		select {
		case <-instCtx.Done():
			return
		default:
		}
		c.post(Msg{Kind: MsgInstallDependenciesDone, Time: c.Clock.Now()})
	}()
}

func (c *Controller) startCompileBatch(ctx context.Context, includeInterrupted bool) {
	plan := planner.Plan(c.Project, types.RunModeHot, includeInterrupted, c.s.priorityMap(), c.MaxParallel)

	for _, a := range plan.Actions {
		a := a
		switch a.Kind {
		case planner.KindQueueForCompile:
			c.Executor.QueueForCompile(c.Project.Targets[a.Target])
		case planner.KindCompile:
			go c.runCompile(ctx, a)
		case planner.KindTypecheckOnly:
			go c.runTypecheck(ctx, a)
		case planner.KindPostprocess:
			go c.runPostprocess(ctx, a)
		}
	}
}

func (c *Controller) runCompile(ctx context.Context, a planner.Action) {
	out := c.Project.Targets[a.Target]
	res := c.Executor.Compile(ctx, out, types.RunModeHot, &out.Output, c.Project.Postprocess, nil)
	c.notifyTarget(ctx, a.Target, out, res)
	c.post(Msg{Kind: MsgCompilationPartDone, Time: c.Clock.Now()})
}

func (c *Controller) runPostprocess(ctx context.Context, a planner.Action) {
	out := c.Project.Targets[a.Target]
	res := c.Executor.Postprocess(ctx, out, c.Project.Postprocess.Argv, types.RunModeHot, &out.Output)
	c.notifyTarget(ctx, a.Target, out, res)
	c.post(Msg{Kind: MsgCompilationPartDone, Time: c.Clock.Now()})
}

func (c *Controller) runTypecheck(ctx context.Context, a planner.Action) {
	targets := make([]*types.OutputState, 0, len(a.Targets))
	for _, id := range a.Targets {
		targets = append(targets, c.Project.Targets[id])
	}
	c.Executor.TypecheckOnlyBatch(ctx, targets, nil, nil)
	for _, id := range a.Targets {
		if out := c.Project.Targets[id]; out.Status.Kind == types.StatusError {
			c.sendCompileErrorToOutput(ctx, id, out)
		}
	}
	c.post(Msg{Kind: MsgCompilationPartDone, Time: c.Clock.Now()})
}

func (c *Controller) notifyTarget(ctx context.Context, target types.TargetID, out *types.OutputState, res executor.HandleResult) {
	switch res.Kind {
	case executor.ResultFullyCompiledJS, executor.ResultFullyCompiledJSButRecordFieldsChanged:
		tag := wsserver.TagSuccessfullyCompiled
		if res.Kind == executor.ResultFullyCompiledJSButRecordFieldsChanged {
			tag = wsserver.TagSuccessfullyCompiledButRecordFieldsChanged
		}
		out.LastConnectedTimestamp = res.CompiledTimestamp
		frame, _ := wsserver.EncodeServerFrame(wsserver.ServerFrame{
			Tag:               tag,
			Code:              string(res.Code),
			CompiledTimestamp: res.CompiledTimestamp.UnixNano() / int64(time.Millisecond),
			CompilationMode:   string(res.Mode),
			BrowserUiPosition: string(out.BrowserUIPosition),
		})
		c.sendToConnections(ctx, target, frame)

	case executor.ResultCompileError:
		c.sendCompileErrorToOutput(ctx, target, out)
	}
}

func (c *Controller) sendCompileErrorToOutput(ctx context.Context, target types.TargetID, out *types.OutputState) {
	var entries []wsserver.CompileErrorEntry
	if he, ok := out.Status.Err.(*herrors.HotwatchError); ok {
		for _, fe := range he.PerFileErrors {
			entries = append(entries, wsserver.CompileErrorEntry{Path: fe.Path, Message: fe.Message})
		}
	}
	overlay := out.OpenErrorOverlay
	frame, _ := wsserver.EncodeServerFrame(wsserver.ServerFrame{
		Tag: wsserver.TagStatusChanged,
		Status: &wsserver.StatusPayload{
			Tag:               wsserver.StatusTagCompileError,
			CompilationMode:   string(out.CompilationMode),
			BrowserUiPosition: string(out.BrowserUIPosition),
			OpenErrorOverlay:  &overlay,
			Errors:            entries,
		},
	})
	c.sendToConnections(ctx, target, frame)
}

// limitWorkers resizes the pool to the current live-target count, preferring
// the pool's own CalculateMax when the concrete type exposes it.
func (c *Controller) limitWorkers() {
	live := c.s.liveTargetCount()
	if pc, ok := c.Pool.(interface{ CalculateMax(int) int }); ok {
		c.Pool.Limit(pc.CalculateMax(live))
		return
	}
	c.Pool.Limit(calculateMaxWorkers(live))
}

// armSleepTimer implements "only the latest sleep wins": an earlier pending
// timer is cancelled before the new one is armed.
func (c *Controller) armSleepTimer(d time.Duration) {
	if c.sleepTimer != nil {
		c.sleepTimer.Stop()
	}
	c.sleepTimer = time.AfterFunc(d, func() {
		c.post(Msg{Kind: MsgSleepBeforeNextActionDone, Time: c.Clock.Now()})
	})
}

// armWorkerLimitTimer (re)starts the worker-pool right-sizing timer every
// time a WebSocket connection closes; only a quiet period with no further
// closures lets it fire.
func (c *Controller) armWorkerLimitTimer() {
	if c.workerTimer != nil {
		c.workerTimer.Stop()
	}
	timeout := c.WorkerLimitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.workerTimer = time.AfterFunc(timeout, func() {
		c.post(Msg{Kind: MsgWorkerLimitTimeoutPassed, Time: c.Clock.Now()})
	})
}

func (c *Controller) persistScratchState(ctx context.Context) {
	scratch, err := scratchstate.Load(c.ScratchStatePath)
	if err != nil {
		c.Log.Warn(ctx, err, "failed to reload scratch state before persisting")
		scratch = scratchstate.New()
	}
	for _, id := range c.Project.TargetOrder {
		out := c.Project.Targets[id]
		scratch.ApplyTarget(id, out.CompilationMode, out.BrowserUIPosition, out.OpenErrorOverlay)
	}
	if err := scratchstate.Write(c.ScratchStatePath, scratch); err != nil {
		c.Log.Warn(ctx, err, "failed to persist scratch state")
	}
}

func (c *Controller) post(msg Msg) {
	select {
	case c.msgs <- msg:
	case <-time.After(time.Second):
	}
}

func (c *Controller) onWatcherEvent(kind types.WatcherEventKind, absolutePath string) {
	c.post(Msg{Kind: MsgGotWatcherEvent, WatcherKind: kind, Path: absolutePath, Time: c.Clock.Now()})
}

func (c *Controller) onWatcherFatal(err error) {
	herr := herrors.New(herrors.ErrorTypeWatcher, herrors.CodeWatcherFatal, "file watcher stopped unexpectedly", err)
	c.Reporter.ReportFatal(herr)
	c.fatalResult = &RunResult{Kind: RunFatal, FatalErr: herr}
	if c.cancelAll != nil {
		c.cancelAll()
	}
}

func (c *Controller) onWSServerError(portConflict bool, err error) {
	code := herrors.CodePortConflict
	if !portConflict {
		code = herrors.CodeWatcherFatal
	}
	herr := herrors.New(herrors.ErrorTypeWebSocket, code, "websocket server failed", err)
	c.Reporter.ReportFatal(herr)
	c.fatalResult = &RunResult{Kind: RunFatal, FatalErr: herr}
	if c.cancelAll != nil {
		c.cancelAll()
	}
}

func (c *Controller) onWSRejected(origin, reason string) {
	c.Log.Warn(context.Background(), nil, "rejected websocket connection", "origin", origin, "reason", reason)
}

func (c *Controller) onWSConnected(conn interfaces.WSConnection, rawURL string) {
	c.post(Msg{Kind: MsgWebSocketConnected, Conn: conn, RawURL: rawURL, Time: c.Clock.Now()})
}

func (c *Controller) onWSMessage(conn interfaces.WSConnection, data []byte) {
	c.post(Msg{Kind: MsgWebSocketMessageReceived, Conn: conn, Data: data, Time: c.Clock.Now()})
}

func (c *Controller) onWSClosed(conn interfaces.WSConnection) {
	c.post(Msg{Kind: MsgWebSocketClosed, Conn: conn, Time: c.Clock.Now()})
}
