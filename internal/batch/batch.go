// Package batch implements the non-interactive one-shot driver (component
// J): it calls the planner and executor directly in a loop until every
// target in every project rests in a terminal state, then exits with a
// status code, sharing G+H with the hot controller without any of its
// event-loop or WebSocket machinery.
package batch

import (
	"context"
	"time"

	"github.com/conneroisu/hotwatch/internal/executor"
	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/planner"
	"github.com/conneroisu/hotwatch/internal/types"
)

// Driver runs one or more projects to completion in run_mode=make.
type Driver struct {
	Executor    *executor.Executor
	Reporter    interfaces.Reporter
	MaxParallel int
}

// New builds a Driver from its collaborators.
func New(exec *executor.Executor, reporter interfaces.Reporter, maxParallel int) *Driver {
	return &Driver{Executor: exec, Reporter: reporter, MaxParallel: maxParallel}
}

// Result summarizes one project's outcome for the caller's exit code.
type Result struct {
	NumErrors int
}

// Run drives project through repeated plan/execute ticks until nothing more
// can be scheduled, per spec.md §4.G/§4.H with run_mode=make. priorities is
// always the nil "all equal" sentinel, so the planner never demotes a
// candidate to a typecheck-only action; every batch action is a compile or
// a postprocess.
func (d *Driver) Run(ctx context.Context, project *types.Project) Result {
	for {
		plan := planner.Plan(project, types.RunModeMake, true, nil, d.MaxParallel)

		if len(plan.Actions) == 0 {
			if plan.NumExecuting > 0 {
				// Nothing newly admitted but work is still in flight from a
				// prior tick's goroutines; wait for Execute to return before
				// the next Plan call rather than busy-spinning.
				time.Sleep(time.Millisecond)
				continue
			}
			// The planner counts only dirty errors; at rest every error
			// status is clean, so count them here for the exit code.
			numErrors := 0
			for _, id := range project.TargetOrder {
				if !project.DisabledTargets[id] && project.Targets[id].Status.Kind == types.StatusError {
					numErrors++
				}
			}
			return Result{NumErrors: numErrors}
		}

		d.executeTick(ctx, project, plan.Actions)
	}
}

// executeTick runs every admitted action to completion synchronously; batch
// mode has no concurrent controller loop to interleave with, so ticks are
// simple sequential passes (concurrency within Compile/TypecheckOnlyBatch
// itself still overlaps compiler and walker invocations).
func (d *Driver) executeTick(ctx context.Context, project *types.Project, actions []planner.Action) {
	byGroup := make(map[string][]planner.Action)
	var groupOrder []string

	for _, a := range actions {
		if a.Kind == planner.KindQueueForCompile {
			out := project.Targets[a.Target]
			d.Executor.QueueForCompile(out)
			d.report(a.Target, out)
			continue
		}
		if _, ok := byGroup[a.GroupKey]; !ok {
			groupOrder = append(groupOrder, a.GroupKey)
		}
		byGroup[a.GroupKey] = append(byGroup[a.GroupKey], a)
	}

	for _, group := range groupOrder {
		for _, a := range byGroup[group] {
			d.executeAction(ctx, project, a)
		}
	}
}

func (d *Driver) executeAction(ctx context.Context, project *types.Project, a planner.Action) {
	switch a.Kind {
	case planner.KindCompile:
		out := project.Targets[a.Target]
		d.Executor.Compile(ctx, out, types.RunModeMake, &out.Output, project.Postprocess, nil)
		d.report(a.Target, out)

	case planner.KindPostprocess:
		out := project.Targets[a.Target]
		d.Executor.Postprocess(ctx, out, project.Postprocess.Argv, types.RunModeMake, &out.Output)
		d.report(a.Target, out)
	}
}

func (d *Driver) report(target types.TargetID, out *types.OutputState) {
	if d.Reporter != nil && out != nil {
		d.Reporter.ReportStatus(target, out.Status)
	}
}

// ExitCode implements spec.md §6: 0 on success, 1 on fatal or compile
// errors.
func (r Result) ExitCode() int {
	if r.NumErrors > 0 {
		return 1
	}
	return 0
}
