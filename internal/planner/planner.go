// Package planner implements the output-action planner (component G): a
// pure function deciding, for one Project on one tick, which targets should
// be compiled, type-checked only, post-processed, or left alone, subject to
// a parallelism cap and per-project-config mutual exclusion (spec.md §4.G).
package planner

import (
	"sort"
	"time"

	"github.com/conneroisu/hotwatch/internal/types"
)

// ActionKind tags the closed sum type Action implements.
type ActionKind int

const (
	KindCompile ActionKind = iota
	KindTypecheckOnly
	KindPostprocess
	KindQueueForCompile
)

// CompileSource records why a compile or typecheck-only action was raised.
// A compile that is not admitted becomes a KindQueueForCompile side action
// only when its source is SourceDirty.
type CompileSource int

const (
	SourceQueued CompileSource = iota
	SourceDirty
)

// Action is one unit of work the caller should start now (Kind ==
// KindCompile/KindTypecheckOnly/KindPostprocess) or a bookkeeping
// side-action the caller should apply without starting work (Kind ==
// KindQueueForCompile).
type Action struct {
	Kind     ActionKind
	Index    int
	GroupKey string

	// KindCompile / KindQueueForCompile
	Target types.TargetID
	Source CompileSource

	// KindTypecheckOnly aggregates every needs-compile target in one
	// project-config group that has no live connection priority.
	Targets []types.TargetID

	// KindPostprocess carries the buffered code and metadata captured on
	// the QueuedForPostprocess status.
	Code              []byte
	CompiledTimestamp time.Time
	RecordFields      map[string]bool

	// Priority used only to order hot-mode actions (highest first); unset
	// for batch mode.
	Priority uint64
}

// Result is the planner's full output for one tick.
type Result struct {
	Total                int
	NumExecuting         int
	NumInterrupted       int
	NumErrors            int
	Actions              []Action
	OutputsWithoutAction []types.TargetID
}

type candidate struct {
	target      types.TargetID
	index       int
	groupKey    string
	source      CompileSource
	hasPriority bool
	priority    uint64
}

// Plan implements the six-step algorithm in spec.md §4.G. priorities is nil
// for the "all equal" sentinel (batch mode): every target is treated as
// having a priority, so none is demoted to typecheck-only. maxParallel
// bounds the total number of newly admitted actions combined with
// project.NumExecuting().
func Plan(project *types.Project, runMode types.RunMode, includeInterrupted bool, priorities map[types.TargetID]uint64, maxParallel int) Result {
	res := Result{Total: len(project.TargetOrder)}

	busyGroups := make(map[string]bool)
	var candidates []candidate
	var postprocessActions []Action

	for i, id := range project.TargetOrder {
		out := project.Targets[id]
		if project.DisabledTargets[id] {
			res.OutputsWithoutAction = append(res.OutputsWithoutAction, id)
			continue
		}

		switch out.Status.Kind {
		case types.StatusCompiling, types.StatusTypecheckOnly, types.StatusPostprocessing:
			res.NumExecuting++
			busyGroups[out.GroupKey] = true
			continue

		case types.StatusQueuedForCompile:
			candidates = append(candidates, newCandidate(id, i, out, SourceQueued, priorities))
			continue

		case types.StatusQueuedForPostprocess:
			postprocessActions = append(postprocessActions, Action{
				Kind:              KindPostprocess,
				Index:             i,
				GroupKey:          out.GroupKey,
				Target:            id,
				Code:              out.Status.Code,
				CompiledTimestamp: out.Status.CompiledTimestamp,
				RecordFields:      out.Status.RecordFields,
				Priority:          priorityOf(id, priorities),
			})
			continue

		case types.StatusInterrupted:
			res.NumInterrupted++
			if includeInterrupted {
				candidates = append(candidates, newCandidate(id, i, out, SourceDirty, priorities))
			} else {
				res.OutputsWithoutAction = append(res.OutputsWithoutAction, id)
			}
			continue

		case types.StatusSuccess, types.StatusNotWrittenToDisk:
			if out.Dirty {
				candidates = append(candidates, newCandidate(id, i, out, SourceDirty, priorities))
			} else {
				res.OutputsWithoutAction = append(res.OutputsWithoutAction, id)
			}
			continue

		case types.StatusError:
			if out.Dirty {
				res.NumErrors++
				candidates = append(candidates, newCandidate(id, i, out, SourceDirty, priorities))
			} else {
				res.OutputsWithoutAction = append(res.OutputsWithoutAction, id)
			}
			continue

		default:
			res.OutputsWithoutAction = append(res.OutputsWithoutAction, id)
		}
	}

	compileActions, typecheckActions := splitCompileCandidates(candidates, priorities)

	ordered := orderActions(runMode, compileActions, typecheckActions, postprocessActions)

	available := maxParallel - res.NumExecuting
	if available < 0 {
		available = 0
	}

	var admitted []Action
	var queueSideActions []Action

	for _, a := range ordered {
		if len(admitted) >= available {
			if a.Kind == KindCompile && a.Source == SourceDirty {
				queueSideActions = append(queueSideActions, Action{
					Kind:     KindQueueForCompile,
					Index:    a.Index,
					GroupKey: a.GroupKey,
					Target:   a.Target,
				})
			}
			res.OutputsWithoutAction = append(res.OutputsWithoutAction, actionTargets(a)...)
			continue
		}

		if (a.Kind == KindCompile || a.Kind == KindTypecheckOnly) && busyGroups[a.GroupKey] {
			if a.Kind == KindCompile && a.Source == SourceDirty {
				queueSideActions = append(queueSideActions, Action{
					Kind:     KindQueueForCompile,
					Index:    a.Index,
					GroupKey: a.GroupKey,
					Target:   a.Target,
				})
			}
			res.OutputsWithoutAction = append(res.OutputsWithoutAction, actionTargets(a)...)
			continue
		}

		if a.Kind == KindCompile || a.Kind == KindTypecheckOnly {
			busyGroups[a.GroupKey] = true
		}
		admitted = append(admitted, a)
	}

	res.Actions = append(admitted, queueSideActions...)
	return res
}

func actionTargets(a Action) []types.TargetID {
	if a.Kind == KindTypecheckOnly {
		return a.Targets
	}
	return []types.TargetID{a.Target}
}

func newCandidate(id types.TargetID, index int, out *types.OutputState, source CompileSource, priorities map[types.TargetID]uint64) candidate {
	p, ok := priorities[id]
	return candidate{
		target:      id,
		index:       index,
		groupKey:    out.GroupKey,
		source:      source,
		hasPriority: priorities == nil || ok,
		priority:    p,
	}
}

func priorityOf(id types.TargetID, priorities map[types.TargetID]uint64) uint64 {
	if priorities == nil {
		return 0
	}
	return priorities[id]
}

// splitCompileCandidates implements step 3: candidates with a live priority
// (or the "all equal" sentinel) stay individual compile actions; the rest
// are aggregated one typecheck-only action per project-config group.
func splitCompileCandidates(candidates []candidate, priorities map[types.TargetID]uint64) (compiles []Action, typechecks []Action) {
	if priorities == nil {
		for _, c := range candidates {
			compiles = append(compiles, Action{
				Kind:     KindCompile,
				Index:    c.index,
				GroupKey: c.groupKey,
				Target:   c.target,
				Source:   c.source,
				Priority: c.priority,
			})
		}
		return compiles, nil
	}

	groupOrder := make([]string, 0)
	grouped := make(map[string][]candidate)

	for _, c := range candidates {
		if c.hasPriority {
			compiles = append(compiles, Action{
				Kind:     KindCompile,
				Index:    c.index,
				GroupKey: c.groupKey,
				Target:   c.target,
				Source:   c.source,
				Priority: c.priority,
			})
			continue
		}
		if _, ok := grouped[c.groupKey]; !ok {
			groupOrder = append(groupOrder, c.groupKey)
		}
		grouped[c.groupKey] = append(grouped[c.groupKey], c)
	}

	for _, key := range groupOrder {
		members := grouped[key]
		targets := make([]types.TargetID, len(members))
		minIndex := members[0].index
		for i, m := range members {
			targets[i] = m.target
			if m.index < minIndex {
				minIndex = m.index
			}
		}
		typechecks = append(typechecks, Action{
			Kind:     KindTypecheckOnly,
			Index:    minIndex,
			GroupKey: key,
			Targets:  targets,
		})
	}
	return compiles, typechecks
}

// orderActions implements step 4.
func orderActions(runMode types.RunMode, compiles, typechecks, postprocesses []Action) []Action {
	byIndex := func(actions []Action) {
		sort.SliceStable(actions, func(i, j int) bool { return actions[i].Index < actions[j].Index })
	}
	byPriorityDesc := func(actions []Action) {
		sort.SliceStable(actions, func(i, j int) bool {
			if actions[i].Priority != actions[j].Priority {
				return actions[i].Priority > actions[j].Priority
			}
			return actions[i].Index < actions[j].Index
		})
	}

	if runMode != types.RunModeHot {
		byIndex(compiles)
		byIndex(typechecks)
		byIndex(postprocesses)
		out := make([]Action, 0, len(compiles)+len(typechecks)+len(postprocesses))
		out = append(out, compiles...)
		out = append(out, typechecks...)
		out = append(out, postprocesses...)
		return out
	}

	byPriorityDesc(postprocesses)
	byPriorityDesc(compiles)
	byIndex(typechecks)

	out := make([]Action, 0, len(compiles)+len(typechecks)+len(postprocesses))
	out = append(out, postprocesses...)
	out = append(out, compiles...)
	out = append(out, typechecks...)
	return out
}
