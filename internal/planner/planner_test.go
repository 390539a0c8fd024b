package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/types"
)

func dirtyTarget(id string) *types.OutputState {
	out := types.NewOutputState(types.TargetID(id), []types.InputPath{types.InputPath("src/" + id)})
	out.GroupKey = "proj.yaml"
	out.MarkDirty()
	return out
}

func projectWith(states ...*types.OutputState) *types.Project {
	p := types.NewProject("proj.yaml", "/root")
	for _, s := range states {
		p.AddTarget(s)
	}
	return p
}

func TestPlanEmptyProjectReturnsEmptyResult(t *testing.T) {
	p := types.NewProject("proj.yaml", "/root")
	res := Plan(p, types.RunModeMake, false, nil, 4)
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Actions)
	assert.Empty(t, res.OutputsWithoutAction)
}

func TestPlanMaxParallelOneAdmitsExactlyOneCompile(t *testing.T) {
	p := projectWith(dirtyTarget("a"), dirtyTarget("b"), dirtyTarget("c"))
	res := Plan(p, types.RunModeMake, false, nil, 1)

	compiles := 0
	for _, a := range res.Actions {
		if a.Kind == KindCompile {
			compiles++
		}
	}
	assert.Equal(t, 1, compiles)
	assert.Len(t, res.Actions, 3) // 1 compile + 2 queue-for-compile side actions
}

func TestPlanGroupBusyBlocksSecondCompileInSameGroup(t *testing.T) {
	a := dirtyTarget("a")
	b := dirtyTarget("b")
	a.Status = types.NewCompiling(types.ModeStandard, nil)
	p := projectWith(a, b)

	res := Plan(p, types.RunModeMake, false, nil, 10)

	assert.Equal(t, 1, res.NumExecuting)
	for _, act := range res.Actions {
		if act.Target == types.TargetID("b") {
			assert.Equal(t, KindQueueForCompile, act.Kind, "b's group is busy, only a queue side-action is allowed")
		}
	}
	assert.Contains(t, res.OutputsWithoutAction, types.TargetID("b"))
}

func TestPlanHotModeAggregatesUnprioritizedTargetsIntoTypecheckOnly(t *testing.T) {
	a := dirtyTarget("a")
	b := dirtyTarget("b")
	p := projectWith(a, b)

	priorities := map[types.TargetID]uint64{} // neither target has a live connection
	res := Plan(p, types.RunModeHot, false, priorities, 10)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, KindTypecheckOnly, res.Actions[0].Kind)
	assert.ElementsMatch(t, []types.TargetID{"a", "b"}, res.Actions[0].Targets)
}

func TestPlanHotModeKeepsPrioritizedTargetAsCompile(t *testing.T) {
	a := dirtyTarget("a")
	p := projectWith(a)

	priorities := map[types.TargetID]uint64{"a": 5}
	res := Plan(p, types.RunModeHot, false, priorities, 10)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, KindCompile, res.Actions[0].Kind)
}

func TestPlanIncludeInterruptedRequeues(t *testing.T) {
	a := types.NewOutputState(types.TargetID("a"), []types.InputPath{"src/A"})
	a.GroupKey = "proj.yaml"
	a.Status = types.NewInterrupted()
	p := projectWith(a)

	without := Plan(p, types.RunModeMake, false, nil, 10)
	assert.Equal(t, 1, without.NumInterrupted)
	assert.Empty(t, without.Actions)

	with := Plan(p, types.RunModeMake, true, nil, 10)
	require.Len(t, with.Actions, 1)
	assert.Equal(t, KindCompile, with.Actions[0].Kind)
}

func TestPlanQueuedForPostprocessEmitsPostprocessAction(t *testing.T) {
	a := types.NewOutputState(types.TargetID("a"), []types.InputPath{"src/A"})
	a.GroupKey = "proj.yaml"
	a.Status = types.NewQueuedForPostprocess([]byte("code"), time.Unix(1, 0), map[string]bool{"x": true})
	p := projectWith(a)

	res := Plan(p, types.RunModeMake, false, nil, 10)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, KindPostprocess, res.Actions[0].Kind)
	assert.Equal(t, []byte("code"), res.Actions[0].Code)
}

func TestPlanDisabledTargetNeverGetsAnAction(t *testing.T) {
	a := dirtyTarget("a")
	p := projectWith(a)
	p.DisabledTargets[types.TargetID("a")] = true

	res := Plan(p, types.RunModeMake, false, nil, 10)
	assert.Empty(t, res.Actions)
	assert.Contains(t, res.OutputsWithoutAction, types.TargetID("a"))
}
