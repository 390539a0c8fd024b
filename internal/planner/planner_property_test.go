//go:build property

package planner

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/hotwatch/internal/types"
)

func buildFuzzProject(numTargets, numGroups int) *types.Project {
	p := types.NewProject("proj.yaml", "/root")
	for i := 0; i < numTargets; i++ {
		id := types.TargetID(fmt.Sprintf("t%d", i))
		out := types.NewOutputState(id, []types.InputPath{types.InputPath(fmt.Sprintf("src/%d", i))})
		out.GroupKey = fmt.Sprintf("group-%d", i%numGroups)
		out.MarkDirty()
		p.AddTarget(out)
	}
	return p
}

// TestPlannerProperties checks P2 (per-group mutual exclusion) and P3
// (num_executing never exceeds max_parallel) across randomly shaped
// projects, mirroring teacher's seeded-RNG gopter convention.
func TestPlannerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("P3: admitted executing actions never exceed max_parallel", prop.ForAll(
		func(numTargets, numGroups, maxParallel int) bool {
			if numTargets < 0 || numGroups < 1 || maxParallel < 0 {
				return true
			}
			p := buildFuzzProject(numTargets, numGroups)
			res := Plan(p, types.RunModeMake, false, nil, maxParallel)

			admittedWork := 0
			for _, a := range res.Actions {
				if a.Kind == KindCompile || a.Kind == KindTypecheckOnly || a.Kind == KindPostprocess {
					admittedWork++
				}
			}
			return admittedWork <= maxParallel
		},
		gen.IntRange(0, 20),
		gen.IntRange(1, 5),
		gen.IntRange(0, 10),
	))

	properties.Property("P2: at most one compiling/typecheck action per project-config group", prop.ForAll(
		func(numTargets, numGroups, maxParallel int) bool {
			if numTargets < 0 || numGroups < 1 || maxParallel < 0 {
				return true
			}
			p := buildFuzzProject(numTargets, numGroups)
			res := Plan(p, types.RunModeMake, false, nil, maxParallel)

			seen := make(map[string]int)
			for _, a := range res.Actions {
				if a.Kind == KindCompile || a.Kind == KindTypecheckOnly {
					seen[a.GroupKey]++
				}
			}
			for _, count := range seen {
				if count > 1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 20),
		gen.IntRange(1, 5),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

// TestPlanBoundaryEmptyProject checks B1.
func TestPlanBoundaryEmptyProject(t *testing.T) {
	p := types.NewProject("proj.yaml", "/root")
	res := Plan(p, types.RunModeMake, false, nil, 4)
	if res.Total != 0 || len(res.Actions) != 0 || len(res.OutputsWithoutAction) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

// TestPlanBoundaryMaxParallelOne checks B2.
func TestPlanBoundaryMaxParallelOne(t *testing.T) {
	p := buildFuzzProject(5, 5) // 5 distinct groups so group-busy never blocks
	res := Plan(p, types.RunModeMake, false, nil, 1)

	compiles := 0
	for _, a := range res.Actions {
		if a.Kind == KindCompile {
			compiles++
		}
	}
	if compiles != 1 {
		t.Fatalf("expected exactly 1 compile action, got %d", compiles)
	}
}
