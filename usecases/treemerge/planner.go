//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package treemerge

import "math"

// MergePlan is the complete round schedule of a run.
type MergePlan struct {
	Reducers int
	Shards   int
	// Fanout is zero when no round is needed.
	Fanout int
	Rounds []PlannedRound
}

// PlannedRound merges Inputs shard directories into Outputs.
type PlannedRound struct {
	Iteration int
	Inputs    int
	Outputs   int
}

func (p MergePlan) Iterations() int {
	return len(p.Rounds)
}

// PlanFanout returns the number of shard directories a single task merges:
// the requested fanout, capped at ceil(reducers/shards). A requested fanout
// below one means unbounded. The result is at least two and divides
// reducers, otherwise an ErrConfiguration is returned.
func PlanFanout(reducers, shards, requested int) (int, error) {
	if shards < 1 {
		return 0, newConfigurationError("shards must be positive, got %d", shards)
	}
	if reducers < 1 {
		return 0, newConfigurationError("reducers must be positive, got %d", reducers)
	}
	if requested < 1 {
		requested = math.MaxInt
	}

	fanout := min(requested, ceilDiv(reducers, shards))
	if fanout < 2 || reducers%fanout != 0 {
		return 0, newConfigurationError(
			"fanout must be >= 2 and divide the number of reducers: reducers=%d shards=%d fanout=%d",
			reducers, shards, fanout)
	}
	return fanout, nil
}

// Plan validates the whole schedule up front: every round must start from a
// count divisible by the fanout and the last one must land exactly on shards.
// When reducers already equals shards the plan has no rounds.
func Plan(reducers, shards, requested int) (MergePlan, error) {
	plan := MergePlan{Reducers: reducers, Shards: shards}
	if shards < 1 {
		return plan, newConfigurationError("shards must be positive, got %d", shards)
	}
	if reducers < shards {
		return plan, newConfigurationError("reducers (%d) must not be fewer than shards (%d)", reducers, shards)
	}
	if reducers == shards {
		return plan, nil
	}

	fanout, err := PlanFanout(reducers, shards, requested)
	if err != nil {
		return plan, err
	}
	plan.Fanout = fanout

	remaining := reducers
	for iteration := 1; remaining > shards; iteration++ {
		if remaining%fanout != 0 {
			return plan, newConfigurationError(
				"fanout %d does not divide %d shard directories in iteration %d", fanout, remaining, iteration)
		}
		plan.Rounds = append(plan.Rounds, PlannedRound{
			Iteration: iteration,
			Inputs:    remaining,
			Outputs:   remaining / fanout,
		})
		remaining /= fanout
	}

	if remaining != shards {
		return plan, newConfigurationError(
			"merging %d reducers with fanout %d ends with %d shards instead of %d",
			reducers, fanout, remaining, shards)
	}
	return plan, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
