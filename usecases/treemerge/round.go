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

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/journal"
	"github.com/weaviate/treemerge/usecases/monitoring"
)

// Phase is the position of a round in its state machine. A round only moves
// forward; a failure leaves it in the phase where it happened.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseManifestBuilt
	PhaseSubmitted
	PhaseCompleted
	PhasePromoted
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseManifestBuilt:
		return "MANIFEST_BUILT"
	case PhaseSubmitted:
		return "SUBMITTED"
	case PhaseCompleted:
		return "COMPLETED"
	case PhasePromoted:
		return "PROMOTED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// RoundState is the explicit state carried from one round to the next.
type RoundState struct {
	Iteration       int
	TotalIterations int
	Reducers        int
	Shards          int
	Fanout          int
	Phase           Phase
}

// RoundExecutor runs a single merge round: build the manifest, run the merge
// job, then promote its output to become the next round's input.
type RoundExecutor struct {
	Params
}

func NewRoundExecutor(params Params) *RoundExecutor {
	return &RoundExecutor{Params: params.withDefaults()}
}

// Run executes the round described by st and returns the state after
// promotion: the reducer count divided by the fanout and the iteration
// advanced. On error the returned state reports the phase that failed.
func (e *RoundExecutor) Run(ctx context.Context, st RoundState) (RoundState, error) {
	logger := e.Logger.WithFields(logrus.Fields{
		"action":           "treemerge_round",
		"iteration":        st.Iteration,
		"total_iterations": st.TotalIterations,
	})

	st.Phase = PhaseInit
	e.transition(logger, st, "")
	if st.Fanout < 2 || st.Reducers%st.Fanout != 0 {
		return st, newStructuralError("iteration %d: fanout %d does not divide %d shard directories",
			st.Iteration, st.Fanout, st.Reducers)
	}
	if err := ctx.Err(); err != nil {
		return st, err
	}

	var (
		start     = e.Clock.Now()
		inputDir  = e.Layout.ReducersDir()
		outputDir = e.Layout.MergeOutputDir()
		manifest  = e.Layout.ManifestPath(st.Iteration)
	)

	logger.WithField("manifest", manifest).Debug("creating input list file for mappers")
	if _, err := BuildManifest(e.FS, inputDir, e.Layout.Prefix, manifest, st.Reducers); err != nil {
		return st, err
	}
	st.Phase = PhaseManifestBuilt
	e.transition(logger, st, manifest)

	job := batch.Job{
		Name: fmt.Sprintf("treemerge iteration %d/%d: %s",
			st.Iteration, st.TotalIterations, e.Layout.InputDir),
		ManifestPath: manifest,
		LinesPerTask: st.Fanout,
		OutputPath:   outputDir,
		OutputPrefix: e.Layout.Prefix,
		Mapper:       e.Mapper,
	}
	st.Phase = PhaseSubmitted
	e.transition(logger, st, outputDir)
	logger.Infof("merging %d shards into %d shards using fanout %d",
		st.Reducers, st.Reducers/st.Fanout, st.Fanout)

	if err := e.Engine.RunJob(ctx, job); err != nil {
		return st, wrapTaskExecution(err, "iteration %d", st.Iteration)
	}
	st.Phase = PhaseCompleted
	e.transition(logger, st, outputDir)

	if err := e.FS.RemoveAll(inputDir); err != nil {
		return st, wrapFilesystem(err, "unable to delete %s", inputDir)
	}
	if err := e.FS.Rename(outputDir, inputDir); err != nil {
		return st, wrapFilesystem(err, "unable to rename %s to %s", outputDir, inputDir)
	}
	e.Metrics.Renamed(monitoring.RenamePromote)

	st.Reducers /= st.Fanout
	st.Phase = PhasePromoted
	e.transition(logger, st, inputDir)
	e.Metrics.RoundCompleted(e.Clock.Since(start), st.Reducers)

	st.Iteration++
	return st, nil
}

func (e *RoundExecutor) transition(logger logrus.FieldLogger, st RoundState, path string) {
	logger.WithField("phase", st.Phase.String()).Debug("round phase reached")
	e.record(journal.Event{
		Kind:      journal.RoundPhase,
		Iteration: st.Iteration,
		Path:      path,
		Detail:    st.Phase.String(),
	})
}
