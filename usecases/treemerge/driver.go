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
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/treemerge/entities/journal"
	"github.com/weaviate/treemerge/entities/shardname"
)

// Options describe one merge run.
type Options struct {
	// Shards is the number of shards the run must end with.
	Shards int
	// Reducers is the number of shard directories the indexing phase left in
	// <InputDir>/reducers.
	Reducers int
	// Fanout caps how many shard directories a task merges. Zero or less
	// means unbounded.
	Fanout   int
	InputDir string
	// Prefix defaults to shardname.DefaultPrefix.
	Prefix string
}

// Result describes a successful run.
type Result struct {
	RunID      string
	Rounds     int
	Fanout     int
	ResultsDir string
	// Shards are the published shard directory names in shard order.
	Shards []string
}

// Driver merges the reducer outputs below an input directory down to the
// configured number of shards and publishes them in <input>/results.
type Driver struct {
	opts   Options
	params Params
}

// NewDriver creates a driver. The layout of params is derived from opts.
func NewDriver(opts Options, params Params) *Driver {
	if opts.Prefix == "" {
		opts.Prefix = shardname.DefaultPrefix
	}
	params.Layout = Layout{InputDir: opts.InputDir, Prefix: opts.Prefix}
	return &Driver{opts: opts, params: params.withDefaults()}
}

// Run executes the whole merge. Every error is fatal and leaves the working
// tree as it was at the time of failure.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	params := d.params
	if params.Recorder != nil {
		params.Recorder = runRecorder{runID: runID, inner: params.Recorder}
	}
	params.Logger = params.Logger.WithFields(logrus.Fields{
		"run_id":    runID,
		"input_dir": d.opts.InputDir,
	})

	res, err := d.run(ctx, runID, params)
	if err != nil {
		kind := KindOf(err)
		params.Metrics.FatalError(kind)
		params.record(journal.Event{Kind: journal.RunFailed, Detail: err.Error()})
		params.Logger.WithField("action", "treemerge_run").
			WithField("kind", kind).
			WithError(err).
			Error("tree merge failed")
		return nil, err
	}

	params.record(journal.Event{Kind: journal.RunSucceeded, Path: res.ResultsDir})
	params.Logger.WithFields(logrus.Fields{
		"action":  "treemerge_run",
		"rounds":  res.Rounds,
		"shards":  len(res.Shards),
		"results": res.ResultsDir,
	}).Info("tree merge completed")
	return res, nil
}

// Validate checks the options against the working tree without changing
// anything and returns the round schedule a run would follow.
func (d *Driver) Validate() (MergePlan, error) {
	if d.opts.InputDir == "" {
		return MergePlan{}, newConfigurationError("input directory is required")
	}

	plan, err := Plan(d.opts.Reducers, d.opts.Shards, d.opts.Fanout)
	if err != nil {
		return MergePlan{}, err
	}

	reducersDir := d.params.Layout.ReducersDir()
	exists, err := d.params.FS.IsDir(reducersDir)
	if err != nil {
		return MergePlan{}, wrapFilesystem(err, "stat %s", reducersDir)
	}
	if !exists {
		return MergePlan{}, newStructuralError("directory %s does not exist", reducersDir)
	}
	return plan, nil
}

func (d *Driver) run(ctx context.Context, runID string, params Params) (*Result, error) {
	plan, err := d.Validate()
	if err != nil {
		return nil, err
	}

	params.record(journal.Event{
		Kind:   journal.RunStarted,
		Path:   d.opts.InputDir,
		Detail: "rounds=" + strconv.Itoa(plan.Iterations()) + " fanout=" + strconv.Itoa(plan.Fanout),
	})
	params.Logger.WithFields(logrus.Fields{
		"action":   "treemerge_run",
		"reducers": plan.Reducers,
		"shards":   plan.Shards,
		"fanout":   plan.Fanout,
		"rounds":   plan.Iterations(),
	}).Info("starting tree merge")

	layout := params.Layout
	reducersDir := layout.ReducersDir()
	params.Metrics.SetShardDirectories(plan.Reducers)

	st := RoundState{
		Iteration:       1,
		TotalIterations: plan.Iterations(),
		Reducers:        plan.Reducers,
		Shards:          plan.Shards,
		Fanout:          plan.Fanout,
	}
	executor := NewRoundExecutor(params)
	for st.Reducers > st.Shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := executor.Run(ctx, st)
		if err != nil {
			return nil, errors.Wrapf(err, "merge iteration %d/%d in phase %s",
				st.Iteration, st.TotalIterations, next.Phase)
		}
		st = next
	}

	if plan.Iterations() > 0 {
		if _, err := NewResolver(params).Resolve(ctx, reducersDir); err != nil {
			return nil, errors.Wrap(err, "renumber shard directories")
		}
	}

	names, err := NewFinalizer(params).Finalize(ctx, reducersDir, layout.ResultsDir(), plan.Shards)
	if err != nil {
		return nil, errors.Wrap(err, "publish results")
	}

	return &Result{
		RunID:      runID,
		Rounds:     plan.Iterations(),
		Fanout:     plan.Fanout,
		ResultsDir: layout.ResultsDir(),
		Shards:     names,
	}, nil
}
