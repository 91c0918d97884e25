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

// Package local runs mapper-only batch jobs inside the current process, one
// goroutine per task, with Hadoop-style output commit semantics.
package local

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/concurrency"
	"github.com/weaviate/treemerge/entities/diskio"
	enterrors "github.com/weaviate/treemerge/entities/errors"
	"github.com/weaviate/treemerge/entities/shardname"
	"github.com/weaviate/treemerge/usecases/monitoring"
	"github.com/weaviate/treemerge/usecases/treemerge"
)

const (
	temporaryDirName = "_temporary"
	successMarker    = "_SUCCESS"
)

// Engine executes jobs on the local disk. Each task writes into a private
// attempt directory below <output>/_temporary, which is renamed to the
// task's partition directory once the task succeeded.
type Engine struct {
	logger  logrus.FieldLogger
	metrics *monitoring.MergeMetrics
	// parallelism bounds the number of concurrently running tasks. Values
	// below one fall back to the budget of the job context.
	parallelism int
}

func New(logger logrus.FieldLogger, metrics *monitoring.MergeMetrics, parallelism int) *Engine {
	return &Engine{
		logger:      logger,
		metrics:     metrics,
		parallelism: parallelism,
	}
}

// RunJob blocks until every task of job has finished. The first failing
// task cancels the others; in that case no partial output is committed
// beyond what already finished, and the attempt directories are removed.
func (e *Engine) RunJob(ctx context.Context, job batch.Job) error {
	if err := job.Validate(); err != nil {
		return errors.Wrapf(err, "job %q", job.Name)
	}

	exists, err := diskio.FileExists(job.OutputPath)
	if err != nil {
		return errors.Wrapf(err, "stat output %q", job.OutputPath)
	}
	if exists {
		return errors.Errorf("output directory %s already exists", job.OutputPath)
	}

	splits, err := ReadSplits(job.ManifestPath, job.LinesPerTask)
	if err != nil {
		return err
	}

	temporary := filepath.Join(job.OutputPath, temporaryDirName)
	if err := os.MkdirAll(temporary, os.ModePerm); err != nil {
		return errors.Wrapf(err, "create %q", temporary)
	}

	limit := e.parallelism
	if limit < 1 {
		limit = concurrency.BudgetFromCtx(ctx, concurrency.DefaultBudget())
	}

	logger := e.logger.WithFields(logrus.Fields{
		"action": "batch_job",
		"job":    job.Name,
		"tasks":  len(splits),
	})
	logger.WithField("parallelism", limit).Debug("starting job")

	eg, gctx := enterrors.NewErrorGroupWithContext(ctx, e.logger, "job", job.Name)
	eg.SetLimit(limit)
	for _, split := range splits {
		split := split
		eg.Go(func() error {
			return e.runTask(gctx, job, temporary, split)
		}, split.Index)
	}

	if err := eg.Wait(); err != nil {
		if rerr := os.RemoveAll(temporary); rerr != nil {
			logger.WithError(rerr).Warn("failed to clean up attempt directories")
		}
		return errors.Wrapf(err, "job %q", job.Name)
	}

	if err := os.RemoveAll(temporary); err != nil {
		return errors.Wrapf(err, "remove %q", temporary)
	}
	marker, err := os.Create(filepath.Join(job.OutputPath, successMarker))
	if err != nil {
		return errors.Wrap(err, "write success marker")
	}
	if err := marker.Close(); err != nil {
		return errors.Wrap(err, "write success marker")
	}

	logger.Info("job succeeded")
	return nil
}

func (e *Engine) runTask(ctx context.Context, job batch.Job, temporary string, split batch.Split) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempt := filepath.Join(temporary, fmt.Sprintf("attempt-%s", shardname.Pad(split.Index)))
	if err := os.MkdirAll(attempt, os.ModePerm); err != nil {
		return errors.Wrapf(err, "create attempt dir for task %d", split.Index)
	}

	logger := e.logger.WithFields(logrus.Fields{
		"action": "batch_task",
		"job":    job.Name,
		"task":   split.Index,
	})

	e.metrics.TaskStarted()
	tc := batch.TaskContext{
		JobName:   job.Name,
		TaskID:    split.Index,
		OutputDir: attempt,
		Logger:    logger,
	}
	if err := job.Mapper.Map(ctx, tc, split); err != nil {
		e.metrics.TaskFailed()
		return errors.Wrapf(err, "task %d", split.Index)
	}

	partition := filepath.Join(job.OutputPath,
		shardname.TaskOutput(job.OutputPrefix, shardname.MapInfix, split.Index))
	if err := os.Rename(attempt, partition); err != nil {
		e.metrics.TaskFailed()
		return errors.Wrapf(err, "commit task %d", split.Index)
	}

	logger.WithField("output", partition).Debug("task committed")
	return nil
}

// ReadSplits groups the non-empty lines of the manifest at path into splits
// of linesPerTask lines, in file order. The last split may be shorter. Lines
// are kept verbatim apart from their line endings.
func ReadSplits(path string, linesPerTask int) ([]batch.Split, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open manifest %q", path)
	}
	defer f.Close()

	var (
		splits  []batch.Split
		current []string
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		current = append(current, line)
		if len(current) == linesPerTask {
			splits = append(splits, batch.Split{Index: len(splits), Lines: current})
			current = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read manifest %q", path)
	}
	if len(current) > 0 {
		splits = append(splits, batch.Split{Index: len(splits), Lines: current})
	}
	return splits, nil
}

var _ = treemerge.BatchEngine(&Engine{})
