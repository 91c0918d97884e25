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

// Package batch describes the contract between the merge scheduler and a
// batch execution engine: a mapper-only job whose input is a manifest file
// split into fixed-size line groups, one task per group.
package batch

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// ShardNumberFile is the name of the single-line record a merge task
	// leaves in its output directory. It holds the canonical shard number the
	// merged content belongs to.
	ShardNumberFile = "shard.number"

	// IndexDir is the location of the index segments inside a shard
	// directory.
	IndexDir = "data/index"
)

// Job is a mapper-only job. Every LinesPerTask consecutive lines of the
// manifest form one split and are handed to one task.
type Job struct {
	Name         string
	ManifestPath string
	LinesPerTask int
	// OutputPath must not exist when the job is submitted. Task i writes
	// into OutputPath/<OutputPrefix>-m-<i padded to five digits>.
	OutputPath   string
	OutputPrefix string
	Mapper       Mapper
}

func (j Job) Validate() error {
	if j.ManifestPath == "" {
		return errors.New("job has no manifest")
	}
	if j.LinesPerTask < 1 {
		return errors.Errorf("lines per task must be positive, got %d", j.LinesPerTask)
	}
	if j.OutputPath == "" {
		return errors.New("job has no output path")
	}
	if j.OutputPrefix == "" {
		return errors.New("job has no output prefix")
	}
	if j.Mapper == nil {
		return errors.New("job has no mapper")
	}
	return nil
}

// Split is the group of manifest lines assigned to one task.
type Split struct {
	Index int
	Lines []string
}

// TaskContext is what a task knows about itself.
type TaskContext struct {
	JobName string
	// TaskID is derived from the split the task was assigned.
	TaskID    int
	OutputDir string
	Logger    logrus.FieldLogger
}

// ShardNumberPath returns where the task writes its shard number record.
func (tc TaskContext) ShardNumberPath() string {
	return filepath.Join(tc.OutputDir, ShardNumberFile)
}

// IndexPath returns the merged index location inside the task output.
func (tc TaskContext) IndexPath() string {
	return filepath.Join(tc.OutputDir, IndexDir)
}

// Mapper processes one split and writes its result into tc.OutputDir.
type Mapper interface {
	Map(ctx context.Context, tc TaskContext, split Split) error
}

// MapperFunc adapts a function to the Mapper interface.
type MapperFunc func(ctx context.Context, tc TaskContext, split Split) error

func (f MapperFunc) Map(ctx context.Context, tc TaskContext, split Split) error {
	return f(ctx, tc, split)
}
