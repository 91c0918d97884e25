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
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/weaviate/treemerge/entities/journal"
	"github.com/weaviate/treemerge/entities/shardname"
	"github.com/weaviate/treemerge/usecases/monitoring"
)

// Finalizer publishes merged shards: task type infixes are dropped from the
// directory names and the whole root is moved to the results location.
type Finalizer struct {
	Params
}

func NewFinalizer(params Params) *Finalizer {
	return &Finalizer{Params: params.withDefaults()}
}

// Finalize renames every task output directory in root from
// <prefix>-m-NNNNN or <prefix>-r-NNNNN to <prefix>-NNNNN, checks that exactly
// shards directories remain and renames root to resultsDir. It returns the
// published directory names in order.
func (f *Finalizer) Finalize(ctx context.Context, root, resultsDir string, shards int) ([]string, error) {
	logger := f.Logger.WithFields(logrus.Fields{
		"action":  "treemerge_finalize",
		"root":    root,
		"results": resultsDir,
	})

	exists, err := f.FS.Exists(resultsDir)
	if err != nil {
		return nil, wrapFilesystem(err, "stat %s", resultsDir)
	}
	if exists {
		return nil, newStructuralError("results directory %s already exists", resultsDir)
	}

	dirs, err := ListShardDirectories(f.FS, root, f.Layout.Prefix)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parsed, ok := shardname.Parse(f.Layout.Prefix, dir.Name)
		switch {
		case !ok || parsed.Staged:
			return nil, newStructuralError("unexpected directory %s in %s", dir.Name, root)
		case parsed.Infix == "":
			names = append(names, dir.Name)
			continue
		}

		final := shardname.Final(f.Layout.Prefix, parsed.Number)
		to := filepath.Join(root, final)
		logger.WithField("from", dir.Path).WithField("to", to).Debug("normalizing shard directory name")
		if err := f.FS.Rename(dir.Path, to); err != nil {
			return nil, wrapFilesystem(err, "unable to rename %s to %s", dir.Path, to)
		}
		f.Metrics.Renamed(monitoring.RenameNormalize)
		names = append(names, final)
	}

	if len(names) != shards {
		return nil, newStructuralError("expected %d shards in %s, found %d", shards, root, len(names))
	}

	logger.Info("publishing merged shards")
	if err := f.FS.Rename(root, resultsDir); err != nil {
		return nil, wrapFilesystem(err, "unable to rename %s to %s", root, resultsDir)
	}
	f.Metrics.Renamed(monitoring.RenamePublish)
	for _, name := range names {
		f.record(journal.Event{Kind: journal.ShardPublished, Path: filepath.Join(resultsDir, name)})
	}
	return names, nil
}
