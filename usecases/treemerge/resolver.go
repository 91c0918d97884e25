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
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/journal"
	"github.com/weaviate/treemerge/entities/shardname"
	"github.com/weaviate/treemerge/usecases/monitoring"
)

// Resolver renames the output directories of the last merge round so that
// each carries the shard number recorded by the task that produced it.
//
// The batch engine numbers outputs by task, which says nothing about the
// shard the merged content belongs to. Every directory is first moved to a
// staging name so that no canonical name is occupied, then renamed to the
// canonical name taken from its shard number record.
type Resolver struct {
	Params
}

func NewResolver(params Params) *Resolver {
	return &Resolver{Params: params.withDefaults()}
}

// Resolve renumbers the shard directories in root. It returns the canonical
// names in shard order. A failure leaves the tree as it is.
func (r *Resolver) Resolve(ctx context.Context, root string) ([]string, error) {
	logger := r.Logger.WithFields(logrus.Fields{
		"action": "treemerge_resolve",
		"root":   root,
	})

	dirs, err := ListShardDirectories(r.FS, root, r.Layout.Prefix)
	if err != nil {
		return nil, err
	}

	staged := make([]DirEntry, 0, len(dirs))
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		to := filepath.Join(root, shardname.StagedName(dir.Name))
		logger.WithField("from", dir.Path).WithField("to", to).Debug("staging shard directory")
		if err := r.FS.Rename(dir.Path, to); err != nil {
			return nil, wrapFilesystem(err, "unable to rename %s to %s", dir.Path, to)
		}
		r.Metrics.Renamed(monitoring.RenameStage)
		r.record(journal.Event{Kind: journal.ShardStaged, Path: to, Detail: dir.Name})
		staged = append(staged, DirEntry{Name: shardname.StagedName(dir.Name), Path: to, IsDir: true})
	}

	names := make([]string, len(staged))
	seen := make(map[int]string, len(staged))
	for _, dir := range staged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		shard, err := r.readShardNumber(dir.Path)
		if err != nil {
			return nil, err
		}
		if shard >= len(staged) {
			return nil, newStructuralError("%s claims shard %d but only %d shards exist",
				dir.Path, shard, len(staged))
		}
		if other, ok := seen[shard]; ok {
			return nil, newStructuralError("%s and %s both claim shard %d", other, dir.Path, shard)
		}
		seen[shard] = dir.Path

		target := filepath.Join(root, shardname.Canonical(r.Layout.Prefix, shard))
		exists, err := r.FS.Exists(target)
		if err != nil {
			return nil, wrapFilesystem(err, "stat %s", target)
		}
		if exists {
			return nil, newStructuralError("cannot rename %s to %s: target exists", dir.Path, target)
		}

		record := filepath.Join(dir.Path, batch.ShardNumberFile)
		if err := r.FS.Remove(record); err != nil {
			return nil, wrapFilesystem(err, "unable to delete %s", record)
		}

		logger.WithField("from", dir.Path).WithField("to", target).Info("renaming shard directory")
		if err := r.FS.Rename(dir.Path, target); err != nil {
			return nil, wrapFilesystem(err, "unable to rename %s to %s", dir.Path, target)
		}
		r.Metrics.Renamed(monitoring.RenameRenumber)
		r.record(journal.Event{Kind: journal.ShardRenamed, Path: target, Detail: dir.Name})
		names[shard] = filepath.Base(target)
	}

	return names, nil
}

func (r *Resolver) readShardNumber(dir string) (int, error) {
	path := filepath.Join(dir, batch.ShardNumberFile)
	content, err := r.FS.ReadFile(path)
	if err != nil {
		return 0, wrapFilesystem(err, "read shard number from %s", path)
	}

	value := strings.TrimSpace(string(content))
	if value == "" {
		return 0, newStructuralError("shard number file %s is empty", path)
	}
	shard, err := strconv.Atoi(value)
	if err != nil || shard < 0 {
		return 0, newStructuralError("shard number file %s holds %q, not a shard number", path, value)
	}
	return shard, nil
}
