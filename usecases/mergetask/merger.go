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

// Package mergetask contains the mapper that merges a group of shard indexes
// into one. Segments of all inputs are copied into the task output in input
// order and renumbered, so the merged index holds the union of the inputs.
package mergetask

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"

	"github.com/weaviate/treemerge/entities/alphanum"
	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/diskio"
	"github.com/weaviate/treemerge/usecases/monitoring"
)

// SegmentsManifest lists the segments of a merged index, one per line:
// name, size in bytes, murmur3 checksum and the source path, tab separated.
const SegmentsManifest = "segments.manifest"

// Merger is a batch.Mapper. Each manifest line of its split is an index
// directory to merge.
type Merger struct {
	logger  logrus.FieldLogger
	metrics *monitoring.MergeMetrics
}

func NewMerger(logger logrus.FieldLogger, metrics *monitoring.MergeMetrics) *Merger {
	return &Merger{logger: logger, metrics: metrics}
}

// Segment describes one file of a merged index.
type Segment struct {
	Name     string
	Size     int64
	Checksum uint64
	Source   string
}

func (m *Merger) Map(ctx context.Context, tc batch.TaskContext, split batch.Split) error {
	if len(split.Lines) == 0 {
		return errors.Errorf("task %d received no index directories", tc.TaskID)
	}

	logger := m.logger.WithFields(logrus.Fields{
		"action": "merge_task",
		"task":   tc.TaskID,
		"inputs": len(split.Lines),
	})

	target := tc.IndexPath()
	if err := os.MkdirAll(target, os.ModePerm); err != nil {
		return errors.Wrapf(err, "create %q", target)
	}

	var segments []Segment
	for _, input := range split.Lines {
		ok, err := diskio.IsDir(input)
		if err != nil {
			return errors.Wrapf(err, "stat input %q", input)
		}
		if !ok {
			return errors.Errorf("input index %q does not exist", input)
		}

		files, err := segmentFiles(input)
		if err != nil {
			return err
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			seg, err := m.copySegment(file, target, len(segments))
			if err != nil {
				return err
			}
			segments = append(segments, seg)
		}
	}

	if err := writeSegmentsManifest(filepath.Join(target, SegmentsManifest), segments); err != nil {
		return err
	}
	if err := writeShardNumber(tc.ShardNumberPath(), tc.TaskID); err != nil {
		return err
	}

	logger.WithField("segments", len(segments)).Debug("merged index")
	return nil
}

// segmentFiles returns all regular files below dir except a previous
// segments manifest, ordered by their path relative to dir.
func segmentFiles(dir string) ([]string, error) {
	matches, err := doublestar.Glob(filepath.Join(dir, "**", "*"))
	if err != nil {
		return nil, errors.Wrapf(err, "list segments of %q", dir)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		if filepath.Base(match) == SegmentsManifest && filepath.Dir(match) == filepath.Clean(dir) {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %q", match)
		}
		if info.Mode().IsRegular() {
			files = append(files, match)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return alphanum.Less(files[i], files[j])
	})
	return files, nil
}

func (m *Merger) copySegment(source, targetDir string, seq int) (seg Segment, err error) {
	name := fmt.Sprintf("segment-%06d%s", seq, filepath.Ext(source))
	target, err := diskio.SanitizeFilePathJoin(targetDir, name)
	if err != nil {
		return Segment{}, err
	}

	in, err := os.Open(source)
	if err != nil {
		return Segment{}, errors.Wrapf(err, "open segment %q", source)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return Segment{}, errors.Wrapf(err, "open file %q for writing", target)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %q", target)
		}
	}()

	hash := murmur3.New64()
	reader := diskio.NewMeteredReader(in, func(read int64, _ int64) {
		m.metrics.AddSegmentBytes(read)
	})
	if _, err := io.Copy(io.MultiWriter(out, hash), reader); err != nil {
		return Segment{}, errors.Wrapf(err, "copy %q -> %q", source, target)
	}
	if err := out.Sync(); err != nil {
		return Segment{}, errors.Wrapf(err, "fsyncing file %q", target)
	}

	return Segment{
		Name:     name,
		Size:     reader.Total(),
		Checksum: hash.Sum64(),
		Source:   source,
	}, nil
}

func writeSegmentsManifest(path string, segments []Segment) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %q", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %q", path)
		}
	}()

	w := bufio.NewWriter(f)
	for _, seg := range segments {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%016x\t%s\n", seg.Name, seg.Size, seg.Checksum, seg.Source); err != nil {
			return errors.Wrapf(err, "write %q", path)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "write %q", path)
	}
	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "sync %q", path)
	}
	return nil
}

func writeShardNumber(path string, shard int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(shard)+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "write shard number %q", path)
	}
	return nil
}
