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
	"io"
	"strings"

	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/journal"
)

// DirEntry is an immediate child of a listed directory.
type DirEntry struct {
	Name  string
	Path  string
	IsDir bool
}

// NameFilter selects directory entries by name.
type NameFilter func(name string) bool

func HasPrefix(prefix string) NameFilter {
	return func(name string) bool {
		return strings.HasPrefix(name, prefix)
	}
}

// FileSystem is the shared hierarchical filesystem the working tree lives
// on. All coordination of a merge run is expressed through it.
type FileSystem interface {
	// List returns the immediate children of dir accepted by filter, in no
	// particular order. A nil filter accepts everything.
	List(dir string, filter NameFilter) ([]DirEntry, error)
	Exists(path string) (bool, error)
	IsDir(path string) (bool, error)
	MkdirAll(path string) error
	// Rename moves src to dst. It fails if dst already exists.
	Rename(src, dst string) error
	// RemoveAll deletes path recursively.
	RemoveAll(path string) error
	Remove(path string) error
	ReadFile(path string) ([]byte, error)
	Create(path string) (io.WriteCloser, error)
}

// BatchEngine runs a job and blocks until every task has finished. A nil
// error means all tasks succeeded and their output is committed.
type BatchEngine interface {
	RunJob(ctx context.Context, job batch.Job) error
}

// Recorder keeps an operator-facing journal of a run.
type Recorder interface {
	Record(ev journal.Event) error
}
