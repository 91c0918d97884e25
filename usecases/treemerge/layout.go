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
	"fmt"
	"path/filepath"
)

const (
	reducersDirName    = "reducers"
	resultsDirName     = "results"
	mergeOutputDirName = "mtree-merge-output"
	manifestDirPattern = "mtree-merge-input-iteration%d"
	manifestFileName   = "input-list.txt"
)

// Layout locates the parts of the working tree below the input root.
type Layout struct {
	InputDir string
	// Prefix is the name prefix of shard directories, e.g. "part".
	Prefix string
}

// ReducersDir holds the shard directories the next round starts from.
func (l Layout) ReducersDir() string {
	return filepath.Join(l.InputDir, reducersDirName)
}

func (l Layout) ResultsDir() string {
	return filepath.Join(l.InputDir, resultsDirName)
}

// MergeOutputDir is where the batch engine writes a round's output before
// it is promoted onto ReducersDir.
func (l Layout) MergeOutputDir() string {
	return filepath.Join(l.InputDir, mergeOutputDirName)
}

func (l Layout) ManifestDir(iteration int) string {
	return filepath.Join(l.InputDir, fmt.Sprintf(manifestDirPattern, iteration))
}

func (l Layout) ManifestPath(iteration int) string {
	return filepath.Join(l.ManifestDir(iteration), manifestFileName)
}
