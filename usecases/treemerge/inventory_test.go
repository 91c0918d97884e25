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
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/treemerge/entities/batch"
)

func TestListShardDirectories(t *testing.T) {
	fs := newMemFS()
	for _, name := range []string{"part-m-10", "part-m-9", "part-m-00002", "part-m-1"} {
		fs.seedDir(filepath.Join("/in", name))
	}
	fs.seedFile("/in/_SUCCESS", "")
	fs.seedDir("/in/other")

	dirs, err := ListShardDirectories(fs, "/in", "part")
	require.NoError(t, err)

	names := make([]string, len(dirs))
	for i, dir := range dirs {
		names[i] = dir.Name
		assert.True(t, dir.IsDir)
		assert.Equal(t, filepath.Join("/in", dir.Name), dir.Path)
	}
	assert.Equal(t, []string{"part-m-1", "part-m-00002", "part-m-9", "part-m-10"}, names)
	assert.Empty(t, fs.mutated())
}

func TestListShardDirectoriesRejectsFiles(t *testing.T) {
	fs := newMemFS()
	fs.seedDir("/in/part-m-00000")
	fs.seedFile("/in/part-m-00001", "x")
	fs.seedFile("/in/part-m-00002", "y")

	_, err := ListShardDirectories(fs, "/in", "part")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructural))
	assert.Contains(t, err.Error(), "/in/part-m-00001 is not a directory")
	assert.Contains(t, err.Error(), "/in/part-m-00002 is not a directory")
}

func TestListShardDirectoriesMissingRoot(t *testing.T) {
	_, err := ListShardDirectories(newMemFS(), "/missing", "part")
	assert.True(t, errors.Is(err, ErrFilesystem))
}

func TestBuildManifest(t *testing.T) {
	fs := newMemFS()
	seedReducers(fs, "/in/reducers", 12)
	manifest := "/in/mtree-merge-input-iteration1/input-list.txt"

	n, err := BuildManifest(fs, "/in/reducers", "part", manifest, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	content, ok := fs.content(manifest)
	require.True(t, ok)
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	require.Len(t, lines, 12)
	assert.Equal(t, "/in/reducers/part-r-00000/"+batch.IndexDir, lines[0])
	assert.Equal(t, "/in/reducers/part-r-00011/"+batch.IndexDir, lines[11])
}

func TestBuildManifestCountMismatch(t *testing.T) {
	fs := newMemFS()
	seedReducers(fs, "/in/reducers", 3)

	_, err := BuildManifest(fs, "/in/reducers", "part", "/in/m/input-list.txt", 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructural))
	assert.Contains(t, err.Error(), "does not match number of input dirs: 3")
}

func TestBuildManifestHasNoSideEffectsOnInvalidTree(t *testing.T) {
	tests := []struct {
		name string
		seed func(fs *memFS)
	}{
		{
			name: "file matching the prefix",
			seed: func(fs *memFS) {
				seedReducers(fs, "/in/reducers", 3)
				fs.seedFile("/in/reducers/part-r-00003", "")
			},
		},
		{
			name: "shard without index",
			seed: func(fs *memFS) {
				seedReducers(fs, "/in/reducers", 3)
				fs.seedDir("/in/reducers/part-r-00003")
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fs := newMemFS()
			test.seed(fs)

			_, err := BuildManifest(fs, "/in/reducers", "part", "/in/m/input-list.txt", 4)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrStructural))
			assert.Empty(t, fs.mutated())
			exists, _ := fs.Exists("/in/m")
			assert.False(t, exists)
		})
	}
}
