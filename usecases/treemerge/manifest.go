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
	"bufio"
	"path/filepath"

	"github.com/weaviate/treemerge/entities/batch"
)

// BuildManifest lists the shard directories in root and writes the path of
// each one's index directory, one per line, to manifestPath. All directories
// are validated before anything is written. The number of lines must match
// both the listing and expected.
func BuildManifest(fs FileSystem, root, prefix, manifestPath string, expected int) (int, error) {
	dirs, err := ListShardDirectories(fs, root, prefix)
	if err != nil {
		return 0, err
	}

	indexDirs := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		indexDir := filepath.Join(dir.Path, batch.IndexDir)
		ok, err := fs.IsDir(indexDir)
		if err != nil {
			return 0, wrapFilesystem(err, "stat %s", indexDir)
		}
		if !ok {
			return 0, newStructuralError("directory %s does not exist", indexDir)
		}
		indexDirs = append(indexDirs, indexDir)
	}

	if err := fs.MkdirAll(filepath.Dir(manifestPath)); err != nil {
		return 0, wrapFilesystem(err, "create manifest directory for %s", manifestPath)
	}

	written, err := writeLines(fs, manifestPath, indexDirs)
	if err != nil {
		return written, err
	}

	if written != len(dirs) {
		return written, newStructuralError("wrote %d manifest lines for %d shard directories", written, len(dirs))
	}
	if written != expected {
		return written, newStructuralError(
			"configured number of reducers (%d) does not match number of input dirs: %d", expected, written)
	}
	return written, nil
}

func writeLines(fs FileSystem, manifestPath string, lines []string) (written int, err error) {
	f, err := fs.Create(manifestPath)
	if err != nil {
		return 0, wrapFilesystem(err, "create manifest %s", manifestPath)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = wrapFilesystem(cerr, "close manifest %s", manifestPath)
		}
	}()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return written, wrapFilesystem(err, "write manifest %s", manifestPath)
		}
		written++
	}
	if err := w.Flush(); err != nil {
		return written, wrapFilesystem(err, "flush manifest %s", manifestPath)
	}
	return written, nil
}
