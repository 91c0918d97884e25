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

// Package local implements the merge working tree on a local or mounted
// POSIX filesystem.
package local

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/treemerge/entities/diskio"
	"github.com/weaviate/treemerge/usecases/treemerge"
)

// FS is a treemerge.FileSystem on the local disk. Renames are made durable
// by syncing the parent directories involved.
type FS struct {
	logger logrus.FieldLogger
	// SkipSync disables directory fsyncs, e.g. on filesystems that reject
	// syncing directories.
	SkipSync bool
}

func New(logger logrus.FieldLogger) *FS {
	return &FS{logger: logger}
}

func (fs *FS) List(dir string, filter treemerge.NameFilter) ([]treemerge.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %q", dir)
	}

	out := make([]treemerge.DirEntry, 0, len(entries))
	for _, entry := range entries {
		if filter != nil && !filter(entry.Name()) {
			continue
		}
		out = append(out, treemerge.DirEntry{
			Name:  entry.Name(),
			Path:  filepath.Join(dir, entry.Name()),
			IsDir: entry.IsDir(),
		})
	}
	return out, nil
}

func (fs *FS) Exists(path string) (bool, error) {
	return diskio.FileExists(path)
}

func (fs *FS) IsDir(path string) (bool, error) {
	return diskio.IsDir(path)
}

func (fs *FS) MkdirAll(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

// Rename moves src to dst. Unlike os.Rename it never replaces an existing
// dst, not even an empty directory.
func (fs *FS) Rename(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return errors.Wrapf(os.ErrExist, "rename %q -> %q", src, dst)
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %q", dst)
	}

	if err := os.Rename(src, dst); err != nil {
		return errors.Wrapf(err, "rename %q -> %q", src, dst)
	}

	fs.logger.WithField("action", "treemerge_fs_rename").
		WithField("from", src).
		WithField("to", dst).
		Trace("renamed")

	return fs.syncDirs(filepath.Dir(src), filepath.Dir(dst))
}

func (fs *FS) RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "remove %q", path)
	}
	return fs.syncDirs(filepath.Dir(path))
}

func (fs *FS) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "remove %q", path)
	}
	return nil
}

func (fs *FS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Create truncates or creates path. The returned writer syncs the file
// before closing it.
func (fs *FS) Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open file %q for writing", path)
	}
	return &syncedFile{File: f}, nil
}

func (fs *FS) syncDirs(dirs ...string) error {
	if fs.SkipSync {
		return nil
	}
	seen := map[string]struct{}{}
	for _, dir := range dirs {
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		if err := diskio.Fsync(dir); err != nil {
			return errors.Wrapf(err, "fsync folder %q", dir)
		}
	}
	return nil
}

type syncedFile struct {
	*os.File
}

func (f *syncedFile) Close() error {
	if err := f.File.Sync(); err != nil {
		f.File.Close()
		return errors.Wrapf(err, "fsync %q", f.Name())
	}
	return f.File.Close()
}

var _ = treemerge.FileSystem(&FS{})
