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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/shardname"
)

// memFS is an in-memory FileSystem that records every mutation and can be
// told to fail specific operations.
type memFS struct {
	sync.Mutex
	nodes map[string]*memNode
	// mutations lists every successful mutating call in order.
	mutations []string
	// failures maps "<op> <path>" to the error that op should return.
	failures map[string]error
}

type memNode struct {
	dir  bool
	data []byte
}

func newMemFS() *memFS {
	return &memFS{
		nodes:    map[string]*memNode{"/": {dir: true}},
		failures: map[string]error{},
	}
}

func (m *memFS) failOn(op, path string, err error) {
	m.Lock()
	defer m.Unlock()
	m.failures[op+" "+filepath.Clean(path)] = err
}

func (m *memFS) injected(op, path string) error {
	return m.failures[op+" "+filepath.Clean(path)]
}

func (m *memFS) mkdirAllLocked(path string) error {
	path = filepath.Clean(path)
	if n, ok := m.nodes[path]; ok {
		if !n.dir {
			return fmt.Errorf("mkdir %s: not a directory", path)
		}
		return nil
	}
	if err := m.mkdirAllLocked(filepath.Dir(path)); err != nil {
		return err
	}
	m.nodes[path] = &memNode{dir: true}
	return nil
}

// seedFile creates path with its parents, bypassing mutation tracking.
func (m *memFS) seedFile(path, content string) {
	m.Lock()
	defer m.Unlock()
	if err := m.mkdirAllLocked(filepath.Dir(path)); err != nil {
		panic(err)
	}
	m.nodes[filepath.Clean(path)] = &memNode{data: []byte(content)}
}

func (m *memFS) seedDir(path string) {
	m.Lock()
	defer m.Unlock()
	if err := m.mkdirAllLocked(path); err != nil {
		panic(err)
	}
}

func (m *memFS) content(path string) (string, bool) {
	m.Lock()
	defer m.Unlock()
	n, ok := m.nodes[filepath.Clean(path)]
	if !ok || n.dir {
		return "", false
	}
	return string(n.data), true
}

func (m *memFS) children(dir string) []string {
	m.Lock()
	defer m.Unlock()
	dir = filepath.Clean(dir)
	var names []string
	for p := range m.nodes {
		if p != dir && filepath.Dir(p) == dir {
			names = append(names, filepath.Base(p))
		}
	}
	sort.Strings(names)
	return names
}

func (m *memFS) mutated() []string {
	m.Lock()
	defer m.Unlock()
	return append([]string(nil), m.mutations...)
}

func (m *memFS) List(dir string, filter NameFilter) ([]DirEntry, error) {
	m.Lock()
	defer m.Unlock()
	dir = filepath.Clean(dir)
	if err := m.injected("list", dir); err != nil {
		return nil, err
	}
	n, ok := m.nodes[dir]
	if !ok {
		return nil, &os.PathError{Op: "list", Path: dir, Err: os.ErrNotExist}
	}
	if !n.dir {
		return nil, fmt.Errorf("list %s: not a directory", dir)
	}

	var entries []DirEntry
	for p, child := range m.nodes {
		if p == dir || filepath.Dir(p) != dir {
			continue
		}
		name := filepath.Base(p)
		if filter != nil && !filter(name) {
			continue
		}
		entries = append(entries, DirEntry{Name: name, Path: p, IsDir: child.dir})
	}
	return entries, nil
}

func (m *memFS) Exists(path string) (bool, error) {
	m.Lock()
	defer m.Unlock()
	_, ok := m.nodes[filepath.Clean(path)]
	return ok, nil
}

func (m *memFS) IsDir(path string) (bool, error) {
	m.Lock()
	defer m.Unlock()
	n, ok := m.nodes[filepath.Clean(path)]
	return ok && n.dir, nil
}

func (m *memFS) MkdirAll(path string) error {
	m.Lock()
	defer m.Unlock()
	if err := m.injected("mkdir", path); err != nil {
		return err
	}
	if err := m.mkdirAllLocked(path); err != nil {
		return err
	}
	m.mutations = append(m.mutations, "mkdir "+filepath.Clean(path))
	return nil
}

func (m *memFS) Rename(src, dst string) error {
	m.Lock()
	defer m.Unlock()
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	if err := m.injected("rename", src); err != nil {
		return err
	}
	if _, ok := m.nodes[src]; !ok {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: os.ErrNotExist}
	}
	if _, ok := m.nodes[dst]; ok {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: os.ErrExist}
	}
	if parent, ok := m.nodes[filepath.Dir(dst)]; !ok || !parent.dir {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: os.ErrNotExist}
	}

	moved := map[string]*memNode{}
	for p, n := range m.nodes {
		if p == src || strings.HasPrefix(p, src+"/") {
			moved[dst+strings.TrimPrefix(p, src)] = n
			delete(m.nodes, p)
		}
	}
	for p, n := range moved {
		m.nodes[p] = n
	}
	m.mutations = append(m.mutations, "rename "+src+" "+dst)
	return nil
}

func (m *memFS) RemoveAll(path string) error {
	m.Lock()
	defer m.Unlock()
	path = filepath.Clean(path)
	if err := m.injected("removeall", path); err != nil {
		return err
	}
	for p := range m.nodes {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(m.nodes, p)
		}
	}
	m.mutations = append(m.mutations, "removeall "+path)
	return nil
}

func (m *memFS) Remove(path string) error {
	m.Lock()
	defer m.Unlock()
	path = filepath.Clean(path)
	if err := m.injected("remove", path); err != nil {
		return err
	}
	if _, ok := m.nodes[path]; !ok {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}
	for p := range m.nodes {
		if strings.HasPrefix(p, path+"/") {
			return fmt.Errorf("remove %s: directory not empty", path)
		}
	}
	delete(m.nodes, path)
	m.mutations = append(m.mutations, "remove "+path)
	return nil
}

func (m *memFS) ReadFile(path string) ([]byte, error) {
	m.Lock()
	defer m.Unlock()
	n, ok := m.nodes[filepath.Clean(path)]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	if n.dir {
		return nil, fmt.Errorf("read %s: is a directory", path)
	}
	return append([]byte(nil), n.data...), nil
}

func (m *memFS) Create(path string) (io.WriteCloser, error) {
	m.Lock()
	defer m.Unlock()
	path = filepath.Clean(path)
	if err := m.injected("create", path); err != nil {
		return nil, err
	}
	if parent, ok := m.nodes[filepath.Dir(path)]; !ok || !parent.dir {
		return nil, &os.PathError{Op: "create", Path: path, Err: os.ErrNotExist}
	}
	m.nodes[path] = &memNode{}
	m.mutations = append(m.mutations, "create "+path)
	return &memFile{fs: m, path: path}, nil
}

type memFile struct {
	fs   *memFS
	path string
	buf  bytes.Buffer
}

func (f *memFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *memFile) Close() error {
	f.fs.Lock()
	defer f.fs.Unlock()
	f.fs.nodes[f.path] = &memNode{data: f.buf.Bytes()}
	return nil
}

// fakeEngine is a testify mock of BatchEngine.
type fakeEngine struct {
	mock.Mock
}

func (f *fakeEngine) RunJob(ctx context.Context, job batch.Job) error {
	args := f.Called(ctx, job)
	return args.Error(0)
}

// simulateJob does what a real engine and merge task would do on fs: split
// the manifest into groups of job.LinesPerTask, and for group i create
// <out>/<prefix>-m-<i> whose index lists the sources of every merged input
// and whose shard number record holds i.
func simulateJob(t *testing.T, fs *memFS, job batch.Job) {
	t.Helper()

	manifest, ok := fs.content(job.ManifestPath)
	require.True(t, ok, "manifest %s missing", job.ManifestPath)
	lines := strings.Split(strings.TrimSuffix(manifest, "\n"), "\n")
	require.Zero(t, len(lines)%job.LinesPerTask)

	for task := 0; task*job.LinesPerTask < len(lines); task++ {
		var sources []string
		for _, line := range lines[task*job.LinesPerTask : (task+1)*job.LinesPerTask] {
			content, ok := fs.content(filepath.Join(line, "sources"))
			require.True(t, ok, "index %s has no sources", line)
			sources = append(sources, strings.Split(content, ",")...)
		}
		out := filepath.Join(job.OutputPath, shardname.TaskOutput(job.OutputPrefix, shardname.MapInfix, task))
		fs.seedFile(filepath.Join(out, batch.IndexDir, "sources"), strings.Join(sources, ","))
		fs.seedFile(filepath.Join(out, batch.ShardNumberFile), strconv.Itoa(task)+"\n")
	}
}

// seedReducers creates n reducer outputs part-r-NNNNN below root whose index
// lists a single source, the reducer number.
func seedReducers(fs *memFS, root string, n int) {
	for i := 0; i < n; i++ {
		dir := filepath.Join(root, shardname.TaskOutput(shardname.DefaultPrefix, shardname.ReduceInfix, i))
		fs.seedFile(filepath.Join(dir, batch.IndexDir, "sources"), strconv.Itoa(i))
	}
}
