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
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/weaviate/treemerge/entities/alphanum"
)

// ListShardDirectories returns the children of root whose name starts with
// prefix, ordered by alphanum.Compare so that part-m-9 precedes part-m-10.
// Every matching entry must be a directory. It has no side effects.
func ListShardDirectories(fs FileSystem, root, prefix string) ([]DirEntry, error) {
	entries, err := fs.List(root, HasPrefix(prefix))
	if err != nil {
		return nil, wrapFilesystem(err, "list shard directories in %s", root)
	}

	var notDirs *multierror.Error
	for _, entry := range entries {
		if !entry.IsDir {
			notDirs = multierror.Append(notDirs, errors.Errorf("%s is not a directory", entry.Path))
		}
	}
	if err := notDirs.ErrorOrNil(); err != nil {
		return nil, wrapStructural(err, "list shard directories in %s", root)
	}

	sort.Slice(entries, func(i, j int) bool {
		return alphanum.Less(entries[i].Name, entries[j].Name)
	})
	return entries, nil
}
