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
	"errors"
	"fmt"
)

// Every error returned by this package is fatal for the run. Apart from
// context cancellation, each one matches one of these kinds with errors.Is.
var (
	// ErrConfiguration is returned before any work starts when the shard,
	// reducer and fanout settings cannot produce the requested shards.
	ErrConfiguration = errors.New("invalid merge configuration")
	// ErrStructural means the working tree does not look like expected:
	// missing directories, stray files, count mismatches.
	ErrStructural = errors.New("unexpected working tree structure")
	// ErrTaskExecution means the batch engine reported a failed round.
	ErrTaskExecution = errors.New("merge job failed")
	// ErrFilesystem means a rename, delete, read or write failed.
	ErrFilesystem = errors.New("filesystem operation failed")
)

func newConfigurationError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConfiguration)
}

func newStructuralError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrStructural)
}

func wrapStructural(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), ErrStructural, err)
}

func wrapTaskExecution(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), ErrTaskExecution, err)
}

func wrapFilesystem(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), ErrFilesystem, err)
}

// KindOf names the kind of err for logs and metrics.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrStructural):
		return "structural"
	case errors.Is(err, ErrTaskExecution):
		return "task_execution"
	case errors.Is(err, ErrFilesystem):
		return "filesystem"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
