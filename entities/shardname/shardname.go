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

// Package shardname knows how shard directories are named while they move
// through a tree merge.
//
// A reducer or merge task writes its output into "<prefix>-r-NNNNN" or
// "<prefix>-m-NNNNN" respectively, where NNNNN is the task partition. During
// renumbering a directory is staged as "_<prefix>-m-NNNNN" and then renamed to
// "<prefix>-m-SSSSS" where SSSSS is the canonical shard number. Published
// shards drop the task type infix: "<prefix>-SSSSS".
package shardname

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultPrefix is the output name used by the indexing job for its
	// per-partition directories.
	DefaultPrefix = "part"

	// StagingMarker is prepended to a directory name while it waits for its
	// canonical shard number. Task output names never start with it, so a
	// staged name cannot collide with a canonical one.
	StagingMarker = "_"

	MapInfix    = "m"
	ReduceInfix = "r"
)

// TaskOutput returns the directory name a task with the given infix writes
// its partition into, e.g. part-m-00004.
func TaskOutput(prefix, infix string, partition int) string {
	return fmt.Sprintf("%s-%s-%s", prefix, infix, Pad(partition))
}

// Canonical returns the name a merged shard carries after renumbering.
func Canonical(prefix string, shard int) string {
	return TaskOutput(prefix, MapInfix, shard)
}

// Final returns the published name of a shard, without task type infix.
func Final(prefix string, shard int) string {
	return fmt.Sprintf("%s-%s", prefix, Pad(shard))
}

// StagedName returns the staging name for a directory name.
func StagedName(name string) string {
	return StagingMarker + name
}

// Pad formats n with at least five digits and no grouping, matching the
// partition numbering of the batch engine. Larger numbers keep all digits.
func Pad(n int) string {
	return fmt.Sprintf("%05d", n)
}

// Parsed is the decomposition of a shard directory name.
type Parsed struct {
	Staged bool
	// Infix is MapInfix, ReduceInfix or empty for final names.
	Infix  string
	Number int
}

// Parse decomposes name if it is any of the shard directory forms for prefix.
func Parse(prefix, name string) (Parsed, bool) {
	var p Parsed
	if strings.HasPrefix(name, StagingMarker) {
		p.Staged = true
		name = strings.TrimPrefix(name, StagingMarker)
	}

	rest, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return Parsed{}, false
	}

	if infix, digits, found := strings.Cut(rest, "-"); found {
		if infix != MapInfix && infix != ReduceInfix {
			return Parsed{}, false
		}
		p.Infix = infix
		rest = digits
	}

	n, ok := parseNumber(rest)
	if !ok {
		return Parsed{}, false
	}
	p.Number = n

	if p.Staged && p.Infix == "" {
		// final names are never staged
		return Parsed{}, false
	}
	return p, true
}

func parseNumber(s string) (int, bool) {
	if len(s) < 5 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// State is the renumbering state of a shard directory as observable on the
// filesystem.
type State int

const (
	// Unknown names do not belong to the merge.
	Unknown State = iota
	// Assigned directories carry a task partition name and still hold their
	// shard number record.
	Assigned
	// Staged directories have been moved out of the way of canonical names.
	Staged
	// Renumbered directories carry their canonical shard number; the record
	// has been consumed.
	Renumbered
	// Published directories carry the final name without task type infix.
	Published
)

func (s State) String() string {
	switch s {
	case Assigned:
		return "ASSIGNED"
	case Staged:
		return "STAGED"
	case Renumbered:
		return "RENUMBERED"
	case Published:
		return "PUBLISHED"
	default:
		return "UNKNOWN"
	}
}

// Classify reports the state of the directory called name. hasRecord tells
// whether the directory still contains its shard number record, which is the
// only thing telling an assigned directory from a renumbered one.
func Classify(prefix, name string, hasRecord bool) State {
	p, ok := Parse(prefix, name)
	switch {
	case !ok:
		return Unknown
	case p.Staged:
		return Staged
	case p.Infix == "":
		return Published
	case hasRecord:
		return Assigned
	default:
		return Renumbered
	}
}
