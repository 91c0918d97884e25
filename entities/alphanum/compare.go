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

// Package alphanum orders names that embed numbers, such as shard directory
// names, so that "part-m-9" sorts before "part-m-10" independently of how
// many digits the embedded numbers have.
package alphanum

import "strings"

// Compare returns -1, 0 or 1 depending on whether a sorts before, equal to or
// after b.
//
// Both names are split into maximal runs of ASCII digits and maximal runs of
// everything else. Runs are compared pairwise: two digit runs compare by
// numeric value, any other pair compares lexically. When the numeric values
// are equal the run with fewer leading zeros sorts first, which keeps the
// ordering total. If all shared runs are equal, the name with fewer runs sorts
// first.
func Compare(a, b string) int {
	for {
		if a == "" || b == "" {
			return compareInts(len(a), len(b))
		}

		runA, restA := nextRun(a)
		runB, restB := nextRun(b)

		var c int
		if isDigit(runA[0]) && isDigit(runB[0]) {
			c = compareNumeric(runA, runB)
		} else {
			c = strings.Compare(runA, runB)
		}
		if c != 0 {
			return c
		}

		a, b = restA, restB
	}
}

// Less adapts Compare for sort.Slice and slices.SortFunc style callers.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

func nextRun(s string) (run, rest string) {
	digits := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func compareNumeric(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")

	// without leading zeros the longer run holds the larger value
	if c := compareInts(len(ta), len(tb)); c != 0 {
		return c
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	return compareInts(len(a), len(b))
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
