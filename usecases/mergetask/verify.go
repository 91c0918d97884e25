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

package mergetask

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
)

// ReadSegmentsManifest parses the segments manifest of the index in dir.
func ReadSegmentsManifest(dir string) ([]Segment, error) {
	path := filepath.Join(dir, SegmentsManifest)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	var segments []Segment
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.SplitN(scanner.Text(), "\t", 4)
		if len(fields) != 4 {
			return nil, errors.Errorf("%s:%d: expected 4 fields, got %d", path, line, len(fields))
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: size", path, line)
		}
		checksum, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: checksum", path, line)
		}
		segments = append(segments, Segment{
			Name:     fields[0],
			Size:     size,
			Checksum: checksum,
			Source:   fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %q", path)
	}
	return segments, nil
}

// Verify checks every segment listed in the manifest of the index in dir
// against its recorded size and checksum.
func Verify(dir string) ([]Segment, error) {
	segments, err := ReadSegmentsManifest(dir)
	if err != nil {
		return nil, err
	}

	for _, seg := range segments {
		path := filepath.Join(dir, seg.Name)
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open segment %q", path)
		}
		hash := murmur3.New64()
		n, err := io.Copy(hash, f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "read segment %q", path)
		}
		if n != seg.Size || hash.Sum64() != seg.Checksum {
			return nil, errors.Errorf("checksum validation of segment %q failed", path)
		}
	}
	return segments, nil
}
