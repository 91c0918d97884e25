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

package diskio

import (
	"io"
	"time"
)

type MeteredReaderCallback func(read int64, nanoseconds int64)

// MeteredReader counts what flows through it. The merge task wraps segment
// sources in it to report copy throughput.
type MeteredReader struct {
	r     io.Reader
	cb    MeteredReaderCallback
	total int64
}

// Read passes the read through to the underlying reader and reports every
// non-empty read to the callback, including the last one that comes together
// with io.EOF.
func (m *MeteredReader) Read(p []byte) (n int, err error) {
	start := time.Now()
	n, err = m.r.Read(p)
	took := time.Since(start).Nanoseconds()
	if n == 0 {
		return
	}

	m.total += int64(n)
	if m.cb != nil {
		m.cb(int64(n), took)
	}

	return
}

// Total returns the number of bytes read so far.
func (m *MeteredReader) Total() int64 {
	return m.total
}

// NewMeteredReader wraps r so that every read reports its size and duration
// to cb. cb may be nil.
func NewMeteredReader(r io.Reader, cb MeteredReaderCallback) *MeteredReader {
	return &MeteredReader{r: r, cb: cb}
}
