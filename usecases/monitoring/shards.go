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

package monitoring

import "time"

// Record a promoted round and the number of shard directories it left
func (m *MergeMetrics) RoundCompleted(took time.Duration, remaining int) {
	if m == nil {
		return
	}

	m.RoundsCompleted.Inc()
	m.RoundDuration.Observe(took.Seconds())
	m.ShardDirectories.Set(float64(remaining))
}

func (m *MergeMetrics) SetShardDirectories(n int) {
	if m == nil {
		return
	}

	m.ShardDirectories.Set(float64(n))
}

func (m *MergeMetrics) TaskStarted() {
	if m == nil {
		return
	}

	m.TasksStarted.Inc()
}

func (m *MergeMetrics) TaskFailed() {
	if m == nil {
		return
	}

	m.TasksFailed.Inc()
}

func (m *MergeMetrics) AddSegmentBytes(n int64) {
	if m == nil {
		return
	}

	m.SegmentBytesCopied.Add(float64(n))
}

// Count a directory rename in one of the Rename* phases
func (m *MergeMetrics) Renamed(phase string) {
	if m == nil {
		return
	}

	m.Renames.WithLabelValues(phase).Inc()
}

func (m *MergeMetrics) FatalError(kind string) {
	if m == nil {
		return
	}

	m.FatalErrors.WithLabelValues(kind).Inc()
}
