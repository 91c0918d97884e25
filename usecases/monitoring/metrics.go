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

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rename phases used as label values of treemerge_renames_total.
const (
	RenamePromote   = "promote"
	RenameStage     = "stage"
	RenameRenumber  = "renumber"
	RenameNormalize = "normalize"
	RenamePublish   = "publish"
)

// MergeMetrics holds the collectors of a merge run. A nil *MergeMetrics is
// valid and records nothing.
type MergeMetrics struct {
	RoundsCompleted    prometheus.Counter
	RoundDuration      prometheus.Histogram
	ShardDirectories   prometheus.Gauge
	TasksStarted       prometheus.Counter
	TasksFailed        prometheus.Counter
	SegmentBytesCopied prometheus.Counter
	Renames            *prometheus.CounterVec
	FatalErrors        *prometheus.CounterVec
}

func NewMergeMetrics(reg prometheus.Registerer) *MergeMetrics {
	if reg == nil {
		reg = NoopRegisterer
	}
	factory := promauto.With(reg)

	return &MergeMetrics{
		RoundsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "treemerge_rounds_completed_total",
			Help: "Number of merge rounds that were promoted",
		}),
		RoundDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "treemerge_round_duration_seconds",
			Help:    "Duration of a merge round from manifest build to promotion",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		ShardDirectories: factory.NewGauge(prometheus.GaugeOpts{
			Name: "treemerge_shard_directories",
			Help: "Number of shard directories the next round starts from",
		}),
		TasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "treemerge_tasks_started_total",
			Help: "Number of merge task attempts started by the batch engine",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "treemerge_tasks_failed_total",
			Help: "Number of merge task attempts that returned an error",
		}),
		SegmentBytesCopied: factory.NewCounter(prometheus.CounterOpts{
			Name: "treemerge_segment_bytes_copied_total",
			Help: "Number of index segment bytes written by merge tasks",
		}),
		Renames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "treemerge_renames_total",
			Help: "Number of directory renames per phase",
		}, []string{"phase"}),
		FatalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "treemerge_fatal_errors_total",
			Help: "Number of runs aborted per error kind",
		}, []string{"kind"}),
	}
}

// NoopRegisterer accepts and drops every collector, so metrics can be
// created unconditionally when monitoring is disabled.
var NoopRegisterer prometheus.Registerer = noopRegisterer{}

type noopRegisterer struct{}

func (noopRegisterer) Register(prometheus.Collector) error  { return nil }
func (noopRegisterer) MustRegister(...prometheus.Collector) {}
func (noopRegisterer) Unregister(prometheus.Collector) bool { return true }
