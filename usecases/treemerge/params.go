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
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/journal"
	"github.com/weaviate/treemerge/usecases/monitoring"
)

// Params are the collaborators shared by the components of a merge run.
// Metrics and Recorder are optional.
type Params struct {
	FS       FileSystem
	Engine   BatchEngine
	Mapper   batch.Mapper
	Layout   Layout
	Logger   logrus.FieldLogger
	Metrics  *monitoring.MergeMetrics
	Recorder Recorder
	Clock    clockwork.Clock
}

func (p Params) withDefaults() Params {
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	if p.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		p.Logger = logger
	}
	return p
}

func (p Params) record(ev journal.Event) {
	if p.Recorder == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = p.Clock.Now().UTC()
	}
	if err := p.Recorder.Record(ev); err != nil {
		p.Logger.WithField("action", "treemerge_journal").
			WithError(err).
			Warn("failed to record journal event")
	}
}

// runRecorder stamps every event with the id of the run it belongs to.
type runRecorder struct {
	runID string
	inner Recorder
}

func (r runRecorder) Record(ev journal.Event) error {
	ev.RunID = r.runID
	return r.inner.Record(ev)
}
