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
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/journal"
	"github.com/weaviate/treemerge/usecases/monitoring"
)

func newSimulatingEngine(t *testing.T, fs *memFS) *fakeEngine {
	engine := &fakeEngine{}
	engine.On("RunJob", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		simulateJob(t, fs, args.Get(1).(batch.Job))
	}).Return(nil)
	return engine
}

// expectedSources lists the reducers whose content must end up in shard.
func expectedSources(reducers, shards, shard int) string {
	per := reducers / shards
	sources := make([]string, per)
	for i := range sources {
		sources[i] = strconv.Itoa(shard*per + i)
	}
	return strings.Join(sources, ",")
}

func TestDriverRun(t *testing.T) {
	tests := []struct {
		reducers, shards, fanout int
		rounds                   int
	}{
		{reducers: 64, shards: 4, fanout: 1000, rounds: 1},
		{reducers: 64, shards: 4, fanout: 4, rounds: 2},
		{reducers: 16, shards: 1, fanout: 2, rounds: 4},
		{reducers: 12, shards: 3, fanout: 0, rounds: 1},
		{reducers: 3, shards: 3, fanout: 0, rounds: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d reducers to %d shards with fanout %d", tt.reducers, tt.shards, tt.fanout), func(t *testing.T) {
			fs := newMemFS()
			seedReducers(fs, "/in/reducers", tt.reducers)
			engine := newSimulatingEngine(t, fs)

			reg := prometheus.NewPedanticRegistry()
			recorder := &memRecorder{}
			params := newTestParams(fs, engine)
			params.Metrics = monitoring.NewMergeMetrics(reg)
			params.Recorder = recorder
			params.Clock = clockwork.NewFakeClock()

			res, err := NewDriver(Options{
				Shards: tt.shards, Reducers: tt.reducers, Fanout: tt.fanout, InputDir: "/in",
			}, params).Run(context.Background())
			require.NoError(t, err)

			_, err = uuid.Parse(res.RunID)
			assert.NoError(t, err)
			assert.Equal(t, tt.rounds, res.Rounds)
			assert.Equal(t, "/in/results", res.ResultsDir)
			engine.AssertNumberOfCalls(t, "RunJob", tt.rounds)

			require.Len(t, res.Shards, tt.shards)
			assert.Equal(t, res.Shards, fs.children("/in/results"))
			for shard, name := range res.Shards {
				assert.Equal(t, fmt.Sprintf("part-%05d", shard), name)
				sources, ok := fs.content(filepath.Join("/in/results", name, batch.IndexDir, "sources"))
				require.True(t, ok)
				assert.Equal(t, expectedSources(tt.reducers, tt.shards, shard), sources)
				exists, _ := fs.Exists(filepath.Join("/in/results", name, batch.ShardNumberFile))
				assert.False(t, exists)
			}

			exists, _ := fs.Exists("/in/reducers")
			assert.False(t, exists)
			assert.Equal(t, float64(tt.rounds), testutil.ToFloat64(params.Metrics.RoundsCompleted))

			kinds := recorder.kinds()
			require.NotEmpty(t, kinds)
			assert.Equal(t, journal.RunStarted, kinds[0])
			assert.Equal(t, journal.RunSucceeded, kinds[len(kinds)-1])
			for _, ev := range recorder.events {
				assert.Equal(t, res.RunID, ev.RunID)
				assert.Equal(t, params.Clock.Now().UTC(), ev.At)
			}
		})
	}
}

func TestDriverLogsRealIterationTotal(t *testing.T) {
	fs := newMemFS()
	seedReducers(fs, "/in/reducers", 8)
	logger, hook := logrustest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	params := newTestParams(fs, newSimulatingEngine(t, fs))
	params.Logger = logger

	_, err := NewDriver(Options{Shards: 1, Reducers: 8, Fanout: 2, InputDir: "/in"}, params).
		Run(context.Background())
	require.NoError(t, err)

	var merges []string
	for _, entry := range hook.AllEntries() {
		if entry.Data["action"] == "treemerge_round" && strings.HasPrefix(entry.Message, "merging") {
			merges = append(merges, fmt.Sprintf("%v/%v", entry.Data["iteration"], entry.Data["total_iterations"]))
		}
	}
	assert.Equal(t, []string{"1/3", "2/3", "3/3"}, merges)
}

func TestDriverConfigurationErrorsBeforeAnyWork(t *testing.T) {
	fs := newMemFS()
	seedReducers(fs, "/in/reducers", 64)
	engine := &fakeEngine{}

	reg := prometheus.NewPedanticRegistry()
	params := newTestParams(fs, engine)
	params.Metrics = monitoring.NewMergeMetrics(reg)

	_, err := NewDriver(Options{Shards: 2, Reducers: 64, Fanout: 4, InputDir: "/in"}, params).
		Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	engine.AssertNotCalled(t, "RunJob", mock.Anything, mock.Anything)
	assert.Empty(t, fs.mutated())
	assert.Equal(t, 1.0, testutil.ToFloat64(params.Metrics.FatalErrors.WithLabelValues("configuration")))
}

func TestDriverMissingReducers(t *testing.T) {
	fs := newMemFS()
	fs.seedDir("/in")

	_, err := NewDriver(Options{Shards: 1, Reducers: 2, InputDir: "/in"}, newTestParams(fs, &fakeEngine{})).
		Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructural))
	assert.Contains(t, err.Error(), "/in/reducers does not exist")
}

func TestDriverValidate(t *testing.T) {
	fs := newMemFS()
	seedReducers(fs, "/in/reducers", 16)
	engine := &fakeEngine{}
	params := newTestParams(fs, engine)

	plan, err := NewDriver(Options{Shards: 1, Reducers: 16, Fanout: 4, InputDir: "/in"}, params).Validate()
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Iterations())
	assert.Equal(t, 4, plan.Fanout)

	_, err = NewDriver(Options{Shards: 3, Reducers: 16, InputDir: "/in"}, params).Validate()
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewDriver(Options{Shards: 1, Reducers: 16, InputDir: "/other"}, params).Validate()
	assert.True(t, errors.Is(err, ErrStructural))

	_, err = NewDriver(Options{Shards: 1, Reducers: 16}, params).Validate()
	assert.True(t, errors.Is(err, ErrConfiguration))

	engine.AssertNotCalled(t, "RunJob", mock.Anything, mock.Anything)
	assert.Empty(t, fs.mutated())
}

func TestDriverEngineFailureStopsRounds(t *testing.T) {
	fs := newMemFS()
	seedReducers(fs, "/in/reducers", 16)

	engine := &fakeEngine{}
	engine.On("RunJob", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		simulateJob(t, fs, args.Get(1).(batch.Job))
	}).Return(nil).Once()
	engine.On("RunJob", mock.Anything, mock.Anything).Return(errors.New("mapper crashed")).Once()

	recorder := &memRecorder{}
	params := newTestParams(fs, engine)
	params.Recorder = recorder

	_, err := NewDriver(Options{Shards: 1, Reducers: 16, Fanout: 2, InputDir: "/in"}, params).
		Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskExecution))
	assert.Contains(t, err.Error(), "merge iteration 2/4 in phase SUBMITTED")
	engine.AssertNumberOfCalls(t, "RunJob", 2)

	// round one was promoted, nothing happened after the failure
	assert.Len(t, fs.children("/in/reducers"), 8)
	exists, _ := fs.Exists("/in/results")
	assert.False(t, exists)
	var renames int
	for _, m := range fs.mutated() {
		if strings.HasPrefix(m, "rename") {
			renames++
		}
	}
	assert.Equal(t, 1, renames)

	kinds := recorder.kinds()
	assert.Equal(t, journal.RunFailed, kinds[len(kinds)-1])
}

func TestDriverResultsAlreadyExist(t *testing.T) {
	fs := newMemFS()
	seedReducers(fs, "/in/reducers", 2)
	fs.seedDir("/in/results")

	_, err := NewDriver(Options{Shards: 2, Reducers: 2, InputDir: "/in"}, newTestParams(fs, &fakeEngine{})).
		Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructural))
	assert.Equal(t, "structural", KindOf(err))
}
