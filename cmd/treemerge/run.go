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

package main

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	enginelocal "github.com/weaviate/treemerge/adapters/engine/local"
	fslocal "github.com/weaviate/treemerge/adapters/filesystem/local"
	journalrepo "github.com/weaviate/treemerge/adapters/repos/journal"
	"github.com/weaviate/treemerge/entities/batch"
	"github.com/weaviate/treemerge/entities/concurrency"
	enterrors "github.com/weaviate/treemerge/entities/errors"
	"github.com/weaviate/treemerge/usecases/config"
	"github.com/weaviate/treemerge/usecases/mergetask"
	"github.com/weaviate/treemerge/usecases/monitoring"
	"github.com/weaviate/treemerge/usecases/treemerge"
)

// run loads the configuration, wires the local adapters and merges.
func run(ctx context.Context, flags *config.Flags, logger *logrus.Logger) (*treemerge.Result, error) {
	var mc config.MergeConfig
	if err := mc.LoadConfig(flags, logger); err != nil {
		return nil, err
	}
	cfg := mc.Config
	configureLogger(logger, cfg.Logging)

	inputDir, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve input dir %q", cfg.InputDir)
	}

	var (
		clock = clockwork.NewRealClock()
		fs    = fslocal.New(logger)
		reg   prometheus.Registerer
	)
	if cfg.Monitoring.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		shutdown := serveMetrics(cfg.Monitoring.Addr, registry, logger)
		defer shutdown()
		reg = registry
	}
	metrics := monitoring.NewMergeMetrics(reg)

	if cfg.Parallelism > 0 {
		ctx = concurrency.CtxWithBudget(ctx, cfg.Parallelism)
	}

	params := treemerge.Params{
		FS:      fs,
		Engine:  enginelocal.New(logger, metrics, 0),
		Mapper:  mergetask.NewMerger(logger, metrics),
		Logger:  logger,
		Metrics: metrics,
		Clock:   clock,
	}
	if cfg.Journal.Path != "" {
		repo, err := journalrepo.NewRepo(cfg.Journal.Path, logger, clock)
		if err != nil {
			return nil, errors.Wrap(err, "open journal")
		}
		defer repo.Close()
		params.Recorder = repo
	}

	driver := treemerge.NewDriver(treemerge.Options{
		Shards:   cfg.Shards,
		Reducers: cfg.Reducers,
		Fanout:   cfg.Fanout,
		InputDir: inputDir,
		Prefix:   cfg.Prefix,
	}, params)

	// previous results are only removed for a run that can start
	if _, err := driver.Validate(); err != nil {
		return nil, err
	}
	if cfg.Overwrite {
		layout := treemerge.Layout{InputDir: inputDir, Prefix: cfg.Prefix}
		if err := removeResults(fs, layout.ResultsDir(), logger); err != nil {
			return nil, err
		}
	}

	res, err := driver.Run(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Verify {
		if err := verify(res, logger); err != nil {
			return res, err
		}
	}
	return res, nil
}

func removeResults(fs *fslocal.FS, resultsDir string, logger logrus.FieldLogger) error {
	exists, err := fs.Exists(resultsDir)
	if err != nil {
		return errors.Wrapf(err, "stat %s", resultsDir)
	}
	if !exists {
		return nil
	}

	logger.WithField("action", "treemerge_overwrite").
		WithField("path", resultsDir).
		Info("deleting existing results")
	return fs.RemoveAll(resultsDir)
}

// verify rechecks the segment checksums of every published shard. Shards
// that were never merged carry no segments manifest and are skipped.
func verify(res *treemerge.Result, logger logrus.FieldLogger) error {
	if res.Rounds == 0 {
		logger.WithField("action", "treemerge_verify").Info("no merge rounds ran, nothing to verify")
		return nil
	}

	for _, name := range res.Shards {
		segments, err := mergetask.Verify(filepath.Join(res.ResultsDir, name, batch.IndexDir))
		if err != nil {
			return errors.Wrapf(err, "verify shard %s", name)
		}
		logger.WithField("action", "treemerge_verify").
			WithField("shard", name).
			WithField("segments", len(segments)).
			Debug("shard verified")
	}
	return nil
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger logrus.FieldLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := enterrors.GoWrapper(func() {
		logger.WithField("action", "metrics_serve").WithField("addr", addr).Info("serving prometheus metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithField("action", "metrics_serve").WithError(err).Error("metrics server stopped")
		}
	}, logger)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithField("action", "metrics_serve").WithError(err).Warn("shutdown metrics server")
		}
		<-done
	}
}
