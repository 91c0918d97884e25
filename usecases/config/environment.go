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

package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"

	entcfg "github.com/weaviate/treemerge/entities/config"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Config) error {
	if err := parsePositiveInt("TREEMERGE_SHARDS", func(v int) { config.Shards = v }); err != nil {
		return err
	}

	if err := parsePositiveInt("TREEMERGE_REDUCERS", func(v int) { config.Reducers = v }); err != nil {
		return err
	}

	if err := parsePositiveInt("TREEMERGE_FANOUT", func(v int) { config.Fanout = v }); err != nil {
		return err
	}

	if err := parsePositiveInt("TREEMERGE_PARALLELISM", func(v int) { config.Parallelism = v }); err != nil {
		return err
	}

	if v := os.Getenv("TREEMERGE_INPUT_DIR"); v != "" {
		config.InputDir = v
	}

	if v := os.Getenv("TREEMERGE_PREFIX"); v != "" {
		config.Prefix = v
	}

	if entcfg.Enabled(os.Getenv("TREEMERGE_OVERWRITE")) {
		config.Overwrite = true
	}

	if entcfg.Enabled(os.Getenv("TREEMERGE_VERIFY")) {
		config.Verify = true
	}

	if v := os.Getenv("TREEMERGE_JOURNAL_PATH"); v != "" {
		config.Journal.Path = v
	}

	if entcfg.Enabled(os.Getenv("PROMETHEUS_MONITORING_ENABLED")) {
		config.Monitoring.Enabled = true
	}

	if v := os.Getenv("TREEMERGE_METRICS_ADDR"); v != "" {
		config.Monitoring.Enabled = true
		config.Monitoring.Addr = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}

	return nil
}

func parsePositiveInt(envName string, cb func(val int)) error {
	if v := os.Getenv(envName); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s as int", envName)
		}
		if asInt <= 0 {
			return errors.Errorf("%s must be a positive integer, got %d", envName, asInt)
		}

		cb(asInt)
	}

	return nil
}
