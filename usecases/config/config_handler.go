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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/weaviate/treemerge/entities/shardname"
)

const DefaultMetricsAddr = ":2112"

// Flags are the command line options. They mirror the options of the
// merge driver this tool replaces: -s, -r, -i and -f.
type Flags struct {
	ConfigFile string `long:"config-file" description:"path to a yaml or json config file"`

	Shards    int    `short:"s" long:"shards" description:"number of shards to end up with"`
	Reducers  int    `short:"r" long:"reducers" description:"number of reducer outputs in <input-dir>/reducers"`
	InputDir  string `short:"i" long:"input-dir" description:"directory holding the reducers directory"`
	Fanout    int    `short:"f" long:"fanout" description:"maximum number of shards merged by one task (default: unbounded)"`
	Overwrite bool   `short:"o" long:"overwrite" description:"delete an existing results directory before merging"`

	Parallelism int    `long:"parallelism" description:"number of merge tasks running at once (default: number of CPUs)"`
	JournalPath string `long:"journal-path" description:"bolt file to journal the run to"`
	MetricsAddr string `long:"metrics-addr" description:"address to serve prometheus metrics on"`
	Verify      bool   `long:"verify" description:"verify segment checksums of the published shards"`

	LogLevel  string `long:"log-level" description:"trace, debug, info, warn or error"`
	LogFormat string `long:"log-format" description:"json or text"`
}

// Config is the merge configuration.
type Config struct {
	Shards    int    `json:"shards" yaml:"shards"`
	Reducers  int    `json:"reducers" yaml:"reducers"`
	InputDir  string `json:"input_dir" yaml:"input_dir"`
	Fanout    int    `json:"fanout" yaml:"fanout"`
	Overwrite bool   `json:"overwrite" yaml:"overwrite"`
	// Prefix is the name prefix of shard directories.
	Prefix string `json:"prefix" yaml:"prefix"`

	Parallelism int        `json:"parallelism" yaml:"parallelism"`
	Journal     Journal    `json:"journal" yaml:"journal"`
	Monitoring  Monitoring `json:"monitoring" yaml:"monitoring"`
	Verify      bool       `json:"verify" yaml:"verify"`

	Logging Logging `json:"logging" yaml:"logging"`
}

type Journal struct {
	Path string `json:"path" yaml:"path"`
}

type Monitoring struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

func (c *Config) Validate() error {
	if c.Shards < 1 {
		return errors.Errorf("shards must be positive, got %d", c.Shards)
	}
	if c.Reducers < 1 {
		return errors.Errorf("reducers must be positive, got %d", c.Reducers)
	}
	if c.InputDir == "" {
		return errors.New("input dir is required")
	}
	if c.Parallelism < 0 {
		return errors.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	if c.Prefix == "" || filepath.Base(c.Prefix) != c.Prefix {
		return errors.Errorf("prefix %q is not a valid directory name prefix", c.Prefix)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

func (l Logging) Validate() error {
	if l.Level != "" {
		if _, err := logrus.ParseLevel(l.Level); err != nil {
			return errors.Wrap(err, "logging level")
		}
	}
	switch l.Format {
	case "", "json", "text":
		return nil
	default:
		return errors.Errorf("unsupported log format %q, use json or text", l.Format)
	}
}

// MergeConfig is the fully loaded configuration of a run.
type MergeConfig struct {
	Config Config
}

func defaults() Config {
	return Config{
		Prefix: shardname.DefaultPrefix,
		Monitoring: Monitoring{
			Addr: DefaultMetricsAddr,
		},
	}
}

// LoadConfig from config locations. The load order for configuration values
// is the following
// 1. Config file
// 2. Environment variables
// 3. Command line flags
// If a config option is specified multiple times in different locations, the
// latest one will be used in this order.
func (f *MergeConfig) LoadConfig(flags *Flags, logger logrus.FieldLogger) error {
	f.Config = defaults()

	if flags.ConfigFile != "" {
		file, err := os.ReadFile(flags.ConfigFile)
		if err != nil {
			return configErr(err)
		}
		logger.WithField("action", "config_load").
			WithField("config_file_path", flags.ConfigFile).
			Debug("loading config file")
		if err := f.parseConfigFile(file, flags.ConfigFile); err != nil {
			return configErr(err)
		}
	}

	if err := FromEnv(&f.Config); err != nil {
		return configErr(err)
	}

	f.fromFlags(flags)

	if err := f.Config.Validate(); err != nil {
		return configErr(err)
	}
	return nil
}

func (f *MergeConfig) parseConfigFile(file []byte, name string) error {
	m := regexp.MustCompile(`.*\.(\w+)$`).FindStringSubmatch(name)
	if len(m) < 2 {
		return fmt.Errorf("config file does not have a file ending, got '%s'", name)
	}

	switch m[1] {
	case "json":
		if err := json.Unmarshal(file, &f.Config); err != nil {
			return fmt.Errorf("error unmarshalling the json config file: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(file, &f.Config); err != nil {
			return fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension '%s', use .yaml or .json", m[1])
	}

	return nil
}

// fromFlags parses values from flags given as parameter and overrides values
// in the config
func (f *MergeConfig) fromFlags(flags *Flags) {
	if flags.Shards > 0 {
		f.Config.Shards = flags.Shards
	}
	if flags.Reducers > 0 {
		f.Config.Reducers = flags.Reducers
	}
	if flags.InputDir != "" {
		f.Config.InputDir = flags.InputDir
	}
	if flags.Fanout > 0 {
		f.Config.Fanout = flags.Fanout
	}
	if flags.Overwrite {
		f.Config.Overwrite = true
	}
	if flags.Parallelism > 0 {
		f.Config.Parallelism = flags.Parallelism
	}
	if flags.JournalPath != "" {
		f.Config.Journal.Path = flags.JournalPath
	}
	if flags.MetricsAddr != "" {
		f.Config.Monitoring.Enabled = true
		f.Config.Monitoring.Addr = flags.MetricsAddr
	}
	if flags.Verify {
		f.Config.Verify = true
	}
	if flags.LogLevel != "" {
		f.Config.Logging.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		f.Config.Logging.Format = flags.LogFormat
	}
}

func configErr(err error) error {
	return fmt.Errorf("invalid config: %w", err)
}
