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

// Package journal persists the events of merge runs in a bolt database so
// that operators can inspect how far a failed run got.
package journal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	entjournal "github.com/weaviate/treemerge/entities/journal"
	"github.com/weaviate/treemerge/usecases/treemerge"
)

const (
	runsBucket = "runs"
	// another process holding the journal makes Open fail after this long
	openTimeout = time.Second
)

// Repo stores one nested bucket per run below the runs bucket. Events are
// keyed by the big-endian bucket sequence, so iteration yields them in the
// order they were recorded.
type Repo struct {
	logger logrus.FieldLogger
	clock  clockwork.Clock
	path   string

	sync.Mutex
	db *bolt.DB
}

func NewRepo(path string, logger logrus.FieldLogger, clock clockwork.Clock) (*Repo, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &Repo{
		logger: logger,
		clock:  clock,
		path:   path,
	}

	return r, r.init()
}

func (r *Repo) init() error {
	if err := os.MkdirAll(filepath.Dir(r.path), os.ModePerm); err != nil {
		return errors.Wrapf(err, "create journal directory for %s", r.path)
	}

	db, err := bolt.Open(r.path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return errors.Wrapf(err, "open bolt at %s", r.path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return errors.Wrapf(err, "create bucket %q", runsBucket)
	}

	r.db = db
	return nil
}

func (r *Repo) Path() string {
	return r.path
}

// Record appends ev to the journal of ev.RunID, assigning its sequence
// number and, if missing, its timestamp.
func (r *Repo) Record(ev entjournal.Event) error {
	if ev.RunID == "" {
		return errors.New("journal event without run id")
	}
	if ev.At.IsZero() {
		ev.At = r.clock.Now().UTC()
	}

	r.Lock()
	defer r.Unlock()
	if r.db == nil {
		return errors.New("journal is closed")
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		run, err := tx.Bucket([]byte(runsBucket)).CreateBucketIfNotExists([]byte(ev.RunID))
		if err != nil {
			return errors.Wrapf(err, "create bucket for run %s", ev.RunID)
		}

		seq, err := run.NextSequence()
		if err != nil {
			return errors.Wrap(err, "next sequence")
		}
		ev.Seq = seq

		value, err := msgpack.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, "marshal event")
		}
		return run.Put(seqKey(seq), value)
	})
}

// Events returns the events of a run in the order they were recorded.
func (r *Repo) Events(runID string) ([]entjournal.Event, error) {
	r.Lock()
	defer r.Unlock()
	if r.db == nil {
		return nil, errors.New("journal is closed")
	}

	var events []entjournal.Event
	err := r.db.View(func(tx *bolt.Tx) error {
		run := tx.Bucket([]byte(runsBucket)).Bucket([]byte(runID))
		if run == nil {
			return errors.Errorf("no journal for run %s", runID)
		}
		return run.ForEach(func(_, v []byte) error {
			var ev entjournal.Event
			if err := msgpack.Unmarshal(v, &ev); err != nil {
				return errors.Wrap(err, "unmarshal event")
			}
			events = append(events, ev)
			return nil
		})
	})
	return events, err
}

// Runs lists the ids of all journaled runs.
func (r *Repo) Runs() ([]string, error) {
	r.Lock()
	defer r.Unlock()
	if r.db == nil {
		return nil, errors.New("journal is closed")
	}

	var runs []string
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			if v == nil {
				runs = append(runs, string(k))
			}
			return nil
		})
	})
	return runs, err
}

func (r *Repo) Close() error {
	r.Lock()
	defer r.Unlock()
	if r.db == nil {
		return nil
	}

	err := r.db.Close()
	r.db = nil
	if err != nil {
		return errors.Wrapf(err, "close bolt at %s", r.path)
	}
	r.logger.WithField("action", "journal_close").WithField("path", r.path).Debug("journal closed")
	return nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

var _ = treemerge.Recorder(&Repo{})
