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

package journal

import "time"

// Kind names what happened in a merge run.
type Kind string

const (
	RunStarted     Kind = "run_started"
	RoundPhase     Kind = "round_phase"
	ShardStaged    Kind = "shard_staged"
	ShardRenamed   Kind = "shard_renamed"
	ShardPublished Kind = "shard_published"
	RunSucceeded   Kind = "run_succeeded"
	RunFailed      Kind = "run_failed"
)

// Event is one entry of a run journal. Events of a run are ordered by Seq.
type Event struct {
	RunID     string    `msgpack:"run_id"`
	Seq       uint64    `msgpack:"seq"`
	Kind      Kind      `msgpack:"kind"`
	Iteration int       `msgpack:"iteration,omitempty"`
	Path      string    `msgpack:"path,omitempty"`
	Detail    string    `msgpack:"detail,omitempty"`
	At        time.Time `msgpack:"at"`
}
