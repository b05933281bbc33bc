// Copyright 2025 EclipseFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fs

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"eclipsefs/internal/common"
	"eclipsefs/internal/journal"
	"eclipsefs/internal/metrics"
	"eclipsefs/internal/store"
)

// writerState is the batching writer's lifecycle state.
type writerState uint8

const (
	writerIdle writerState = iota
	writerBatching
	writerFlushing
	writerFlushFailed
)

func (s writerState) String() string {
	switch s {
	case writerIdle:
		return "idle"
	case writerBatching:
		return "batching"
	case writerFlushing:
		return "flushing"
	case writerFlushFailed:
		return "flush-failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// batchOp is one pending mutation.
type batchOp struct {
	ino     uint64
	payload []byte // encoded record payload; nil for deletes
	delete  bool
}

// Writer batches record mutations and flushes them as a unit: journal
// first, then store, then the journal commit marker, so a crash before
// the commit leaves replayable intent rather than a half-applied batch.
// A failed flush parks the writer in a terminal failed state that
// surfaces on every later call instead of being retried silently.
type Writer struct {
	store   *store.NodeStore
	journal *journal.Journal // nil when journaling is off
	metrics *metrics.Collector

	capacity int
	batch    []batchOp
	state    writerState
}

// NewWriter builds a writer flushing automatically after capacity pending
// operations.
func NewWriter(st *store.NodeStore, capacity int, m *metrics.Collector) *Writer {
	return &Writer{
		store:    st,
		capacity: capacity,
		metrics:  m,
		state:    writerIdle,
	}
}

// AttachJournal routes future flushes through the write-ahead journal.
// Store writes switch to fresh offsets so a torn rewrite can never
// damage a record that an earlier commit made durable.
func (w *Writer) AttachJournal(j *journal.Journal) {
	w.journal = j
	w.store.EnableAppendOnly()
}

// State reports the writer's current lifecycle state as a string.
func (w *Writer) State() string { return w.state.String() }

// Pending reports the number of batched operations.
func (w *Writer) Pending() int { return len(w.batch) }

// Write queues an encoded record payload for ino. The batch flushes
// automatically when it reaches capacity.
func (w *Writer) Write(ino uint64, payload []byte) error {
	return w.enqueue(batchOp{ino: ino, payload: payload})
}

// Delete queues the removal of ino's record.
func (w *Writer) Delete(ino uint64) error {
	return w.enqueue(batchOp{ino: ino, delete: true})
}

func (w *Writer) enqueue(op batchOp) error {
	if w.state == writerFlushFailed {
		return fmt.Errorf("writer is %s: %w", w.state, common.ErrFlushFailed)
	}
	w.batch = append(w.batch, op)
	w.state = writerBatching
	if len(w.batch) >= w.capacity {
		return w.Flush()
	}
	return nil
}

// Flush makes the current batch durable. From any reader's point of view
// the flush is atomic: the journal commit is written only after every
// store write landed, and recovery re-applies a committed batch in full.
func (w *Writer) Flush() error {
	if w.state == writerFlushFailed {
		return fmt.Errorf("writer is %s: %w", w.state, common.ErrFlushFailed)
	}
	if len(w.batch) == 0 {
		w.state = writerIdle
		return nil
	}
	w.state = writerFlushing

	if err := w.flushBatch(); err != nil {
		w.state = writerFlushFailed
		w.metrics.FlushFailure()
		log.WithError(err).WithField("pending", len(w.batch)).Error("batch flush failed")
		return fmt.Errorf("%w: %v", common.ErrFlushFailed, err)
	}

	w.batch = w.batch[:0]
	w.state = writerIdle
	w.metrics.BatchFlush()
	return nil
}

func (w *Writer) flushBatch() error {
	var tx uint64
	if w.journal != nil {
		var err error
		if tx, err = w.journal.Begin(); err != nil {
			return err
		}
		for _, op := range w.batch {
			jop := journal.OpWrite
			if op.delete {
				jop = journal.OpDelete
			}
			if err := w.journal.Append(tx, jop, op.ino, op.payload); err != nil {
				return err
			}
			w.metrics.JournalAppend()
		}
		// Intent must be on stable storage before any store byte moves.
		if err := w.journal.Sync(); err != nil {
			return err
		}
	}

	for _, op := range w.batch {
		var err error
		if op.delete {
			err = w.store.DeleteRecord(op.ino)
		} else {
			err = w.store.WriteRecord(op.ino, op.payload)
		}
		if err != nil {
			return err
		}
	}

	// Commit strictly after every store write: a crash before the commit
	// marker discards the batch on replay, a crash after it re-applies
	// the batch in full. Either way no partial batch survives.
	if w.journal != nil {
		if err := w.journal.Commit(tx); err != nil {
			return err
		}
		w.metrics.JournalCommit()
	}
	if err := w.store.Flush(); err != nil {
		return err
	}
	if w.journal != nil {
		// The batch is applied and synced; the log can restart empty.
		if err := w.journal.Reset(); err != nil {
			return err
		}
	}
	return nil
}
