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

// Package journal is the write-ahead journal. Mutations are appended as
// checksummed entries grouped into transactions; only transactions that
// reach a commit entry are applied during replay, so a crash between
// journal append and store write loses at most the uncommitted tail.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"eclipsefs/internal/common"
)

// Magic opens every journal file.
const Magic = "ECLIPSEFS_JOURNAL"

// Suffix is appended to the image path to name its sidecar journal.
const Suffix = ".journal"

// DefaultMaxPayload bounds a single journal entry's payload. A record can
// never exceed the on-disk record ceiling, so this matches it.
const DefaultMaxPayload = 16 << 20

// Op is the kind of a journal entry.
type Op uint8

const (
	// OpWrite records a full node record image for an inode.
	OpWrite Op = 1

	// OpDelete records the removal of an inode's record.
	OpDelete Op = 2

	// OpCommit marks its transaction durable; replay applies the
	// transaction's buffered entries.
	OpCommit Op = 3

	// OpRollback abandons its transaction; replay discards it.
	OpRollback Op = 4
)

func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	case OpCommit:
		return "commit"
	case OpRollback:
		return "rollback"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// entryHeaderSize is txid u64 + op u8 + inode u64 + payload length u32.
const entryHeaderSize = 8 + 1 + 8 + 4

// Entry is one journal record.
type Entry struct {
	TxID    uint64
	Op      Op
	Inode   uint64
	Payload []byte
}

// RecoveryReport summarizes a replay pass.
type RecoveryReport struct {
	Applied   int // committed transactions applied
	Discarded int // uncommitted or rolled-back transactions dropped
	Entries   int // total entries scanned
}

// Journal is a write-ahead log backed by a sidecar file next to the
// image. Safe for concurrent use.
type Journal struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	nextTx     uint64
	maxPayload int
	closed     bool
}

// Option configures a Journal.
type Option func(*Journal)

// WithMaxPayload overrides the per-entry payload ceiling.
func WithMaxPayload(n int) Option {
	return func(j *Journal) { j.maxPayload = n }
}

// Open opens or creates the journal at path. Existing entries are kept;
// Replay consumes them and Reset truncates.
func Open(path string, opts ...Option) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{
		file:       f,
		path:       path,
		nextTx:     1,
		maxPayload: DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(j)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat journal: %w", err)
	}
	if info.Size() == 0 {
		if _, err := f.Write([]byte(Magic)); err != nil {
			f.Close()
			return nil, fmt.Errorf("write journal magic: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("sync journal: %w", err)
		}
		return j, nil
	}

	magic := make([]byte, len(Magic))
	if _, err := f.ReadAt(magic, 0); err != nil || string(magic) != Magic {
		f.Close()
		return nil, &common.CorruptionError{Reason: "bad journal magic"}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek journal: %w", err)
	}
	return j, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Begin starts a transaction and returns its id.
func (j *Journal) Begin() (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, common.ErrClosed
	}
	tx := j.nextTx
	j.nextTx++
	return tx, nil
}

// Append writes one entry for the transaction. The entry is durable only
// after Commit.
func (j *Journal) Append(tx uint64, op Op, inode uint64, payload []byte) error {
	if len(payload) > j.maxPayload {
		return &common.CapacityError{Kind: "journal payload", Size: len(payload), Capacity: j.maxPayload}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return common.ErrClosed
	}
	return j.writeEntry(Entry{TxID: tx, Op: op, Inode: inode, Payload: payload})
}

// Commit appends the commit marker and syncs the journal to stable
// storage. After Commit returns, replay will apply the transaction.
func (j *Journal) Commit(tx uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return common.ErrClosed
	}
	if err := j.writeEntry(Entry{TxID: tx, Op: OpCommit}); err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Sync flushes appended entries to stable storage without committing
// them. The flush protocol calls it so intent is durable before any
// store bytes change.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return common.ErrClosed
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Rollback appends the rollback marker; replay discards the transaction.
func (j *Journal) Rollback(tx uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return common.ErrClosed
	}
	return j.writeEntry(Entry{TxID: tx, Op: OpRollback})
}

func (j *Journal) writeEntry(e Entry) error {
	buf := make([]byte, entryHeaderSize+len(e.Payload)+4)
	binary.LittleEndian.PutUint64(buf[0:8], e.TxID)
	buf[8] = byte(e.Op)
	binary.LittleEndian.PutUint64(buf[9:17], e.Inode)
	binary.LittleEndian.PutUint32(buf[17:21], uint32(len(e.Payload)))
	copy(buf[entryHeaderSize:], e.Payload)
	crc := crc32.ChecksumIEEE(e.Payload)
	binary.LittleEndian.PutUint32(buf[entryHeaderSize+len(e.Payload):], crc)
	if _, err := j.file.Write(buf); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Replay scans the journal from the start and calls apply for every entry
// of every committed transaction, in append order. Uncommitted and rolled
// back transactions are discarded. A checksum mismatch stops the scan:
// entries up to that point are still honored, and the error wraps a
// RecoveryError naming the damaged transaction. The caller decides how to
// degrade (typically by mounting read-only).
func (j *Journal) Replay(apply func(Entry) error) (RecoveryReport, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var report RecoveryReport
	if j.closed {
		return report, common.ErrClosed
	}

	offset := int64(len(Magic))
	pending := make(map[uint64][]Entry)
	order := []uint64{}
	committed := []uint64{}
	var scanErr error

	header := make([]byte, entryHeaderSize)
	for {
		if _, err := j.file.ReadAt(header, offset); err != nil {
			if !errors.Is(err, io.EOF) {
				scanErr = fmt.Errorf("read journal: %w", err)
			}
			// A torn entry header at the tail is expected after a crash.
			break
		}
		e := Entry{
			TxID:  binary.LittleEndian.Uint64(header[0:8]),
			Op:    Op(header[8]),
			Inode: binary.LittleEndian.Uint64(header[9:17]),
		}
		payloadLen := int(binary.LittleEndian.Uint32(header[17:21]))
		if payloadLen > j.maxPayload {
			scanErr = &common.RecoveryError{TxID: e.TxID, Reason: "entry payload exceeds ceiling"}
			break
		}
		body := make([]byte, payloadLen+4)
		if _, err := j.file.ReadAt(body, offset+entryHeaderSize); err != nil {
			// Torn payload write at the tail.
			break
		}
		e.Payload = body[:payloadLen]
		wantCRC := binary.LittleEndian.Uint32(body[payloadLen:])
		if crc32.ChecksumIEEE(e.Payload) != wantCRC {
			scanErr = &common.RecoveryError{TxID: e.TxID, Reason: "entry checksum mismatch"}
			break
		}
		offset += int64(entryHeaderSize + payloadLen + 4)
		report.Entries++

		switch e.Op {
		case OpCommit:
			committed = append(committed, e.TxID)
		case OpRollback:
			delete(pending, e.TxID)
			report.Discarded++
		default:
			if _, ok := pending[e.TxID]; !ok {
				order = append(order, e.TxID)
			}
			pending[e.TxID] = append(pending[e.TxID], e)
		}
		if e.TxID >= j.nextTx {
			j.nextTx = e.TxID + 1
		}
	}

	for _, tx := range committed {
		entries, ok := pending[tx]
		if !ok {
			continue
		}
		for _, e := range entries {
			if err := apply(e); err != nil {
				return report, fmt.Errorf("apply journal tx %d: %w", tx, err)
			}
		}
		delete(pending, tx)
		report.Applied++
	}
	for _, tx := range order {
		if _, ok := pending[tx]; ok {
			report.Discarded++
		}
	}

	log.WithFields(log.Fields{
		"applied":   report.Applied,
		"discarded": report.Discarded,
		"entries":   report.Entries,
	}).Info("journal replay complete")
	return report, scanErr
}

// Reset truncates the journal back to just the magic. Called after replay
// once the recovered state has been flushed, and after clean flushes to
// keep the sidecar small.
func (j *Journal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return common.ErrClosed
	}
	if err := j.file.Truncate(int64(len(Magic))); err != nil {
		return fmt.Errorf("truncate journal: %w", err)
	}
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek journal: %w", err)
	}
	return j.file.Sync()
}

// Close syncs and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.file.Sync(); err != nil {
		j.file.Close()
		return fmt.Errorf("sync journal: %w", err)
	}
	return j.file.Close()
}
