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

package common

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrNotDir          = errors.New("not a directory")
	ErrIsDir           = errors.New("is a directory")
	ErrNotEmpty        = errors.New("directory not empty")
	ErrInvalidPath     = errors.New("invalid path")
	ErrReadOnly        = errors.New("read-only filesystem")
	ErrClosed          = errors.New("filesystem closed")
	ErrIO              = errors.New("I/O error")
	ErrCoWDisabled     = errors.New("copy-on-write is not enabled")
	ErrJournalDisabled = errors.New("journaling is not enabled")
	ErrFlushFailed     = errors.New("batch flush failed")
)

// CorruptionError reports on-disk state that failed validation: a bad magic,
// a checksum mismatch, or a record length above the hard ceiling. The request
// that hit it fails; the filesystem stays mountable.
type CorruptionError struct {
	Reason   string
	Observed uint64
	Limit    uint64
}

func (e *CorruptionError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("corruption: %s (observed %d, limit %d)", e.Reason, e.Observed, e.Limit)
	}
	return fmt.Sprintf("corruption: %s", e.Reason)
}

// IsCorruption reports whether err is (or wraps) a CorruptionError.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IterationLimitError aborts a multi-block read whose iteration count exceeded
// ceil(requested/blockSize) plus the safety margin. It carries enough state to
// diagnose the runaway loop without re-running it.
type IterationLimitError struct {
	BytesRead      uint64
	BytesRemaining uint64
	BlockIndex     int
	Limit          int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("iteration limit exceeded: read %d bytes, %d remaining, block %d, limit %d iterations",
		e.BytesRead, e.BytesRemaining, e.BlockIndex, e.Limit)
}

// RecoveryError reports that journal replay stopped at an unverifiable entry.
// The filesystem mounts read-only; TxID names the transaction where replay
// stopped.
type RecoveryError struct {
	TxID   uint64
	Reason string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("journal recovery stopped at transaction %d: %s", e.TxID, e.Reason)
}

// CapacityError reports that a bounded resource (cache, write batch) is full.
// Callers normally react with a forced eviction or flush; it only surfaces
// when that reaction itself fails.
type CapacityError struct {
	Kind     string
	Size     int
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s full: %d of %d", e.Kind, e.Size, e.Capacity)
}
