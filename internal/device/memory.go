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

package device

import (
	"errors"
	"io"
)

// ErrDeviceFault is returned by a MemDevice after an injected fault trips.
var ErrDeviceFault = errors.New("device fault injected")

// MemDevice is an in-memory Device for tests. It grows on write and can
// inject faults: failing writes after a countdown (torn-write scenarios)
// or serving zero-progress reads (runaway-loop scenarios).
type MemDevice struct {
	buf []byte

	// failWritesAfter, when >= 0, counts down on each WriteAt; the write
	// that hits zero and everything after it fails.
	failWritesAfter int

	// stallReads makes ReadAt return (0, nil), violating the io.ReaderAt
	// contract the way a defective driver would.
	stallReads bool

	// tearNextWrite makes the next WriteAt persist only the first half of
	// its buffer before failing, like a write interrupted by power loss.
	tearNextWrite bool
}

// NewMemDevice returns an in-memory device pre-sized to size bytes.
func NewMemDevice(size int64) *MemDevice {
	return &MemDevice{buf: make([]byte, size), failWritesAfter: -1}
}

// FailWritesAfter arms the write fault: the next n writes succeed, all
// later ones fail.
func (d *MemDevice) FailWritesAfter(n int) {
	d.failWritesAfter = n
}

// StallReads makes every subsequent ReadAt report zero progress.
func (d *MemDevice) StallReads(stall bool) {
	d.stallReads = stall
}

// TearNextWrite arms a one-shot torn write: the next WriteAt lands only
// the first half of its bytes and then fails.
func (d *MemDevice) TearNextWrite() {
	d.tearNextWrite = true
}

// Bytes exposes the raw backing buffer for test assertions and for
// corrupting specific offsets.
func (d *MemDevice) Bytes() []byte {
	return d.buf
}

// ReadAt implements io.ReaderAt.
func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.stallReads {
		return 0, nil
	}
	if off >= int64(len(d.buf)) {
		return 0, io.EOF
	}
	n := copy(p, d.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt, growing the buffer as needed.
func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	if d.failWritesAfter >= 0 {
		if d.failWritesAfter == 0 {
			return 0, ErrDeviceFault
		}
		d.failWritesAfter--
	}
	if d.tearNextWrite {
		d.tearNextWrite = false
		half := p[:len(p)/2]
		if n, err := d.WriteAt(half, off); err != nil {
			return n, err
		}
		return len(half), ErrDeviceFault
	}
	end := off + int64(len(p))
	if end > int64(len(d.buf)) {
		grown := make([]byte, end)
		copy(grown, d.buf)
		d.buf = grown
	}
	copy(d.buf[off:], p)
	return len(p), nil
}

// Size returns the current buffer size.
func (d *MemDevice) Size() (int64, error) {
	return int64(len(d.buf)), nil
}

// Sync is a no-op for memory.
func (d *MemDevice) Sync() error { return nil }

// Close is a no-op for memory.
func (d *MemDevice) Close() error { return nil }
