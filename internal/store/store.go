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

// Package store is the node store: the inode table plus the TLV record
// region on a block device. It validates every length field read from
// disk before sizing a buffer from it and bounds every multi-block read
// loop, so corrupted metadata fails a single request instead of taking
// the process down.
package store

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"eclipsefs/internal/common"
	"eclipsefs/internal/device"
	"eclipsefs/internal/format"
)

// DefaultBufferSize is the buffered I/O layer size for table and record
// transfers. Many logical record reads are served by one physical read.
const DefaultBufferSize = 256 * 1024

// NodeStore owns the image layout: header at offset 0, inode table right
// after it, records appended behind the table. Safe for concurrent use.
type NodeStore struct {
	mu  sync.Mutex
	dev device.Device

	header format.Header
	table  []format.InodeTableEntry
	index  map[uint64]int // inode -> table slot

	nextInode  uint64
	recordsEnd uint64 // append point in the record region
	bufSize    int
	blockSize  int
	cow        bool
	appendOnly bool
	dirty      bool
}

// Option configures a NodeStore.
type Option func(*NodeStore)

// WithBufferSize overrides the buffered I/O layer size.
func WithBufferSize(n int) Option {
	return func(s *NodeStore) { s.bufSize = n }
}

// WithBlockSize overrides the block granularity of record reads. Tests
// use small blocks to exercise the multi-block loop.
func WithBlockSize(n int) Option {
	return func(s *NodeStore) { s.blockSize = n }
}

// Create formats dev with an empty image sized for maxInodes entries.
func Create(dev device.Device, maxInodes uint32, opts ...Option) (*NodeStore, error) {
	if maxInodes == 0 {
		return nil, fmt.Errorf("store: max inodes must be positive")
	}
	s := newStore(dev, format.NewHeader(maxInodes), opts...)
	s.dirty = true
	if err := s.Flush(); err != nil {
		return nil, fmt.Errorf("format image: %w", err)
	}
	return s, nil
}

// Open loads an existing image from dev.
func Open(dev device.Device, opts ...Option) (*NodeStore, error) {
	hdrBuf := make([]byte, format.HeaderSize)
	if _, err := dev.ReadAt(hdrBuf, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	hdr, err := format.DecodeHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	s := newStore(dev, hdr, opts...)

	section := io.NewSectionReader(dev, int64(hdr.InodeTableOffset), int64(hdr.InodeTableSize))
	br := bufio.NewReaderSize(section, s.bufSize)
	entryBuf := make([]byte, format.TableEntrySize)
	for slot := range s.table {
		if _, err := io.ReadFull(br, entryBuf); err != nil {
			return nil, fmt.Errorf("read inode table slot %d: %w", slot, err)
		}
		entry := format.DecodeTableEntry(entryBuf)
		if entry.IsZero() {
			continue
		}
		if err := format.ValidateRecordLength(uint64(entry.Length)); err != nil {
			return nil, fmt.Errorf("inode table slot %d: %w", slot, err)
		}
		if entry.Offset < hdr.RecordsOffset() {
			return nil, &common.CorruptionError{
				Reason:   fmt.Sprintf("record for inode %d overlaps metadata region", entry.Inode),
				Observed: entry.Offset,
				Limit:    hdr.RecordsOffset(),
			}
		}
		s.table[slot] = entry
		s.index[entry.Inode] = slot
		if entry.Inode >= s.nextInode {
			s.nextInode = entry.Inode + 1
		}
		if end := entry.Offset + uint64(entry.Length); end > s.recordsEnd {
			s.recordsEnd = end
		}
	}
	log.WithFields(log.Fields{
		"inodes":     len(s.index),
		"max_inodes": hdr.MaxInodes(),
	}).Debug("node store opened")
	return s, nil
}

func newStore(dev device.Device, hdr format.Header, opts ...Option) *NodeStore {
	s := &NodeStore{
		dev:        dev,
		header:     hdr,
		table:      make([]format.InodeTableEntry, hdr.MaxInodes()),
		index:      make(map[uint64]int),
		nextInode:  format.RootInode,
		recordsEnd: hdr.RecordsOffset(),
		bufSize:    DefaultBufferSize,
		blockSize:  DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Device returns the backing device.
func (s *NodeStore) Device() device.Device {
	return s.dev
}

// AllocateInode hands out the next unused inode number.
func (s *NodeStore) AllocateInode() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ino := s.nextInode
	s.nextInode++
	return ino
}

// Contains reports whether the store has a record for ino.
func (s *NodeStore) Contains(ino uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[ino]
	return ok
}

// Inodes returns the inode numbers of all live records, unordered.
func (s *NodeStore) Inodes() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	inos := make([]uint64, 0, len(s.index))
	for ino := range s.index {
		inos = append(inos, ino)
	}
	return inos
}

// Len reports the number of live records.
func (s *NodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// MaxInodes returns the inode table capacity.
func (s *NodeStore) MaxInodes() uint32 {
	return s.header.MaxInodes()
}

// Header returns a copy of the image header.
func (s *NodeStore) Header() format.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header
}

// EnableCopyOnWrite switches the store to append-only record writes: a
// rewritten record always gets a fresh offset, so any frozen inode table
// copy keeps pointing at intact bytes.
func (s *NodeStore) EnableCopyOnWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cow = true
}

// CopyOnWrite reports whether append-only writes are active.
func (s *NodeStore) CopyOnWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cow
}

// EnableAppendOnly disables in-place record reuse without the rest of
// the copy-on-write semantics. Journaled writers need it: the previous
// record must survive on disk until the commit marker lands, otherwise
// a torn rewrite destroys committed data that replay cannot redo.
func (s *NodeStore) EnableAppendOnly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendOnly = true
}

// ReadRecord returns the TLV payload of ino's record. The table entry's
// length and the on-disk record header are both validated against the
// record ceiling before any allocation, and the block-read loop is
// iteration-bounded.
func (s *NodeStore) ReadRecord(ino uint64) ([]byte, error) {
	s.mu.Lock()
	entry, ok := s.entryLocked(ino)
	blockSize := s.blockSize
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("inode %d: %w", ino, common.ErrNotFound)
	}
	return s.readAtEntry(entry, blockSize)
}

// ReadRecordAt reads a record through an explicit table entry. Snapshot
// readers use it with entries from a frozen table copy.
func (s *NodeStore) ReadRecordAt(entry format.InodeTableEntry) ([]byte, error) {
	s.mu.Lock()
	blockSize := s.blockSize
	s.mu.Unlock()
	return s.readAtEntry(entry, blockSize)
}

func (s *NodeStore) readAtEntry(entry format.InodeTableEntry, blockSize int) ([]byte, error) {
	if err := format.ValidateRecordLength(uint64(entry.Length)); err != nil {
		return nil, err
	}
	buf := make([]byte, entry.Length)
	if err := readBounded(s.dev, int64(entry.Offset), buf, blockSize); err != nil {
		return nil, fmt.Errorf("read record for inode %d: %w", entry.Inode, err)
	}
	ino, size, err := format.DecodeRecordHeader(buf)
	if err != nil {
		return nil, err
	}
	if ino != entry.Inode {
		return nil, &common.CorruptionError{
			Reason:   fmt.Sprintf("record header inode %d does not match table entry %d", ino, entry.Inode),
			Observed: ino,
			Limit:    entry.Inode,
		}
	}
	if size != entry.Length {
		return nil, &common.CorruptionError{
			Reason:   "record header size does not match table entry",
			Observed: uint64(size),
			Limit:    uint64(entry.Length),
		}
	}
	return buf[format.RecordHeaderSize:], nil
}

// WriteRecord stores payload as ino's record. The record is rewritten in
// place when the new size fits the old slot; under copy-on-write or
// append-only mode it is always appended at a fresh offset. The inode
// table is updated in memory and persisted by Flush.
func (s *NodeStore) WriteRecord(ino uint64, payload []byte) error {
	total := uint64(format.RecordHeaderSize + len(payload))
	if err := format.ValidateRecordLength(total); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.index[ino]
	var offset uint64
	switch {
	case exists && !s.cow && !s.appendOnly && total <= uint64(s.table[slot].Length):
		offset = s.table[slot].Offset
	default:
		offset = s.recordsEnd
		s.recordsEnd += total
	}
	if !exists {
		free := -1
		for i := range s.table {
			if s.table[i].IsZero() {
				free = i
				break
			}
		}
		if free < 0 {
			return &common.CapacityError{
				Kind:     "inode table",
				Size:     len(s.index),
				Capacity: int(s.header.MaxInodes()),
			}
		}
		slot = free
		s.header.TotalInodes++
	}

	w := bufio.NewWriterSize(io.NewOffsetWriter(s.dev, int64(offset)), s.bufSize)
	if _, err := w.Write(format.EncodeRecordHeader(ino, uint32(total))); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush record for inode %d: %w", ino, err)
	}

	s.table[slot] = format.InodeTableEntry{Inode: ino, Offset: offset, Length: uint32(total)}
	s.index[ino] = slot
	if ino >= s.nextInode {
		s.nextInode = ino + 1
	}
	s.dirty = true
	return nil
}

// DeleteRecord drops ino's table entry. The record bytes stay on disk
// until the slot region is reused; under copy-on-write they are never
// reused, which keeps snapshot references intact.
func (s *NodeStore) DeleteRecord(ino uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.index[ino]
	if !ok {
		return fmt.Errorf("inode %d: %w", ino, common.ErrNotFound)
	}
	s.table[slot] = format.InodeTableEntry{}
	delete(s.index, ino)
	s.header.TotalInodes--
	s.dirty = true
	return nil
}

// Entry returns ino's inode table entry.
func (s *NodeStore) Entry(ino uint64) (format.InodeTableEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryLocked(ino)
}

func (s *NodeStore) entryLocked(ino uint64) (format.InodeTableEntry, bool) {
	slot, ok := s.index[ino]
	if !ok {
		return format.InodeTableEntry{}, false
	}
	return s.table[slot], true
}

// TableSnapshot returns a copy of the live inode table entries, keyed by
// inode. Snapshots freeze this copy.
func (s *NodeStore) TableSnapshot() map[uint64]format.InodeTableEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]format.InodeTableEntry, len(s.index))
	for ino, slot := range s.index {
		out[ino] = s.table[slot]
	}
	return out
}

// Flush persists the header and inode table and syncs the device.
func (s *NodeStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return s.dev.Sync()
	}

	w := bufio.NewWriterSize(io.NewOffsetWriter(s.dev, 0), s.bufSize)
	if _, err := w.Write(s.header.Encode()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, entry := range s.table {
		if _, err := w.Write(entry.Encode()); err != nil {
			return fmt.Errorf("write inode table: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush metadata: %w", err)
	}
	if err := s.dev.Sync(); err != nil {
		return fmt.Errorf("sync device: %w", err)
	}
	s.dirty = false
	return nil
}

// Close flushes metadata and closes the device.
func (s *NodeStore) Close() error {
	if err := s.Flush(); err != nil {
		s.dev.Close()
		return err
	}
	return s.dev.Close()
}
