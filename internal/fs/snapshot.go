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
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"eclipsefs/internal/common"
	"eclipsefs/internal/format"
)

// Snapshot is an immutable point-in-time reference: a frozen copy of the
// inode table. It is valid only under copy-on-write, where record
// rewrites never reuse old offsets, so every frozen entry keeps pointing
// at intact bytes.
type Snapshot struct {
	ID        uint64
	Name      string
	CreatedAt int64
	Session   uuid.UUID
	Table     map[uint64]format.InodeTableEntry
}

// SnapshotInfo is the listing view of a snapshot.
type SnapshotInfo struct {
	ID        uint64
	Name      string
	CreatedAt time.Time
	Session   uuid.UUID
	Nodes     int
}

// CreateSnapshot freezes the current inode table under the given id and
// name. The pending write batch is flushed first so the snapshot sees a
// consistent image. Fails with ErrCoWDisabled unless copy-on-write is
// active.
func (f *FileSystem) CreateSnapshot(id uint64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return common.ErrClosed
	}
	if f.readOnly {
		return common.ErrReadOnly
	}
	if !f.cow {
		return fmt.Errorf("snapshot %q: %w", name, common.ErrCoWDisabled)
	}
	if _, ok := f.snapshots[id]; ok {
		return fmt.Errorf("snapshot id %d: %w", id, common.ErrExists)
	}
	if err := f.flushLocked(); err != nil {
		return err
	}

	table := f.store.TableSnapshot()
	delete(table, format.CatalogInode)
	f.snapshots[id] = &Snapshot{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().Unix(),
		Session:   f.session,
		Table:     table,
	}
	if err := f.persistSnapshotsLocked(); err != nil {
		delete(f.snapshots, id)
		return err
	}
	log.WithFields(log.Fields{
		"id":    id,
		"name":  name,
		"nodes": len(table),
	}).Info("snapshot created")
	return nil
}

// ListSnapshots returns all snapshots ordered by id.
func (f *FileSystem) ListSnapshots() []SnapshotInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SnapshotInfo, 0, len(f.snapshots))
	for _, s := range f.snapshots {
		out = append(out, SnapshotInfo{
			ID:        s.ID,
			Name:      s.Name,
			CreatedAt: time.Unix(s.CreatedAt, 0),
			Session:   s.Session,
			Nodes:     len(s.Table),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteSnapshot removes a snapshot from the catalog. Record bytes it
// referenced stay on disk; space reclamation is a separate concern.
func (f *FileSystem) DeleteSnapshot(id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return common.ErrClosed
	}
	if f.readOnly {
		return common.ErrReadOnly
	}
	s, ok := f.snapshots[id]
	if !ok {
		return fmt.Errorf("snapshot id %d: %w", id, common.ErrNotFound)
	}
	delete(f.snapshots, id)
	if err := f.persistSnapshotsLocked(); err != nil {
		f.snapshots[id] = s
		return err
	}
	return nil
}

// ReadSnapshotNode reads a node as it was when the snapshot froze.
func (f *FileSystem) ReadSnapshotNode(id, ino uint64) (*Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, common.ErrClosed
	}
	s, ok := f.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("snapshot id %d: %w", id, common.ErrNotFound)
	}
	entry, ok := s.Table[ino]
	if !ok {
		return nil, fmt.Errorf("inode %d in snapshot %d: %w", ino, id, common.ErrNotFound)
	}
	payload, err := f.store.ReadRecordAt(entry)
	if err != nil {
		return nil, err
	}
	return decodeNode(ino, payload, f.engine)
}

// persistSnapshotsLocked writes the catalog record at the reserved
// catalog inode, bypassing the write batch so the catalog is durable the
// moment the call returns.
func (f *FileSystem) persistSnapshotsLocked() error {
	if err := f.store.WriteRecord(format.CatalogInode, encodeCatalog(f.snapshots)); err != nil {
		return fmt.Errorf("persist snapshot catalog: %w", err)
	}
	return f.store.Flush()
}

// loadSnapshots restores the catalog on mount, if one exists.
func (f *FileSystem) loadSnapshots() error {
	if !f.store.Contains(format.CatalogInode) {
		return nil
	}
	payload, err := f.store.ReadRecord(format.CatalogInode)
	if err != nil {
		return fmt.Errorf("read snapshot catalog: %w", err)
	}
	f.snapshots, err = decodeCatalog(payload)
	if err != nil {
		return err
	}
	if len(f.snapshots) > 0 {
		// Snapshots only stay valid under append-only writes.
		f.store.EnableCopyOnWrite()
		f.cow = true
	}
	return nil
}

// Catalog layout: count u32, then per snapshot
// {id u64, createdAt u64, session 16B, nameLen u32, name,
//  entryCount u32, entries as inode table encoding}.

func encodeCatalog(snapshots map[uint64]*Snapshot) []byte {
	ids := make([]uint64, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		s := snapshots[id]
		buf = binary.LittleEndian.AppendUint64(buf, s.ID)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(s.CreatedAt))
		buf = append(buf, s.Session[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Name)))
		buf = append(buf, s.Name...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Table)))

		inos := make([]uint64, 0, len(s.Table))
		for ino := range s.Table {
			inos = append(inos, ino)
		}
		sort.Slice(inos, func(i, j int) bool { return inos[i] < inos[j] })
		for _, ino := range inos {
			buf = append(buf, s.Table[ino].Encode()...)
		}
	}
	return buf
}

func decodeCatalog(buf []byte) (map[uint64]*Snapshot, error) {
	bad := func(what string) error {
		return &common.CorruptionError{Reason: "snapshot catalog truncated at " + what}
	}
	off := 0
	need := func(n int) bool { return off+n <= len(buf) }

	if !need(4) {
		return nil, bad("count")
	}
	count := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	snapshots := make(map[uint64]*Snapshot, count)
	for i := 0; i < count; i++ {
		if !need(8 + 8 + 16 + 4) {
			return nil, bad("snapshot header")
		}
		s := &Snapshot{Table: make(map[uint64]format.InodeTableEntry)}
		s.ID = binary.LittleEndian.Uint64(buf[off:])
		s.CreatedAt = int64(binary.LittleEndian.Uint64(buf[off+8:]))
		copy(s.Session[:], buf[off+16:off+32])
		nameLen := int(binary.LittleEndian.Uint32(buf[off+32:]))
		off += 36
		if !need(nameLen + 4) {
			return nil, bad("snapshot name")
		}
		s.Name = string(buf[off : off+nameLen])
		off += nameLen
		entryCount := int(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		for j := 0; j < entryCount; j++ {
			if !need(format.TableEntrySize) {
				return nil, bad("table entry")
			}
			entry := format.DecodeTableEntry(buf[off : off+format.TableEntrySize])
			off += format.TableEntrySize
			if err := format.ValidateRecordLength(uint64(entry.Length)); err != nil {
				return nil, err
			}
			s.Table[entry.Inode] = entry
		}
		if _, ok := snapshots[s.ID]; ok {
			return nil, errors.New("snapshot catalog has duplicate id")
		}
		snapshots[s.ID] = s
	}
	return snapshots, nil
}
