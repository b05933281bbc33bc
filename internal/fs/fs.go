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
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"eclipsefs/internal/cache"
	"eclipsefs/internal/common"
	"eclipsefs/internal/compress"
	"eclipsefs/internal/config"
	"eclipsefs/internal/device"
	"eclipsefs/internal/format"
	"eclipsefs/internal/journal"
	"eclipsefs/internal/metrics"
	"eclipsefs/internal/store"
)

// RootInode is re-exported for callers of the collaborator API.
const RootInode = format.RootInode

// FileSystem is the engine context: it owns the store, cache, reader,
// writer, journal and snapshot catalog for one mounted image. All
// mutable engine state lives here; there are no package-level statics.
// Operations run on the caller's goroutine and are serialized by an
// internal mutex.
type FileSystem struct {
	mu sync.Mutex

	store   *store.NodeStore
	cache   cache.Policy[*Node]
	reader  *Reader
	writer  *Writer
	journal *journal.Journal
	engine  *compress.Engine
	alloc   AllocationStrategy
	cfg     *config.Config
	metrics *metrics.Collector

	snapshots map[uint64]*Snapshot
	session   uuid.UUID

	cow      bool
	readOnly bool
	closed   bool

	// recovery holds the replay failure that forced a read-only mount.
	recovery *common.RecoveryError
}

// MountOption configures Mount and Format.
type MountOption func(*FileSystem)

// WithMetrics attaches a metrics collector. Without it the engine
// records nothing.
func WithMetrics(m *metrics.Collector) MountOption {
	return func(f *FileSystem) { f.metrics = m }
}

// WithAllocationStrategy overrides the content allocation strategy. The
// default is inline TLV placement.
func WithAllocationStrategy(s AllocationStrategy) MountOption {
	return func(f *FileSystem) { f.alloc = s }
}

// Format creates an empty filesystem on dev, writes the root directory
// and returns the mounted engine.
func Format(dev device.Device, maxInodes uint32, cfg *config.Config, opts ...MountOption) (*FileSystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.Create(dev, maxInodes, store.WithBufferSize(cfg.Writer.BufferSize))
	if err != nil {
		return nil, err
	}
	f, err := assemble(st, cfg, opts...)
	if err != nil {
		return nil, err
	}

	rootIno := st.AllocateInode()
	if rootIno != format.RootInode {
		return nil, fmt.Errorf("expected root inode %d, allocated %d", format.RootInode, rootIno)
	}
	if err := f.WriteNode(NewDir(rootIno)); err != nil {
		return nil, fmt.Errorf("write root directory: %w", err)
	}
	if err := f.Flush(); err != nil {
		return nil, err
	}
	if cfg.Journal.Enabled {
		if err := f.EnableJournaling(cfg.Journal); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Mount opens an existing filesystem on dev. With journaling enabled,
// the sidecar journal is replayed first; an unverifiable entry degrades
// the mount to read-only instead of failing it.
func Mount(dev device.Device, cfg *config.Config, opts ...MountOption) (*FileSystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.Open(dev, store.WithBufferSize(cfg.Writer.BufferSize))
	if err != nil {
		return nil, err
	}
	f, err := assemble(st, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := f.loadSnapshots(); err != nil {
		return nil, err
	}
	if cfg.Journal.Enabled {
		if err := f.EnableJournaling(cfg.Journal); err != nil {
			var recErr *common.RecoveryError
			if !errors.As(err, &recErr) {
				return nil, err
			}
			// Recovery stopped at a damaged entry: everything before it
			// is applied, the rest is lost, and the image must not be
			// written until repaired.
		}
	}
	log.WithFields(log.Fields{
		"session":   f.session,
		"inodes":    st.Len(),
		"read_only": f.readOnly,
	}).Info("filesystem mounted")
	return f, nil
}

func assemble(st *store.NodeStore, cfg *config.Config, opts ...MountOption) (*FileSystem, error) {
	eng, err := compress.NewEngine(
		compress.WithCodec(cfg.Compression.Codec),
		compress.WithEntropyThreshold(cfg.Compression.EntropyThreshold),
		compress.WithSampleSize(cfg.Compression.SampleSize),
	)
	if err != nil {
		return nil, err
	}

	f := &FileSystem{
		store:     st,
		engine:    eng,
		alloc:     inlineAlloc{},
		cfg:       cfg,
		snapshots: make(map[uint64]*Snapshot),
		session:   uuid.New(),
	}
	for _, opt := range opts {
		opt(f)
	}

	switch cfg.Cache.Policy {
	case "lru":
		f.cache, err = cache.NewLRU[*Node](cfg.Cache.Capacity)
	default:
		f.cache, err = cache.NewARC[*Node](cfg.Cache.Capacity,
			cache.WithAdaptStepLimit(cfg.Cache.AdaptStepLimit))
	}
	if err != nil {
		return nil, err
	}

	f.reader = NewReader(st, f.cache, eng, cfg.Readahead, f.metrics)
	f.writer = NewWriter(st, cfg.Writer.BatchCapacity, f.metrics)
	return f, nil
}

// EnableJournaling opens the write-ahead journal and replays any
// committed transactions left from a crash. On a RecoveryError the
// filesystem degrades to read-only and the error is returned with the
// transaction id where replay stopped.
func (f *FileSystem) EnableJournaling(jcfg config.JournalConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return common.ErrClosed
	}
	if f.journal != nil {
		return nil
	}
	path := jcfg.Path
	if path == "" {
		fd, ok := f.store.Device().(*device.FileDevice)
		if !ok {
			return fmt.Errorf("journal path required for non-file devices: %w", common.ErrJournalDisabled)
		}
		path = fd.Path() + journal.Suffix
	}

	var jopts []journal.Option
	if jcfg.MaxPayload > 0 {
		jopts = append(jopts, journal.WithMaxPayload(jcfg.MaxPayload))
	}
	j, err := journal.Open(path, jopts...)
	if err != nil {
		return err
	}

	report, err := j.Replay(func(e journal.Entry) error {
		switch e.Op {
		case journal.OpWrite:
			return f.store.WriteRecord(e.Inode, e.Payload)
		case journal.OpDelete:
			if derr := f.store.DeleteRecord(e.Inode); derr != nil && !errors.Is(derr, common.ErrNotFound) {
				return derr
			}
			return nil
		default:
			return nil
		}
	})
	f.metrics.ReplayResult(report.Applied, report.Discarded)
	if err != nil {
		var recErr *common.RecoveryError
		if errors.As(err, &recErr) {
			f.readOnly = true
			f.recovery = recErr
			f.journal = j
			log.WithError(err).Warn("journal recovery incomplete, mounting read-only")
			return err
		}
		j.Close()
		return err
	}

	if report.Applied > 0 {
		if err := f.store.Flush(); err != nil {
			j.Close()
			return err
		}
	}
	if err := j.Reset(); err != nil {
		j.Close()
		return err
	}
	f.journal = j
	f.writer.AttachJournal(j)
	return nil
}

// EnableCopyOnWrite switches record writes to append-only versioned
// updates, which makes snapshots valid.
func (f *FileSystem) EnableCopyOnWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store.EnableCopyOnWrite()
	f.cow = true
}

// ReadOnly reports whether the mount is degraded to read-only.
func (f *FileSystem) ReadOnly() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readOnly
}

// Recovery returns the replay failure behind a read-only mount, if any.
func (f *FileSystem) Recovery() *common.RecoveryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recovery
}

// Session returns the mount session id stamped into logs and snapshots.
func (f *FileSystem) Session() uuid.UUID { return f.session }

// Header returns a copy of the image header.
func (f *FileSystem) Header() format.Header {
	return f.store.Header()
}

// CacheStats snapshots the node cache counters.
func (f *FileSystem) CacheStats() cache.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.cache.Stats()
	f.metrics.SetCacheTarget(s.P)
	return s
}

// WriterState reports the batching writer's lifecycle state.
func (f *FileSystem) WriterState() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writer.State()
}

// ReadNode returns a copy of the node for ino.
func (f *FileSystem) ReadNode(ino uint64) (*Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readNodeLocked(ino)
}

func (f *FileSystem) readNodeLocked(ino uint64) (*Node, error) {
	if f.closed {
		return nil, common.ErrClosed
	}
	n, err := f.reader.Read(ino)
	if err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// WriteNode persists a node through the batching writer. Under
// copy-on-write the node's version advances and the previous record
// stays intact at its old offset.
func (f *FileSystem) WriteNode(n *Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeNodeLocked(n)
}

func (f *FileSystem) writeNodeLocked(n *Node) error {
	if f.closed {
		return common.ErrClosed
	}
	if f.readOnly {
		return common.ErrReadOnly
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("inode %d has invalid kind", n.Ino)
	}
	if f.cow {
		n.ParentVersion = n.Version
		n.Version++
	}
	if n.Kind == KindFile {
		if _, err := f.alloc.Plan(n.Ino, n.Size); err != nil {
			return fmt.Errorf("plan allocation for inode %d: %w", n.Ino, err)
		}
	}
	if err := f.writer.Write(n.Ino, encodeNode(n, f.engine)); err != nil {
		return err
	}
	f.cache.Put(n.Ino, n.Clone())
	return nil
}

// Lookup resolves name inside the parent directory.
func (f *FileSystem) Lookup(parent uint64, name string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.readNodeLocked(parent)
	if err != nil {
		return 0, err
	}
	if p.Kind != KindDirectory {
		return 0, fmt.Errorf("inode %d: %w", parent, common.ErrNotDir)
	}
	ino, ok := p.Child(name)
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, common.ErrNotFound)
	}
	return ino, nil
}

// CreateNode creates a new node of the given kind under parent. Symlinks
// get their target from the target argument; it is ignored otherwise.
func (f *FileSystem) CreateNode(parent uint64, name string, kind NodeKind, target string) (*Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, common.ErrClosed
	}
	if f.readOnly {
		return nil, common.ErrReadOnly
	}
	p, err := f.readNodeLocked(parent)
	if err != nil {
		return nil, err
	}
	if p.Kind != KindDirectory {
		return nil, fmt.Errorf("inode %d: %w", parent, common.ErrNotDir)
	}
	if _, ok := p.Child(name); ok {
		return nil, fmt.Errorf("%q: %w", name, common.ErrExists)
	}

	ino := f.store.AllocateInode()
	var n *Node
	switch kind {
	case KindDirectory:
		n = NewDir(ino)
		p.Nlink++
	case KindFile:
		n = NewFile(ino)
	case KindSymlink:
		n = NewSymlink(ino, target)
	default:
		return nil, fmt.Errorf("cannot create node of kind %s", kind)
	}

	if err := p.AddChild(name, ino); err != nil {
		return nil, err
	}
	if err := f.writeNodeLocked(n); err != nil {
		return nil, err
	}
	if err := f.writeNodeLocked(p); err != nil {
		// Unwind the child: a failed auto-flush may already have landed
		// its record in the store, and no directory references it.
		f.cache.Remove(ino)
		f.alloc.Release(ino)
		if derr := f.store.DeleteRecord(ino); derr != nil && !errors.Is(derr, common.ErrNotFound) {
			log.WithError(derr).WithField("inode", ino).Warn("orphan cleanup failed")
		}
		return nil, err
	}
	return n.Clone(), nil
}

// Remove unlinks name from parent and deletes its node. Non-empty
// directories are refused.
func (f *FileSystem) Remove(parent uint64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return common.ErrClosed
	}
	if f.readOnly {
		return common.ErrReadOnly
	}
	p, err := f.readNodeLocked(parent)
	if err != nil {
		return err
	}
	ino, ok := p.Child(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, common.ErrNotFound)
	}
	n, err := f.readNodeLocked(ino)
	if err != nil {
		return err
	}
	if n.Kind == KindDirectory {
		if len(n.Children) > 0 {
			return fmt.Errorf("%q: %w", name, common.ErrNotEmpty)
		}
		p.Nlink--
	}

	if err := p.RemoveChild(name); err != nil {
		return err
	}
	if err := f.writer.Delete(ino); err != nil {
		return err
	}
	if err := f.writeNodeLocked(p); err != nil {
		return err
	}
	f.cache.Remove(ino)
	f.alloc.Release(ino)
	return nil
}

// Rename moves oldName under oldParent to newName under newParent.
func (f *FileSystem) Rename(oldParent uint64, oldName string, newParent uint64, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return common.ErrClosed
	}
	if f.readOnly {
		return common.ErrReadOnly
	}
	src, err := f.readNodeLocked(oldParent)
	if err != nil {
		return err
	}
	ino, ok := src.Child(oldName)
	if !ok {
		return fmt.Errorf("%q: %w", oldName, common.ErrNotFound)
	}

	dst := src
	if newParent != oldParent {
		if dst, err = f.readNodeLocked(newParent); err != nil {
			return err
		}
	}
	if dst.Kind != KindDirectory {
		return fmt.Errorf("inode %d: %w", newParent, common.ErrNotDir)
	}
	if _, ok := dst.Child(newName); ok {
		return fmt.Errorf("%q: %w", newName, common.ErrExists)
	}

	if err := src.RemoveChild(oldName); err != nil {
		return err
	}
	if err := dst.AddChild(newName, ino); err != nil {
		return err
	}
	if err := f.writeNodeLocked(src); err != nil {
		return err
	}
	if dst != src {
		if err := f.writeNodeLocked(dst); err != nil {
			return err
		}
	}
	return nil
}

// ReadSymlink returns the target of a symlink node.
func (f *FileSystem) ReadSymlink(ino uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.readNodeLocked(ino)
	if err != nil {
		return "", err
	}
	return n.SymlinkTarget()
}

// ResolvePath walks an absolute slash-separated path from the root,
// following no symlinks, and returns the inode it names.
func (f *FileSystem) ResolvePath(path string) (uint64, error) {
	if !strings.HasPrefix(path, "/") {
		return 0, fmt.Errorf("%q: %w", path, common.ErrInvalidPath)
	}
	ino := format.RootInode
	for _, part := range common.SplitPath(path) {
		next, err := f.Lookup(ino, part)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", path, err)
		}
		ino = next
	}
	return ino, nil
}

// Flush forces the pending write batch and all metadata to stable
// storage.
func (f *FileSystem) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked()
}

func (f *FileSystem) flushLocked() error {
	if f.closed {
		return common.ErrClosed
	}
	if err := f.writer.Flush(); err != nil {
		return err
	}
	return f.store.Flush()
}

// Close flushes and releases the device and journal.
func (f *FileSystem) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	var flushErr error
	if !f.readOnly {
		flushErr = f.writer.Flush()
	}
	f.closed = true
	if f.journal != nil {
		if err := f.journal.Close(); err != nil && flushErr == nil {
			flushErr = err
		}
	}
	if err := f.store.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	log.WithField("session", f.session).Info("filesystem closed")
	return flushErr
}
