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
	log "github.com/sirupsen/logrus"

	"eclipsefs/internal/cache"
	"eclipsefs/internal/compress"
	"eclipsefs/internal/config"
	"eclipsefs/internal/metrics"
	"eclipsefs/internal/store"
)

// sequentialTracker is the per-session access-pattern state the reader
// uses to decide prefetch aggressiveness. Not persisted.
type sequentialTracker struct {
	lastIno uint64
	run     int
	window  int
}

// Reader serves node reads through the cache, detects sequential runs
// and prefetches ahead of them with an adaptive window. A run of
// startAfter sequential inodes starts prefetching; a run of promoteAfter
// doubles the window up to the ceiling; any non-sequential access drops
// the run to zero and the window back to the floor.
type Reader struct {
	store   *store.NodeStore
	cache   cache.Policy[*Node]
	engine  *compress.Engine
	metrics *metrics.Collector

	cfg   config.ReadaheadConfig
	track sequentialTracker
}

// NewReader builds a reader over the store and cache.
func NewReader(st *store.NodeStore, c cache.Policy[*Node], eng *compress.Engine,
	cfg config.ReadaheadConfig, m *metrics.Collector) *Reader {
	return &Reader{
		store:   st,
		cache:   c,
		engine:  eng,
		metrics: m,
		cfg:     cfg,
		track:   sequentialTracker{window: cfg.WindowFloor},
	}
}

// Read returns the node for ino, from cache when possible. A miss decodes
// the record from the store, populates the cache and may trigger
// prefetching of the following inodes.
func (r *Reader) Read(ino uint64) (*Node, error) {
	if n, ok := r.cache.Get(ino); ok {
		r.metrics.CacheHit()
		r.observe(ino)
		return n, nil
	}
	r.metrics.CacheMiss()

	n, err := r.fetch(ino)
	if err != nil {
		return nil, err
	}
	r.observe(ino)
	r.prefetch(ino)
	return n, nil
}

// fetch decodes a record from the store and inserts it into the cache.
func (r *Reader) fetch(ino uint64) (*Node, error) {
	payload, err := r.store.ReadRecord(ino)
	if err != nil {
		return nil, err
	}
	n, err := decodeNode(ino, payload, r.engine)
	if err != nil {
		return nil, err
	}
	r.cache.Put(ino, n)
	return n, nil
}

// observe updates the sequential tracker for one access.
func (r *Reader) observe(ino uint64) {
	if ino == r.track.lastIno+1 {
		r.track.run++
		if r.track.run >= r.cfg.PromoteAfter && r.track.window < r.cfg.WindowCeiling {
			r.track.window *= 2
			if r.track.window > r.cfg.WindowCeiling {
				r.track.window = r.cfg.WindowCeiling
			}
			log.WithFields(log.Fields{
				"run":    r.track.run,
				"window": r.track.window,
			}).Debug("readahead window promoted")
		}
	} else {
		r.track.run = 0
		r.track.window = r.cfg.WindowFloor
	}
	r.track.lastIno = ino
}

// prefetch pulls the window of inodes after ino into the cache once the
// sequential run is established. Holes and decode failures are skipped;
// prefetching is advisory and must not fail the demand read.
func (r *Reader) prefetch(ino uint64) {
	if r.track.run < r.cfg.StartAfter {
		return
	}
	issued := 0
	for next := ino + 1; next <= ino+uint64(r.track.window); next++ {
		if r.cache.Contains(next) {
			continue
		}
		if !r.store.Contains(next) {
			continue
		}
		if _, err := r.fetch(next); err != nil {
			log.WithError(err).WithField("inode", next).Debug("prefetch skipped")
			continue
		}
		issued++
	}
	if issued > 0 {
		r.metrics.PrefetchIssued(issued)
	}
}

// Window exposes the current prefetch window for tests and stats.
func (r *Reader) Window() int { return r.track.window }

// Run exposes the current sequential run length.
func (r *Reader) Run() int { return r.track.run }
