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

// Package cache provides the node cache policies: ARC, which adapts its
// recency/frequency split to the workload, and a plain LRU baseline.
// Keys are inode numbers.
package cache

import "os"

// Disabled turns all caching off. Set via ECLIPSEFS_CACHE=0. Every Get
// misses and every Put is dropped, which isolates cache-related bugs
// during debugging.
var Disabled = os.Getenv("ECLIPSEFS_CACHE") == "0"

// Policy is a node cache. Implementations are not safe for concurrent
// use; the owning filesystem serializes access.
type Policy[V any] interface {
	// Get returns the cached value and whether it was present.
	Get(ino uint64) (V, bool)

	// Contains reports residency without touching recency state or the
	// hit/miss counters. Prefetch probes use it so speculative lookups
	// do not distort the policy.
	Contains(ino uint64) bool

	// Put inserts or refreshes a value.
	Put(ino uint64, v V)

	// Remove drops an entry, including any ghost trace, so a deleted
	// inode cannot resurface from the cache.
	Remove(ino uint64)

	// Len reports the number of resident entries.
	Len() int

	// Clear drops all entries and history.
	Clear()

	// Stats returns a snapshot of the policy's counters.
	Stats() Stats

	// Name identifies the policy ("arc", "lru").
	Name() string
}

// Stats is a point-in-time snapshot of a policy's behavior. The ARC
// fields (P, T1, T2, B1, B2) are zero for policies without them.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Promotions  uint64 // recency-to-frequency moves
	Adaptations uint64 // ghost hits that shifted the target
	P           int    // ARC recency target
	T1          int
	T2          int
	B1          int
	B2          int
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
