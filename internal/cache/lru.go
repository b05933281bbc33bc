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

package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a plain least-recently-used policy. It is the non-adaptive
// alternative to ARC for workloads known to be purely recency-driven,
// and the baseline ARC is measured against.
type LRU[V any] struct {
	inner *lru.Cache[uint64, V]
	stats Stats
}

// NewLRU returns an LRU holding at most capacity entries.
func NewLRU[V any](capacity int) (*LRU[V], error) {
	inner, err := lru.New[uint64, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("lru: %w", err)
	}
	return &LRU[V]{inner: inner}, nil
}

// Name implements Policy.
func (l *LRU[V]) Name() string { return "lru" }

// Get implements Policy.
func (l *LRU[V]) Get(ino uint64) (V, bool) {
	if Disabled {
		var zero V
		return zero, false
	}
	v, ok := l.inner.Get(ino)
	if ok {
		l.stats.Hits++
	} else {
		l.stats.Misses++
	}
	return v, ok
}

// Contains implements Policy without updating recency or counters.
func (l *LRU[V]) Contains(ino uint64) bool {
	return l.inner.Contains(ino)
}

// Put implements Policy.
func (l *LRU[V]) Put(ino uint64, v V) {
	if Disabled {
		return
	}
	if l.inner.Add(ino, v) {
		l.stats.Evictions++
	}
}

// Remove implements Policy.
func (l *LRU[V]) Remove(ino uint64) {
	l.inner.Remove(ino)
}

// Len implements Policy.
func (l *LRU[V]) Len() int { return l.inner.Len() }

// Clear implements Policy.
func (l *LRU[V]) Clear() { l.inner.Purge() }

// Stats implements Policy.
func (l *LRU[V]) Stats() Stats { return l.stats }
