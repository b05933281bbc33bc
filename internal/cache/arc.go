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
	"container/list"
	"fmt"
)

// whichList tags where an entry currently lives.
type whichList uint8

const (
	inT1 whichList = iota // resident, seen once recently
	inT2                  // resident, seen at least twice
	inB1                  // ghost evicted from T1
	inB2                  // ghost evicted from T2
)

type arcEntry[V any] struct {
	ino   uint64
	value V
	list  whichList
	elem  *list.Element
}

// ARC is an adaptive replacement cache over inode keys. It keeps two
// resident lists, T1 (recency) and T2 (frequency), plus ghost lists B1
// and B2 remembering recent evictions. A hit in a ghost list shifts the
// target split p toward the list that would have kept the entry, so the
// cache leans recency-heavy under scans and frequency-heavy under
// re-reference without any tuning. Resident entries never exceed the
// capacity and resident plus ghost entries never exceed twice the
// capacity.
type ARC[V any] struct {
	capacity  int
	p         int // target size of T1, in [0, capacity]
	stepLimit int // max ghost-hit adjustment to p, 0 = unlimited

	t1, t2, b1, b2 *list.List
	entries        map[uint64]*arcEntry[V]

	stats Stats
}

// ARCOption configures an ARC.
type ARCOption func(*arcConfig)

type arcConfig struct {
	stepLimit int
}

// WithAdaptStepLimit caps how far a single ghost hit can move the
// recency target. The unclamped ratio step lets one hit swing the whole
// balance when the ghost lists are lopsided.
func WithAdaptStepLimit(n int) ARCOption {
	return func(c *arcConfig) { c.stepLimit = n }
}

// NewARC returns an ARC holding at most capacity resident entries.
func NewARC[V any](capacity int, opts ...ARCOption) (*ARC[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("arc: capacity %d must be positive", capacity)
	}
	cfg := arcConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.stepLimit < 0 {
		return nil, fmt.Errorf("arc: adapt step limit %d must not be negative", cfg.stepLimit)
	}
	return &ARC[V]{
		capacity:  capacity,
		stepLimit: cfg.stepLimit,
		t1:        list.New(),
		t2:        list.New(),
		b1:        list.New(),
		b2:        list.New(),
		entries:   make(map[uint64]*arcEntry[V]),
	}, nil
}

// Name implements Policy.
func (a *ARC[V]) Name() string { return "arc" }

// Get implements Policy. A hit promotes the entry to the frequency list.
func (a *ARC[V]) Get(ino uint64) (V, bool) {
	var zero V
	if Disabled {
		return zero, false
	}
	e, ok := a.entries[ino]
	if !ok || e.list == inB1 || e.list == inB2 {
		a.stats.Misses++
		return zero, false
	}
	a.stats.Hits++
	if e.list == inT1 {
		a.t1.Remove(e.elem)
		e.list = inT2
		e.elem = a.t2.PushFront(e)
		a.stats.Promotions++
	} else {
		a.t2.MoveToFront(e.elem)
	}
	return e.value, true
}

// Contains implements Policy without disturbing list order or counters.
func (a *ARC[V]) Contains(ino uint64) bool {
	e, ok := a.entries[ino]
	return ok && (e.list == inT1 || e.list == inT2)
}

// Put implements Policy.
func (a *ARC[V]) Put(ino uint64, v V) {
	if Disabled {
		return
	}
	if e, ok := a.entries[ino]; ok {
		switch e.list {
		case inT1, inT2:
			e.value = v
			if e.list == inT1 {
				a.t1.Remove(e.elem)
				e.list = inT2
				e.elem = a.t2.PushFront(e)
				a.stats.Promotions++
			} else {
				a.t2.MoveToFront(e.elem)
			}
		case inB1:
			// The recency list would have kept this entry: grow p.
			a.adapt(a.b2.Len(), a.b1.Len(), +1)
			a.replace(false)
			a.b1.Remove(e.elem)
			e.value = v
			e.list = inT2
			e.elem = a.t2.PushFront(e)
		case inB2:
			// The frequency list would have kept this entry: shrink p.
			a.adapt(a.b1.Len(), a.b2.Len(), -1)
			a.replace(true)
			a.b2.Remove(e.elem)
			e.value = v
			e.list = inT2
			e.elem = a.t2.PushFront(e)
		}
		return
	}

	// Brand-new entry.
	l1 := a.t1.Len() + a.b1.Len()
	switch {
	case l1 == a.capacity:
		if a.t1.Len() < a.capacity {
			a.dropGhost(a.b1)
			a.replace(false)
		} else {
			a.evict(a.t1, nil) // T1 full, B1 empty: evict without ghosting
		}
	case l1 < a.capacity:
		total := l1 + a.t2.Len() + a.b2.Len()
		if total >= a.capacity {
			if total == 2*a.capacity {
				a.dropGhost(a.b2)
			}
			a.replace(false)
		}
	}

	e := &arcEntry[V]{ino: ino, value: v, list: inT1}
	e.elem = a.t1.PushFront(e)
	a.entries[ino] = e
}

// adapt moves p by max(1, num/den) in the given direction, clamped to
// [0, capacity] and to the configured step limit.
func (a *ARC[V]) adapt(num, den, dir int) {
	step := 1
	if den > 0 && num/den > 1 {
		step = num / den
	}
	if a.stepLimit > 0 && step > a.stepLimit {
		step = a.stepLimit
	}
	a.p += dir * step
	if a.p < 0 {
		a.p = 0
	}
	if a.p > a.capacity {
		a.p = a.capacity
	}
	a.stats.Adaptations++
}

// replace makes room for one resident entry by demoting the LRU of T1 or
// T2 to its ghost list. fromB2 reports that the triggering hit came from
// B2, which biases the tie toward evicting from T1.
func (a *ARC[V]) replace(fromB2 bool) {
	if a.t1.Len() > 0 && (a.t1.Len() > a.p || (fromB2 && a.t1.Len() == a.p)) {
		a.evict(a.t1, a.b1)
	} else if a.t2.Len() > 0 {
		a.evict(a.t2, a.b2)
	} else if a.t1.Len() > 0 {
		a.evict(a.t1, a.b1)
	}
}

// evict moves the LRU entry of src to the MRU of the ghost list, or
// removes it entirely when ghost is nil.
func (a *ARC[V]) evict(src, ghost *list.List) {
	back := src.Back()
	if back == nil {
		return
	}
	e := back.Value.(*arcEntry[V])
	src.Remove(back)
	var zero V
	e.value = zero
	if ghost == nil {
		delete(a.entries, e.ino)
	} else {
		if ghost == a.b1 {
			e.list = inB1
		} else {
			e.list = inB2
		}
		e.elem = ghost.PushFront(e)
	}
	a.stats.Evictions++
}

// dropGhost forgets the oldest ghost in the list.
func (a *ARC[V]) dropGhost(ghost *list.List) {
	back := ghost.Back()
	if back == nil {
		return
	}
	e := back.Value.(*arcEntry[V])
	ghost.Remove(back)
	delete(a.entries, e.ino)
}

// Remove implements Policy, dropping the entry and any ghost trace.
func (a *ARC[V]) Remove(ino uint64) {
	e, ok := a.entries[ino]
	if !ok {
		return
	}
	switch e.list {
	case inT1:
		a.t1.Remove(e.elem)
	case inT2:
		a.t2.Remove(e.elem)
	case inB1:
		a.b1.Remove(e.elem)
	case inB2:
		a.b2.Remove(e.elem)
	}
	delete(a.entries, ino)
}

// Len implements Policy, counting resident entries only.
func (a *ARC[V]) Len() int {
	return a.t1.Len() + a.t2.Len()
}

// Clear implements Policy.
func (a *ARC[V]) Clear() {
	a.t1.Init()
	a.t2.Init()
	a.b1.Init()
	a.b2.Init()
	a.entries = make(map[uint64]*arcEntry[V])
	a.p = 0
}

// Stats implements Policy.
func (a *ARC[V]) Stats() Stats {
	s := a.stats
	s.P = a.p
	s.T1 = a.t1.Len()
	s.T2 = a.t2.Len()
	s.B1 = a.b1.Len()
	s.B2 = a.b2.Len()
	return s
}
