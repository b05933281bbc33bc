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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestARCBasicGetPut(t *testing.T) {
	t.Parallel()
	a, err := NewARC[string](4)
	require.NoError(t, err)

	_, ok := a.Get(1)
	assert.False(t, ok)

	a.Put(1, "one")
	v, ok := a.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	a.Put(1, "uno")
	v, ok = a.Get(1)
	require.True(t, ok)
	assert.Equal(t, "uno", v)

	s := a.Stats()
	assert.Equal(t, uint64(2), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
}

func TestARCSecondAccessPromotes(t *testing.T) {
	t.Parallel()
	a, err := NewARC[int](4)
	require.NoError(t, err)

	a.Put(1, 10)
	s := a.Stats()
	assert.Equal(t, 1, s.T1)
	assert.Equal(t, 0, s.T2)

	_, ok := a.Get(1)
	require.True(t, ok)
	s = a.Stats()
	assert.Equal(t, 0, s.T1)
	assert.Equal(t, 1, s.T2)
	assert.Equal(t, uint64(1), s.Promotions)
}

func TestARCResidentBound(t *testing.T) {
	t.Parallel()
	const capacity = 16
	a, err := NewARC[int](capacity)
	require.NoError(t, err)

	for i := uint64(0); i < 1000; i++ {
		a.Put(i, int(i))
		// Re-touch every third entry so both lists see traffic.
		if i%3 == 0 {
			a.Get(i)
		}
		s := a.Stats()
		require.LessOrEqual(t, s.T1+s.T2, capacity, "resident entries exceed capacity")
		require.LessOrEqual(t, s.T1+s.T2+s.B1+s.B2, 2*capacity, "resident+ghost entries exceed 2x capacity")
		require.GreaterOrEqual(t, s.P, 0)
		require.LessOrEqual(t, s.P, capacity)
	}
}

func TestARCGhostHitAdaptsTarget(t *testing.T) {
	t.Parallel()
	const capacity = 4
	a, err := NewARC[int](capacity)
	require.NoError(t, err)

	// Fill T1 and push the first entries into the B1 ghost list.
	for i := uint64(1); i <= 2*capacity; i++ {
		a.Put(i, int(i))
	}
	s := a.Stats()
	require.Positive(t, s.B1, "overflow should leave ghosts in B1")
	require.Zero(t, s.P)

	// Re-inserting a ghosted key is a B1 hit: the recency target grows.
	a.Put(1, 1)
	s = a.Stats()
	assert.Positive(t, s.P)
	assert.Equal(t, uint64(1), s.Adaptations)

	// The recovered entry is resident again.
	v, ok := a.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestARCAdaptStepLimit(t *testing.T) {
	t.Parallel()
	const capacity = 64

	// Build an ARC with a long B2 ghost list and a single B1 ghost, so a
	// B1 hit's unclamped step is |B2|/|B1| and therefore large.
	build := func(opts ...ARCOption) *ARC[int] {
		a, err := NewARC[int](capacity, opts...)
		require.NoError(t, err)
		for i := uint64(1); i <= capacity; i++ {
			a.Put(i, 0)
			a.Get(i) // promote to T2, keeping T1 empty
		}
		// With T1 empty, every replacement demotes from T2 into B2.
		for i := uint64(100); i < 100+capacity/2; i++ {
			a.Put(i, 0)
			a.Get(i)
		}
		// Two unpromoted inserts: the first lands in T1 and the second
		// pushes it into B1.
		a.Put(500, 0)
		a.Put(501, 0)
		s := a.Stats()
		require.Equal(t, 1, s.B1)
		require.Greater(t, s.B2, 2)
		return a
	}

	hitB1Ghost := func(a *ARC[int]) int {
		before := a.Stats()
		a.Put(500, 0)
		after := a.Stats()
		require.Equal(t, before.Adaptations+1, after.Adaptations)
		return after.P - before.P
	}

	free := build()
	limited := build(WithAdaptStepLimit(1))

	assert.Greater(t, hitB1Ghost(free), 1, "unclamped step should track the ghost-list ratio")
	assert.Equal(t, 1, hitB1Ghost(limited))
}

func TestARCRemoveDropsGhosts(t *testing.T) {
	t.Parallel()
	const capacity = 4
	a, err := NewARC[int](capacity)
	require.NoError(t, err)

	for i := uint64(1); i <= 2*capacity; i++ {
		a.Put(i, int(i))
	}
	require.Positive(t, a.Stats().B1)

	// Key 1 is a ghost; removing it must prevent the adapt-on-reinsert.
	a.Remove(1)
	before := a.Stats()
	a.Put(1, 1)
	after := a.Stats()
	assert.Equal(t, before.Adaptations, after.Adaptations)

	// Removing a resident key drops it outright.
	a.Remove(1)
	_, ok := a.Get(1)
	assert.False(t, ok)
}

func TestARCClear(t *testing.T) {
	t.Parallel()
	a, err := NewARC[int](4)
	require.NoError(t, err)
	for i := uint64(1); i <= 10; i++ {
		a.Put(i, int(i))
	}
	a.Clear()
	assert.Zero(t, a.Len())
	s := a.Stats()
	assert.Zero(t, s.T1+s.T2+s.B1+s.B2)
	assert.Zero(t, s.P)
}

func TestNewARCValidation(t *testing.T) {
	t.Parallel()
	_, err := NewARC[int](0)
	assert.Error(t, err)
	_, err = NewARC[int](8, WithAdaptStepLimit(-1))
	assert.Error(t, err)
}

// TestARCBeatsLRUOnMixedWorkload runs a hot working set interleaved with
// one-pass scans. LRU lets every scan flush the hot set; ARC learns to
// keep it in the frequency list.
func TestARCBeatsLRUOnMixedWorkload(t *testing.T) {
	t.Parallel()
	const capacity = 8

	trace := func(p Policy[int]) Stats {
		scanKey := uint64(1000)
		for round := 0; round < 200; round++ {
			for hot := uint64(1); hot <= 4; hot++ {
				if _, ok := p.Get(hot); !ok {
					p.Put(hot, int(hot))
				}
			}
			for i := 0; i < capacity; i++ {
				if _, ok := p.Get(scanKey); !ok {
					p.Put(scanKey, 0)
				}
				scanKey++
			}
		}
		return p.Stats()
	}

	arc, err := NewARC[int](capacity)
	require.NoError(t, err)
	plain, err := NewLRU[int](capacity)
	require.NoError(t, err)

	arcStats := trace(arc)
	lruStats := trace(plain)

	assert.Greater(t, arcStats.HitRatio(), lruStats.HitRatio(),
		"arc %.3f vs lru %.3f", arcStats.HitRatio(), lruStats.HitRatio())
}

func TestLRUPolicy(t *testing.T) {
	t.Parallel()
	l, err := NewLRU[string](2)
	require.NoError(t, err)
	assert.Equal(t, "lru", l.Name())

	l.Put(1, "a")
	l.Put(2, "b")
	l.Put(3, "c") // evicts 1

	_, ok := l.Get(1)
	assert.False(t, ok)
	v, ok := l.Get(3)
	require.True(t, ok)
	assert.Equal(t, "c", v)

	s := l.Stats()
	assert.Equal(t, uint64(1), s.Evictions)

	l.Remove(3)
	_, ok = l.Get(3)
	assert.False(t, ok)
}
