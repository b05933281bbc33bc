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

package extent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertKeepsSortedOrder(t *testing.T) {
	t.Parallel()
	tree := NewTree()
	require.NoError(t, tree.Insert(Extent{Logical: 200, Physical: 1200, Length: 50}))
	require.NoError(t, tree.Insert(Extent{Logical: 0, Physical: 1000, Length: 50}))
	require.NoError(t, tree.Insert(Extent{Logical: 100, Physical: 1100, Length: 50}))

	exts := tree.Extents()
	require.Len(t, exts, 3)
	assert.Equal(t, uint64(0), exts[0].Logical)
	assert.Equal(t, uint64(100), exts[1].Logical)
	assert.Equal(t, uint64(200), exts[2].Logical)
}

func TestInsertMergesContiguousRuns(t *testing.T) {
	t.Parallel()
	tree := NewTree()
	require.NoError(t, tree.Insert(Extent{Logical: 0, Physical: 1000, Length: 100}))
	require.NoError(t, tree.Insert(Extent{Logical: 200, Physical: 1200, Length: 100}))
	require.Equal(t, 2, tree.Len())

	// Filling the gap merges all three into one run.
	require.NoError(t, tree.Insert(Extent{Logical: 100, Physical: 1100, Length: 100}))
	require.Equal(t, 1, tree.Len())
	e := tree.Extents()[0]
	assert.Equal(t, uint64(0), e.Logical)
	assert.Equal(t, uint64(300), e.Length)
	assert.Equal(t, uint64(1000), e.Physical)
}

func TestInsertDoesNotMergeDiscontiguousPhysical(t *testing.T) {
	t.Parallel()
	tree := NewTree()
	require.NoError(t, tree.Insert(Extent{Logical: 0, Physical: 1000, Length: 100}))
	// Logically adjacent but physically elsewhere: stays separate.
	require.NoError(t, tree.Insert(Extent{Logical: 100, Physical: 5000, Length: 100}))
	assert.Equal(t, 2, tree.Len())
}

func TestInsertRejectsOverlap(t *testing.T) {
	t.Parallel()
	tree := NewTree()
	require.NoError(t, tree.Insert(Extent{Logical: 100, Physical: 1000, Length: 100}))

	assert.Error(t, tree.Insert(Extent{Logical: 150, Physical: 2000, Length: 10}))
	assert.Error(t, tree.Insert(Extent{Logical: 50, Physical: 2000, Length: 60}))
	assert.Error(t, tree.Insert(Extent{Logical: 0, Physical: 2000, Length: 0}))
}

func TestLookup(t *testing.T) {
	t.Parallel()
	tree := NewTree()
	require.NoError(t, tree.Insert(Extent{Logical: 100, Physical: 1000, Length: 100}))

	tests := []struct {
		name    string
		logical uint64
		found   bool
	}{
		{"before first extent", 50, false},
		{"first byte", 100, true},
		{"mid extent", 150, true},
		{"last byte", 199, true},
		{"first byte past end", 200, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, ok := tree.Lookup(tt.logical)
			assert.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, uint64(100), e.Logical)
			}
		})
	}
}

func TestFragmentation(t *testing.T) {
	t.Parallel()
	tree := NewTree()
	assert.Zero(t, tree.Fragmentation())

	require.NoError(t, tree.Insert(Extent{Logical: 0, Physical: 0, Length: 10}))
	assert.Zero(t, tree.Fragmentation())

	require.NoError(t, tree.Insert(Extent{Logical: 100, Physical: 500, Length: 10}))
	assert.InDelta(t, 0.5, tree.Fragmentation(), 1e-9)

	require.NoError(t, tree.Insert(Extent{Logical: 200, Physical: 900, Length: 10}))
	assert.Greater(t, tree.Fragmentation(), 0.5)
	assert.Equal(t, uint64(30), tree.Size())
}
