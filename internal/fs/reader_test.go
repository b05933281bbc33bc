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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eclipsefs/internal/cache"
	"eclipsefs/internal/config"
	"eclipsefs/internal/device"
	"eclipsefs/internal/store"
)

// newTestReader seeds a store with count sequential file nodes starting
// at inode 1 and returns a reader over it.
func newTestReader(t *testing.T, count int) (*Reader, cache.Policy[*Node]) {
	t.Helper()
	st, err := store.Create(device.NewMemDevice(0), uint32(count)+8)
	require.NoError(t, err)

	eng := testEngine(t)
	for i := 1; i <= count; i++ {
		n := NewFile(uint64(i))
		n.SetContent([]byte(fmt.Sprintf("node %d content", i)))
		require.NoError(t, st.WriteRecord(n.Ino, encodeNode(n, eng)))
	}

	pol, err := cache.NewARC[*Node](256)
	require.NoError(t, err)
	return NewReader(st, pol, eng, config.Default().Readahead, nil), pol
}

func TestReaderServesDecodedNodes(t *testing.T) {
	t.Parallel()
	r, _ := newTestReader(t, 4)

	n, err := r.Read(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n.Ino)
	assert.Equal(t, []byte("node 3 content"), n.Content)

	_, err = r.Read(99)
	assert.Error(t, err)
}

func TestSequentialRunTriggersPrefetch(t *testing.T) {
	t.Parallel()
	r, pol := newTestReader(t, 64)

	// First read of a fresh session: no run yet, no prefetch.
	_, err := r.Read(1)
	require.NoError(t, err)
	assert.False(t, pol.Contains(2))

	// Second sequential read reaches the start threshold: the next
	// window of nodes is pulled in.
	_, err = r.Read(2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Run())
	for ino := uint64(3); ino <= 10; ino++ {
		assert.True(t, pol.Contains(ino), "inode %d should be prefetched", ino)
	}
}

func TestWindowDoublesAndCaps(t *testing.T) {
	t.Parallel()
	r, _ := newTestReader(t, 200)

	assert.Equal(t, 8, r.Window())
	for ino := uint64(1); ino <= 100; ino++ {
		_, err := r.Read(ino)
		require.NoError(t, err)
		w := r.Window()
		assert.GreaterOrEqual(t, w, 8, "window below floor at inode %d", ino)
		assert.LessOrEqual(t, w, 32, "window above ceiling at inode %d", ino)
	}
	// A long run saturates the window at the ceiling.
	assert.Equal(t, 32, r.Window())
}

func TestNonSequentialAccessResets(t *testing.T) {
	t.Parallel()
	r, _ := newTestReader(t, 64)

	for ino := uint64(1); ino <= 10; ino++ {
		_, err := r.Read(ino)
		require.NoError(t, err)
	}
	require.Greater(t, r.Run(), 0)
	require.Greater(t, r.Window(), 8)

	// Jump backwards: run drops to zero, window back to the floor.
	_, err := r.Read(2)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Run())
	assert.Equal(t, 8, r.Window())
}

func TestPrefetchedNodesServeFromCache(t *testing.T) {
	t.Parallel()
	r, pol := newTestReader(t, 32)

	for ino := uint64(1); ino <= 16; ino++ {
		_, err := r.Read(ino)
		require.NoError(t, err)
	}
	s := pol.Stats()
	// The demand misses are the reads that had to touch the store before
	// prefetch got ahead; everything else was a hit.
	assert.Greater(t, s.Hits, uint64(8), "most sequential reads should hit prefetched entries")
}

func TestPrefetchSkipsHoles(t *testing.T) {
	t.Parallel()
	// Only 4 nodes exist; a sequential run near the end must not fail on
	// the missing neighbors.
	r, _ := newTestReader(t, 4)
	for ino := uint64(1); ino <= 4; ino++ {
		_, err := r.Read(ino)
		require.NoError(t, err)
	}
}
