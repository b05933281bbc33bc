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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eclipsefs/internal/config"
	"eclipsefs/internal/device"
	"eclipsefs/internal/extent"
)

func TestExtentAllocatorPlanAndRelease(t *testing.T) {
	t.Parallel()
	a := NewExtentAllocator(4096)
	assert.Equal(t, "extent", a.Name())

	exts, err := a.Plan(7, 1000)
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, extent.Extent{Logical: 0, Physical: 4096, Length: 1000}, exts[0])

	// Growing the same inode extends the run contiguously, so the new
	// piece merges into the existing extent.
	exts, err = a.Plan(7, 1500)
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, uint64(1500), exts[0].Length)

	// A second inode allocates past the first.
	other, err := a.Plan(8, 100)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, uint64(4096+1500), other[0].Physical)

	// A shrinking rewrite drops the old mapping and starts over.
	exts, err = a.Plan(7, 200)
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, uint64(0), exts[0].Logical)
	assert.Equal(t, uint64(200), exts[0].Length)

	// Zero size releases the mapping entirely.
	exts, err = a.Plan(7, 0)
	require.NoError(t, err)
	assert.Nil(t, exts)

	a.Release(8)
	other, err = a.Plan(8, 50)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, uint64(0), other[0].Logical)
}

func TestMountWithExtentAllocator(t *testing.T) {
	t.Parallel()
	dev := device.NewMemDevice(0)
	f, err := Format(dev, 64, config.Default(),
		WithAllocationStrategy(NewExtentAllocator(0)))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	n, err := f.CreateNode(RootInode, "data.bin", KindFile, "")
	require.NoError(t, err)
	n.SetContent(bytes.Repeat([]byte{0x42}, 8192))
	require.NoError(t, f.WriteNode(n))

	got, err := f.ReadNode(n.Ino)
	require.NoError(t, err)
	assert.Equal(t, n.Content, got.Content)
}
