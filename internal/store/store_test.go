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

package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eclipsefs/internal/common"
	"eclipsefs/internal/device"
	"eclipsefs/internal/format"
)

func newTestStore(t *testing.T, maxInodes uint32, opts ...Option) (*NodeStore, *device.MemDevice) {
	t.Helper()
	dev := device.NewMemDevice(0)
	s, err := Create(dev, maxInodes, opts...)
	require.NoError(t, err)
	return s, dev
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 16)

	payloads := map[uint64][]byte{
		1: []byte("root directory record"),
		2: bytes.Repeat([]byte{0xA5}, 100_000),
		3: {},
	}
	for ino, payload := range payloads {
		require.NoError(t, s.WriteRecord(ino, payload))
	}
	for ino, want := range payloads {
		got, err := s.ReadRecord(ino)
		require.NoError(t, err)
		assert.Equal(t, want, got, "inode %d", ino)
	}
	assert.Equal(t, 3, s.Len())
}

func TestRecordRewriteInPlaceAndGrow(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 16)

	require.NoError(t, s.WriteRecord(1, bytes.Repeat([]byte{1}, 1000)))
	first, ok := s.Entry(1)
	require.True(t, ok)

	// A smaller rewrite reuses the slot.
	require.NoError(t, s.WriteRecord(1, []byte("small")))
	second, ok := s.Entry(1)
	require.True(t, ok)
	assert.Equal(t, first.Offset, second.Offset)

	// A larger rewrite relocates.
	require.NoError(t, s.WriteRecord(1, bytes.Repeat([]byte{2}, 2000)))
	third, ok := s.Entry(1)
	require.True(t, ok)
	assert.NotEqual(t, first.Offset, third.Offset)

	got, err := s.ReadRecord(1)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{2}, 2000), got)
}

func TestAppendOnlyNeverReusesOffsets(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 16)
	s.EnableAppendOnly()

	require.NoError(t, s.WriteRecord(1, bytes.Repeat([]byte{7}, 500)))
	old, ok := s.Entry(1)
	require.True(t, ok)

	// A smaller rewrite would fit the old slot, but the old bytes must
	// survive until metadata commits the new offset.
	require.NoError(t, s.WriteRecord(1, []byte("tiny")))
	current, ok := s.Entry(1)
	require.True(t, ok)
	assert.NotEqual(t, old.Offset, current.Offset)

	prior, err := s.ReadRecordAt(old)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{7}, 500), prior)
}

func TestCopyOnWriteNeverReusesOffsets(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 16)
	s.EnableCopyOnWrite()

	require.NoError(t, s.WriteRecord(1, []byte("version one")))
	frozen, ok := s.Entry(1)
	require.True(t, ok)

	require.NoError(t, s.WriteRecord(1, []byte("v2")))
	current, ok := s.Entry(1)
	require.True(t, ok)
	assert.NotEqual(t, frozen.Offset, current.Offset)

	// The frozen entry still reads the old version.
	old, err := s.ReadRecordAt(frozen)
	require.NoError(t, err)
	assert.Equal(t, []byte("version one"), old)
}

func TestOversizeRecordRejected(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 4)

	err := s.WriteRecord(1, make([]byte, format.MaxRecordSize))
	require.Error(t, err)
	assert.True(t, common.IsCorruption(err))

	var ce *common.CorruptionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, uint64(format.MaxRecordSize), ce.Limit)
	assert.Greater(t, ce.Observed, ce.Limit)
}

func TestOversizeTableEntryRejectedBeforeAllocation(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 4)

	// A corrupted table entry declaring 4 GiB-ish lengths must fail
	// validation up front, not drive an allocation.
	_, err := s.ReadRecordAt(format.InodeTableEntry{
		Inode:  9,
		Offset: s.Header().RecordsOffset(),
		Length: format.MaxRecordSize + 1,
	})
	require.Error(t, err)
	assert.True(t, common.IsCorruption(err))
}

func TestCorruptRecordHeaderDetected(t *testing.T) {
	t.Parallel()
	s, dev := newTestStore(t, 4)
	require.NoError(t, s.WriteRecord(7, []byte("payload")))

	entry, ok := s.Entry(7)
	require.True(t, ok)

	// Flip the inode field of the on-disk record header.
	binary.LittleEndian.PutUint64(dev.Bytes()[entry.Offset:], 999)
	_, err := s.ReadRecord(7)
	require.Error(t, err)
	assert.True(t, common.IsCorruption(err))
}

func TestDeleteRecord(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 4)
	require.NoError(t, s.WriteRecord(2, []byte("doomed")))
	require.NoError(t, s.DeleteRecord(2))

	_, err := s.ReadRecord(2)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.DeleteRecord(2), common.ErrNotFound)
	assert.False(t, s.Contains(2))
}

func TestInodeTableCapacity(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 2)
	require.NoError(t, s.WriteRecord(1, []byte("a")))
	require.NoError(t, s.WriteRecord(2, []byte("b")))

	err := s.WriteRecord(3, []byte("c"))
	var capErr *common.CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, capErr.Capacity)

	// Deleting frees a slot.
	require.NoError(t, s.DeleteRecord(1))
	require.NoError(t, s.WriteRecord(3, []byte("c")))
}

func TestFlushAndReopen(t *testing.T) {
	t.Parallel()
	dev := device.NewMemDevice(0)
	s, err := Create(dev, 8)
	require.NoError(t, err)
	require.NoError(t, s.WriteRecord(1, []byte("persisted root")))
	require.NoError(t, s.WriteRecord(5, []byte("persisted file")))
	require.NoError(t, s.Flush())

	reopened, err := Open(dev)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	got, err := reopened.ReadRecord(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted file"), got)

	// Allocation resumes past the highest persisted inode.
	assert.Greater(t, reopened.AllocateInode(), uint64(5))
}

func TestOpenRejectsBadMagic(t *testing.T) {
	t.Parallel()
	dev := device.NewMemDevice(format.HeaderSize)
	copy(dev.Bytes(), "NOTAFILESYSTEM")
	_, err := Open(dev)
	require.Error(t, err)
	assert.True(t, common.IsCorruption(err))
}

func TestAllocateInodeMonotonic(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 8)
	a := s.AllocateInode()
	b := s.AllocateInode()
	assert.Greater(t, b, a)
}

func TestReadBoundedWithinLimit(t *testing.T) {
	t.Parallel()
	const blockSize = 64
	s, _ := newTestStore(t, 4, WithBlockSize(blockSize))

	// 10 blocks worth of payload reads fine through the bounded loop.
	payload := bytes.Repeat([]byte{3}, blockSize*10)
	require.NoError(t, s.WriteRecord(1, payload))
	got, err := s.ReadRecord(1)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadBoundedAbortsOnStalledDevice(t *testing.T) {
	t.Parallel()
	const blockSize = 64
	dev := device.NewMemDevice(0)
	s, err := Create(dev, 4, WithBlockSize(blockSize))
	require.NoError(t, err)
	require.NoError(t, s.WriteRecord(1, bytes.Repeat([]byte{7}, blockSize*4)))

	// A device that keeps reporting zero progress must trip the iteration
	// cap instead of spinning forever.
	dev.StallReads(true)
	_, err = s.ReadRecord(1)
	require.Error(t, err)

	var iterErr *common.IterationLimitError
	require.True(t, errors.As(err, &iterErr))
	assert.Zero(t, iterErr.BytesRead)
	assert.Positive(t, iterErr.BytesRemaining)
	assert.Equal(t, (int(iterErr.BytesRemaining)+blockSize-1)/blockSize+10, iterErr.Limit)
}
