package device

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDeviceReadWrite(t *testing.T) {
	t.Parallel()

	d := NewMemDevice(64)
	n, err := d.WriteAt([]byte("hello"), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = d.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf)

	size, err := d.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(64), size)
}

func TestMemDeviceGrowsOnWrite(t *testing.T) {
	t.Parallel()

	d := NewMemDevice(8)
	_, err := d.WriteAt([]byte("beyond"), 100)
	require.NoError(t, err)

	size, err := d.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(106), size)
}

func TestMemDeviceReadPastEnd(t *testing.T) {
	t.Parallel()

	d := NewMemDevice(10)
	buf := make([]byte, 8)

	n, err := d.ReadAt(buf, 6)
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, io.EOF)

	n, err = d.ReadAt(buf, 10)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMemDeviceWriteFault(t *testing.T) {
	t.Parallel()

	d := NewMemDevice(32)
	d.FailWritesAfter(2)

	_, err := d.WriteAt([]byte("a"), 0)
	require.NoError(t, err)
	_, err = d.WriteAt([]byte("b"), 1)
	require.NoError(t, err)
	_, err = d.WriteAt([]byte("c"), 2)
	assert.ErrorIs(t, err, ErrDeviceFault)
	_, err = d.WriteAt([]byte("d"), 3)
	assert.ErrorIs(t, err, ErrDeviceFault)
}

func TestMemDeviceTornWrite(t *testing.T) {
	t.Parallel()

	d := NewMemDevice(8)
	d.TearNextWrite()

	n, err := d.WriteAt([]byte("abcdefgh"), 0)
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, ErrDeviceFault)

	// The first half landed, the rest did not; the fault is one-shot.
	buf := make([]byte, 8)
	_, err = d.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd\x00\x00\x00\x00"), buf)

	_, err = d.WriteAt([]byte("ok"), 0)
	require.NoError(t, err)
}

func TestMemDeviceStalledReads(t *testing.T) {
	t.Parallel()

	d := NewMemDevice(32)
	d.StallReads(true)

	buf := make([]byte, 8)
	n, err := d.ReadAt(buf, 0)
	assert.Zero(t, n)
	assert.NoError(t, err)

	d.StallReads(false)
	n, err = d.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestFileDeviceCreateOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateFile(path, 4096)
	require.NoError(t, err)
	assert.Equal(t, path, d.Path())

	size, err := d.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)

	_, err = d.WriteAt([]byte("persisted"), 100)
	require.NoError(t, err)
	require.NoError(t, d.Sync())
	require.NoError(t, d.Close())

	d, err = OpenFile(path)
	require.NoError(t, err)
	defer d.Close()

	buf := make([]byte, 9)
	_, err = d.ReadAt(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), buf)
}

func TestFileDeviceCreateExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateFile(path, 1024)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = CreateFile(path, 1024)
	assert.ErrorContains(t, err, "already exists")
}

func TestFileDeviceOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.img"))
	assert.Error(t, err)
}
