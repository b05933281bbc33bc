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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eclipsefs/internal/common"
	"eclipsefs/internal/config"
	"eclipsefs/internal/device"
)

func TestSnapshotRequiresCopyOnWrite(t *testing.T) {
	t.Parallel()
	f, _ := newTestFS(t)
	assert.ErrorIs(t, f.CreateSnapshot(1, "too-early"), common.ErrCoWDisabled)
}

func TestCopyOnWriteVersioning(t *testing.T) {
	t.Parallel()
	f, _ := newTestFS(t)
	f.EnableCopyOnWrite()

	n, err := f.CreateNode(RootInode, "versioned", KindFile, "")
	require.NoError(t, err)
	first := n.Version
	require.NoError(t, f.Flush())

	got, err := f.ReadNode(n.Ino)
	require.NoError(t, err)
	got.SetContent([]byte("second version"))
	require.NoError(t, f.WriteNode(got))
	require.NoError(t, f.Flush())

	latest, err := f.ReadNode(n.Ino)
	require.NoError(t, err)
	assert.Greater(t, latest.Version, first)
	assert.Equal(t, latest.ParentVersion, latest.Version-1)
}

func TestSnapshotPreservesOldContent(t *testing.T) {
	t.Parallel()
	f, _ := newTestFS(t)
	f.EnableCopyOnWrite()

	n, err := f.CreateNode(RootInode, "file", KindFile, "")
	require.NoError(t, err)
	n.SetContent([]byte("before snapshot"))
	require.NoError(t, f.WriteNode(n))

	require.NoError(t, f.CreateSnapshot(1, "baseline"))

	// Rewrite after the snapshot.
	cur, err := f.ReadNode(n.Ino)
	require.NoError(t, err)
	cur.SetContent([]byte("after snapshot"))
	require.NoError(t, f.WriteNode(cur))
	require.NoError(t, f.Flush())

	// The live view moved on; the snapshot view did not.
	live, err := f.ReadNode(n.Ino)
	require.NoError(t, err)
	assert.Equal(t, []byte("after snapshot"), live.Content)

	frozen, err := f.ReadSnapshotNode(1, n.Ino)
	require.NoError(t, err)
	assert.Equal(t, []byte("before snapshot"), frozen.Content)
}

func TestSnapshotListAndDelete(t *testing.T) {
	t.Parallel()
	f, _ := newTestFS(t)
	f.EnableCopyOnWrite()

	require.NoError(t, f.CreateSnapshot(2, "second"))
	require.NoError(t, f.CreateSnapshot(1, "first"))
	assert.ErrorIs(t, f.CreateSnapshot(1, "dup"), common.ErrExists)

	list := f.ListSnapshots()
	require.Len(t, list, 2)
	assert.Equal(t, uint64(1), list[0].ID)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, uint64(2), list[1].ID)
	assert.Equal(t, f.Session(), list[0].Session)

	require.NoError(t, f.DeleteSnapshot(2))
	assert.ErrorIs(t, f.DeleteSnapshot(2), common.ErrNotFound)
	assert.Len(t, f.ListSnapshots(), 1)
}

func TestSnapshotsSurviveRemount(t *testing.T) {
	t.Parallel()
	dev := device.NewMemDevice(0)
	cfg := config.Default()

	f, err := Format(dev, 256, cfg)
	require.NoError(t, err)
	f.EnableCopyOnWrite()

	n, err := f.CreateNode(RootInode, "file", KindFile, "")
	require.NoError(t, err)
	n.SetContent([]byte("frozen state"))
	require.NoError(t, f.WriteNode(n))
	require.NoError(t, f.CreateSnapshot(7, "durable"))

	// Mutate after the snapshot so the remounted view differs.
	cur, err := f.ReadNode(n.Ino)
	require.NoError(t, err)
	cur.SetContent([]byte("mutated"))
	require.NoError(t, f.WriteNode(cur))
	require.NoError(t, f.Close())

	f2, err := Mount(dev, cfg)
	require.NoError(t, err)
	defer f2.Close()

	list := f2.ListSnapshots()
	require.Len(t, list, 1)
	assert.Equal(t, uint64(7), list[0].ID)
	assert.Equal(t, "durable", list[0].Name)

	frozen, err := f2.ReadSnapshotNode(7, n.Ino)
	require.NoError(t, err)
	assert.Equal(t, []byte("frozen state"), frozen.Content)

	// Loading a catalog re-arms copy-on-write automatically.
	require.NoError(t, f2.CreateSnapshot(8, "post-remount"))
}

func TestCheckHealthyImage(t *testing.T) {
	t.Parallel()
	f, _ := newTestFS(t)
	_, err := f.CreateNode(RootInode, "a", KindFile, "")
	require.NoError(t, err)
	require.NoError(t, f.Flush())

	report := f.Check()
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.NodesChecked)
	assert.False(t, report.ReadOnly)
}

func TestCheckFindsDanglingChild(t *testing.T) {
	t.Parallel()
	f, _ := newTestFS(t)

	// Point the root at an inode that has no record.
	root, err := f.ReadNode(RootInode)
	require.NoError(t, err)
	require.NoError(t, root.AddChild("ghost", 999))
	require.NoError(t, f.WriteNode(root))
	require.NoError(t, f.Flush())

	report := f.Check()
	require.False(t, report.OK())
	assert.Contains(t, report.Errors[0], "ghost")
}

func TestCheckFindsCorruptContent(t *testing.T) {
	t.Parallel()
	f, dev := newTestFS(t)

	n, err := f.CreateNode(RootInode, "victim", KindFile, "")
	require.NoError(t, err)
	// High-entropy content stays uncompressed, so flipping a stored byte
	// breaks the checksum, not the codec framing.
	content := make([]byte, 512)
	for i := range content {
		content[i] = byte(i * 7)
	}
	n.SetContent(content)
	require.NoError(t, f.WriteNode(n))
	require.NoError(t, f.Flush())

	entry, ok := f.store.Entry(n.Ino)
	require.True(t, ok)
	dev.Bytes()[entry.Offset+uint64(entry.Length)-1] ^= 0xFF

	report := f.Check()
	require.False(t, report.OK())
	assert.Contains(t, report.Errors[0], "checksum")
}
