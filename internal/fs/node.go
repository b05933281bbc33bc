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

// Package fs is the filesystem engine: the decoded node model, the
// prefetching reader, the batching writer, snapshots and the integrity
// checker, tied together by the FileSystem engine context.
package fs

import (
	"fmt"
	"time"

	"eclipsefs/internal/common"
	"eclipsefs/internal/format"
)

// NodeKind is a node's type.
type NodeKind uint8

const (
	KindFile NodeKind = iota + 1
	KindDirectory
	KindSymlink
)

func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k NodeKind) Valid() bool {
	switch k {
	case KindFile, KindDirectory, KindSymlink:
		return true
	default:
		return false
	}
}

// Node is one decoded filesystem object. Content is inline for files and
// symlinks (a symlink's content is its target path); directories carry
// their children as a name to inode map. Checksum always covers the raw,
// uncompressed content.
type Node struct {
	Ino      uint64
	Kind     NodeKind
	Mode     uint32
	UID      uint32
	GID      uint32
	Size     uint64
	Atime    int64
	Mtime    int64
	Ctime    int64
	Nlink    uint32
	Checksum uint32

	Content  []byte
	Children map[string]uint64

	// Version and ParentVersion chain record versions under
	// copy-on-write; both stay 0 when CoW is off.
	Version       uint64
	ParentVersion uint64
}

// NewDir returns a directory node with conventional mode bits.
func NewDir(ino uint64) *Node {
	now := time.Now().Unix()
	return &Node{
		Ino:      ino,
		Kind:     KindDirectory,
		Mode:     0o40755,
		Nlink:    2,
		Atime:    now,
		Mtime:    now,
		Ctime:    now,
		Children: make(map[string]uint64),
	}
}

// NewFile returns an empty regular file node.
func NewFile(ino uint64) *Node {
	now := time.Now().Unix()
	return &Node{
		Ino:   ino,
		Kind:  KindFile,
		Mode:  0o100644,
		Nlink: 1,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

// NewSymlink returns a symlink node pointing at target.
func NewSymlink(ino uint64, target string) *Node {
	now := time.Now().Unix()
	n := &Node{
		Ino:   ino,
		Kind:  KindSymlink,
		Mode:  0o120777,
		Nlink: 1,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
	n.SetContent([]byte(target))
	return n
}

// SetContent replaces the node's content, updating size, checksum and
// mtime together so they never drift apart.
func (n *Node) SetContent(data []byte) {
	n.Content = data
	n.Size = uint64(len(data))
	n.Checksum = format.Checksum(data)
	n.Mtime = time.Now().Unix()
}

// AddChild links a child into a directory node.
func (n *Node) AddChild(name string, ino uint64) error {
	if n.Kind != KindDirectory {
		return fmt.Errorf("inode %d: %w", n.Ino, common.ErrNotDir)
	}
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("name %q: %w", name, common.ErrInvalidPath)
	}
	if _, ok := n.Children[name]; ok {
		return fmt.Errorf("%q: %w", name, common.ErrExists)
	}
	if n.Children == nil {
		n.Children = make(map[string]uint64)
	}
	n.Children[name] = ino
	n.Mtime = time.Now().Unix()
	return nil
}

// RemoveChild unlinks a child by name.
func (n *Node) RemoveChild(name string) error {
	if n.Kind != KindDirectory {
		return fmt.Errorf("inode %d: %w", n.Ino, common.ErrNotDir)
	}
	if _, ok := n.Children[name]; !ok {
		return fmt.Errorf("%q: %w", name, common.ErrNotFound)
	}
	delete(n.Children, name)
	n.Mtime = time.Now().Unix()
	return nil
}

// Child resolves a name inside a directory node.
func (n *Node) Child(name string) (uint64, bool) {
	ino, ok := n.Children[name]
	return ino, ok
}

// SymlinkTarget returns the target path of a symlink node.
func (n *Node) SymlinkTarget() (string, error) {
	if n.Kind != KindSymlink {
		return "", fmt.Errorf("inode %d is a %s, not a symlink", n.Ino, n.Kind)
	}
	return string(n.Content), nil
}

// Clone returns a deep copy, so cached nodes can be handed out without
// sharing mutable state with callers.
func (n *Node) Clone() *Node {
	out := *n
	if n.Content != nil {
		out.Content = append([]byte(nil), n.Content...)
	}
	if n.Children != nil {
		out.Children = make(map[string]uint64, len(n.Children))
		for name, ino := range n.Children {
			out.Children[name] = ino
		}
	}
	return &out
}
