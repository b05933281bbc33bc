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

package format

import "encoding/binary"

// InodeTableEntry maps an inode number to its record's location in the
// record region. A zero entry (all fields zero) is an empty slot.
type InodeTableEntry struct {
	Inode  uint64
	Offset uint64
	Length uint32
}

// IsZero reports whether the slot is unused.
func (e InodeTableEntry) IsZero() bool {
	return e.Inode == 0 && e.Offset == 0 && e.Length == 0
}

// Encode serializes the entry into a TableEntrySize buffer.
func (e InodeTableEntry) Encode() []byte {
	buf := make([]byte, TableEntrySize)
	binary.LittleEndian.PutUint64(buf[0:], e.Inode)
	binary.LittleEndian.PutUint64(buf[8:], e.Offset)
	binary.LittleEndian.PutUint32(buf[16:], e.Length)
	return buf
}

// DecodeTableEntry parses one inode table entry.
func DecodeTableEntry(buf []byte) InodeTableEntry {
	return InodeTableEntry{
		Inode:  binary.LittleEndian.Uint64(buf[0:]),
		Offset: binary.LittleEndian.Uint64(buf[8:]),
		Length: binary.LittleEndian.Uint32(buf[16:]),
	}
}
