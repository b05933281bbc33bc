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

// Package format defines the EclipseFS on-disk byte layout: the image
// header, the inode table, and the TLV node records. All integers are
// little-endian. Nothing here touches a device; callers hand in and
// receive byte slices.
package format

import "hash/crc32"

// Magic identifies an EclipseFS image. 9 bytes, no terminator.
const Magic = "ECLIPSEFS"

// Version is the current on-disk format version.
const Version = 2

// HeaderSize is the fixed size of the image header region. The encoded
// header is smaller; the remainder is zero padding so the inode table can
// start at a stable offset.
const HeaderSize = 64

// MaxRecordSize is the hard ceiling on a node record's declared length.
// A length above it is rejected before any buffer is sized from it, so a
// corrupted or adversarial length field cannot trigger unbounded
// allocation or I/O.
const MaxRecordSize = 16 * 1024 * 1024

// RootInode is the inode number of the filesystem root directory.
// Inode 0 is reserved for the snapshot catalog record.
const RootInode uint64 = 1

// CatalogInode is the reserved inode holding the snapshot catalog.
const CatalogInode uint64 = 0

// TableEntrySize is the size of one inode table entry:
// inode u64 + record offset u64 + record length u32.
const TableEntrySize = 20

// RecordHeaderSize is the size of the fixed header in front of each
// record's TLV stream: inode u64 + record size u32 (size includes the
// header itself).
const RecordHeaderSize = 12

// TLVHeaderSize is tag u16 + length u32.
const TLVHeaderSize = 6

// TLV tags for node record fields. Unknown tags are skipped on decode so
// newer images stay readable by older code.
const (
	TagNodeKind uint16 = iota + 1
	TagMode
	TagUID
	TagGID
	TagSize
	TagAtime
	TagMtime
	TagCtime
	TagNlink
	TagContent
	TagDirEntries
	TagChecksum
	TagFlags
	TagVersion
	TagParentVersion
)

// Record flag bits (TagFlags value).
const (
	// FlagCompressed marks the content value as codec-framed compressed
	// bytes rather than raw content.
	FlagCompressed uint32 = 1 << 0
)

// Checksum computes the CRC32 (IEEE) of payload bytes. It is the single
// checksum routine for records, node content, and journal entries.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}
