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

import (
	"encoding/binary"
	"fmt"
	"sort"

	"eclipsefs/internal/common"
)

// ValidateRecordLength rejects a declared record length above MaxRecordSize
// or below the fixed record header. The length is untrusted disk input and
// must pass here before any buffer is allocated from it.
func ValidateRecordLength(length uint64) error {
	if length > MaxRecordSize {
		return &common.CorruptionError{
			Reason:   "record length above ceiling",
			Observed: length,
			Limit:    MaxRecordSize,
		}
	}
	if length < RecordHeaderSize {
		return &common.CorruptionError{
			Reason:   "record length below header size",
			Observed: length,
			Limit:    RecordHeaderSize,
		}
	}
	return nil
}

// EncodeRecordHeader writes the fixed record header in front of a TLV
// stream. size is the full record size including the header.
func EncodeRecordHeader(inode uint64, size uint32) []byte {
	buf := make([]byte, RecordHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:], inode)
	binary.LittleEndian.PutUint32(buf[8:], size)
	return buf
}

// DecodeRecordHeader parses the fixed record header and validates the
// declared size against the ceiling before the caller reads the rest.
func DecodeRecordHeader(buf []byte) (inode uint64, size uint32, err error) {
	if len(buf) < RecordHeaderSize {
		return 0, 0, &common.CorruptionError{
			Reason:   "short record header",
			Observed: uint64(len(buf)),
			Limit:    RecordHeaderSize,
		}
	}
	inode = binary.LittleEndian.Uint64(buf[0:])
	size = binary.LittleEndian.Uint32(buf[8:])
	if err := ValidateRecordLength(uint64(size)); err != nil {
		return 0, 0, err
	}
	return inode, size, nil
}

// AppendTLV appends one tag-length-value entry to dst and returns the
// extended slice.
func AppendTLV(dst []byte, tag uint16, value []byte) []byte {
	var hdr [TLVHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:], tag)
	binary.LittleEndian.PutUint32(hdr[2:], uint32(len(value)))
	dst = append(dst, hdr[:]...)
	return append(dst, value...)
}

// AppendTLVUint32 appends a 4-byte little-endian value.
func AppendTLVUint32(dst []byte, tag uint16, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return AppendTLV(dst, tag, b[:])
}

// AppendTLVUint64 appends an 8-byte little-endian value.
func AppendTLVUint64(dst []byte, tag uint16, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return AppendTLV(dst, tag, b[:])
}

// TLVScanner walks a TLV stream with bounds checks. A truncated entry
// stops the scan with an error rather than reading past the buffer.
type TLVScanner struct {
	buf []byte
	off int

	tag   uint16
	value []byte
	err   error
}

// NewTLVScanner scans the TLV stream in buf (the record bytes after the
// fixed record header).
func NewTLVScanner(buf []byte) *TLVScanner {
	return &TLVScanner{buf: buf}
}

// Next advances to the next entry. It returns false at the end of the
// stream or on a malformed entry; check Err to tell the two apart.
func (s *TLVScanner) Next() bool {
	if s.err != nil || s.off >= len(s.buf) {
		return false
	}
	if s.off+TLVHeaderSize > len(s.buf) {
		s.err = &common.CorruptionError{
			Reason:   fmt.Sprintf("truncated TLV header at offset %d", s.off),
			Observed: uint64(len(s.buf) - s.off),
			Limit:    TLVHeaderSize,
		}
		return false
	}
	tag := binary.LittleEndian.Uint16(s.buf[s.off:])
	length := int(binary.LittleEndian.Uint32(s.buf[s.off+2:]))
	s.off += TLVHeaderSize
	if length < 0 || s.off+length > len(s.buf) {
		s.err = &common.CorruptionError{
			Reason:   fmt.Sprintf("TLV value for tag %d overruns record", tag),
			Observed: uint64(length),
			Limit:    uint64(len(s.buf) - s.off),
		}
		return false
	}
	s.tag = tag
	s.value = s.buf[s.off : s.off+length]
	s.off += length
	return true
}

// Tag returns the current entry's tag.
func (s *TLVScanner) Tag() uint16 { return s.tag }

// Value returns the current entry's value bytes, aliasing the scanned
// buffer.
func (s *TLVScanner) Value() []byte { return s.value }

// Err returns the malformed-entry error, if any.
func (s *TLVScanner) Err() error { return s.err }

// EncodeDirEntries serializes directory children as repeated
// {nameLen u32, childInode u64, name} groups, sorted by name so encoding
// is deterministic.
func EncodeDirEntries(children map[string]uint64) []byte {
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf []byte
	for _, name := range names {
		var hdr [12]byte
		binary.LittleEndian.PutUint32(hdr[0:], uint32(len(name)))
		binary.LittleEndian.PutUint64(hdr[4:], children[name])
		buf = append(buf, hdr[:]...)
		buf = append(buf, name...)
	}
	return buf
}

// DecodeDirEntries parses the directory-children encoding.
func DecodeDirEntries(buf []byte) (map[string]uint64, error) {
	children := make(map[string]uint64)
	off := 0
	for off < len(buf) {
		if off+12 > len(buf) {
			return nil, &common.CorruptionError{
				Reason:   "truncated directory entry header",
				Observed: uint64(len(buf) - off),
				Limit:    12,
			}
		}
		nameLen := int(binary.LittleEndian.Uint32(buf[off:]))
		childInode := binary.LittleEndian.Uint64(buf[off+4:])
		off += 12
		if nameLen < 0 || off+nameLen > len(buf) {
			return nil, &common.CorruptionError{
				Reason:   "directory entry name overruns value",
				Observed: uint64(nameLen),
				Limit:    uint64(len(buf) - off),
			}
		}
		children[string(buf[off:off+nameLen])] = childInode
		off += nameLen
	}
	return children, nil
}
