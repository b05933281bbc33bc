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

	"eclipsefs/internal/common"
)

// Header is the image header at offset 0.
type Header struct {
	Version          uint32
	InodeTableOffset uint64
	InodeTableSize   uint64
	TotalInodes      uint32
}

// NewHeader builds a header for an image whose inode table holds up to
// maxInodes entries directly after the header region.
func NewHeader(maxInodes uint32) Header {
	return Header{
		Version:          Version,
		InodeTableOffset: HeaderSize,
		InodeTableSize:   uint64(maxInodes) * TableEntrySize,
		TotalInodes:      0,
	}
}

// Encode serializes the header into a HeaderSize buffer, zero padded.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf, Magic)
	off := len(Magic)
	binary.LittleEndian.PutUint32(buf[off:], h.Version)
	binary.LittleEndian.PutUint64(buf[off+4:], h.InodeTableOffset)
	binary.LittleEndian.PutUint64(buf[off+12:], h.InodeTableSize)
	binary.LittleEndian.PutUint32(buf[off+20:], h.TotalInodes)
	return buf
}

// DecodeHeader parses and validates an image header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, &common.CorruptionError{
			Reason:   "short header",
			Observed: uint64(len(buf)),
			Limit:    HeaderSize,
		}
	}
	if string(buf[:len(Magic)]) != Magic {
		return Header{}, &common.CorruptionError{Reason: "bad magic"}
	}
	off := len(Magic)
	h := Header{
		Version:          binary.LittleEndian.Uint32(buf[off:]),
		InodeTableOffset: binary.LittleEndian.Uint64(buf[off+4:]),
		InodeTableSize:   binary.LittleEndian.Uint64(buf[off+12:]),
		TotalInodes:      binary.LittleEndian.Uint32(buf[off+20:]),
	}
	if h.Version == 0 || h.Version > Version {
		return Header{}, &common.CorruptionError{
			Reason:   "unsupported version",
			Observed: uint64(h.Version),
			Limit:    Version,
		}
	}
	if h.InodeTableOffset < HeaderSize {
		return Header{}, &common.CorruptionError{
			Reason:   "inode table overlaps header",
			Observed: h.InodeTableOffset,
			Limit:    HeaderSize,
		}
	}
	if h.InodeTableSize%TableEntrySize != 0 {
		return Header{}, &common.CorruptionError{
			Reason:   "inode table size not a multiple of entry size",
			Observed: h.InodeTableSize,
			Limit:    TableEntrySize,
		}
	}
	return h, nil
}

// MaxInodes returns the capacity of the inode table.
func (h Header) MaxInodes() uint32 {
	return uint32(h.InodeTableSize / TableEntrySize)
}

// RecordsOffset returns the offset of the first byte after the inode
// table, where the record region begins.
func (h Header) RecordsOffset() uint64 {
	return h.InodeTableOffset + h.InodeTableSize
}
