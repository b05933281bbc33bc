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
	"encoding/binary"
	"fmt"

	"eclipsefs/internal/common"
	"eclipsefs/internal/compress"
	"eclipsefs/internal/format"
)

// encodeNode serializes a node into its TLV record payload. File content
// goes through the compression gate; when the engine beats the original
// size the framed bytes are stored and FlagCompressed is set.
func encodeNode(n *Node, eng *compress.Engine) []byte {
	var flags uint32
	content := n.Content
	if eng != nil && n.Kind == KindFile && len(content) > 0 {
		if framed, ok := eng.Compress(content); ok {
			content = framed
			flags |= format.FlagCompressed
		}
	}

	var kind [1]byte
	kind[0] = byte(n.Kind)
	buf := format.AppendTLV(nil, format.TagNodeKind, kind[:])
	buf = format.AppendTLVUint32(buf, format.TagMode, n.Mode)
	buf = format.AppendTLVUint32(buf, format.TagUID, n.UID)
	buf = format.AppendTLVUint32(buf, format.TagGID, n.GID)
	buf = format.AppendTLVUint64(buf, format.TagSize, n.Size)
	buf = format.AppendTLVUint64(buf, format.TagAtime, uint64(n.Atime))
	buf = format.AppendTLVUint64(buf, format.TagMtime, uint64(n.Mtime))
	buf = format.AppendTLVUint64(buf, format.TagCtime, uint64(n.Ctime))
	buf = format.AppendTLVUint32(buf, format.TagNlink, n.Nlink)
	buf = format.AppendTLVUint32(buf, format.TagChecksum, n.Checksum)
	if flags != 0 {
		buf = format.AppendTLVUint32(buf, format.TagFlags, flags)
	}
	if n.Version != 0 {
		buf = format.AppendTLVUint64(buf, format.TagVersion, n.Version)
	}
	if n.ParentVersion != 0 {
		buf = format.AppendTLVUint64(buf, format.TagParentVersion, n.ParentVersion)
	}
	switch n.Kind {
	case KindDirectory:
		buf = format.AppendTLV(buf, format.TagDirEntries, format.EncodeDirEntries(n.Children))
	default:
		if len(content) > 0 {
			buf = format.AppendTLV(buf, format.TagContent, content)
		}
	}
	return buf
}

// decodeNode parses a TLV record payload back into a node. Compressed
// content is expanded and the content checksum is verified against the
// stored one; unknown tags are skipped.
func decodeNode(ino uint64, payload []byte, eng *compress.Engine) (*Node, error) {
	n := &Node{Ino: ino}
	var flags uint32
	var content []byte

	s := format.NewTLVScanner(payload)
	for s.Next() {
		v := s.Value()
		switch s.Tag() {
		case format.TagNodeKind:
			if len(v) != 1 {
				return nil, tlvSizeError(ino, "node kind", len(v), 1)
			}
			n.Kind = NodeKind(v[0])
		case format.TagMode:
			n.Mode = tlvUint32(v)
		case format.TagUID:
			n.UID = tlvUint32(v)
		case format.TagGID:
			n.GID = tlvUint32(v)
		case format.TagSize:
			n.Size = tlvUint64(v)
		case format.TagAtime:
			n.Atime = int64(tlvUint64(v))
		case format.TagMtime:
			n.Mtime = int64(tlvUint64(v))
		case format.TagCtime:
			n.Ctime = int64(tlvUint64(v))
		case format.TagNlink:
			n.Nlink = tlvUint32(v)
		case format.TagChecksum:
			n.Checksum = tlvUint32(v)
		case format.TagFlags:
			flags = tlvUint32(v)
		case format.TagVersion:
			n.Version = tlvUint64(v)
		case format.TagParentVersion:
			n.ParentVersion = tlvUint64(v)
		case format.TagContent:
			content = append([]byte(nil), v...)
		case format.TagDirEntries:
			children, err := format.DecodeDirEntries(v)
			if err != nil {
				return nil, fmt.Errorf("inode %d: %w", ino, err)
			}
			n.Children = children
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("inode %d: %w", ino, err)
	}
	if !n.Kind.Valid() {
		return nil, &common.CorruptionError{
			Reason: fmt.Sprintf("inode %d has unknown node kind %d", ino, n.Kind),
		}
	}
	if n.Kind == KindDirectory && n.Children == nil {
		n.Children = make(map[string]uint64)
	}

	if flags&format.FlagCompressed != 0 {
		if eng == nil {
			return nil, &common.CorruptionError{
				Reason: fmt.Sprintf("inode %d has compressed content but no engine", ino),
			}
		}
		raw, err := eng.Decompress(content)
		if err != nil {
			return nil, fmt.Errorf("inode %d: %w", ino, err)
		}
		content = raw
	}
	n.Content = content

	if n.Kind != KindDirectory && n.Checksum != format.Checksum(n.Content) {
		return nil, &common.CorruptionError{
			Reason:   fmt.Sprintf("inode %d content checksum mismatch", ino),
			Observed: uint64(format.Checksum(n.Content)),
			Limit:    uint64(n.Checksum),
		}
	}
	return n, nil
}

func tlvUint32(v []byte) uint32 {
	if len(v) != 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(v)
}

func tlvUint64(v []byte) uint64 {
	if len(v) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

func tlvSizeError(ino uint64, field string, got, want int) error {
	return &common.CorruptionError{
		Reason:   fmt.Sprintf("inode %d %s value has wrong size", ino, field),
		Observed: uint64(got),
		Limit:    uint64(want),
	}
}
