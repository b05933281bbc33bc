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

package compress

import "fmt"

// rleCodec is the reference codec: byte-level run-length encoding as
// {count u8, byte} pairs. Simple enough to verify by hand, effective on
// the low-entropy data the gate admits, and dependency-free.
type rleCodec struct{}

func (rleCodec) ID() CodecID  { return CodecRLE }
func (rleCodec) Name() string { return "rle" }

func (rleCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrIncompressible
	}
	out := make([]byte, 0, len(data))
	run := byte(1)
	for i := 1; i <= len(data); i++ {
		if i < len(data) && data[i] == data[i-1] && run < 255 {
			run++
			continue
		}
		out = append(out, run, data[i-1])
		run = 1
	}
	if len(out) >= len(data) {
		return nil, ErrIncompressible
	}
	return out, nil
}

func (rleCodec) Decompress(data []byte, originalSize int) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("rle decompress: odd encoded length %d", len(data))
	}
	out := make([]byte, 0, originalSize)
	for i := 0; i < len(data); i += 2 {
		count := int(data[i])
		if len(out)+count > originalSize {
			return nil, fmt.Errorf("rle decompress: output overruns expected %d bytes", originalSize)
		}
		for j := 0; j < count; j++ {
			out = append(out, data[i+1])
		}
	}
	if len(out) != originalSize {
		return nil, fmt.Errorf("rle decompress: got %d bytes, expected %d", len(out), originalSize)
	}
	return out, nil
}
