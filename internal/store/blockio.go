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
	"errors"
	"io"

	"eclipsefs/internal/common"
)

// readBounded fills buf from r starting at off, reading at most blockSize
// bytes per iteration. The iteration count is capped at
// ceil(len(buf)/blockSize) plus a fixed safety margin: corrupted metadata
// or a defective device that reports progress it did not make would
// otherwise turn this loop into an unbounded read. Exceeding the cap
// aborts with an IterationLimitError carrying the loop state.
func readBounded(r io.ReaderAt, off int64, buf []byte, blockSize int) error {
	const safetyMargin = 10

	limit := (len(buf)+blockSize-1)/blockSize + safetyMargin
	read := 0
	block := 0
	for iter := 0; read < len(buf); iter++ {
		if iter >= limit {
			return &common.IterationLimitError{
				BytesRead:      uint64(read),
				BytesRemaining: uint64(len(buf) - read),
				BlockIndex:     block,
				Limit:          limit,
			}
		}
		end := read + blockSize
		if end > len(buf) {
			end = len(buf)
		}
		want := end - read
		n, err := r.ReadAt(buf[read:end], off+int64(read))
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) && read >= len(buf) {
				break
			}
			return err
		}
		if n == want {
			block++
		}
	}
	return nil
}
