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

// Package device abstracts the block device an EclipseFS image lives on.
// The engine only ever sees this interface; the kernel's VirtIO driver,
// an image file, or an in-memory buffer all plug in behind it.
package device

import "io"

// Device is random-access backing storage for one filesystem image.
// Implementations are not required to be safe for concurrent use; the
// engine serializes access per the single-owner model.
type Device interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the current device size in bytes.
	Size() (int64, error)

	// Sync flushes buffered writes to stable storage.
	Sync() error

	Close() error
}
