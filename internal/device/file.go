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

package device

import (
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

// lockRetries bounds how long OpenFile waits for another process to
// release the image lock before giving up.
const (
	lockRetries    = 10
	lockRetryDelay = 100 * time.Millisecond
)

// FileDevice backs a filesystem image with a regular file. An exclusive
// advisory lock enforces the single-mounting-owner assumption: a second
// open of the same image fails instead of corrupting it.
type FileDevice struct {
	path string
	file *os.File
	lock *flock.Flock
}

// CreateFile creates a new image file of the given size, pre-extended so
// offsets inside the image are always backed.
func CreateFile(path string, size int64) (*FileDevice, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("image already exists: %s", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("extend image to %d bytes: %w", size, err)
	}
	d := &FileDevice{path: path, file: f, lock: flock.New(path)}
	if err := d.acquireLock(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return d, nil
}

// OpenFile opens an existing image file and takes the exclusive lock,
// retrying briefly in case a previous owner is still shutting down.
func OpenFile(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	d := &FileDevice{path: path, file: f, lock: flock.New(path)}
	if err := d.acquireLock(); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func (d *FileDevice) acquireLock() error {
	err := retry.Do(
		func() error {
			ok, err := d.lock.TryLock()
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !ok {
				return fmt.Errorf("image %s is locked by another owner", d.path)
			}
			return nil
		},
		retry.Attempts(lockRetries),
		retry.Delay(lockRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("lock image: %w", err)
	}
	return nil
}

// ReadAt implements io.ReaderAt.
func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.file.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	return d.file.WriteAt(p, off)
}

// Size returns the image file size.
func (d *FileDevice) Size() (int64, error) {
	fi, err := d.file.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Sync flushes the image file to disk.
func (d *FileDevice) Sync() error {
	return d.file.Sync()
}

// Path returns the image file path.
func (d *FileDevice) Path() string {
	return d.path
}

// Close releases the lock and closes the file.
func (d *FileDevice) Close() error {
	if d.lock != nil {
		if err := d.lock.Unlock(); err != nil {
			log.Warnf("unlock image %s: %v", d.path, err)
		}
	}
	return d.file.Close()
}
