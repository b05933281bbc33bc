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
	"fmt"
	"sort"

	"eclipsefs/internal/format"
)

// IntegrityReport is the result of a full image walk.
type IntegrityReport struct {
	NodesChecked int
	Errors       []string
	ReadOnly     bool
}

// OK reports whether the walk found no problems.
func (r IntegrityReport) OK() bool { return len(r.Errors) == 0 }

// Check walks every live record: table entry validity, TLV structure,
// content checksums (verified during decode) and directory child
// liveness. It reads through the store directly rather than the cache,
// so it sees what is actually on disk.
func (f *FileSystem) Check() IntegrityReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	report := IntegrityReport{ReadOnly: f.readOnly}
	if f.closed {
		report.Errors = append(report.Errors, "filesystem is closed")
		return report
	}

	inos := f.store.Inodes()
	sort.Slice(inos, func(i, j int) bool { return inos[i] < inos[j] })

	live := make(map[uint64]bool, len(inos))
	for _, ino := range inos {
		live[ino] = true
	}

	for _, ino := range inos {
		if ino == format.CatalogInode {
			continue
		}
		report.NodesChecked++
		payload, err := f.store.ReadRecord(ino)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("inode %d: %v", ino, err))
			continue
		}
		n, err := decodeNode(ino, payload, f.engine)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("inode %d: %v", ino, err))
			continue
		}
		if n.Kind == KindDirectory {
			for name, child := range n.Children {
				if !live[child] {
					report.Errors = append(report.Errors,
						fmt.Sprintf("inode %d: child %q points at missing inode %d", ino, name, child))
				}
			}
		}
	}

	if !live[format.RootInode] {
		report.Errors = append(report.Errors, "root directory record is missing")
	}
	return report
}
