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

// Package extent models extent-oriented content mapping: contiguous
// (logical, physical, length) runs kept in a sorted tree with adjacent
// runs merged. It backs the extent allocation strategy, which is not on
// the default write path.
package extent

import (
	"fmt"
	"sort"
)

// Extent flag bits.
const (
	// FlagPreallocated marks space reserved ahead of data.
	FlagPreallocated uint32 = 1 << 0
)

// Extent maps a contiguous logical byte run to a physical location.
type Extent struct {
	Logical  uint64
	Physical uint64
	Length   uint64
	Flags    uint32
}

// End returns the first logical byte past the extent.
func (e Extent) End() uint64 { return e.Logical + e.Length }

// contiguous reports whether next continues e both logically and
// physically with identical flags, making the two mergeable.
func (e Extent) contiguous(next Extent) bool {
	return e.End() == next.Logical &&
		e.Physical+e.Length == next.Physical &&
		e.Flags == next.Flags
}

// Tree is a sorted extent map for one node's content. Not safe for
// concurrent use.
type Tree struct {
	extents []Extent // sorted by Logical, non-overlapping
}

// NewTree returns an empty extent tree.
func NewTree() *Tree {
	return &Tree{}
}

// Len reports the number of extents after merging.
func (t *Tree) Len() int { return len(t.extents) }

// Extents returns the sorted extents. The slice aliases internal state.
func (t *Tree) Extents() []Extent { return t.extents }

// Insert adds an extent, keeping the tree sorted and merging it with
// adjacent contiguous runs. Overlapping inserts are rejected.
func (t *Tree) Insert(e Extent) error {
	if e.Length == 0 {
		return fmt.Errorf("extent at logical %d has zero length", e.Logical)
	}
	i := sort.Search(len(t.extents), func(i int) bool {
		return t.extents[i].Logical >= e.Logical
	})
	if i > 0 && t.extents[i-1].End() > e.Logical {
		return fmt.Errorf("extent [%d, %d) overlaps [%d, %d)",
			e.Logical, e.End(), t.extents[i-1].Logical, t.extents[i-1].End())
	}
	if i < len(t.extents) && e.End() > t.extents[i].Logical {
		return fmt.Errorf("extent [%d, %d) overlaps [%d, %d)",
			e.Logical, e.End(), t.extents[i].Logical, t.extents[i].End())
	}

	t.extents = append(t.extents, Extent{})
	copy(t.extents[i+1:], t.extents[i:])
	t.extents[i] = e

	// Merge with the successor first so the predecessor merge sees the
	// combined run.
	if i+1 < len(t.extents) && t.extents[i].contiguous(t.extents[i+1]) {
		t.extents[i].Length += t.extents[i+1].Length
		t.extents = append(t.extents[:i+1], t.extents[i+2:]...)
	}
	if i > 0 && t.extents[i-1].contiguous(t.extents[i]) {
		t.extents[i-1].Length += t.extents[i].Length
		t.extents = append(t.extents[:i], t.extents[i+1:]...)
	}
	return nil
}

// Lookup finds the extent covering the logical offset.
func (t *Tree) Lookup(logical uint64) (Extent, bool) {
	i := sort.Search(len(t.extents), func(i int) bool {
		return t.extents[i].End() > logical
	})
	if i == len(t.extents) || t.extents[i].Logical > logical {
		return Extent{}, false
	}
	return t.extents[i], true
}

// Size returns the total logical bytes mapped.
func (t *Tree) Size() uint64 {
	var total uint64
	for _, e := range t.extents {
		total += e.Length
	}
	return total
}

// Fragmentation scores the tree in [0, 1]: 0 when all content sits in
// one extent, approaching 1 as runs splinter.
func (t *Tree) Fragmentation() float64 {
	if len(t.extents) <= 1 {
		return 0
	}
	return 1 - 1/float64(len(t.extents))
}
