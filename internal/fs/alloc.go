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

import "eclipsefs/internal/extent"

// AllocationStrategy plans how a node's content is placed. The default
// inline strategy embeds content in the TLV record; the extent strategy
// maps it through per-inode extent trees. Swapping strategies never
// touches call sites.
type AllocationStrategy interface {
	Name() string

	// Plan returns the extent layout for writing size content bytes to
	// ino. A nil plan means inline placement inside the record.
	Plan(ino uint64, size uint64) ([]extent.Extent, error)

	// Release drops any layout state held for ino.
	Release(ino uint64)
}

// inlineAlloc is the active strategy: content lives inside the node's
// TLV record, so no extent planning happens.
type inlineAlloc struct{}

func (inlineAlloc) Name() string { return "inline" }

func (inlineAlloc) Plan(uint64, uint64) ([]extent.Extent, error) {
	return nil, nil
}

func (inlineAlloc) Release(uint64) {}

// extentAlloc maps content through per-inode extent trees, allocating
// physical space from a simple bump pointer and merging contiguous runs.
// Nothing selects it by default; it is opted into at mount time via
// WithAllocationStrategy once a workload demonstrates the need.
type extentAlloc struct {
	trees   map[uint64]*extent.Tree
	nextPos uint64
}

// NewExtentAllocator returns the extent-tree strategy with its bump
// allocator starting at base.
func NewExtentAllocator(base uint64) AllocationStrategy {
	return &extentAlloc{
		trees:   make(map[uint64]*extent.Tree),
		nextPos: base,
	}
}

func (a *extentAlloc) Name() string { return "extent" }

func (a *extentAlloc) Plan(ino uint64, size uint64) ([]extent.Extent, error) {
	if size == 0 {
		a.Release(ino)
		return nil, nil
	}
	tree, ok := a.trees[ino]
	if !ok || tree.Size() > size {
		// Shrinking rewrites drop the old mapping and start over.
		tree = extent.NewTree()
		a.trees[ino] = tree
	}
	if grow := size - tree.Size(); grow > 0 {
		e := extent.Extent{
			Logical:  tree.Size(),
			Physical: a.nextPos,
			Length:   grow,
		}
		if err := tree.Insert(e); err != nil {
			return nil, err
		}
		a.nextPos += grow
	}
	return tree.Extents(), nil
}

func (a *extentAlloc) Release(ino uint64) {
	delete(a.trees, ino)
}
