// Copyright 2021 TiKV Authors
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

package locate

import (
	"bytes"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"github.com/tikv/gcsafepoint/gc"
)

const btreeDegree = 32

// RegionIndex locates the region owning an arbitrary key, the way
// client-go's RegionCache uses a btree keyed by region start key
// (region_cache.go) to serve LocateKey. The GC engine needs this because a
// lock's primary key resolution always targets the primary's region,
// which is frequently not the region the lock was scanned from.
type RegionIndex struct {
	tree *btree.BTree
}

type regionItem struct {
	region gc.Region
}

func (a regionItem) Less(b btree.Item) bool {
	return bytes.Compare(a.region.Range.StartKey, b.(regionItem).region.Range.StartKey) < 0
}

// NewRegionIndex builds an index over a region-map snapshot.
func NewRegionIndex(regions []gc.Region) *RegionIndex {
	tree := btree.New(btreeDegree)
	for _, r := range regions {
		tree.ReplaceOrInsert(regionItem{region: r})
	}
	return &RegionIndex{tree: tree}
}

// LocateKey returns the region whose range contains key.
func (idx *RegionIndex) LocateKey(key []byte) (gc.Region, error) {
	var found *gc.Region
	pivot := regionItem{region: gc.Region{Range: gc.KeyRange{StartKey: key}}}
	// AscendLessThan ... is insufficient to reliably pick the rightmost
	// entry <= key; walk the tree in reverse descending from the pivot.
	idx.tree.DescendLessOrEqual(pivot, func(item btree.Item) bool {
		r := item.(regionItem).region
		found = &r
		return false
	})
	if found == nil {
		return gc.Region{}, errors.Errorf("locate: no region covers key %x", key)
	}
	if len(found.Range.EndKey) != 0 && bytes.Compare(key, found.Range.EndKey) >= 0 {
		return gc.Region{}, errors.Errorf("locate: key %x falls in a region gap", key)
	}
	return *found, nil
}
