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
	"context"
	"sync/atomic"

	gclient "github.com/tikv/gcsafepoint/internal/client"
	"github.com/tikv/gcsafepoint/gc"
)

// Resolver satisfies gc.RegionClientResolver by combining a Router (client
// dial/cache) with a RegionIndex snapshot (key-to-region lookup) that the
// driver refreshes once per tick via SetRegions.
type Resolver struct {
	router *Router
	index  atomic.Value // *RegionIndex
}

// NewResolver builds a Resolver with an empty region index; call SetRegions
// before the first tick.
func NewResolver(router *Router) *Resolver {
	r := &Resolver{router: router}
	r.index.Store(NewRegionIndex(nil))
	return r
}

// SetRegions replaces the region index used by ClientForKey. The driver
// calls this once per tick with the region map it just fetched, so primary
// lookups never race a concurrent tick (there is only ever one, since the
// scheduler's re-entrancy latch rules out overlap).
func (r *Resolver) SetRegions(regions []gc.Region) {
	r.index.Store(NewRegionIndex(regions))
}

// ClientForRegion dials (or reuses) the client for a region known by id.
func (r *Resolver) ClientForRegion(ctx context.Context, regionID uint64, regionType gc.RegionType) (gclient.RegionClient, error) {
	return r.router.Client(ctx, regionID, regionType)
}

// ClientForKey locates the region owning key in the current snapshot and
// returns a client for it, used to address a lock's primary.
func (r *Resolver) ClientForKey(ctx context.Context, key []byte) (gclient.RegionClient, gc.Region, error) {
	idx := r.index.Load().(*RegionIndex)
	region, err := idx.LocateKey(key)
	if err != nil {
		return nil, gc.Region{}, err
	}
	cli, err := r.router.Client(ctx, region.ID, region.Type)
	if err != nil {
		return nil, gc.Region{}, err
	}
	return cli, region, nil
}
