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

// Package locate dispatches RPCs to the store or index service owning a
// given region: a region-id-keyed, TTL'd client cache, refreshed on demand.
// Store-selection, follower reads, and TiFlash routing belong to the query
// path, not GC, and are left out.
package locate

import (
	"context"
	"sync"
	"time"

	farm "github.com/dgryski/go-farm"
	"golang.org/x/sync/singleflight"

	gclient "github.com/tikv/gcsafepoint/internal/client"
	"github.com/tikv/gcsafepoint/gc"
)

// AddressResolver maps a region id to the store address currently serving
// it, and the index-store address when the region is an index region. This
// is the one remaining coordinator dependency the router has: it does not
// itself know region-to-store placement.
type AddressResolver interface {
	StoreAddr(ctx context.Context, regionID uint64, regionType gc.RegionType) (string, error)
}

// cacheShards spreads the client cache across a fixed number of locked
// shards, keyed by a fast, non-cryptographic fingerprint of the region id.
const cacheShards = 16

type cacheEntry struct {
	client   gclient.RegionClient
	addr     string
	expireAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[uint64]*cacheEntry
}

// Router caches RegionClients per region id with a bounded TTL, refreshing
// them transparently when they expire or the caller reports a stale
// dispatch (region-not-found / region-split, handled by InvalidateRegion).
type Router struct {
	resolver AddressResolver
	ttl      time.Duration
	dial     func(addr string) (gclient.RegionClient, error)
	shards   [cacheShards]*shard
	group    singleflight.Group
}

// NewRouter builds a Router whose entries expire after ttl.
func NewRouter(resolver AddressResolver, ttl time.Duration) *Router {
	r := &Router{resolver: resolver, ttl: ttl, dial: gclient.Dial}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[uint64]*cacheEntry)}
	}
	return r
}

func (r *Router) shardFor(regionID uint64) *shard {
	h := farm.Hash64([]byte{
		byte(regionID), byte(regionID >> 8), byte(regionID >> 16), byte(regionID >> 24),
		byte(regionID >> 32), byte(regionID >> 40), byte(regionID >> 48), byte(regionID >> 56),
	})
	return r.shards[h%cacheShards]
}

// Client returns a RegionClient bound to the store serving regionID as the
// given RegionType, dialing and caching it if needed.
func (r *Router) Client(ctx context.Context, regionID uint64, regionType gc.RegionType) (gclient.RegionClient, error) {
	s := r.shardFor(regionID)

	s.mu.Lock()
	entry, ok := s.entries[regionID]
	if ok && time.Now().Before(entry.expireAt) {
		s.mu.Unlock()
		return entry.client, nil
	}
	s.mu.Unlock()

	v, err, _ := r.group.Do(regionKey(regionID), func() (interface{}, error) {
		addr, err := r.resolver.StoreAddr(ctx, regionID, regionType)
		if err != nil {
			return nil, err
		}
		cli, err := r.dial(addr)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.entries[regionID] = &cacheEntry{client: cli, addr: addr, expireAt: time.Now().Add(r.ttl)}
		s.mu.Unlock()
		return cli, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(gclient.RegionClient), nil
}

// InvalidateRegion drops a cached client, forcing the next Client call to
// re-resolve and re-dial. Callers do this on region-not-found/region-split
// responses.
func (r *Router) InvalidateRegion(regionID uint64) {
	s := r.shardFor(regionID)
	s.mu.Lock()
	delete(s.entries, regionID)
	s.mu.Unlock()
}

func regionKey(regionID uint64) string {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(regionID >> (8 * i))
	}
	return string(buf)
}
