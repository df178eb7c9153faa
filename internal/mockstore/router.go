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

package mockstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"

	gclient "github.com/tikv/gcsafepoint/internal/client"
	"github.com/tikv/gcsafepoint/gc"
)

// StaticRouter satisfies gc.RegionClientResolver directly against a fixed
// region-to-client map, standing in for internal/locate.Resolver + Router
// in tests that don't need real dialing or TTL expiry.
type StaticRouter struct {
	mu      sync.Mutex
	regions []gc.Region
	clients map[uint64]gclient.RegionClient
}

// NewStaticRouter builds an empty router.
func NewStaticRouter() *StaticRouter {
	return &StaticRouter{clients: make(map[uint64]gclient.RegionClient)}
}

// AddRegion registers region's client, making it reachable both by id
// (ClientForRegion) and by key range (ClientForKey).
func (r *StaticRouter) AddRegion(region gc.Region, client gclient.RegionClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions = append(r.regions, region)
	r.clients[region.ID] = client
}

func (r *StaticRouter) ClientForRegion(ctx context.Context, regionID uint64, regionType gc.RegionType) (gclient.RegionClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cli, ok := r.clients[regionID]
	if !ok {
		return nil, errors.Errorf("mockstore: no client for region %d", regionID)
	}
	return cli, nil
}

func (r *StaticRouter) ClientForKey(ctx context.Context, key []byte) (gclient.RegionClient, gc.Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, region := range r.regions {
		if bytes.Compare(key, region.Range.StartKey) < 0 {
			continue
		}
		if len(region.Range.EndKey) > 0 && bytes.Compare(key, region.Range.EndKey) >= 0 {
			continue
		}
		return r.clients[region.ID], region, nil
	}
	return nil, gc.Region{}, errors.Errorf("mockstore: no region covers key %x", key)
}
