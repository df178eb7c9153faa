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

package coordinator

import (
	"context"

	"github.com/pkg/errors"
	pd "github.com/tikv/pd/client"

	"github.com/tikv/gcsafepoint/gc"
)

// StoreResolver implements locate.AddressResolver against pd: it asks PD
// for a region's current leader, then for that store's address. Index
// regions are served by the same store fleet as data regions in this
// cluster layout, so regionType doesn't change the lookup.
type StoreResolver struct {
	pd pd.Client
}

// NewStoreResolver builds a StoreResolver over pdc.
func NewStoreResolver(pdc pd.Client) *StoreResolver {
	return &StoreResolver{pd: pdc}
}

func (r *StoreResolver) StoreAddr(ctx context.Context, regionID uint64, regionType gc.RegionType) (string, error) {
	region, err := r.pd.GetRegionByID(ctx, regionID)
	if err != nil {
		return "", errors.Wrapf(err, "storeresolver: region %d", regionID)
	}
	if region == nil || region.Leader == nil {
		return "", errors.Errorf("storeresolver: region %d has no leader", regionID)
	}

	store, err := r.pd.GetStore(ctx, region.Leader.GetStoreId())
	if err != nil {
		return "", errors.Wrapf(err, "storeresolver: store %d", region.Leader.GetStoreId())
	}
	if store == nil {
		return "", errors.Errorf("storeresolver: store %d not found", region.Leader.GetStoreId())
	}
	return store.GetAddress(), nil
}
