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
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/tikv/gcsafepoint/gc"
	"github.com/tikv/gcsafepoint/internal/oracle"
)

// pdClient implements gc.CoordinatorClient atop a real pd.Client for region/TSO/safe-point
// calls and an etcd KV (PD's own storage engine) for control-key reads,
// keyed by a flat control-key namespace.
type pdClient struct {
	pd  pd.Client
	kv  clientv3.KV
	ns  string // key namespace prefix, e.g. "/gc/"
}

// NewPDClient builds a gc.CoordinatorClient backed by pd and kv. ns
// prefixes every control key read, so multiple clusters can share one etcd.
func NewPDClient(pdc pd.Client, kv clientv3.KV, ns string) gc.CoordinatorClient {
	return &pdClient{pd: pdc, kv: kv, ns: ns}
}

func (c *pdClient) RegionMap(ctx context.Context, reqTs gc.Timestamp) ([]gc.Region, error) {
	pdRegions, err := c.pd.ScanRegions(ctx, []byte{}, []byte{}, -1)
	if err != nil {
		return nil, errors.Wrap(err, "coordinator: scan regions")
	}
	regions := make([]gc.Region, 0, len(pdRegions))
	for _, r := range pdRegions {
		meta := r.Meta
		if meta == nil {
			continue
		}
		kr := gc.KeyRange{StartKey: meta.GetStartKey(), EndKey: meta.GetEndKey()}
		regions = append(regions, gc.Region{
			ID:    meta.GetId(),
			Type:  deriveRegionType(kr.StartKey),
			Range: kr,
		})
	}
	return regions, nil
}

func (c *pdClient) ControlKey(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := c.kv.Get(ctx, c.ns+key)
	if err != nil {
		return nil, false, errors.Wrapf(err, "coordinator: read control key %q", key)
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (c *pdClient) UpdateGCSafePoint(ctx context.Context, safePoint gc.Timestamp) (gc.Timestamp, error) {
	recorded, err := c.pd.UpdateGCSafePoint(ctx, uint64(safePoint))
	if err != nil {
		return 0, errors.Wrap(err, "coordinator: update gc safe point")
	}
	return gc.Timestamp(recorded), nil
}

func (c *pdClient) TS(ctx context.Context) (gc.Timestamp, error) {
	physical, logical, err := c.pd.GetTS(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "coordinator: get ts")
	}
	return gc.Timestamp(oracle.ComposeTS(physical, logical)), nil
}
