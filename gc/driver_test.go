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

package gc_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tikv/gcsafepoint/gc"
	"github.com/tikv/gcsafepoint/internal/mockstore"
)

func TestDriver_TickPublishesSafePoint(t *testing.T) {
	clock := mockstore.NewClock(1_000_000_000)
	region := tableRegion(1, "t1", "t2")
	coord := mockstore.NewCoordinator(clock, []gc.Region{region})
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, 1000)
	coord.SetControlKey(gc.ControlKeyTxnDuration, buf)

	store := mockstore.NewRegionStore(clock)
	router := mockstore.NewStaticRouter()
	router.AddRegion(region, store)

	computer := gc.NewSafePointComputer(coord, newPeerLocks(t))
	engine := gc.NewScanResolveEngine(coord, router, gc.DefaultScanLimit)
	driver := gc.NewDriver(coord, computer, engine, nil)

	published, err := driver.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, published, coord.SafePoint())
}

func TestDriver_TickSkipsPublishWhenDisabled(t *testing.T) {
	clock := mockstore.NewClock(1_000_000_000)
	region := tableRegion(1, "t1", "t2")
	coord := mockstore.NewCoordinator(clock, []gc.Region{region})
	coord.SetControlKey(gc.ControlKeySafePointDisable, []byte{1})

	store := mockstore.NewRegionStore(clock)
	router := mockstore.NewStaticRouter()
	router.AddRegion(region, store)

	computer := gc.NewSafePointComputer(coord, newPeerLocks(t))
	engine := gc.NewScanResolveEngine(coord, router, gc.DefaultScanLimit)
	driver := gc.NewDriver(coord, computer, engine, nil)

	_, err := driver.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, gc.Timestamp(0), coord.SafePoint(), "publish-disable must suppress UpdateGCSafePoint")
}
