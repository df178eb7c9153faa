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
	"testing"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/stretchr/testify/require"

	"github.com/tikv/gcsafepoint/gc"
	"github.com/tikv/gcsafepoint/internal/mockstore"
)

func tableRegion(id uint64, start, end string) gc.Region {
	return gc.Region{
		ID:   id,
		Type: gc.DataRegion,
		Range: gc.KeyRange{
			StartKey: []byte(start),
			EndKey:   []byte(end),
		},
	}
}

func TestScanResolveEngine_CommitsDecidedLock(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	region := tableRegion(1, "t1", "t2")
	store := mockstore.NewRegionStore(clock)
	// A secondary lock whose primary ("t1_r1") already committed elsewhere;
	// the primary's own lock record is gone, only the resolved outcome
	// remains, exactly as a real primary-then-secondary commit leaves it.
	store.PutLock([]byte("t1_r2"), []byte("t1_r1"), 10, 0, 10_000, kvrpcpb.Op_Put)
	store.MarkResolved(10, 20) // primary already committed at ts 20

	router := mockstore.NewStaticRouter()
	router.AddRegion(region, store)

	coord := mockstore.NewCoordinator(clock, []gc.Region{region})
	engine := gc.NewScanResolveEngine(coord, router, gc.DefaultScanLimit)

	safeTs, err := engine.Run(context.Background(), gc.Timestamp(100_000), gc.Timestamp(100_000))
	require.NoError(t, err)
	require.Equal(t, gc.Timestamp(100_000), safeTs, "a cleanly resolved lock must not downgrade safeTs")
	require.Equal(t, 0, store.LockCount())
}

func TestScanResolveEngine_PessimisticRollbackOnExpiredLock(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	region := tableRegion(1, "t1", "t2")
	store := mockstore.NewRegionStore(clock)
	// LockType Op_Lock + nonzero forUpdateTs marks a pessimistic row lock;
	// ttl 1ms so it reads as expired once CurrentTs advances past
	// lock.startTS + ttl.
	startTS := uint64(10) << 18
	store.PutLock([]byte("t1_r1"), []byte("t1_r1"), startTS, startTS, 1, kvrpcpb.Op_Lock)

	router := mockstore.NewStaticRouter()
	router.AddRegion(region, store)

	coord := mockstore.NewCoordinator(clock, []gc.Region{region})
	engine := gc.NewScanResolveEngine(coord, router, gc.DefaultScanLimit)

	farFuture := gc.Timestamp(uint64(10_000) << 18)
	safeTs, err := engine.Run(context.Background(), farFuture, farFuture)
	require.NoError(t, err)
	require.Equal(t, farFuture, safeTs)
	require.Equal(t, 0, store.LockCount(), "an expired pessimistic lock must be rolled back")
}

func TestScanResolveEngine_UndecidedLockDowngradesSafeTs(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	region := tableRegion(1, "t1", "t2")
	store := mockstore.NewRegionStore(clock)
	liveStartTS := uint64(50_000) << 18
	store.PutLock([]byte("t1_r1"), []byte("t1_r1"), liveStartTS, 0, uint64(1)<<40, kvrpcpb.Op_Put)

	router := mockstore.NewStaticRouter()
	router.AddRegion(region, store)

	coord := mockstore.NewCoordinator(clock, []gc.Region{region})
	engine := gc.NewScanResolveEngine(coord, router, gc.DefaultScanLimit)

	reqTs := gc.Timestamp(uint64(100_000) << 18)
	safeTs, err := engine.Run(context.Background(), reqTs, reqTs)
	require.NoError(t, err)
	require.Equal(t, gc.Timestamp(liveStartTS), safeTs, "a live, undecided lock must cap safeTs at its own lockTs")
	require.Equal(t, 1, store.LockCount(), "a live lock must be left alone, not deleted")
}

func TestScanResolveEngine_SkipsNonTableRegions(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	metaRegion := gc.Region{ID: 2, Type: gc.OtherRegion, Range: gc.KeyRange{StartKey: []byte("m"), EndKey: []byte("n")}}
	store := mockstore.NewRegionStore(clock)
	// A lock under a non-table region must never be scanned; if it
	// were, this live lock would downgrade safeTs to 5.
	store.PutLock([]byte("m1"), []byte("m1"), 5, 0, uint64(1)<<40, kvrpcpb.Op_Put)

	router := mockstore.NewStaticRouter()
	router.AddRegion(metaRegion, store)

	coord := mockstore.NewCoordinator(clock, []gc.Region{metaRegion})
	engine := gc.NewScanResolveEngine(coord, router, gc.DefaultScanLimit)

	safeTs, err := engine.Run(context.Background(), gc.Timestamp(100_000), gc.Timestamp(100_000))
	require.NoError(t, err)
	require.Equal(t, gc.Timestamp(100_000), safeTs)
}
