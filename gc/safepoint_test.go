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
	"github.com/tikv/gcsafepoint/internal/oracle"
)

func newPeerLocks(t *testing.T, locks ...gc.TableLock) *gc.PeerLockAggregator {
	t.Helper()
	dir := mockstore.NewPeerDirectory()
	return gc.NewPeerLockAggregator(dir, "local:1", func(ctx context.Context) ([]gc.TableLock, error) {
		return locks, nil
	})
}

func TestSafePointComputer_DefaultTxnDuration(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	coord := mockstore.NewCoordinator(clock, nil)
	computer := gc.NewSafePointComputer(coord, newPeerLocks(t))

	reqTs := gc.Timestamp(oracle.ComposeTS(1_000_000, 0))
	safeTs, err := computer.Compute(context.Background(), reqTs)
	require.NoError(t, err)
	require.Less(t, uint64(safeTs), uint64(reqTs), "default txn-duration window must push the candidate below reqTs")
}

func TestSafePointComputer_ExplicitTxnDuration(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	coord := mockstore.NewCoordinator(clock, nil)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, 5000)
	coord.SetControlKey(gc.ControlKeyTxnDuration, buf)

	computer := gc.NewSafePointComputer(coord, newPeerLocks(t))
	reqTs := gc.Timestamp(100_000)
	safeTs, err := computer.Compute(context.Background(), reqTs)
	require.NoError(t, err)
	require.Equal(t, uint64(95_000), uint64(safeTs))
}

func TestSafePointComputer_PeerRowLockCapsCandidate(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	coord := mockstore.NewCoordinator(clock, nil)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, 1000)
	coord.SetControlKey(gc.ControlKeyTxnDuration, buf)

	peers := newPeerLocks(t, gc.TableLock{Type: gc.TableLockRow, LockTs: 42})
	computer := gc.NewSafePointComputer(coord, peers)

	safeTs, err := computer.Compute(context.Background(), gc.Timestamp(100_000))
	require.NoError(t, err)
	require.Equal(t, gc.Timestamp(42), safeTs, "an active row lock must cap the candidate at its own lockTs")
}

func TestSafePointComputer_TableLockDoesNotConstrain(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	coord := mockstore.NewCoordinator(clock, nil)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, 1000)
	coord.SetControlKey(gc.ControlKeyTxnDuration, buf)

	peers := newPeerLocks(t, gc.TableLock{Type: gc.TableLockTable, LockTs: 1})
	computer := gc.NewSafePointComputer(coord, peers)

	safeTs, err := computer.Compute(context.Background(), gc.Timestamp(100_000))
	require.NoError(t, err)
	require.Equal(t, uint64(99_000), uint64(safeTs))
}

func TestPublishDisabled(t *testing.T) {
	clock := mockstore.NewClock(1_000_000)
	coord := mockstore.NewCoordinator(clock, nil)

	disabled, err := gc.PublishDisabled(context.Background(), coord)
	require.NoError(t, err)
	require.False(t, disabled)

	coord.SetControlKey(gc.ControlKeySafePointDisable, []byte{1})
	disabled, err = gc.PublishDisabled(context.Background(), coord)
	require.NoError(t, err)
	require.True(t, disabled)
}
