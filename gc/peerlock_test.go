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

	"github.com/stretchr/testify/require"

	"github.com/tikv/gcsafepoint/gc"
	"github.com/tikv/gcsafepoint/internal/mockstore"
)

func TestPeerLockAggregator_MergesLocalAndPeerLocks(t *testing.T) {
	dir := mockstore.NewPeerDirectory()
	peer := mockstore.NewPeerNode()
	peer.SetLocks([]gc.TableLock{{Type: gc.TableLockRow, LockTs: 30}})
	dir.Add("peer:1", peer)

	agg := gc.NewPeerLockAggregator(dir, "local:1", func(ctx context.Context) ([]gc.TableLock, error) {
		return []gc.TableLock{{Type: gc.TableLockRow, LockTs: 50}}, nil
	})

	min, any, err := agg.MinRowLockTs(context.Background())
	require.NoError(t, err)
	require.True(t, any)
	require.Equal(t, gc.Timestamp(30), min)
}

func TestPeerLockAggregator_ExcludesSelfByFingerprint(t *testing.T) {
	dir := mockstore.NewPeerDirectory()
	self := mockstore.NewPeerNode()
	self.SetLocks([]gc.TableLock{{Type: gc.TableLockRow, LockTs: 1}})
	dir.Add("local:1", self)

	agg := gc.NewPeerLockAggregator(dir, "local:1", func(ctx context.Context) ([]gc.TableLock, error) {
		return nil, nil
	})

	_, any, err := agg.MinRowLockTs(context.Background())
	require.NoError(t, err)
	require.False(t, any, "a peer-directory entry for the local node must be excluded, not double-counted")
}

func TestPeerLockAggregator_FailsOnUnreachablePeer(t *testing.T) {
	dir := mockstore.NewPeerDirectory()
	peer := mockstore.NewPeerNode()
	peer.SetUnreachable(true)
	dir.Add("peer:1", peer)

	agg := gc.NewPeerLockAggregator(dir, "local:1", func(ctx context.Context) ([]gc.TableLock, error) {
		return nil, nil
	})

	_, _, err := agg.MinRowLockTs(context.Background())
	require.ErrorIs(t, err, gc.ErrPeerUnreachable)
}
