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

package client

import (
	"testing"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/stretchr/testify/require"
)

func lockWithKey(key string) *kvrpcpb.LockInfo {
	return &kvrpcpb.LockInfo{Key: []byte(key)}
}

// TestTrimScanLockPage_ExclusiveEndKey guards the pagination bug: the
// continuation cursor must be the first key NOT included in the page, not
// the last included key, or the next ScanLock call re-fetches and
// re-dispatches the boundary lock (violating exactly-once coverage).
func TestTrimScanLockPage_ExclusiveEndKey(t *testing.T) {
	locks := []*kvrpcpb.LockInfo{lockWithKey("a"), lockWithKey("b"), lockWithKey("c")}

	resp := trimScanLockPage(locks, 2, []byte("zzz"))
	require.True(t, resp.HasMore)
	require.Equal(t, []byte("c"), resp.EndKey, "EndKey must be the first excluded key, not the last included one")
	require.Len(t, resp.Locks, 2)
	require.Equal(t, []byte("a"), resp.Locks[0].GetKey())
	require.Equal(t, []byte("b"), resp.Locks[1].GetKey())
}

func TestTrimScanLockPage_LastPageHasNoMore(t *testing.T) {
	locks := []*kvrpcpb.LockInfo{lockWithKey("a"), lockWithKey("b")}

	resp := trimScanLockPage(locks, 2, []byte("fallback"))
	require.False(t, resp.HasMore)
	require.Equal(t, []byte("fallback"), resp.EndKey)
	require.Len(t, resp.Locks, 2)
}

func TestTrimScanLockPage_Empty(t *testing.T) {
	resp := trimScanLockPage(nil, 2, []byte("fallback"))
	require.False(t, resp.HasMore)
	require.Equal(t, []byte("fallback"), resp.EndKey)
	require.Empty(t, resp.Locks)
}
