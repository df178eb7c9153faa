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

package gc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/twmb/murmur3"

	"github.com/tikv/gcsafepoint/internal/retry"
)

// peerCallBackoff bounds retries of a single peer's TableLocks call: up to
// three retries after the first call (four calls in all), sleeping 50ms,
// 100ms and 200ms between them (the policy caps any sleep at 500ms).
var peerCallBackoff = retry.NewConfig("peerTableLocks", 50*time.Millisecond, 500*time.Millisecond, 3)

// PeerClient is the "show locks" capability a computing peer exposes.
type PeerClient interface {
	TableLocks(ctx context.Context) ([]TableLock, error)
}

// PeerDirectory enumerates the cluster's computing peers by endpoint.
type PeerDirectory interface {
	Peers(ctx context.Context) (map[string]PeerClient, error)
}

// PeerLockAggregator merges the local node's table-row locks with every
// reachable peer's. A peer that errors fails the whole
// aggregation (ErrPeerUnreachable) since missing a peer's lock could let GC
// run past an active reader.
type PeerLockAggregator struct {
	directory     PeerDirectory
	localLocation string
	localLocks    func(ctx context.Context) ([]TableLock, error)
}

// NewPeerLockAggregator builds an aggregator. localLocks supplies the local
// node's own table locks (not fetched over the network).
func NewPeerLockAggregator(directory PeerDirectory, localLocation string, localLocks func(ctx context.Context) ([]TableLock, error)) *PeerLockAggregator {
	return &PeerLockAggregator{directory: directory, localLocation: localLocation, localLocks: localLocks}
}

// localFingerprint identifies this node for peer-list exclusion by network
// endpoint, hashed with murmur3 the way a cluster-sized peer list avoids
// repeated string comparisons.
func (a *PeerLockAggregator) localFingerprint() uint64 {
	return murmur3.Sum64([]byte(a.localLocation))
}

// MinRowLockTs returns the minimum lockTs across every ROW-type table lock
// held locally or reported by any reachable peer. It returns (0, false) when
// no such lock exists (the "no constraint" case, represented by the false
// any flag so callers don't need a sentinel timestamp).
func (a *PeerLockAggregator) MinRowLockTs(ctx context.Context) (min Timestamp, any bool, err error) {
	local, err := a.localLocks(ctx)
	if err != nil {
		return 0, false, errors.Wrap(err, "peerlock: local table locks")
	}
	min, any = foldMinRowLockTs(local, min, any)

	peers, err := a.directory.Peers(ctx)
	if err != nil {
		return 0, false, errors.Wrapf(ErrPeerUnreachable, "peerlock: list peers: %v", err)
	}

	localFp := a.localFingerprint()
	for addr, peer := range peers {
		if murmur3.Sum64([]byte(addr)) == localFp {
			continue
		}
		locks, err := a.fetchPeerLocks(ctx, addr, peer)
		if err != nil {
			return 0, false, errors.Wrapf(ErrPeerUnreachable, "peerlock: peer %s: %v", addr, err)
		}
		min, any = foldMinRowLockTs(locks, min, any)
	}
	return min, any, nil
}

// fetchPeerLocks retries a single peer's TableLocks call under
// peerCallBackoff before giving up on it.
func (a *PeerLockAggregator) fetchPeerLocks(ctx context.Context, addr string, peer PeerClient) ([]TableLock, error) {
	bo := retry.NewBackoffer(ctx)
	for {
		locks, err := peer.TableLocks(ctx)
		if err == nil {
			return locks, nil
		}
		if boErr := bo.Backoff(peerCallBackoff, err); boErr != nil {
			return nil, boErr
		}
	}
}

func foldMinRowLockTs(locks []TableLock, min Timestamp, any bool) (Timestamp, bool) {
	for _, l := range locks {
		if l.Type != TableLockRow {
			continue
		}
		if !any || l.LockTs < min {
			min = l.LockTs
			any = true
		}
	}
	return min, any
}
