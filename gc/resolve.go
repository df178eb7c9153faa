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

	"github.com/cznic/mathutil"
	"github.com/pingcap/failpoint"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pkg/errors"

	gclient "github.com/tikv/gcsafepoint/internal/client"
	"github.com/tikv/gcsafepoint/internal/logutil"
	"go.uber.org/zap"
)

// RegionClientResolver gives the engine a RegionClient for a region, and a
// second lookup keyed by an arbitrary key — used when a lock's primary
// lives in a different region from the one it was scanned on.
type RegionClientResolver interface {
	ClientForRegion(ctx context.Context, regionID uint64, regionType RegionType) (gclient.RegionClient, error)
	ClientForKey(ctx context.Context, key []byte) (gclient.RegionClient, Region, error)
}

// ScanResolveEngine is the main scan-and-resolve loop: per table-keyspace
// region, page through locks older than safeTs and dispatch each one.
type ScanResolveEngine struct {
	coordinator CoordinatorClient
	router      RegionClientResolver
	scanLimit   uint32
}

// NewScanResolveEngine builds an engine over coord/router with the given
// per-page scan limit (default 1024).
func NewScanResolveEngine(coord CoordinatorClient, router RegionClientResolver, scanLimit uint32) *ScanResolveEngine {
	if scanLimit == 0 {
		scanLimit = DefaultScanLimit
	}
	return &ScanResolveEngine{coordinator: coord, router: router, scanLimit: scanLimit}
}

// tickStats accumulates the per-tick summary log.
type tickStats struct {
	regionsScanned int
	locksObserved  int
	committed      int
	rolledBack     int
	pessimistic    int
	left           int
	indeterminate  int
}

// Run scans every table-keyspace region and resolves what it can,
// returning the (possibly downgraded) final safeTs. It never returns a
// value higher than the initial candidate (safe points only move down).
func (e *ScanResolveEngine) Run(ctx context.Context, reqTs Timestamp, safeTs Timestamp) (Timestamp, error) {
	regions, err := e.coordinator.RegionMap(ctx, reqTs)
	if err != nil {
		return safeTs, errors.Wrapf(ErrCoordinatorUnreachable, "resolve: region map: %v", err)
	}

	var stats tickStats
	for _, region := range regions {
		if !region.Range.InTableKeyspace() {
			continue
		}
		stats.regionsScanned++
		safeTs, err = e.resolveRegion(ctx, reqTs, safeTs, region, &stats)
		if err != nil {
			return safeTs, err
		}
	}

	logutil.Logger(ctx).Info("gc driver tick scanned regions",
		zap.Int("regions", stats.regionsScanned),
		zap.Int("locksObserved", stats.locksObserved),
		zap.Int("committed", stats.committed),
		zap.Int("rolledBack", stats.rolledBack),
		zap.Int("pessimisticRollback", stats.pessimistic),
		zap.Int("left", stats.left),
		zap.Int("indeterminate", stats.indeterminate),
		zap.Uint64("finalSafeTs", uint64(safeTs)))

	return safeTs, nil
}

// resolveRegion pages through the locks in a single region.
func (e *ScanResolveEngine) resolveRegion(ctx context.Context, reqTs, safeTs Timestamp, region Region, stats *tickStats) (Timestamp, error) {
	cli, err := e.router.ClientForRegion(ctx, region.ID, region.Type)
	if err != nil {
		return safeTs, errors.Wrapf(ErrCoordinatorUnreachable, "resolve: client for region %d: %v", region.ID, err)
	}

	cursor := region.Range.StartKey
	for {
		resp, err := cli.ScanLock(ctx, &gclient.ScanLockRequest{
			StartKey:   cursor,
			EndKey:     region.Range.EndKey,
			MaxVersion: uint64(safeTs),
			Limit:      e.scanLimit,
		})
		if err != nil {
			return safeTs, errors.Wrapf(ErrCoordinatorUnreachable, "resolve: scan lock region %d: %v", region.ID, err)
		}

		if len(resp.Locks) > 0 {
			stats.locksObserved += len(resp.Locks)
			locksObserved.Add(float64(len(resp.Locks)))
			safeTs = e.resolveLocks(ctx, reqTs, safeTs, resp.Locks, region, stats)
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.EndKey
	}
	return safeTs, nil
}

// resolveLocks dispatches each lock in a scanned page. Per-lock failures are
// absorbed into the monotone downgrade of safeTs; they never abort the tick.
func (e *ScanResolveEngine) resolveLocks(ctx context.Context, reqTs, safeTs Timestamp, locks []*kvrpcpb.LockInfo, scannedRegion Region, stats *tickStats) Timestamp {
	for _, raw := range locks {
		lock := NewLockInfo(raw)
		safeTs = e.resolveOne(ctx, reqTs, safeTs, lock, scannedRegion, stats)
	}
	return safeTs
}

func (e *ScanResolveEngine) resolveOne(ctx context.Context, reqTs, safeTs Timestamp, lock *LockInfo, scannedRegion Region, stats *tickStats) Timestamp {
	status, err := e.checkTxnStatus(ctx, reqTs, safeTs, lock)
	if err != nil || status.ProbeIndeterminate() {
		stats.indeterminate++
		locksByOutcome.WithLabelValues(outcomeIndeterminate).Inc()
		return downgrade(safeTs, lock.LockTs())
	}

	switch {
	case IsPessimisticRollbackEligible(lock, status):
		if err := e.pessimisticRollback(ctx, reqTs, safeTs, lock, scannedRegion); err != nil {
			stats.left++
			locksByOutcome.WithLabelValues(outcomeLeft).Inc()
			return downgrade(safeTs, lock.LockTs())
		}
		stats.pessimistic++
		locksByOutcome.WithLabelValues(outcomePessimisticRollback).Inc()
		return safeTs

	case IsResolveEligible(status):
		if err := e.resolveLock(ctx, reqTs, safeTs, lock, status.CommitTs, scannedRegion); err != nil {
			stats.left++
			locksByOutcome.WithLabelValues(outcomeLeft).Inc()
			return downgrade(safeTs, lock.LockTs())
		}
		if status.CommitTs > 0 {
			stats.committed++
			locksByOutcome.WithLabelValues(outcomeCommit).Inc()
		} else {
			stats.rolledBack++
			locksByOutcome.WithLabelValues(outcomeRollback).Inc()
		}
		return safeTs

	default:
		stats.left++
		locksByOutcome.WithLabelValues(outcomeLeft).Inc()
		return downgrade(safeTs, lock.LockTs())
	}
}

// downgrade is the single place safeTs is ever lowered within a tick.
func downgrade(safeTs, lockTs Timestamp) Timestamp {
	return Timestamp(mathutil.MinUint64(uint64(safeTs), uint64(lockTs)))
}

// checkTxnStatus addresses the primary key's region, which may differ from
// the region the lock was scanned on.
func (e *ScanResolveEngine) checkTxnStatus(ctx context.Context, reqTs, safeTs Timestamp, lock *LockInfo) (TxnStatus, error) {
	if _, err := failpoint.Eval("gcResolveLockForceIndeterminate"); err == nil {
		return TxnStatus{TxnResult: errors.New("failpoint: forced indeterminate")}, nil
	}

	cli, _, err := e.router.ClientForKey(ctx, lock.PrimaryLock())
	if err != nil {
		return TxnStatus{}, errors.Wrap(err, "resolve: locate primary region")
	}

	resp, err := cli.CheckTxnStatus(ctx, &kvrpcpb.CheckTxnStatusRequest{
		PrimaryKey:    lock.PrimaryLock(),
		LockTs:        uint64(lock.LockTs()),
		CallerStartTs: uint64(safeTs),
		CurrentTs:     uint64(safeTs),
	})
	if err != nil {
		return TxnStatus{TxnResult: err}, nil
	}
	if resp.GetRegionError() != nil {
		return TxnStatus{TxnResult: errors.Errorf("region error: %s", resp.GetRegionError())}, nil
	}
	var txnResult error
	if resp.GetError() != nil {
		txnResult = errors.Errorf("key error: %s", resp.GetError())
	}
	return TxnStatus{
		CommitTs:  Timestamp(resp.GetCommitVersion()),
		LockTtl:   resp.GetLockTtl(),
		Action:    resp.GetAction(),
		TxnResult: txnResult,
	}, nil
}

func (e *ScanResolveEngine) pessimisticRollback(ctx context.Context, reqTs, safeTs Timestamp, lock *LockInfo, region Region) error {
	if _, err := failpoint.Eval("gcResolveLockSlowPeer"); err == nil {
		return errors.New("failpoint: injected pessimistic rollback failure")
	}

	cli, err := e.router.ClientForRegion(ctx, region.ID, region.Type)
	if err != nil {
		return err
	}
	resp, err := cli.PessimisticRollback(ctx, &kvrpcpb.PessimisticRollbackRequest{
		StartVersion: uint64(lock.LockTs()),
		ForUpdateTs:  uint64(lock.ForUpdateTs()),
		Keys:         [][]byte{lock.Key()},
	})
	if err != nil {
		return err
	}
	if resp.GetRegionError() != nil {
		return errors.Errorf("region error: %s", resp.GetRegionError())
	}
	for _, keyErr := range resp.GetErrors() {
		if keyErr != nil {
			return errors.Errorf("key error: %s", keyErr)
		}
	}
	return nil
}

func (e *ScanResolveEngine) resolveLock(ctx context.Context, reqTs, safeTs Timestamp, lock *LockInfo, commitTs Timestamp, region Region) error {
	cli, err := e.router.ClientForRegion(ctx, region.ID, region.Type)
	if err != nil {
		return err
	}
	resp, err := cli.ResolveLock(ctx, &kvrpcpb.ResolveLockRequest{
		StartVersion:  uint64(lock.LockTs()),
		CommitVersion: uint64(commitTs),
		Keys:          [][]byte{lock.Key()},
	})
	if err != nil {
		return err
	}
	if resp.GetRegionError() != nil {
		return errors.Errorf("region error: %s", resp.GetRegionError())
	}
	if resp.GetError() != nil {
		return errors.Errorf("key error: %s", resp.GetError())
	}
	return nil
}
