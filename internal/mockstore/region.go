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
	"sort"
	"sync"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"

	gclient "github.com/tikv/gcsafepoint/internal/client"
	"github.com/tikv/gcsafepoint/internal/oracle"
)

type lockRecord struct {
	key         []byte
	primary     []byte
	startTS     uint64
	forUpdateTS uint64
	ttlMs       uint64
	op          kvrpcpb.Op
}

// RegionStore is an in-memory gclient.RegionClient, a map-backed stand-in
// for mvcc_leveldb.go's goleveldb-backed lock table: one lock per key,
// addressed by key for ScanLock/PessimisticRollback and by startTS for
// ResolveLock/CheckTxnStatus resolution bookkeeping.
type RegionStore struct {
	clock *Clock

	mu       sync.Mutex
	locks    map[string]*lockRecord  // key -> lock
	resolved map[uint64]gc_resolved  // startTS -> outcome, once a primary is decided
}

type gc_resolved struct {
	commitTS uint64 // 0 means rolled back
}

// NewRegionStore builds an empty RegionStore ticking from clock.
func NewRegionStore(clock *Clock) *RegionStore {
	return &RegionStore{
		clock:    clock,
		locks:    make(map[string]*lockRecord),
		resolved: make(map[uint64]gc_resolved),
	}
}

// PutLock installs a lock directly, bypassing any prewrite protocol, the
// way tests seed fixture state.
func (s *RegionStore) PutLock(key, primary []byte, startTS, forUpdateTS, ttlMs uint64, op kvrpcpb.Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[string(key)] = &lockRecord{
		key: key, primary: primary, startTS: startTS,
		forUpdateTS: forUpdateTS, ttlMs: ttlMs, op: op,
	}
}

// MarkResolved pre-seeds the primary's commit/rollback outcome, simulating
// a transaction whose primary already finished before GC ever sees it.
func (s *RegionStore) MarkResolved(startTS, commitTS uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[startTS] = gc_resolved{commitTS: commitTS}
}

// LockCount reports how many locks remain, for test assertions.
func (s *RegionStore) LockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func (s *RegionStore) ScanLock(ctx context.Context, req *gclient.ScanLockRequest) (*gclient.ScanLockResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.locks))
	for k := range s.locks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resp := &gclient.ScanLockResponse{}
	for _, k := range keys {
		if bytes.Compare([]byte(k), req.StartKey) < 0 {
			continue
		}
		if len(req.EndKey) > 0 && bytes.Compare([]byte(k), req.EndKey) >= 0 {
			break
		}
		lock := s.locks[k]
		if lock.startTS > req.MaxVersion {
			continue
		}
		if uint32(len(resp.Locks)) == req.Limit {
			resp.HasMore = true
			resp.EndKey = []byte(k)
			return resp, nil
		}
		resp.Locks = append(resp.Locks, &kvrpcpb.LockInfo{
			PrimaryLock:    lock.primary,
			LockVersion:    lock.startTS,
			Key:            lock.key,
			LockType:       lock.op,
			LockForUpdateTs: lock.forUpdateTS,
			LockTtl:        lock.ttlMs,
		})
	}
	return resp, nil
}

// CheckTxnStatus mirrors mvcc_leveldb.go's CheckTxnStatus: if the primary's
// lock is still present, decide based on TTL expiry; otherwise consult the
// resolved table, and if neither is known the transaction never started
// (LockNotExistRollback).
func (s *RegionStore) CheckTxnStatus(ctx context.Context, req *kvrpcpb.CheckTxnStatusRequest) (*kvrpcpb.CheckTxnStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[string(req.GetPrimaryKey())]; ok && lock.startTS == req.GetLockTs() {
		expired := uint64(oracle.ExtractPhysical(lock.startTS))+lock.ttlMs < uint64(oracle.ExtractPhysical(req.GetCurrentTs()))
		if !expired {
			return &kvrpcpb.CheckTxnStatusResponse{
				LockTtl: lock.ttlMs,
				Action:  kvrpcpb.Action_NoAction,
			}, nil
		}

		action := kvrpcpb.Action_TTLExpireRollback
		if lock.forUpdateTS != 0 {
			action = kvrpcpb.Action_TTLExpirePessimisticRollback
		}
		delete(s.locks, string(req.GetPrimaryKey()))
		s.resolved[lock.startTS] = gc_resolved{commitTS: 0}
		return &kvrpcpb.CheckTxnStatusResponse{Action: action}, nil
	}

	if outcome, ok := s.resolved[req.GetLockTs()]; ok {
		return &kvrpcpb.CheckTxnStatusResponse{
			CommitVersion: outcome.commitTS,
			Action:        kvrpcpb.Action_NoAction,
		}, nil
	}

	s.resolved[req.GetLockTs()] = gc_resolved{commitTS: 0}
	return &kvrpcpb.CheckTxnStatusResponse{Action: kvrpcpb.Action_LockNotExistRollback}, nil
}

func (s *RegionStore) PessimisticRollback(ctx context.Context, req *kvrpcpb.PessimisticRollbackRequest) (*kvrpcpb.PessimisticRollbackResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &kvrpcpb.PessimisticRollbackResponse{}
	for _, key := range req.GetKeys() {
		lock, ok := s.locks[string(key)]
		if !ok {
			continue
		}
		if lock.forUpdateTS != 0 && lock.startTS == req.GetStartVersion() && lock.forUpdateTS <= req.GetForUpdateTs() {
			delete(s.locks, string(key))
		}
	}
	return resp, nil
}

func (s *RegionStore) ResolveLock(ctx context.Context, req *kvrpcpb.ResolveLockRequest) (*kvrpcpb.ResolveLockResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := req.GetKeys()
	if len(keys) == 0 {
		for k, lock := range s.locks {
			if lock.startTS == req.GetStartVersion() {
				keys = append(keys, []byte(k))
			}
		}
	}
	for _, key := range keys {
		lock, ok := s.locks[string(key)]
		if !ok || lock.startTS != req.GetStartVersion() {
			continue
		}
		delete(s.locks, string(key))
	}
	s.resolved[req.GetStartVersion()] = gc_resolved{commitTS: req.GetCommitVersion()}
	return &kvrpcpb.ResolveLockResponse{}, nil
}

func (s *RegionStore) Close() error { return nil }
