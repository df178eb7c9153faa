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

// Package gc implements the cluster-wide GC safe-point driver: it locates
// every transaction lock older than a candidate safe point, resolves what it
// can, and lowers the safe point around what it can't.
package gc

import (
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// Timestamp is an opaque monotone cluster timestamp produced by the TSO.
// Zero means "unset". Arithmetic on it is only meaningful through
// internal/oracle's ComposeTS/ExtractPhysical helpers.
type Timestamp uint64

// IsZero reports whether ts is the unset timestamp.
func (ts Timestamp) IsZero() bool { return ts == 0 }

// RegionType tags which shard service a Region belongs to.
type RegionType int

const (
	// DataRegion holds table row data, keyed t{tableID}_r...
	DataRegion RegionType = iota
	// IndexRegion holds secondary index entries, keyed t{tableID}_i...
	IndexRegion
	// OtherRegion is meta/coordinator-internal keyspace, never scanned.
	OtherRegion
)

func (t RegionType) String() string {
	switch t {
	case DataRegion:
		return "data"
	case IndexRegion:
		return "index"
	default:
		return "other"
	}
}

// KeyRange is a half-open byte range [StartKey, EndKey). An empty EndKey
// means unbounded.
type KeyRange struct {
	StartKey []byte
	EndKey   []byte
}

// InTableKeyspace reports whether the range belongs to the table keyspace,
// i.e. its start key begins with the 't' prefix byte.
func (r KeyRange) InTableKeyspace() bool {
	return len(r.StartKey) > 0 && r.StartKey[0] == 't'
}

// Region is a shard of the key-value store as reported by the coordinator.
type Region struct {
	ID    uint64
	Type  RegionType
	Range KeyRange
}

// LockInfo describes a live lock observed on a region. It wraps the real
// TiKV wire type kvrpcpb.LockInfo, exposing the fields the driver reasons
// about under the names spec uses.
type LockInfo struct {
	raw *kvrpcpb.LockInfo
}

// NewLockInfo wraps a raw kvrpcpb.LockInfo as returned by a region's scan.
func NewLockInfo(raw *kvrpcpb.LockInfo) *LockInfo {
	return &LockInfo{raw: raw}
}

// Raw returns the underlying wire type.
func (l *LockInfo) Raw() *kvrpcpb.LockInfo { return l.raw }

// Key is the locked user key.
func (l *LockInfo) Key() []byte { return l.raw.GetKey() }

// PrimaryLock is the primary key of the owning transaction.
func (l *LockInfo) PrimaryLock() []byte { return l.raw.GetPrimaryLock() }

// LockTs is the transaction's start timestamp.
func (l *LockInfo) LockTs() Timestamp { return Timestamp(l.raw.GetLockVersion()) }

// ForUpdateTs is nonzero iff the lock was taken pessimistically.
func (l *LockInfo) ForUpdateTs() Timestamp { return Timestamp(l.raw.GetLockForUpdateTs()) }

// LockType is the mutation kind the lock was taken for.
func (l *LockInfo) LockType() kvrpcpb.Op { return l.raw.GetLockType() }

// LockTtl is the lock's remaining TTL in milliseconds; 0 means expired.
func (l *LockInfo) LockTtl() uint64 { return l.raw.GetLockTtl() }

// IsPessimistic reports whether the lock was acquired pessimistically.
func (l *LockInfo) IsPessimistic() bool { return l.ForUpdateTs() != 0 }

// TxnStatus is the response of a "check transaction status" probe against a
// lock's primary key.
type TxnStatus struct {
	CommitTs  Timestamp
	LockTtl   uint64
	Action    kvrpcpb.Action
	TxnResult error
}

// ProbeIndeterminate reports that the primary's status could not be
// authoritatively determined.
func (s TxnStatus) ProbeIndeterminate() bool { return s.TxnResult != nil }

// IsPessimisticRollbackEligible reports whether a lock is a pessimistic
// lock (lockType == Lock, forUpdateTs != 0) whose probe action says the
// transaction is gone.
func IsPessimisticRollbackEligible(l *LockInfo, s TxnStatus) bool {
	if l.LockType() != kvrpcpb.Op_Lock || !l.IsPessimistic() {
		return false
	}
	switch s.Action {
	case kvrpcpb.Action_LockNotExistRollback,
		kvrpcpb.Action_TTLExpirePessimisticRollback,
		kvrpcpb.Action_TTLExpireRollback:
		return true
	default:
		return false
	}
}

// IsResolveEligible reports whether either the primary committed
// (CommitTs > 0) or the optimistic lock has expired
// (LockTtl == 0 && CommitTs == 0).
func IsResolveEligible(s TxnStatus) bool {
	if s.CommitTs > 0 {
		return true
	}
	return s.LockTtl == 0 && s.CommitTs == 0
}

// TableLockType mirrors the table-level lock kinds a peer can report; only
// ROW locks constrain the safe point.
type TableLockType int

const (
	// TableLockRow is a row-level DDL lock; it caps the safe point.
	TableLockRow TableLockType = iota
	// TableLockTable is a whole-table lock; it does not constrain GC.
	TableLockTable
)

// TableLock is the minimal state a peer (or the local node) reports about
// an active table-row lock.
type TableLock struct {
	Type   TableLockType
	LockTs Timestamp
}

// Control key names read from the coordinator's versioned kv.
const (
	ControlKeyTxnDuration        = "txn-duration"
	ControlKeySafePointDisable   = "safe-point-update-disable"
	defaultTxnDurationMs  uint64 = 7 * 24 * 60 * 60 * 1000 // 7 days
)
