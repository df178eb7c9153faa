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
	"encoding/binary"

	"github.com/cznic/mathutil"
	"github.com/pkg/errors"

	"github.com/tikv/gcsafepoint/internal/oracle"
)

// SafePointComputer produces a tick's candidate safe point.
type SafePointComputer struct {
	coordinator CoordinatorClient
	peerLocks   *PeerLockAggregator
}

// NewSafePointComputer builds a computer over the given coordinator and
// peer-lock aggregator.
func NewSafePointComputer(coord CoordinatorClient, peerLocks *PeerLockAggregator) *SafePointComputer {
	return &SafePointComputer{coordinator: coord, peerLocks: peerLocks}
}

// Compute reads the configured txn-duration retention window, subtracts it
// from reqTs, then caps the result by the minimum lockTs among active ROW
// table locks.
func (c *SafePointComputer) Compute(ctx context.Context, reqTs Timestamp) (Timestamp, error) {
	safeTs, err := c.applyTxnDuration(ctx, reqTs)
	if err != nil {
		return 0, err
	}

	minLockTs, any, err := c.peerLocks.MinRowLockTs(ctx)
	if err != nil {
		return 0, err
	}
	if any {
		safeTs = Timestamp(mathutil.MinUint64(uint64(safeTs), uint64(minLockTs)))
	}
	return safeTs, nil
}

// applyTxnDuration subtracts the retention window from reqTs. The two
// encodings are preserved deliberately: an explicit txn-duration value is subtracted
// directly from the ts integer (it was written by an operator who reasoned
// in ts units), while the default subtracts in wall-clock space and
// re-encodes through the TSO.
func (c *SafePointComputer) applyTxnDuration(ctx context.Context, reqTs Timestamp) (Timestamp, error) {
	raw, ok, err := c.coordinator.ControlKey(ctx, ControlKeyTxnDuration)
	if err != nil {
		return 0, errors.Wrapf(ErrCoordinatorUnreachable, "safepoint: read txn-duration: %v", err)
	}
	if ok {
		durationMs, decodeErr := decodeTxnDuration(raw)
		if decodeErr != nil {
			return 0, errors.Wrap(decodeErr, "safepoint: decode txn-duration")
		}
		return Timestamp(uint64(reqTs) - durationMs), nil
	}

	wallMs := oracle.ExtractPhysical(uint64(reqTs)) - int64(defaultTxnDurationMs)
	if wallMs < 0 {
		wallMs = 0
	}
	composed := oracle.ComposeTS(wallMs, 0)
	return Timestamp(composed), nil
}

func decodeTxnDuration(raw []byte) (uint64, error) {
	if len(raw) != 8 {
		return 0, errors.Errorf("txn-duration: expected 8 bytes, got %d", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// PublishDisabled reports whether the "safe-point-update-disable" control
// key is present.
func PublishDisabled(ctx context.Context, coord CoordinatorClient) (bool, error) {
	_, ok, err := coord.ControlKey(ctx, ControlKeySafePointDisable)
	if err != nil {
		return false, errors.Wrapf(ErrCoordinatorUnreachable, "safepoint: read disable key: %v", err)
	}
	return ok, nil
}
