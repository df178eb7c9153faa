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

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tikv/gcsafepoint/internal/lease"
	"github.com/tikv/gcsafepoint/internal/logutil"
)

// RegionSnapshotSetter receives the region map fetched at the start of a
// tick, so a RegionClientResolver backed by a key-ordered index (primary
// lookups) can refresh itself before the tick resolves any
// locks. Implemented by internal/locate.Resolver.
type RegionSnapshotSetter interface {
	SetRegions(regions []Region)
}

// Driver owns one cluster tick end to end: compute a
// candidate safe point, resolve locks against it, and publish the result
// unless publishing is administratively disabled.
type Driver struct {
	coordinator CoordinatorClient
	computer    *SafePointComputer
	engine      *ScanResolveEngine
	snapshots   RegionSnapshotSetter
}

// NewDriver wires the computer and engine behind one coordinator. snapshots
// may be nil if the resolver has no region-index to refresh (e.g. in tests
// against a single-region mock).
func NewDriver(coord CoordinatorClient, computer *SafePointComputer, engine *ScanResolveEngine, snapshots RegionSnapshotSetter) *Driver {
	return &Driver{coordinator: coord, computer: computer, engine: engine, snapshots: snapshots}
}

// Tick runs one full cycle: fetch reqTs, compute the candidate safe point,
// resolve locks across every table-keyspace region (which may downgrade the
// candidate), then publish unless disabled. After a successful publish it
// returns the safe point the coordinator reports as in effect; when
// publishing is disabled, or a step after resolution fails, it returns the
// resolved candidate safeTs (the value before one is subtracted for
// publication).
func (d *Driver) Tick(ctx context.Context) (Timestamp, error) {
	reqTs, err := d.coordinator.TS(ctx)
	if err != nil {
		ticksFailed.WithLabelValues("ts").Inc()
		return 0, errors.Wrap(err, "driver: fetch reqTs")
	}

	safeTs, err := d.computer.Compute(ctx, reqTs)
	if err != nil {
		ticksFailed.WithLabelValues("compute").Inc()
		return 0, errors.Wrap(err, "driver: compute safe point")
	}

	if d.snapshots != nil {
		regions, err := d.coordinator.RegionMap(ctx, reqTs)
		if err != nil {
			ticksFailed.WithLabelValues("region_map").Inc()
			return 0, errors.Wrap(err, "driver: region map for snapshot")
		}
		d.snapshots.SetRegions(regions)
	}

	resolved, err := d.engine.Run(ctx, reqTs, safeTs)
	if err != nil {
		ticksFailed.WithLabelValues("resolve").Inc()
		return resolved, errors.Wrap(err, "driver: resolve locks")
	}
	safeTs = resolved

	disabled, err := PublishDisabled(ctx, d.coordinator)
	if err != nil {
		ticksFailed.WithLabelValues("publish_check").Inc()
		return safeTs, errors.Wrap(err, "driver: check publish-disabled")
	}
	if disabled {
		logutil.Logger(ctx).Info("gc safe point publish disabled by control key", zap.Uint64("candidate", uint64(safeTs)))
		return safeTs, nil
	}

	// safeTs itself must remain readable; publish one below it.
	published, err := d.coordinator.UpdateGCSafePoint(ctx, safeTs-1)
	if err != nil {
		ticksFailed.WithLabelValues("publish").Inc()
		return safeTs, errors.Wrapf(ErrCoordinatorUnreachable, "driver: publish safe point: %v", err)
	}

	// The coordinator itself enforces monotonicity cluster-wide; the
	// value it echoes back may exceed our candidate if a concurrent writer
	// (e.g. an operator override) already advanced it further.
	safePointPublished.Set(float64(published))
	ticksRun.Inc()
	logutil.Logger(ctx).Info("gc safe point published", zap.Uint64("safePoint", uint64(published)))
	return Timestamp(published), nil
}

// AcquireAndRun is the outer loop: campaign for the driver
// lease, and while held, run Tick on a Scheduler built from cfg. It
// returns only when ctx is done; acquisition errors are logged and the
// acquisition is retried.
func AcquireAndRun(ctx context.Context, acquirer lease.Acquirer, driver *Driver, cfg Config) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		held, err := acquirer.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logutil.Logger(ctx).Warn("gc driver failed to acquire lease, retrying", zap.Error(err))
			continue
		}

		sched := NewScheduler(cfg, driver.Tick)
		tickCtx, cancel := context.WithCancel(ctx)
		sched.Start(tickCtx)

		select {
		case <-held.OnLost():
			logutil.Logger(ctx).Warn("gc driver lost its lease, rescheduling acquisition", zap.Error(ErrLeaseLost))
		case <-ctx.Done():
			cancel()
			sched.Stop()
			_ = held.Release(context.Background())
			return ctx.Err()
		}
		cancel()
		sched.Stop()
	}
}
