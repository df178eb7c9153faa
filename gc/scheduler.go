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
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/tikv/gcsafepoint/internal/logutil"
)

// TickFunc runs one cycle of work and reports the safe point it reached.
type TickFunc func(ctx context.Context) (Timestamp, error)

// Scheduler fires tick at a fixed cadence (cfg.TickPeriod, after
// cfg.InitialDelay; Config.WithDefaults sets these to 600s and 1s) and drops (never queues) an overlapping tick, guarded by a single
// re-entrancy latch rather than a worker pool — only one tick is ever
// in flight per held lease.
type Scheduler struct {
	cfg     Config
	tick    TickFunc
	running atomic.Bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler builds a Scheduler that invokes tick on cfg's cadence.
func NewScheduler(cfg Config, tick TickFunc) *Scheduler {
	return &Scheduler{cfg: cfg, tick: tick}
}

// Start begins the scheduling loop in a background goroutine. It returns
// immediately; call Stop to tear it down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the context shared by the scheduling loop and any in-flight
// tick, then waits for the loop and that tick to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	timer := time.NewTimer(s.cfg.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.dispatch(ctx)
			timer.Reset(s.cfg.TickPeriod)
		}
	}
}

// dispatch runs one tick if no other tick is currently running, otherwise
// drops it and counts the drop; the next timer fire is simply skipped.
func (s *Scheduler) dispatch(ctx context.Context) {
	if !s.running.CAS(false, true) {
		ticksDropped.Inc()
		logutil.Logger(ctx).Warn("gc driver tick dropped: previous tick still running")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		start := time.Now()
		safeTs, err := s.tick(ctx)
		tickDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			logutil.Logger(ctx).Error("gc driver tick failed", zap.Error(err))
			return
		}
		logutil.Logger(ctx).Debug("gc driver tick completed", zap.Uint64("safeTs", uint64(safeTs)))
	}()
}
