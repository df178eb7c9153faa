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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tikv/gcsafepoint/gc"
)

func TestScheduler_FiresAfterInitialDelayThenOnPeriod(t *testing.T) {
	var count int32
	cfg := gc.Config{InitialDelay: 5 * time.Millisecond, TickPeriod: 10 * time.Millisecond}
	sched := gc.NewScheduler(cfg, func(ctx context.Context) (gc.Timestamp, error) {
		atomic.AddInt32(&count, 1)
		return 0, nil
	})

	sched.Start(context.Background())
	defer sched.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 3 }, time.Second, time.Millisecond)
}

func TestScheduler_DropsOverlappingTick(t *testing.T) {
	var started int32
	release := make(chan struct{})

	cfg := gc.Config{InitialDelay: time.Millisecond, TickPeriod: 5 * time.Millisecond}
	sched := gc.NewScheduler(cfg, func(ctx context.Context) (gc.Timestamp, error) {
		n := atomic.AddInt32(&started, 1)
		if n == 1 {
			<-release // hold the first tick open across several scheduled fires
		}
		return 0, nil
	})

	sched.Start(context.Background())

	// Give the scheduler several periods to try (and fail) to start a
	// second tick while the first is blocked.
	time.Sleep(40 * time.Millisecond)
	close(release)
	sched.Stop()

	require.Equal(t, int32(1), atomic.LoadInt32(&started), "only one tick should ever have been in flight")
}
