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
	"context"
	"sync"

	"github.com/tikv/gcsafepoint/gc"
)

// Coordinator is an in-memory gc.CoordinatorClient, standing in for PD plus
// its control-key kv namespace.
type Coordinator struct {
	clock *Clock

	mu          sync.Mutex
	regions     []gc.Region
	controlKeys map[string][]byte
	safePoint   gc.Timestamp
}

// NewCoordinator builds a Coordinator serving regions and ticking from
// clock. Control keys start empty (every lookup reports ok=false) until
// SetControlKey is called.
func NewCoordinator(clock *Clock, regions []gc.Region) *Coordinator {
	return &Coordinator{
		clock:       clock,
		regions:     regions,
		controlKeys: make(map[string][]byte),
	}
}

// SetControlKey installs or overwrites a control key's value.
func (c *Coordinator) SetControlKey(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controlKeys[key] = value
}

// SetRegions replaces the region map the coordinator reports, simulating a
// split/merge between ticks.
func (c *Coordinator) SetRegions(regions []gc.Region) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regions = regions
}

// SafePoint returns the most recently published safe point.
func (c *Coordinator) SafePoint() gc.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.safePoint
}

func (c *Coordinator) RegionMap(ctx context.Context, reqTs gc.Timestamp) ([]gc.Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]gc.Region, len(c.regions))
	copy(out, c.regions)
	return out, nil
}

func (c *Coordinator) ControlKey(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.controlKeys[key]
	return v, ok, nil
}

// UpdateGCSafePoint enforces PD's own monotonicity guarantee: the stored
// value never regresses, and the call always echoes back whatever is
// currently in effect.
func (c *Coordinator) UpdateGCSafePoint(ctx context.Context, safePoint gc.Timestamp) (gc.Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if safePoint > c.safePoint {
		c.safePoint = safePoint
	}
	return c.safePoint, nil
}

func (c *Coordinator) TS(ctx context.Context) (gc.Timestamp, error) {
	return gc.Timestamp(c.clock.Now()), nil
}
