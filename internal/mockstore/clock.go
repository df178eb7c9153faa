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

// Package mockstore provides in-memory fakes of the coordinator, region
// store, and peer-directory capabilities the gc package consumes. The lock
// table is map-backed rather than an LSM-tree engine, since only lock
// metadata (not versioned row values) is needed here.
package mockstore

import (
	"sync"

	"github.com/tikv/gcsafepoint/internal/oracle"
)

// Clock hands out strictly increasing composed timestamps the way the
// teacher's pdClient.GetTS uses a package-global physical/logical pair
// (pd.go's tsMu) to avoid issuing the same ts twice across calls.
type Clock struct {
	mu        sync.Mutex
	physical  int64
	logical   int64
}

// NewClock builds a Clock seeded at physical (milliseconds since epoch).
func NewClock(physical int64) *Clock {
	return &Clock{physical: physical}
}

// Now returns the next timestamp by advancing the logical counter; the
// physical component changes only through Advance.
func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logical++
	return oracle.ComposeTS(c.physical, c.logical)
}

// Advance moves the physical clock forward by deltaMs, used by tests to
// simulate lock TTL expiry without sleeping.
func (c *Clock) Advance(deltaMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.physical += deltaMs
	c.logical = 0
}

// Physical returns the clock's current physical reading.
func (c *Clock) Physical() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.physical
}
