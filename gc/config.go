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
	"time"

	"github.com/pkg/errors"
)

// Config enumerates the recognized configuration options.
type Config struct {
	// Coordinators is the set of coordinator endpoints. Required, non-empty.
	Coordinators []string
	// LocalLocation is this node's own endpoint, used to exclude it from
	// the peer lock aggregator. Required.
	LocalLocation string

	// TickPeriod is the fixed cadence of the scheduler. Default 600s.
	TickPeriod time.Duration
	// InitialDelay is how long the scheduler waits after lease acquisition
	// before the first tick. Default 1s.
	InitialDelay time.Duration
	// ScanLimit bounds locks returned per scan-lock page. Default 1024.
	ScanLimit uint32
	// RegionClientTTL bounds how long the router caches a region client.
	// Default 30s.
	RegionClientTTL time.Duration
}

// Default option values.
const (
	DefaultTickPeriod      = 600 * time.Second
	DefaultInitialDelay    = 1 * time.Second
	DefaultScanLimit       = 1024
	DefaultRegionClientTTL = 30 * time.Second
)

// WithDefaults returns a copy of cfg with zero-valued fields replaced by
// their documented defaults.
func (cfg Config) WithDefaults() Config {
	if cfg.TickPeriod == 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.ScanLimit == 0 {
		cfg.ScanLimit = DefaultScanLimit
	}
	if cfg.RegionClientTTL == 0 {
		cfg.RegionClientTTL = DefaultRegionClientTTL
	}
	return cfg
}

// Validate checks the required fields are present.
func (cfg Config) Validate() error {
	if len(cfg.Coordinators) == 0 {
		return errors.New("gc: coordinators must be non-empty")
	}
	if cfg.LocalLocation == "" {
		return errors.New("gc: localLocation is required")
	}
	return nil
}
