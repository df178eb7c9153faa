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

import "github.com/pkg/errors"

// Sentinel errors for the tick-failure taxonomy. Per-lock errors
// (ProbeIndeterminate, ResolveFailed) never surface as these — they are
// absorbed into the monotone downgrade of safeTs inside the resolve engine.
var (
	// ErrLeaseLost marks the lease-loss path AcquireAndRun takes when the
	// coordinator session dies; surfaced via logging, not returned, since
	// OnLost() signals loss through a channel rather than a call error.
	ErrLeaseLost = errors.New("gc: distributed lease lost")
	// ErrPeerUnreachable means the peer lock aggregator could not obtain a
	// remote peer's table locks; safety-critical, fails the whole tick.
	ErrPeerUnreachable = errors.New("gc: peer unreachable")
	// ErrCoordinatorUnreachable covers region-map, kv-range, and
	// update-safe-point RPC failures against the coordinator.
	ErrCoordinatorUnreachable = errors.New("gc: coordinator unreachable")
)
