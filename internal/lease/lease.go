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

// Package lease elects a single cluster-wide driver process.
package lease

import "context"

// Name is the cluster-unique lease the GC driver campaigns for.
const Name = "safe-point-update"

// Lease is held by exactly one process cluster-wide (modulo the usual
// split-brain guarantees of the underlying linearizable coordinator kv).
type Lease interface {
	// OnLost returns a channel closed when the lease is revoked or the
	// holder's session dies.
	OnLost() <-chan struct{}
	// Release gives up the lease voluntarily.
	Release(ctx context.Context) error
}

// Acquirer blocks until the caller holds Name, or ctx is done.
type Acquirer interface {
	Acquire(ctx context.Context) (Lease, error)
}
