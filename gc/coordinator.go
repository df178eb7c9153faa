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

import "context"

// CoordinatorClient is the coordinator capability set the driver consumes
// the region map, control-key reads, GC safe-point publication, and
// TSO timestamps. internal/coordinator provides the pd.Client-backed
// implementation; this interface lives in gc (not internal/coordinator) so
// the implementation package can depend on gc's types without creating an
// import cycle.
type CoordinatorClient interface {
	// RegionMap returns every region in the cluster as of reqTs.
	RegionMap(ctx context.Context, reqTs Timestamp) ([]Region, error)
	// ControlKey reads a single control key, returning ok=false if absent.
	ControlKey(ctx context.Context, key string) (value []byte, ok bool, err error)
	// UpdateGCSafePoint publishes the cluster GC safe point.
	UpdateGCSafePoint(ctx context.Context, safePoint Timestamp) (Timestamp, error)
	// TS fetches a fresh monotone cluster timestamp.
	TS(ctx context.Context) (Timestamp, error)
}
