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

package coordinator

import "github.com/tikv/gcsafepoint/gc"

// Table keyspace encoding markers: a table-keyspace key is
// 't' + 8-byte big-endian table id + '_' + marker byte, where marker is 'r'
// for row (data) keys and 'i' for index keys.
const (
	recordMarker = 'r'
	indexMarker  = 'i'
	tablePrefix  = 't'
	tablePrefixAndIDLen = 1 + 8
	markerOffset = tablePrefixAndIDLen + 1 // skips the '_' separator
)

// deriveRegionType classifies a region's key range by its start key's
// marker byte: OtherRegion outside the table keyspace, IndexRegion for an
// 'i' marker, and DataRegion otherwise, including when the key is too short
// to carry a marker (e.g. the key is exactly the table prefix, as happens at
// a table's very first region boundary).
func deriveRegionType(startKey []byte) gc.RegionType {
	if len(startKey) == 0 || startKey[0] != tablePrefix {
		return gc.OtherRegion
	}
	if len(startKey) <= markerOffset {
		return gc.DataRegion
	}
	switch startKey[markerOffset] {
	case indexMarker:
		return gc.IndexRegion
	default:
		return gc.DataRegion
	}
}
