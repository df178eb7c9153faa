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

	"github.com/pkg/errors"

	"github.com/tikv/gcsafepoint/gc"
)

// PeerNode is a fake computing peer exposing its own table-row locks.
type PeerNode struct {
	mu        sync.Mutex
	locks     []gc.TableLock
	dead      bool
	failCount int
	callCount int
}

// NewPeerNode builds a peer with no locks held.
func NewPeerNode() *PeerNode { return &PeerNode{} }

// SetLocks replaces the peer's reported table locks.
func (p *PeerNode) SetLocks(locks []gc.TableLock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locks = locks
}

// SetUnreachable makes every subsequent TableLocks call fail, simulating a
// dead or partitioned peer.
func (p *PeerNode) SetUnreachable(dead bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead = dead
}

// FailNextCalls makes the next n TableLocks calls fail before the peer
// starts answering normally again, simulating a transient blip a caller's
// retry budget should ride out.
func (p *PeerNode) FailNextCalls(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCount = n
}

// CallCount reports how many times TableLocks has been invoked.
func (p *PeerNode) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

func (p *PeerNode) TableLocks(ctx context.Context) ([]gc.TableLock, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callCount++
	if p.dead {
		return nil, errors.New("mockstore: peer unreachable")
	}
	if p.failCount > 0 {
		p.failCount--
		return nil, errors.New("mockstore: peer transient failure")
	}
	out := make([]gc.TableLock, len(p.locks))
	copy(out, p.locks)
	return out, nil
}

// PeerDirectory is a static, address-keyed gc.PeerDirectory fake.
type PeerDirectory struct {
	mu    sync.Mutex
	peers map[string]gc.PeerClient
}

// NewPeerDirectory builds an empty directory.
func NewPeerDirectory() *PeerDirectory {
	return &PeerDirectory{peers: make(map[string]gc.PeerClient)}
}

// Add registers a peer under addr.
func (d *PeerDirectory) Add(addr string, peer gc.PeerClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[addr] = peer
}

func (d *PeerDirectory) Peers(ctx context.Context) (map[string]gc.PeerClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]gc.PeerClient, len(d.peers))
	for k, v := range d.peers {
		out[k] = v
	}
	return out, nil
}
