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

// Command gcsafepoint-driver runs the cluster-wide GC safe-point driver as
// a standalone process: one instance per node, exactly one active at a
// time across the cluster (see internal/lease).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pingcap/log"
	pd "github.com/tikv/pd/client"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/tikv/gcsafepoint/gc"
	"github.com/tikv/gcsafepoint/internal/coordinator"
	"github.com/tikv/gcsafepoint/internal/lease"
	"github.com/tikv/gcsafepoint/internal/locate"
	"github.com/tikv/gcsafepoint/internal/logutil"
)

func main() {
	var (
		pdAddrs    = flag.String("pd", "127.0.0.1:2379", "comma-separated PD endpoints")
		localAddr  = flag.String("addr", "", "this node's own endpoint, used to exclude it from peer lock aggregation")
		peerAddrs  = flag.String("peers", "", "comma-separated peer node endpoints this driver can query for table locks")
		controlNS  = flag.String("control-ns", "/gcsafepoint/", "key namespace prefix for control-key reads against PD's etcd")
		tickPeriod = flag.Duration("tick-period", gc.DefaultTickPeriod, "fixed cadence of the driver's tick")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	logutil.SetLogger(logger)

	cfg := gc.Config{
		Coordinators:  strings.Split(*pdAddrs, ","),
		LocalLocation: *localAddr,
		TickPeriod:    *tickPeriod,
	}.WithDefaults()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pdClient, err := pd.NewClient(cfg.Coordinators, pd.SecurityOption{})
	if err != nil {
		log.Fatal("failed to dial pd", zap.Error(err))
	}
	defer pdClient.Close()

	etcdClient, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Coordinators,
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatal("failed to dial etcd", zap.Error(err))
	}
	defer etcdClient.Close()

	coord := coordinator.NewPDClient(pdClient, etcdClient.KV, *controlNS)

	resolver := coordinator.NewStoreResolver(pdClient)
	router := locate.NewRouter(resolver, cfg.RegionClientTTL)
	clientResolver := locate.NewResolver(router)

	peerDir := newFlagPeerDirectory(strings.Split(*peerAddrs, ","))
	peerLocks := gc.NewPeerLockAggregator(peerDir, *localAddr, localTableLocks)

	computer := gc.NewSafePointComputer(coord, peerLocks)
	engine := gc.NewScanResolveEngine(coord, clientResolver, cfg.ScanLimit)
	driver := gc.NewDriver(coord, computer, engine, clientResolver)

	acquirer := lease.NewAcquirer(etcdClient)
	if err := gc.AcquireAndRun(ctx, acquirer, driver, cfg); err != nil && ctx.Err() == nil {
		log.Fatal("gc driver exited", zap.Error(err))
	}
}

// localTableLocks reports this node's own active ROW table locks. A
// standalone driver has none of its own; an embedder with a real lock
// manager should replace this.
func localTableLocks(ctx context.Context) ([]gc.TableLock, error) {
	return nil, nil
}

// flagPeerDirectory is a static gc.PeerDirectory built from the -peers flag.
type flagPeerDirectory struct {
	peers map[string]gc.PeerClient
}

func newFlagPeerDirectory(addrs []string) *flagPeerDirectory {
	peers := make(map[string]gc.PeerClient)
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		peers[addr] = &grpcPeerClient{addr: addr}
	}
	return &flagPeerDirectory{peers: peers}
}

func (d *flagPeerDirectory) Peers(ctx context.Context) (map[string]gc.PeerClient, error) {
	return d.peers, nil
}

// grpcPeerClient is a placeholder peer stub; a real deployment wires this
// to whatever RPC the SQL layer exposes for showing table locks.
type grpcPeerClient struct {
	addr string
}

func (p *grpcPeerClient) TableLocks(ctx context.Context) ([]gc.TableLock, error) {
	return nil, nil
}
