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

// Package client dispatches the four lock-lifecycle RPCs the GC driver
// needs against a single region-store address, adapted from client-go's
// internal/client connArray/RPCClient gRPC-dial pattern and narrowed to the
// capability set the GC driver needs (ScanLock, CheckTxnStatus,
// PessimisticRollback, ResolveLock) instead of the full tikvpb surface.
package client

import (
	"context"
	"time"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pingcap/kvproto/pkg/tikvpb"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	grpc_opentracing "github.com/grpc-ecosystem/go-grpc-middleware/tracing/opentracing"
)

// ScanLockRequest pages through a region's locks. Unlike the raw TiKV wire
// ScanLock RPC, the response carries explicit pagination metadata so
// callers never have to infer completion from a short page.
type ScanLockRequest struct {
	StartKey   []byte
	EndKey     []byte
	MaxVersion uint64
	Limit      uint32
}

// ScanLockResponse is one page of a region's lock scan.
type ScanLockResponse struct {
	Locks   []*kvrpcpb.LockInfo
	HasMore bool
	EndKey  []byte
}

// RegionClient is the capability set a single region-store (or index-store)
// shard exposes to the GC driver.
type RegionClient interface {
	ScanLock(ctx context.Context, req *ScanLockRequest) (*ScanLockResponse, error)
	CheckTxnStatus(ctx context.Context, req *kvrpcpb.CheckTxnStatusRequest) (*kvrpcpb.CheckTxnStatusResponse, error)
	PessimisticRollback(ctx context.Context, req *kvrpcpb.PessimisticRollbackRequest) (*kvrpcpb.PessimisticRollbackResponse, error)
	ResolveLock(ctx context.Context, req *kvrpcpb.ResolveLockRequest) (*kvrpcpb.ResolveLockResponse, error)
	// Close releases the underlying connection.
	Close() error
}

// requestTimeout is the per-call deadline every RPC below carries.
const requestTimeout = 30 * time.Second

var rpcDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "tikv_client",
	Subsystem: "gc_driver",
	Name:      "region_rpc_duration_seconds",
	Help:      "Duration of region-store RPCs issued by the GC driver, by RPC name.",
	Buckets:   prometheus.DefBuckets,
}, []string{"rpc"})

func init() {
	prometheus.MustRegister(rpcDuration)
}

// grpcRegionClient dials a single region-store address and issues the
// lock-lifecycle RPCs over it, with keepalive, bounded backoff, and a
// tracing interceptor on the connection.
type grpcRegionClient struct {
	addr string
	conn *grpc.ClientConn
	raw  tikvpb.TikvClient
}

// Dial opens a connection to a region-store address.
func Dial(addr string) (RegionClient, error) {
	conn, err := grpc.Dial(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpc_opentracing.UnaryClientInterceptor()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  100 * time.Millisecond,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   3 * time.Second,
			},
			MinConnectTimeout: 5 * time.Second,
		}),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "client: dial %s", addr)
	}
	return &grpcRegionClient{addr: addr, conn: conn, raw: tikvpb.NewTikvClient(conn)}, nil
}

func (c *grpcRegionClient) observe(rpc string, start time.Time) {
	rpcDuration.WithLabelValues(rpc).Observe(time.Since(start).Seconds())
}

func (c *grpcRegionClient) ScanLock(ctx context.Context, req *ScanLockRequest) (*ScanLockResponse, error) {
	start := time.Now()
	defer c.observe("ScanLock", start)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	// Request one extra lock beyond the page size: its presence tells us
	// a further page exists, and its key is the first excluded key —
	// the correct exclusive continuation cursor — without which we'd
	// have to use the last *included* key and re-dispatch it next page.
	raw := &kvrpcpb.ScanLockRequest{
		MaxVersion: req.MaxVersion,
		Limit:      req.Limit + 1,
		StartKey:   req.StartKey,
		EndKey:     req.EndKey,
	}
	resp, err := c.raw.KvScanLock(ctx, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "client: scan lock on %s", c.addr)
	}
	if resp.GetError() != nil {
		return nil, errors.Errorf("client: scan lock error: %s", resp.GetError())
	}

	return trimScanLockPage(resp.GetLocks(), req.Limit, req.EndKey), nil
}

// trimScanLockPage turns a limit+1-sized fetch into a correctly paginated
// page: when the extra lock is present, its key becomes the exclusive
// continuation cursor (the first key NOT included in this page), matching
// internal/mockstore.RegionStore's inclusive-start/exclusive-end convention
// instead of re-offering the last included key on the next call.
func trimScanLockPage(locks []*kvrpcpb.LockInfo, limit uint32, fallbackEndKey []byte) *ScanLockResponse {
	hasMore := uint32(len(locks)) > limit
	endKey := fallbackEndKey
	if hasMore {
		endKey = locks[limit].GetKey()
		locks = locks[:limit]
	}
	return &ScanLockResponse{Locks: locks, HasMore: hasMore, EndKey: endKey}
}

func (c *grpcRegionClient) CheckTxnStatus(ctx context.Context, req *kvrpcpb.CheckTxnStatusRequest) (*kvrpcpb.CheckTxnStatusResponse, error) {
	start := time.Now()
	defer c.observe("CheckTxnStatus", start)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.raw.KvCheckTxnStatus(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "client: check txn status on %s", c.addr)
	}
	return resp, nil
}

func (c *grpcRegionClient) PessimisticRollback(ctx context.Context, req *kvrpcpb.PessimisticRollbackRequest) (*kvrpcpb.PessimisticRollbackResponse, error) {
	start := time.Now()
	defer c.observe("PessimisticRollback", start)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.raw.KVPessimisticRollback(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "client: pessimistic rollback on %s", c.addr)
	}
	return resp, nil
}

func (c *grpcRegionClient) ResolveLock(ctx context.Context, req *kvrpcpb.ResolveLockRequest) (*kvrpcpb.ResolveLockResponse, error) {
	start := time.Now()
	defer c.observe("ResolveLock", start)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.raw.KvResolveLock(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "client: resolve lock on %s", c.addr)
	}
	return resp, nil
}

func (c *grpcRegionClient) Close() error {
	return c.conn.Close()
}
