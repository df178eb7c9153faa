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

package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/tikv/gcsafepoint/internal/logutil"
)

// SessionTTL is the etcd session TTL backing the lease; losing the session
// (client disconnect, missed heartbeats) is what fires OnLost.
const SessionTTL = 10 * time.Second

// etcdAcquirer campaigns for Name using an etcd v3 session + election,
// the standard distributed-singleton pattern for an etcd-backed cluster.
type etcdAcquirer struct {
	client *clientv3.Client
}

// NewAcquirer builds an Acquirer backed by an etcd client.
func NewAcquirer(client *clientv3.Client) Acquirer {
	return &etcdAcquirer{client: client}
}

func (a *etcdAcquirer) Acquire(ctx context.Context) (Lease, error) {
	session, err := concurrency.NewSession(a.client, concurrency.WithTTL(int(SessionTTL.Seconds())))
	if err != nil {
		return nil, errors.Wrap(err, "lease: new etcd session")
	}

	election := concurrency.NewElection(session, "/"+Name+"/")
	candidate := uuid.New().String()
	if err := election.Campaign(ctx, candidate); err != nil {
		session.Close()
		return nil, errors.Wrap(err, "lease: campaign")
	}

	logutil.BgLogger().Sugar().Infof("gc driver acquired lease %s as %s", Name, candidate)
	return &etcdLease{session: session}, nil
}

type etcdLease struct {
	session *concurrency.Session
}

func (l *etcdLease) OnLost() <-chan struct{} {
	return l.session.Done()
}

func (l *etcdLease) Release(ctx context.Context) error {
	return l.session.Close()
}
