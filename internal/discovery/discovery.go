// Copyright 2020 Staysail Systems, Inc. <info@staysail.tech>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package discovery announces where the contracts of a server can be
// reached.  Entries live under
//
//	/ipcsvc/<contract>/<url>
//
// attached to a single TTL lease, so they vanish if the server dies
// without withdrawing them.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"go.nanomsg.org/ipcsvc/internal/config"
	"go.nanomsg.org/ipcsvc/internal/logging"
)

// KeyPrefix is the root of every announced key.
const KeyPrefix = "/ipcsvc/"

// ErrAnnounced is returned when Announce is called twice without a
// Withdraw in between.
var ErrAnnounced = errors.New("already announced")

// Endpoint is the value stored for each announced key.
type Endpoint struct {
	Name     string `json:"name"`
	Contract string `json:"contract"`
	URL      string `json:"url"`
}

// Announcer publishes and withdraws the endpoints of a server.
type Announcer interface {
	Announce(ctx context.Context, contracts []string, urls []string) error
	Withdraw(ctx context.Context) error
	Close() error
}

// etcdAPI is the part of *clientv3.Client used here.
type etcdAPI interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

// Key returns the key under which url is announced for contract.
func Key(contract, url string) string {
	return KeyPrefix + contract + "/" + url
}

// EtcdAnnouncer implements Announcer with etcd v3.
type EtcdAnnouncer struct {
	api    etcdAPI
	closer func() error
	name   string
	ttl    time.Duration
	logger logging.Logger

	lock  sync.Mutex
	lease clientv3.LeaseID
	stop  context.CancelFunc
	done  chan struct{}
}

// NewEtcdAnnouncer connects to the endpoints in cfg.  name is stored
// with every entry.
func NewEtcdAnnouncer(cfg config.DiscoveryConfig, name string, logger logging.Logger) (*EtcdAnnouncer, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return newAnnouncer(c, c.Close, name, cfg.TTL, logger), nil
}

func newAnnouncer(api etcdAPI, closer func() error, name string, ttl time.Duration, logger logging.Logger) *EtcdAnnouncer {
	if ttl < time.Second {
		ttl = time.Second
	}
	return &EtcdAnnouncer{
		api:    api,
		closer: closer,
		name:   name,
		ttl:    ttl,
		logger: logging.OrNull(logger),
	}
}

// Announce puts one key per contract and url, all on a fresh lease
// that is kept alive until Withdraw.
func (a *EtcdAnnouncer) Announce(ctx context.Context, contracts []string, urls []string) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.stop != nil {
		return ErrAnnounced
	}

	lease, err := a.api.Grant(ctx, int64(a.ttl/time.Second))
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}
	if err = a.put(ctx, lease.ID, contracts, urls); err != nil {
		_, _ = a.api.Revoke(ctx, lease.ID)
		return err
	}

	kctx, stop := context.WithCancel(context.Background())
	ch, err := a.api.KeepAlive(kctx, lease.ID)
	if err != nil {
		stop()
		_, _ = a.api.Revoke(ctx, lease.ID)
		return fmt.Errorf("keep alive: %w", err)
	}

	a.lease = lease.ID
	a.stop = stop
	a.done = make(chan struct{})
	go a.drain(kctx, ch, a.done)

	a.logger.Infof("announced %d contracts on %d urls (lease %x)", len(contracts), len(urls), lease.ID)
	return nil
}

func (a *EtcdAnnouncer) put(ctx context.Context, lease clientv3.LeaseID, contracts []string, urls []string) error {
	for _, c := range contracts {
		for _, u := range urls {
			val, err := json.Marshal(Endpoint{Name: a.name, Contract: c, URL: u})
			if err != nil {
				return err
			}
			if _, err = a.api.Put(ctx, Key(c, u), string(val), clientv3.WithLease(lease)); err != nil {
				return fmt.Errorf("put %s: %w", Key(c, u), err)
			}
		}
	}
	return nil
}

func (a *EtcdAnnouncer) drain(ctx context.Context, ch <-chan *clientv3.LeaseKeepAliveResponse, done chan struct{}) {
	defer close(done)
	for range ch {
	}
	if ctx.Err() == nil {
		a.logger.Warnf("discovery lease lost; entries will expire")
	}
}

// Withdraw stops the keep-alive and revokes the lease, deleting every
// announced key.  It does nothing if nothing is announced.
func (a *EtcdAnnouncer) Withdraw(ctx context.Context) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.stop == nil {
		return nil
	}
	a.stop()
	<-a.done
	lease := a.lease
	a.stop, a.done, a.lease = nil, nil, 0

	if _, err := a.api.Revoke(ctx, lease); err != nil {
		return fmt.Errorf("revoke lease: %w", err)
	}
	a.logger.Infof("withdrawn (lease %x)", lease)
	return nil
}

// Close withdraws and releases the etcd client.
func (a *EtcdAnnouncer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.ttl)
	defer cancel()
	err := a.Withdraw(ctx)
	if a.closer != nil {
		if e := a.closer(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Lookup returns the endpoints announced for contract.  Malformed
// entries are skipped.
func (a *EtcdAnnouncer) Lookup(ctx context.Context, contract string) ([]Endpoint, error) {
	resp, err := a.api.Get(ctx, KeyPrefix+contract+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	eps := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			continue
		}
		eps = append(eps, ep)
	}
	return eps, nil
}
