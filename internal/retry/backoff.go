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

// Package retry provides a bounded exponential backoffer for a single
// logical call: a per-peer or per-coordinator retry budget that gives up
// instead of retrying forever.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Config names one backoff policy, e.g. a BoRegionMiss / BoTxnLock style
// package var.
type Config struct {
	name       string
	base       time.Duration
	cap        time.Duration
	maxRetries int
}

// NewConfig builds a named backoff policy with exponential growth capped at
// capDur and bounded to maxRetries attempts.
func NewConfig(name string, base, capDur time.Duration, maxRetries int) *Config {
	return &Config{name: name, base: base, cap: capDur, maxRetries: maxRetries}
}

// Backoffer accumulates sleeps for a single logical operation (one peer
// call, one coordinator call) until its backoff budget is exhausted.
type Backoffer struct {
	ctx     context.Context
	attempt int
}

// NewBackoffer creates a Backoffer bound to ctx; it stops retrying as soon
// as ctx is done even if the policy's retry budget is not exhausted.
func NewBackoffer(ctx context.Context) *Backoffer {
	return &Backoffer{ctx: ctx}
}

// GetCtx returns the backoffer's context.
func (b *Backoffer) GetCtx() context.Context {
	return b.ctx
}

// Backoff sleeps according to cfg's policy and returns an error once the
// policy's attempt budget is exhausted or ctx is done. cause is wrapped into
// the returned error for diagnostics, matching bo.Backoff(cfg, cause) in the
// teacher.
func (b *Backoffer) Backoff(cfg *Config, cause error) error {
	select {
	case <-b.ctx.Done():
		return errors.Wrapf(b.ctx.Err(), "%s: backoff cancelled", cfg.name)
	default:
	}
	if b.attempt >= cfg.maxRetries {
		return errors.Wrapf(cause, "%s: retries exhausted after %d attempts", cfg.name, b.attempt)
	}
	sleep := cfg.base << uint(b.attempt)
	if sleep > cfg.cap || sleep <= 0 {
		sleep = cfg.cap
	}
	b.attempt++
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-b.ctx.Done():
		return errors.Wrapf(b.ctx.Err(), "%s: backoff cancelled", cfg.name)
	}
}
