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

import "github.com/prometheus/client_golang/prometheus"

var (
	ticksRun = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tikv_client",
		Subsystem: "gc_driver",
		Name:      "ticks_total",
		Help:      "Number of safe-point driver ticks that published a safe point.",
	})

	ticksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tikv_client",
		Subsystem: "gc_driver",
		Name:      "ticks_dropped_total",
		Help:      "Number of ticks dropped because the previous tick was still running.",
	})

	ticksFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tikv_client",
		Subsystem: "gc_driver",
		Name:      "ticks_failed_total",
		Help:      "Number of ticks that failed, by error kind.",
	}, []string{"kind"})

	locksObserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tikv_client",
		Subsystem: "gc_driver",
		Name:      "locks_observed_total",
		Help:      "Number of locks returned across all scan-lock pages.",
	})

	locksByOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tikv_client",
		Subsystem: "gc_driver",
		Name:      "locks_resolved_total",
		Help:      "Number of locks dispatched, by resolution outcome.",
	}, []string{"outcome"})

	safePointPublished = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tikv_client",
		Subsystem: "gc_driver",
		Name:      "safe_point",
		Help:      "The GC safe point published by the most recent successful tick.",
	})

	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tikv_client",
		Subsystem: "gc_driver",
		Name:      "tick_duration_seconds",
		Help:      "Wall-clock duration of a completed tick.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	})
)

func init() {
	prometheus.MustRegister(
		ticksRun,
		ticksDropped,
		ticksFailed,
		locksObserved,
		locksByOutcome,
		safePointPublished,
		tickDuration,
	)
}

// lock resolution outcomes recorded against locksByOutcome.
const (
	outcomeCommit              = "commit"
	outcomeRollback            = "rollback"
	outcomePessimisticRollback = "pessimistic_rollback"
	outcomeLeft                = "left"
	outcomeIndeterminate       = "indeterminate"
)
