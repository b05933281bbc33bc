// Copyright 2025 EclipseFS Authors
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

// Package metrics exposes engine counters as Prometheus collectors. A
// nil *Collector is valid and records nothing, so library callers that
// do not scrape pay nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheEvictions  prometheus.Counter
	cacheTarget     prometheus.Gauge
	prefetchIssued  prometheus.Counter
	batchFlushes    prometheus.Counter
	flushFailures   prometheus.Counter
	journalAppends  prometheus.Counter
	journalCommits  prometheus.Counter
	replayApplied   prometheus.Counter
	replayDiscarded prometheus.Counter
}

// New builds a Collector and registers it with reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "cache", Name: "hits_total",
			Help: "Node cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "cache", Name: "misses_total",
			Help: "Node cache misses.",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "cache", Name: "evictions_total",
			Help: "Node cache evictions.",
		}),
		cacheTarget: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eclipsefs", Subsystem: "cache", Name: "arc_target",
			Help: "Current ARC recency target p.",
		}),
		prefetchIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "reader", Name: "prefetch_issued_total",
			Help: "Nodes fetched ahead of demand.",
		}),
		batchFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "writer", Name: "batch_flushes_total",
			Help: "Write batches flushed.",
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "writer", Name: "flush_failures_total",
			Help: "Write batch flushes that failed.",
		}),
		journalAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "journal", Name: "appends_total",
			Help: "Journal entries appended.",
		}),
		journalCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "journal", Name: "commits_total",
			Help: "Journal transactions committed.",
		}),
		replayApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "journal", Name: "replay_applied_total",
			Help: "Transactions applied during replay.",
		}),
		replayDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eclipsefs", Subsystem: "journal", Name: "replay_discarded_total",
			Help: "Transactions discarded during replay.",
		}),
	}
	for _, m := range []prometheus.Collector{
		c.cacheHits, c.cacheMisses, c.cacheEvictions, c.cacheTarget,
		c.prefetchIssued, c.batchFlushes, c.flushFailures,
		c.journalAppends, c.journalCommits, c.replayApplied, c.replayDiscarded,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CacheHit increments the hit counter.
func (c *Collector) CacheHit() {
	if c != nil {
		c.cacheHits.Inc()
	}
}

// CacheMiss increments the miss counter.
func (c *Collector) CacheMiss() {
	if c != nil {
		c.cacheMisses.Inc()
	}
}

// CacheEviction increments the eviction counter.
func (c *Collector) CacheEviction() {
	if c != nil {
		c.cacheEvictions.Inc()
	}
}

// SetCacheTarget records the ARC recency target.
func (c *Collector) SetCacheTarget(p int) {
	if c != nil {
		c.cacheTarget.Set(float64(p))
	}
}

// PrefetchIssued counts n nodes fetched ahead of demand.
func (c *Collector) PrefetchIssued(n int) {
	if c != nil {
		c.prefetchIssued.Add(float64(n))
	}
}

// BatchFlush counts one flushed batch.
func (c *Collector) BatchFlush() {
	if c != nil {
		c.batchFlushes.Inc()
	}
}

// FlushFailure counts one failed flush.
func (c *Collector) FlushFailure() {
	if c != nil {
		c.flushFailures.Inc()
	}
}

// JournalAppend counts one appended entry.
func (c *Collector) JournalAppend() {
	if c != nil {
		c.journalAppends.Inc()
	}
}

// JournalCommit counts one committed transaction.
func (c *Collector) JournalCommit() {
	if c != nil {
		c.journalCommits.Inc()
	}
}

// ReplayResult records a replay outcome.
func (c *Collector) ReplayResult(applied, discarded int) {
	if c != nil {
		c.replayApplied.Add(float64(applied))
		c.replayDiscarded.Add(float64(discarded))
	}
}
