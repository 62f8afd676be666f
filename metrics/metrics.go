// Copyright 2025 Google LLC
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

// Package metrics exposes Prometheus instrumentation for the core,
// grounded on the teacher's use of github.com/prometheus/client_golang
// (common/oc_metrics.go / common/otel_metrics.go in the teacher counted
// GCS request latencies the same way this package counts VFS operations).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Handle is the set of instruments a Core updates as operations run.
type Handle struct {
	OpsTotal      *prometheus.CounterVec
	OpErrorsTotal *prometheus.CounterVec
	// OpDuration is registered but not observed by package core.
	OpDuration    *prometheus.HistogramVec

	Nodes          prometheus.Gauge
	OpenHandles    prometheus.Gauge
	Branches       prometheus.Gauge
	Snapshots      prometheus.Gauge
	ContentBytes   prometheus.Gauge
	LockConflicts  prometheus.Counter
	EventsEmitted  prometheus.Counter
	EventsDropped  prometheus.Counter
}

// NewHandle constructs and registers a Handle against reg. Passing a fresh
// *prometheus.Registry (rather than the global DefaultRegisterer) lets
// multiple Core instances coexist in one process, e.g. in tests.
func NewHandle(reg prometheus.Registerer) *Handle {
	h := &Handle{
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentfs",
			Name:      "ops_total",
			Help:      "Count of VFS operations by name.",
		}, []string{"op"}),
		OpErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentfs",
			Name:      "op_errors_total",
			Help:      "Count of failed VFS operations by name and error kind.",
		}, []string{"op", "kind"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentfs",
			Name:      "op_duration_seconds",
			Help:      "Latency of VFS operations by name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentfs",
			Name:      "nodes",
			Help:      "Live nodes in the node table.",
		}),
		OpenHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentfs",
			Name:      "open_handles",
			Help:      "Open handles in the handle table.",
		}),
		Branches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentfs",
			Name:      "branches",
			Help:      "Branches in the branch registry.",
		}),
		Snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentfs",
			Name:      "snapshots",
			Help:      "Snapshots in the snapshot registry.",
		}),
		ContentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentfs",
			Name:      "content_bytes",
			Help:      "Bytes resident in the content store.",
		}),
		LockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentfs",
			Name:      "lock_conflicts_total",
			Help:      "Byte-range lock acquisitions that failed Busy.",
		}),
		EventsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentfs",
			Name:      "events_emitted_total",
			Help:      "Events published to subscribers.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentfs",
			Name:      "events_dropped_total",
			Help:      "Events dropped because track_events was disabled.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			h.OpsTotal, h.OpErrorsTotal, h.OpDuration,
			h.Nodes, h.OpenHandles, h.Branches, h.Snapshots, h.ContentBytes,
			h.LockConflicts, h.EventsEmitted, h.EventsDropped,
		)
	}

	return h
}

// NoOp returns a Handle that is never registered and safe to use without a
// registry, for callers that don't want metrics wiring (the teacher's
// common.NewNoopMetrics serves the same purpose for its otel instruments).
func NoOp() *Handle {
	return NewHandle(nil)
}
