// Copyright The PRRTE-Go Authors.
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

// Package metrics declares the planner's prometheus instrumentation:
// counts of jobs and processes mapped, mapper fallbacks, and mapping
// pass duration. Grounded on the teacher's pkg/metrics/collectors
// direct-registration idiom, scaled down from a pluggable named-
// collector registry to a fixed set of vectors the driver updates
// directly.
//
// The driver's opencensus trace spans (pkg/planner) are complemented
// here by a single opencensus stats view, bridged into the same
// prometheus registry via contrib.go.opencensus.io/exporter/prometheus,
// following the view.RegisterExporter idiom in the teacher's
// pkg/instrumentation/metrics/opencensus package.
package metrics

import (
	"context"

	ocprom "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"

	"github.com/awlauria/prrte/internal/logging"
)

var log = logging.NewLogger("metrics")

const namespace = "prrte_planner"

var (
	// JobsMapped counts completed mapping passes by outcome ("complete"
	// or "failed", spec §4.6 MAP_COMPLETE/MAP_FAILED).
	JobsMapped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_mapped_total",
		Help:      "Number of jobs that finished a mapping pass, by outcome.",
	}, []string{"outcome"})

	// ProcessesMapped counts processes placed across all jobs.
	ProcessesMapped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "processes_mapped_total",
		Help:      "Total number of processes assigned a node by the mapper.",
	})

	// MapperFallbacks counts how often the registry had to move past a
	// mapper's TAKE_NEXT_OPTION result onto the next candidate (spec
	// §4.3 invariant 4).
	MapperFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mapper_fallbacks_total",
		Help:      "Number of times a mapper declined a job and the registry tried the next one.",
	}, []string{"mapper"})

	// MappingDuration records wall-clock time for a full MapJob driver
	// pass (spec §4.6), labeled by outcome.
	MappingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mapping_duration_seconds",
		Help:      "Duration of a complete mapping pass through the driver.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)

// MustRegister registers every planner collector against reg. Panics on
// a duplicate registration, matching prometheus.MustRegister's contract;
// callers normally pass a fresh *prometheus.Registry built at startup.
func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(JobsMapped, ProcessesMapped, MapperFallbacks, MappingDuration)
}

// mapJobLatencyMs is an opencensus measure recording the same mapping
// pass latency as MappingDuration, but through the opencensus stats
// pipeline rather than directly through a prometheus histogram; it
// exists so the driver's trace.StartSpan calls sit alongside a live
// stats consumer instead of an unexported one.
var mapJobLatencyMs = stats.Float64(
	"prrte_planner/map_job_latency_ms",
	"Job mapping pass latency in milliseconds.",
	stats.UnitMilliseconds,
)

var mapJobLatencyView = &view.View{
	Name:        "prrte_planner/map_job_latency_ms",
	Measure:     mapJobLatencyMs,
	Description: "Distribution of job mapping pass latency.",
	Aggregation: view.Distribution(1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
}

// RegisterOpenCensusBridge registers the opencensus stats view above and
// returns a prometheus exporter that republishes it through reg, so one
// /metrics endpoint serves both the native prometheus vectors and the
// opencensus-recorded measure. Call once per process alongside
// MustRegister.
func RegisterOpenCensusBridge(reg *prometheus.Registry) (*ocprom.Exporter, error) {
	if err := view.Register(mapJobLatencyView); err != nil {
		return nil, err
	}
	exporter, err := ocprom.NewExporter(ocprom.Options{
		Namespace: namespace,
		Registry:  reg,
		OnError:   func(err error) { log.Warn("opencensus prometheus export error: %v", err) },
	})
	if err != nil {
		return nil, err
	}
	view.RegisterExporter(exporter)
	return exporter, nil
}

// RecordMapJobLatency records one driver pass's duration in milliseconds
// against the opencensus view above (pkg/planner calls this once per
// MapJob invocation, mirroring the prometheus MappingDuration update).
func RecordMapJobLatency(ms float64) {
	stats.Record(context.Background(), mapJobLatencyMs.M(ms))
}
