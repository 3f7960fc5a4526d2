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

// Package planner implements the map_job state machine (spec §4.6): one
// driver invocation takes a job from INIT through MAP to either
// MAP_COMPLETE or MAP_FAILED, then CLEANUP. The driver is the only
// writer of shared node-pool state (spec §5 "single-threaded,
// event-driven"); callers serialize concurrent submissions themselves.
package planner

import (
	"context"
	"sync/atomic"
	"time"

	"go.opencensus.io/trace"

	"github.com/awlauria/prrte/internal/errors"
	"github.com/awlauria/prrte/internal/logging"
	"github.com/awlauria/prrte/pkg/binder"
	"github.com/awlauria/prrte/pkg/display"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/mappers"
	"github.com/awlauria/prrte/pkg/metrics"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/policy"
	"github.com/awlauria/prrte/pkg/ranker"
)

var log = logging.NewLogger("planner")

// Driver runs the mapping state machine against one shared node pool and
// one set of process-wide defaults.
type Driver struct {
	Pool     *nodepool.Pool
	Defaults policy.Defaults
	Mappers  *mappers.Registry

	// totalProcs is the global process counter (spec §5): advanced by a
	// single atomic fetch-add per successful mapping pass, the only
	// shared counter the mapping core itself needs to synchronize.
	totalProcs int64
}

// NewDriver builds a driver over pool and defaults, installing the
// conventional mapper priority order (spec §2 "Mappers").
func NewDriver(pool *nodepool.Pool, defaults policy.Defaults) *Driver {
	return &Driver{Pool: pool, Defaults: defaults, Mappers: mappers.DefaultRegistry()}
}

// TotalProcs returns the current value of the global process counter.
func (d *Driver) TotalProcs() int64 { return atomic.LoadInt64(&d.totalProcs) }

// MapJob drives j through MAP -> MAP_COMPLETE|MAP_FAILED -> CLEANUP
// (spec §4.6, the 14 numbered steps). It returns the fatal error, if
// any; j.State and j.ExitCode always reflect the outcome.
func (d *Driver) MapJob(ctx context.Context, j *job.Job) error {
	ctx, span := trace.StartSpan(ctx, "planner.MapJob")
	defer span.End()

	start := time.Now()
	j.State = job.StateMap // step 1: enter MAP (inheritance parent is resolved inside policy.Resolve)

	err := d.runMapping(ctx, j)

	d.Pool.ResetScratch() // step 14: CLEANUP always clears MAPPED scratch flags, even on failure

	outcome := "complete"
	if err != nil {
		outcome = "failed"
		j.State = job.StateMapFailed
		j.ExitCode = errors.KindOf(err)
		log.Error("job %s: mapping failed: %v", j.Nspace, err)
	} else {
		j.State = job.StateMapComplete
		log.Info("job %s: mapped %d processes across %d nodes", j.Nspace, j.Map.NumProcs, j.Map.NumNodes)
	}

	elapsed := time.Since(start)
	metrics.JobsMapped.WithLabelValues(outcome).Inc()
	metrics.MappingDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	metrics.RecordMapJobLatency(float64(elapsed.Milliseconds()))
	return err
}

func (d *Driver) runMapping(ctx context.Context, j *job.Job) error {
	_, resolveSpan := trace.StartSpan(ctx, "planner.resolve")
	_, err := policy.Resolve(j, d.Defaults, d.Pool) // step 2; estimate is advisory, the realized plan is authoritative
	resolveSpan.End()
	if err != nil {
		return err // includes step 3's malformed-PPR BAD_PARAM when an app needs estimating; otherwise the PPR mapper reports it
	}

	if j.Cancelled { // spec §5 cancellation checkpoint: after resolve
		return errors.New(errors.Cancelled, "job %s cancelled after policy resolution", j.Nspace)
	}

	if j.Directives.DoNotLaunch { // step 4
		if err := d.borrowHeadTopology(); err != nil {
			return err
		}
	}

	_, mapSpan := trace.StartSpan(ctx, "planner.map")
	err = d.Mappers.MapJob(j, d.Pool) // step 5
	mapSpan.End()
	if err != nil {
		if errors.Is(err, errors.ResourceBusy) {
			log.Warn("job %s: cannot-launch: %v", j.Nspace, err) // step 6 diagnostic
		} else {
			log.Warn("job %s: failed-map: %v", j.Nspace, err) // step 7 diagnostic
		}
		// A failed mapper may have placed some processes before giving up:
		// hand their slots back and expose no partial plan.
		for _, p := range j.Map.Processes {
			if n, ok := d.Pool.Get(p.NodeName); ok {
				n.Release(1)
			}
		}
		j.Map.Processes = nil
		j.Map.Nodes = nil
		return err
	}

	j.Map.NumNodes = len(j.Map.Nodes)
	j.Map.NumProcs = len(j.Map.Processes)
	if j.Map.NumProcs == 0 || j.Map.NumNodes == 0 { // step 7
		return errors.New(errors.MappingFailed, "job %s: mapper produced %d procs on %d nodes", j.Nspace, j.Map.NumProcs, j.Map.NumNodes)
	}
	if j.Cancelled { // cancellation checkpoint: after mapping
		return errors.New(errors.Cancelled, "job %s cancelled after mapping", j.Nspace)
	}

	j.Map.Oversubscribed = d.anyUsedNodeOversubscribed(j)
	if j.Map.Oversubscribed && j.Map.Policy.Binding != job.BindNone {
		log.Debug("job %s: oversubscribed, forcing binding to none", j.Nspace)
		j.Map.Policy.Binding = job.BindNone // step 8
	}

	if err := ranker.Rank(j, d.Pool); err != nil { // step 9
		return err
	}

	if j.Cancelled { // cancellation checkpoint: before binding
		return errors.New(errors.Cancelled, "job %s cancelled before binding", j.Nspace)
	}

	var localityPairs []display.LocalityPair
	if j.Map.Policy.Binding != job.BindNone {
		if err := binder.Bind(j, d.Pool); err != nil { // always bind when a binding policy is in effect
			return err
		}
	}
	if j.Display || j.Directives.FullyDescribed { // step 10: locality is computed only when asked for
		localityPairs = display.ComputeLocality(j, d.Pool)
	}

	offset := atomic.AddInt64(&d.totalProcs, int64(j.Map.NumProcs)) - int64(j.Map.NumProcs) // step 11
	j.Map.GlobalOffset = int(offset)
	metrics.ProcessesMapped.Add(float64(j.Map.NumProcs))

	if j.Originator != nil { // step 12
		j.Originator.Map.Bookmark = j.Map.Bookmark
	}

	if j.Display { // step 13; only rank-0 of the launching job emits, enforced by the caller that sets Display
		log.Info("job %s map:\n%s", j.Nspace, display.Human(j))
		log.Info("job %s map (diffable):\n%s", j.Nspace, display.XML(j, localityPairs))
	}

	return nil
}

// anyUsedNodeOversubscribed reports whether any node this job's map
// touched ended up with more reservations than its slots_total (spec
// §4.6 step 8's oversubscription check).
func (d *Driver) anyUsedNodeOversubscribed(j *job.Job) bool {
	for _, name := range j.Map.Nodes {
		if n, ok := d.Pool.Get(name); ok && n.HasFlag(nodepool.Oversubscribed) {
			return true
		}
	}
	return false
}

// borrowHeadTopology implements step 4: in DO_NOT_LAUNCH (planner-only)
// mode, nodes the operator never actually probed have no topology; the
// first node in the pool's stable name order that has a topology lends
// it as a stand-in so object-type mappers and the binder still have
// something to work against.
func (d *Driver) borrowHeadTopology() error {
	all := d.Pool.All()
	if len(all) == 0 {
		return nil
	}
	var head *nodepool.Node
	for _, n := range all {
		if n.Topology() != nil {
			head = n
			break
		}
	}
	if head == nil {
		return errors.New(errors.NotFound, "do-not-launch mode: no node in the pool has a topology to borrow")
	}
	for _, n := range all {
		if n.Topology() == nil {
			n.SetTopology(head.Topology())
		}
	}
	return nil
}
