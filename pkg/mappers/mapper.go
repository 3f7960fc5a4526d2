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

// Package mappers implements the pluggable mapping strategies (spec
// §4.3): each maps a job's apps onto the node pool, or yields to let the
// next strategy in priority order try. This replaces the source's
// dynamically loaded plugin components with a closed sum type of
// strategy values plus an ordered priority list (design note §9).
package mappers

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/awlauria/prrte/internal/errors"
	"github.com/awlauria/prrte/internal/logging"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/metrics"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/target"
)

var log = logging.NewLogger("mappers")

// Result is a mapper's verdict on a mapping attempt (spec §4.3).
type Result int

const (
	// ResultOK means the mapper claimed the job and produced a plan.
	ResultOK Result = iota
	// ResultResourceBusy means the mapper built a plan but no node could
	// accept it right now; distinct from a fatal failure.
	ResultResourceBusy
	// ResultTakeNextOption means this mapper doesn't handle the job's
	// resolved policy; the driver should try the next one.
	ResultTakeNextOption
	// ResultFatal means mapping cannot proceed at all.
	ResultFatal
)

// Mapper is a single pluggable mapping strategy.
type Mapper interface {
	// Name identifies the strategy for diagnostics and Map.RequestedMapper.
	Name() string
	// Handles reports whether this mapper's strategy matches j's resolved
	// mapping policy (e.g. the PPR mapper only handles Mapping ==
	// job.MapPPR).
	Handles(j *job.Job) bool
	// MapJob attempts to map j onto pool, appending job.Process entries
	// to j.Map.Processes and touching j.Map.Nodes/Bookmark on success.
	MapJob(j *job.Job, pool *nodepool.Pool) (Result, error)
}

// Registry holds the priority-ordered list of installed mappers (spec
// §4.3 "driver iterates the priority-ordered list of installed mappers").
type Registry struct {
	mappers []Mapper
}

// NewRegistry builds a registry from mappers, in priority order (first
// entry is tried first among those that Handles the job).
func NewRegistry(mappers ...Mapper) *Registry {
	return &Registry{mappers: mappers}
}

// DefaultRegistry returns the conventional priority order: explicit
// rankfile/PPR/sequential strategies before the general object-hierarchy
// and slot/node strategies (spec §2 "Mappers" listing order).
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewByUserMapper(),
		NewPPRMapper(),
		NewSequentialMapper(),
		NewByObjectMapper(job.MapByHWThread),
		NewByObjectMapper(job.MapByCore),
		NewByObjectMapper(job.MapByL1),
		NewByObjectMapper(job.MapByL2),
		NewByObjectMapper(job.MapByL3),
		NewByObjectMapper(job.MapByPackage),
		NewByObjectMapper(job.MapByNUMA),
		NewByNodeMapper(),
		NewBySlotMapper(),
	)
}

// MapJob offers j to each registered mapper in order until one accepts,
// declines everything (MAPPING_FAILED), or one fails fatally (spec §4.3,
// §4.6 step 5-7). When exactly one mapper is installed it is given the
// first attempt unconditionally and recorded as the requested mapper,
// per spec §4.3's single-mapper carve-out.
func (r *Registry) MapJob(j *job.Job, pool *nodepool.Pool) error {
	if len(r.mappers) == 1 {
		m := r.mappers[0]
		j.Map.RequestedMapper = m.Name()
		res, err := m.MapJob(j, pool)
		return resultToError(m, res, err)
	}

	var declined *multierror.Error
	for _, m := range r.mappers {
		if !m.Handles(j) {
			continue
		}
		res, err := m.MapJob(j, pool)
		switch res {
		case ResultTakeNextOption:
			metrics.MapperFallbacks.WithLabelValues(m.Name()).Inc()
			declined = multierror.Append(declined, fmt.Errorf("%s: declined (take-next-option)", m.Name()))
			continue
		default:
			j.Map.RequestedMapper = m.Name()
			return resultToError(m, res, err)
		}
	}

	if declined != nil {
		log.Warn("job %s: every mapper declined: %v", j.Nspace, declined)
	}
	return errors.New(errors.MappingFailed, "no installed mapper claimed job %s", j.Nspace)
}

func resultToError(m Mapper, res Result, err error) error {
	switch res {
	case ResultOK:
		return nil
	case ResultResourceBusy:
		log.Warn("mapper %s: RESOURCE_BUSY", m.Name())
		if err != nil {
			return errors.Wrap(errors.ResourceBusy, err, "mapper %s", m.Name())
		}
		return errors.New(errors.ResourceBusy, "mapper %s: no node could accept the plan", m.Name())
	case ResultTakeNextOption:
		return errors.New(errors.MappingFailed, "mapper %s: unexpected TAKE_NEXT_OPTION at dispatch", m.Name())
	default:
		if err != nil {
			return err
		}
		return errors.New(errors.MappingFailed, "mapper %s failed", m.Name())
	}
}

// touchNode records n as used by the current map: adds it to Map.Nodes,
// sets its MAPPED scratch flag, and advances the bookmark (spec §4.3
// invariants 4 and 5).
func touchNode(j *job.Job, n *nodepool.Node) {
	j.Map.AddNode(n.Name())
	n.SetFlag(nodepool.Mapped)
	j.Map.Bookmark = job.Bookmark{NodeName: n.Name(), Valid: true}
}

// selectTargets runs the target selector for app using the job's current
// directives and bookmark (spec §4.2), the common first step of every
// mapper's per-app placement loop.
func selectTargets(j *job.Job, pool *nodepool.Pool, app *job.AppContext) ([]*nodepool.Node, error) {
	return target.Select(pool, app, j.Directives, j.Map.Bookmark)
}

// reserveOrBusy attempts to reserve one slot on n, honoring
// NO_OVERSUBSCRIBE and the hard slots_max cap (spec §4.3 invariants 2-3).
// It never partially mutates: callers check before calling touchNode or
// appending a Process.
func reserveOrBusy(n *nodepool.Node, noOversubscribe bool) bool {
	if !n.HasCapacity(1) {
		return false
	}
	if noOversubscribe && !n.HasRoom(1) {
		return false
	}
	return true
}
