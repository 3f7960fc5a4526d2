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

package mappers

import (
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/topology"
)

// byObjectMapper implements the by-hwthread/core/L1/L2/L3/package/NUMA
// family (spec §4.3 "By-object mappers"): within a node, processes are
// assigned one per object of the named type, in logical index order;
// a node is filled before the walk advances to the next one.
type byObjectMapper struct {
	objType topology.ObjectType
	mapping job.MappingPolicy
	name    string
}

// NewByObjectMapper builds the mapper for the object-type mapping
// policy m (must be one of the MapBy* object-type values).
func NewByObjectMapper(m job.MappingPolicy) Mapper {
	ot, name := objectTypeFor(m)
	return &byObjectMapper{objType: ot, mapping: m, name: name}
}

func objectTypeFor(m job.MappingPolicy) (topology.ObjectType, string) {
	switch m {
	case job.MapByHWThread:
		return topology.HWThread, "by-hwthread"
	case job.MapByCore:
		return topology.Core, "by-core"
	case job.MapByL1:
		return topology.L1Cache, "by-l1cache"
	case job.MapByL2:
		return topology.L2Cache, "by-l2cache"
	case job.MapByL3:
		return topology.L3Cache, "by-l3cache"
	case job.MapByPackage:
		return topology.Package, "by-package"
	case job.MapByNUMA:
		return topology.NUMANode, "by-numa"
	default:
		return topology.Core, "by-core"
	}
}

func (b *byObjectMapper) Name() string { return b.name }

func (b *byObjectMapper) Handles(j *job.Job) bool {
	return j.Map.Policy.Mapping == b.mapping
}

// leafStep returns how many atomic leaves (hwthreads, or cores when not
// using hwthreads) each process consumes, per Directives.PesPerProc
// (spec §4.3 "step the object iterator by that many atomic leaves").
func leafStep(d job.Directives) int {
	if d.PesPerProc > 1 {
		return d.PesPerProc
	}
	return 1
}

func (b *byObjectMapper) MapJob(j *job.Job, pool *nodepool.Pool) (Result, error) {
	noOversubscribe := j.Directives.NoOversubscribe
	step := leafStep(j.Directives)

	var placed int
	for _, app := range j.Apps {
		nodes, err := selectTargets(j, pool, app)
		if err != nil {
			return ResultFatal, err
		}

		remaining := app.NumProcs
		for _, n := range nodes {
			if remaining <= 0 {
				break
			}
			topo := n.Topology()
			if topo == nil {
				continue
			}
			objects := topo.ObjectsOfType(b.objType)
			if len(objects) == 0 {
				continue
			}

			// Fill this node before advancing to the next one: once the
			// object walk reaches the end, it wraps back to index 0 and
			// keeps consuming the node's remaining capacity, the same
			// node-filling shape as bySlotMapper/byNodeMapper.
			for i := 0; remaining > 0 && reserveOrBusy(n, noOversubscribe); i += step {
				obj := objects[i%len(objects)]
				proc := &job.Process{
					Job:          j,
					AppIndex:     app.Index,
					NodeName:     n.Name(),
					BoundToType:  b.objType.String(),
					BoundToIndex: obj.Index(),
				}
				j.Map.Processes = append(j.Map.Processes, proc)
				n.Reserve(1)
				touchNode(j, n)
				remaining--
				placed++
			}
		}
		if remaining > 0 {
			return ResultResourceBusy, nil
		}
	}

	if placed == 0 {
		return ResultTakeNextOption, nil
	}
	return ResultOK, nil
}
