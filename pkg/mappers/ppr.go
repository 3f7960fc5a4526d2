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

// pprMapper implements PPR(n, node) and PPR(n, package): a fixed process
// count per resource instance, not a balancing fill (spec §4.3).
type pprMapper struct{}

// NewPPRMapper returns the processes-per-resource mapping strategy.
func NewPPRMapper() Mapper { return &pprMapper{} }

func (*pprMapper) Name() string { return "ppr" }

func (*pprMapper) Handles(j *job.Job) bool {
	return j.Map.Policy.Mapping == job.MapPPR
}

func (*pprMapper) MapJob(j *job.Job, pool *nodepool.Pool) (Result, error) {
	ppr, err := job.ParsePPR(j.Directives.PPR)
	if err != nil {
		return ResultFatal, err
	}
	noOversubscribe := j.Directives.NoOversubscribe

	for _, app := range j.Apps {
		nodes, err := selectTargets(j, pool, app)
		if err != nil {
			return ResultFatal, err
		}

		remaining := app.NumProcs
		switch ppr.Keyword {
		case job.PPRNode:
			for _, n := range nodes {
				if remaining <= 0 {
					break
				}
				count := ppr.N
				if count > remaining {
					count = remaining
				}
				for i := 0; i < count; i++ {
					if !reserveOrBusy(n, noOversubscribe) {
						return ResultResourceBusy, nil
					}
					j.Map.Processes = append(j.Map.Processes, &job.Process{
						Job: j, AppIndex: app.Index, NodeName: n.Name(),
					})
					n.Reserve(1)
					touchNode(j, n)
					remaining--
				}
			}

		case job.PPRPackage:
			for _, n := range nodes {
				if remaining <= 0 {
					break
				}
				topo := n.Topology()
				if topo == nil {
					continue
				}
				for _, pkg := range topo.ObjectsOfType(topology.Package) {
					if remaining <= 0 {
						break
					}
					count := ppr.N
					if count > remaining {
						count = remaining
					}
					for i := 0; i < count; i++ {
						if !reserveOrBusy(n, noOversubscribe) {
							return ResultResourceBusy, nil
						}
						j.Map.Processes = append(j.Map.Processes, &job.Process{
							Job: j, AppIndex: app.Index, NodeName: n.Name(),
							BoundToType: topology.Package.String(), BoundToIndex: pkg.Index(),
						})
						n.Reserve(1)
						touchNode(j, n)
						remaining--
					}
				}
			}
		}

		if remaining > 0 {
			return ResultResourceBusy, nil
		}
	}
	return ResultOK, nil
}
