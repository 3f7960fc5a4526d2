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
)

// bySlotMapper fills each node to its slots_total (or beyond, if
// oversubscribe is permitted) before advancing to the next node (spec
// §4.3 "By-slot: fill each node to its slots_total, then advance").
type bySlotMapper struct{}

// NewBySlotMapper returns the by-slot mapping strategy.
func NewBySlotMapper() Mapper { return &bySlotMapper{} }

func (*bySlotMapper) Name() string { return "by-slot" }

func (*bySlotMapper) Handles(j *job.Job) bool {
	return j.Map.Policy.Mapping == job.MapBySlot
}

func (*bySlotMapper) MapJob(j *job.Job, pool *nodepool.Pool) (Result, error) {
	noOversubscribe := j.Directives.NoOversubscribe

	for _, app := range j.Apps {
		nodes, err := selectTargets(j, pool, app)
		if err != nil {
			return ResultFatal, err
		}

		remaining := app.NumProcs
		for _, n := range nodes {
			for remaining > 0 && reserveOrBusy(n, noOversubscribe) {
				proc := &job.Process{Job: j, AppIndex: app.Index, NodeName: n.Name()}
				j.Map.Processes = append(j.Map.Processes, proc)
				n.Reserve(1)
				touchNode(j, n)
				remaining--
			}
			if remaining == 0 {
				break
			}
		}
		if remaining > 0 {
			return ResultResourceBusy, nil
		}
	}
	return ResultOK, nil
}
