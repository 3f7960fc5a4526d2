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

// sequentialMapper visits nodes in target-list order (which follows a
// rankfile/hostfile when one is given), placing exactly one process per
// node (spec §4.3 "Sequential: visit nodes in the order given by a
// rankfile / hostfile, one process per entry").
type sequentialMapper struct{}

// NewSequentialMapper returns the sequential mapping strategy.
func NewSequentialMapper() Mapper { return &sequentialMapper{} }

func (*sequentialMapper) Name() string { return "sequential" }

func (*sequentialMapper) Handles(j *job.Job) bool {
	return j.Map.Policy.Mapping == job.MapSequential
}

func (*sequentialMapper) MapJob(j *job.Job, pool *nodepool.Pool) (Result, error) {
	noOversubscribe := j.Directives.NoOversubscribe

	for _, app := range j.Apps {
		nodes, err := selectTargets(j, pool, app)
		if err != nil {
			return ResultFatal, err
		}
		if len(nodes) < app.NumProcs {
			return ResultResourceBusy, nil
		}

		for i := 0; i < app.NumProcs; i++ {
			n := nodes[i]
			if !reserveOrBusy(n, noOversubscribe) {
				return ResultResourceBusy, nil
			}
			proc := &job.Process{Job: j, AppIndex: app.Index, NodeName: n.Name()}
			j.Map.Processes = append(j.Map.Processes, proc)
			n.Reserve(1)
			touchNode(j, n)
		}
	}
	return ResultOK, nil
}
