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

// byNodeMapper places one process per node per pass, round-robin, until
// the app's full process count is placed (spec §4.3 "By-node:
// round-robin, one process per visit").
type byNodeMapper struct{}

// NewByNodeMapper returns the by-node mapping strategy.
func NewByNodeMapper() Mapper { return &byNodeMapper{} }

func (*byNodeMapper) Name() string { return "by-node" }

func (*byNodeMapper) Handles(j *job.Job) bool {
	return j.Map.Policy.Mapping == job.MapByNode
}

func (*byNodeMapper) MapJob(j *job.Job, pool *nodepool.Pool) (Result, error) {
	noOversubscribe := j.Directives.NoOversubscribe

	for _, app := range j.Apps {
		nodes, err := selectTargets(j, pool, app)
		if err != nil {
			return ResultFatal, err
		}
		if len(nodes) == 0 {
			return ResultResourceBusy, nil
		}

		remaining := app.NumProcs
		for remaining > 0 {
			placedThisPass := false
			for _, n := range nodes {
				if remaining == 0 {
					break
				}
				if !reserveOrBusy(n, noOversubscribe) {
					continue
				}
				proc := &job.Process{Job: j, AppIndex: app.Index, NodeName: n.Name()}
				j.Map.Processes = append(j.Map.Processes, proc)
				n.Reserve(1)
				touchNode(j, n)
				remaining--
				placedThisPass = true
			}
			if !placedThisPass {
				return ResultResourceBusy, nil
			}
		}
	}
	return ResultOK, nil
}
