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
	"github.com/awlauria/prrte/internal/errors"
	"github.com/awlauria/prrte/pkg/cpuset"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
)

// byUserMapper takes explicit (rank, host, slot) triples from a rankfile
// and places processes exactly as given, with no load balancing (spec
// §4.3 "By-user: take explicit ... triples from a rankfile"). Since the
// rankfile already fixes the global rank and, when a slot list is given,
// the exact hwthreads, this mapper also stamps Process.Rank and
// Process.CPUBitmap directly; the ranker leaves an already-set rank
// alone and the binder leaves an already-set bitmap alone.
type byUserMapper struct{}

// NewByUserMapper returns the rankfile-driven mapping strategy.
func NewByUserMapper() Mapper { return &byUserMapper{} }

func (*byUserMapper) Name() string { return "by-user" }

func (*byUserMapper) Handles(j *job.Job) bool {
	return j.Map.Policy.Mapping == job.MapByUser
}

func (*byUserMapper) MapJob(j *job.Job, pool *nodepool.Pool) (Result, error) {
	if j.Rankfile == nil || len(j.Rankfile.Entries) == 0 {
		return ResultFatal, errors.New(errors.BadParam, "by-user mapping requires a rankfile")
	}
	noOversubscribe := j.Directives.NoOversubscribe

	for _, entry := range j.Rankfile.Entries {
		n, ok := pool.Get(entry.Host)
		if !ok {
			return ResultFatal, errors.New(errors.NotFound, "rankfile host %q not in node pool", entry.Host)
		}
		if !reserveOrBusy(n, noOversubscribe) {
			return ResultResourceBusy, nil
		}

		proc := &job.Process{
			Job:      j,
			Rank:     entry.Rank,
			NodeName: n.Name(),
		}
		if !entry.Slot.Any {
			proc.CPUBitmap = cpuset.New(entry.Slot.IDs...)
			if len(entry.Slot.IDs) == 1 {
				proc.BoundToType = "hwthread"
				proc.BoundToIndex = entry.Slot.IDs[0]
			}
		}

		j.Map.Processes = append(j.Map.Processes, proc)
		n.Reserve(1)
		touchNode(j, n)
	}
	return ResultOK, nil
}
