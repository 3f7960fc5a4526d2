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

package policy

import (
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/target"
	"github.com/awlauria/prrte/pkg/topology"
)

// estimateNumProcs fills in AppContext.NumProcs for every app that asked
// for "fill" (NumProcs == 0) and returns the job's total process count
// (spec §4.1 "Process estimation"). Estimation runs before the mapping
// policy is defaulted: it uses only directives already explicit or
// inherited (PPR, and a mapping policy already Given or inherited from a
// parent), never a policy this same pass is about to default.
func estimateNumProcs(j *job.Job, pool *nodepool.Pool) (int, error) {
	total := 0
	for _, app := range j.Apps {
		if app.NumProcs > 0 {
			total += app.NumProcs
			continue
		}

		nodes, err := target.Select(pool, app, j.Directives, j.Map.Bookmark)
		if err != nil {
			return 0, err
		}

		n, err := estimateAppProcs(j, app, nodes)
		if err != nil {
			return 0, err
		}
		app.NumProcs = n
		total += n
	}
	return total, nil
}

// estimateAppProcs computes the fill count for a single app: PPR(node)
// and PPR(package) multiply their N by the relevant object count across
// nodes; an already-known sequential mapping takes one process per node;
// otherwise the estimate is the sum of each node's SlotsTotal (spec §4.1).
func estimateAppProcs(j *job.Job, app *job.AppContext, nodes []*nodepool.Node) (int, error) {
	if j.Directives.PPR != "" {
		ppr, err := job.ParsePPR(j.Directives.PPR)
		if err != nil {
			return 0, err
		}
		switch ppr.Keyword {
		case job.PPRNode:
			return ppr.N * len(nodes), nil
		case job.PPRPackage:
			count := 0
			for _, n := range nodes {
				if n.Topology() != nil {
					count += n.Topology().CountOfType(topology.Package)
				}
			}
			return ppr.N * count, nil
		}
	}

	if j.Map.Policy.Mapping == job.MapSequential {
		return len(nodes), nil
	}

	total := 0
	for _, n := range nodes {
		total += n.SlotsTotal()
	}
	return total, nil
}
