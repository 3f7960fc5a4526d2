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

// Package display renders a mapped job as the two diagnostic forms the
// planner exposes to operators (spec §6): a human-readable summary and
// a diffable, XML-like stream.
package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/topology"
)

// LocalityPair is one annotated pairwise locality result between two
// processes on the same node (spec §4.5 "Locality annotation").
type LocalityPair struct {
	RankA, RankB int
	Tag          string
}

// ComputeLocality returns the pairwise locality tags for every pair of
// processes that share a node; cross-node pairs are omitted since "same
// node" is already implied by the map and no common topology spans two
// nodes.
func ComputeLocality(j *job.Job, pool *nodepool.Pool) []LocalityPair {
	byNode := map[string][]*job.Process{}
	for _, p := range j.Map.Processes {
		byNode[p.NodeName] = append(byNode[p.NodeName], p)
	}

	var out []LocalityPair
	for nodeName, procs := range byNode {
		n, ok := pool.Get(nodeName)
		if !ok || n.Topology() == nil {
			continue
		}
		sort.Slice(procs, func(i, k int) bool { return procs[i].Rank < procs[k].Rank })
		for i := 0; i < len(procs); i++ {
			for k := i + 1; k < len(procs); k++ {
				a, b := procs[i], procs[k]
				if a.CPUBitmap.IsEmpty() || b.CPUBitmap.IsEmpty() {
					continue
				}
				typ := n.Topology().Locality(a.CPUBitmap, b.CPUBitmap)
				out = append(out, LocalityPair{RankA: a.Rank, RankB: b.Rank, Tag: topology.LocalityTag(typ)})
			}
		}
	}
	return out
}

// Human renders the conventional human-readable map listing, grouping
// processes by node in Map.Nodes order.
func Human(j *job.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job %s: %d processes, %d nodes\n", j.Nspace, j.Map.NumProcs, j.Map.NumNodes)

	byNode := map[string][]*job.Process{}
	for _, p := range j.Map.Processes {
		byNode[p.NodeName] = append(byNode[p.NodeName], p)
	}
	for _, name := range j.Map.Nodes {
		procs := byNode[name]
		sort.Slice(procs, func(i, k int) bool { return procs[i].Rank < procs[k].Rank })
		fmt.Fprintf(&b, "  %s: %d procs\n", name, len(procs))
		for _, p := range procs {
			fmt.Fprintf(&b, "    rank %d (local %d, node %d) bitmap=%s\n",
				p.Rank, p.LocalRank, p.NodeRank, p.CPUBitmap.String())
		}
	}
	return b.String()
}

// XML renders the diffable, flat XML-like stream described in spec §6:
// <map> <host num=K> <process rank=R app_idx=A local_rank=L node_rank=N
// binding=S> ... </host> <locality> <rank=R0 rank=Ri locality=TAG> ...
// </locality> </map>.
func XML(j *job.Job, locality []LocalityPair) string {
	var b strings.Builder
	b.WriteString("<map>\n")

	byNode := map[string][]*job.Process{}
	for _, p := range j.Map.Processes {
		byNode[p.NodeName] = append(byNode[p.NodeName], p)
	}
	for _, name := range j.Map.Nodes {
		procs := byNode[name]
		sort.Slice(procs, func(i, k int) bool { return procs[i].Rank < procs[k].Rank })
		fmt.Fprintf(&b, "  <host num=%d>\n", len(procs))
		for _, p := range procs {
			fmt.Fprintf(&b, "    <process rank=%d app_idx=%d local_rank=%d node_rank=%d binding=%s>\n",
				p.Rank, p.AppIndex, p.LocalRank, p.NodeRank, p.CPUBitmap.String())
		}
		b.WriteString("  </host>\n")
	}

	b.WriteString("  <locality>\n")
	for _, l := range locality {
		fmt.Fprintf(&b, "    <rank=%d rank=%d locality=%s>\n", l.RankA, l.RankB, l.Tag)
	}
	b.WriteString("  </locality>\n")

	b.WriteString("</map>\n")
	return b.String()
}
