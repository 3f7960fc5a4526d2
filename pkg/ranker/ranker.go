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

// Package ranker assigns global rank (vpid), local rank, and node rank
// to every process in a mapped job (spec §4.4).
package ranker

import (
	"sort"

	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
)

// Rank assigns ranks to every process in j.Map.Processes, in place. When
// the job was placed by the by-user mapper, global ranks are already
// fixed by the rankfile and are left untouched; local_rank and node_rank
// are always (re)computed here.
func Rank(j *job.Job, pool *nodepool.Pool) error {
	if j.Map.Policy.Mapping != job.MapByUser {
		order := buildOrder(j)
		for i, p := range order {
			p.Rank = i
		}
	}

	assignFirstRanks(j)
	assignLocalAndNodeRanks(j, pool)
	return nil
}

// buildOrder returns j.Map.Processes in the order the resolved ranking
// policy assigns ranks in (spec §4.4).
func buildOrder(j *job.Job) []*job.Process {
	switch j.Map.Policy.Ranking {
	case job.RankByNode:
		return orderByNode(j)
	case job.RankByHWThread, job.RankByCore, job.RankByL1, job.RankByL2, job.RankByL3, job.RankByPackage, job.RankByNUMA:
		return orderByObject(j)
	default: // RankBySlot and RankUnset fall back to the source-of-truth default
		return orderBySlot(j)
	}
}

// orderBySlot groups processes by node (in node-visit order) and keeps
// each node's processes in the order the mapper appended them — the
// "slot index within node" the mapper filled (spec §4.4 "BySlot
// ranking").
func orderBySlot(j *job.Job) []*job.Process {
	groups := groupByNode(j)
	out := make([]*job.Process, 0, len(j.Map.Processes))
	for _, name := range j.Map.Nodes {
		out = append(out, groups[name]...)
	}
	return out
}

// orderByNode stripes ranks across nodes: the first process of every
// node, then the second of every node, and so on (spec §4.4 "ranks
// striped across nodes in node order").
func orderByNode(j *job.Job) []*job.Process {
	groups := groupByNode(j)
	out := make([]*job.Process, 0, len(j.Map.Processes))
	for slot := 0; ; slot++ {
		any := false
		for _, name := range j.Map.Nodes {
			g := groups[name]
			if slot < len(g) {
				out = append(out, g[slot])
				any = true
			}
		}
		if !any {
			break
		}
	}
	return out
}

// orderByObject ranks within each node by the logical index of the
// object the process was mapped to, then orders nodes by node order
// (spec §4.4 "By-object rankings").
func orderByObject(j *job.Job) []*job.Process {
	groups := groupByNode(j)
	out := make([]*job.Process, 0, len(j.Map.Processes))
	for _, name := range j.Map.Nodes {
		g := append([]*job.Process(nil), groups[name]...)
		sort.SliceStable(g, func(i, k int) bool { return g[i].BoundToIndex < g[k].BoundToIndex })
		out = append(out, g...)
	}
	return out
}

func groupByNode(j *job.Job) map[string][]*job.Process {
	groups := make(map[string][]*job.Process, len(j.Map.Nodes))
	for _, p := range j.Map.Processes {
		groups[p.NodeName] = append(groups[p.NodeName], p)
	}
	return groups
}

// assignFirstRanks sets each app's FirstRank to its lowest-ranked
// process, so a later spawn or a personality component can offset
// per-app ranks without recomputing the whole map (spec §3
// "AppContext.first_rank").
func assignFirstRanks(j *job.Job) {
	for _, app := range j.Apps {
		first := -1
		for _, p := range j.Map.Processes {
			if p.AppIndex != app.Index {
				continue
			}
			if first == -1 || p.Rank < first {
				first = p.Rank
			}
		}
		if first >= 0 {
			app.FirstRank = first
		}
	}
}

// assignLocalAndNodeRanks computes local_rank (dense per (job, node),
// ordered by global rank) and node_rank (dense per node, across jobs,
// handed out by the node itself and never reused).
func assignLocalAndNodeRanks(j *job.Job, pool *nodepool.Pool) {
	ordered := append([]*job.Process(nil), j.Map.Processes...)
	sort.SliceStable(ordered, func(i, k int) bool { return ordered[i].Rank < ordered[k].Rank })

	localCounters := map[string]int{}
	for _, p := range ordered {
		p.LocalRank = localCounters[p.NodeName]
		localCounters[p.NodeName]++

		if n, ok := pool.Get(p.NodeName); ok {
			p.NodeRank = n.NextNodeRank()
		}
	}
}
