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

// Package target implements the target selector (spec §4.2): given an
// app and the current directives, it filters the node pool into the
// ordered list of nodes that app may use.
package target

import (
	"sort"

	"github.com/awlauria/prrte/internal/errors"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
)

// Select returns the ordered list of usable nodes for app, honoring the
// pool's usability/capacity/head-node rules, the app's host-list filter,
// and the job's bookmark continuation (spec §4.2).
func Select(pool *nodepool.Pool, app *job.AppContext, directives job.Directives, bookmark job.Bookmark) ([]*nodepool.Node, error) {
	all := pool.All() // already stable-sorted by name

	candidates := make([]*nodepool.Node, 0, len(all))
	for _, n := range all {
		if !n.HasFlag(nodepool.Usable) {
			continue
		}
		if !n.HasCapacity(1) {
			continue
		}
		if directives.NoOversubscribe && !n.HasRoom(1) {
			continue
		}
		if directives.NoUseLocal && n.Name() == pool.HeadNode() {
			continue
		}
		candidates = append(candidates, n)
	}

	candidates = filterByHostList(candidates, app)

	candidates = continueFromBookmark(candidates, bookmark)

	if len(candidates) == 0 {
		return nil, errors.New(errors.NoTargets, "no usable target nodes for app %d", app.Index)
	}
	return candidates, nil
}

// filterByHostList intersects candidates with app.HostList, if set. When
// app.Ordered is true the caller-specified host order is preserved
// instead of the pool's name-sorted order.
func filterByHostList(candidates []*nodepool.Node, app *job.AppContext) []*nodepool.Node {
	if len(app.HostList) == 0 {
		return candidates
	}

	byName := make(map[string]*nodepool.Node, len(candidates))
	for _, n := range candidates {
		byName[n.Name()] = n
	}

	if !app.Ordered {
		wanted := make(map[string]bool, len(app.HostList))
		for _, h := range app.HostList {
			wanted[h] = true
		}
		out := make([]*nodepool.Node, 0, len(candidates))
		for _, n := range candidates {
			if wanted[n.Name()] {
				out = append(out, n)
			}
		}
		return out
	}

	out := make([]*nodepool.Node, 0, len(app.HostList))
	for _, h := range app.HostList {
		if n, ok := byName[h]; ok {
			out = append(out, n)
		}
	}
	return out
}

// continueFromBookmark rotates candidates so the node after the
// bookmarked one comes first, preserving relative (stable) order
// otherwise. If the bookmarked node isn't among candidates, the list is
// returned unchanged (a fresh mapping pass starts at the front).
func continueFromBookmark(candidates []*nodepool.Node, bookmark job.Bookmark) []*nodepool.Node {
	if !bookmark.Valid {
		return candidates
	}
	idx := -1
	for i, n := range candidates {
		if n.Name() == bookmark.NodeName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return candidates
	}
	out := make([]*nodepool.Node, 0, len(candidates))
	out = append(out, candidates[idx+1:]...)
	out = append(out, candidates[:idx+1]...)
	return out
}

// SortByName is exposed for callers (e.g. mappers building a rankfile-
// derived order) that need the stable tie-break rule without the rest of
// Select's filtering.
func SortByName(nodes []*nodepool.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name() < nodes[j].Name() })
}
