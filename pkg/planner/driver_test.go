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

package planner

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awlauria/prrte/internal/errors"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/policy"
	"github.com/awlauria/prrte/pkg/topology"
)

func onePackageNCores(t *testing.T, n int) *topology.Topology {
	t.Helper()
	cores := make([]topology.CoreSpec, n)
	for i := range cores {
		cores[i] = topology.CoreSpec{HWThreads: 1}
	}
	topo, err := topology.Build(topology.Spec{
		Packages: []topology.PackageSpec{{NUMANodes: []topology.NUMASpec{{Cores: cores}}}},
	})
	require.NoError(t, err)
	return topo
}

func twoPackagesNCoresEach(t *testing.T, n int) *topology.Topology {
	t.Helper()
	cores := make([]topology.CoreSpec, n)
	for i := range cores {
		cores[i] = topology.CoreSpec{HWThreads: 1}
	}
	topo, err := topology.Build(topology.Spec{
		Packages: []topology.PackageSpec{
			{NUMANodes: []topology.NUMASpec{{Cores: cores}}},
			{NUMANodes: []topology.NUMASpec{{Cores: cores}}},
		},
	})
	require.NoError(t, err)
	return topo
}

func ranksOf(j *job.Job) []int {
	ranks := make([]int, len(j.Map.Processes))
	for i, p := range j.Map.Processes {
		ranks[i] = p.Rank
	}
	sort.Ints(ranks)
	return ranks
}

// Scenario 1: two procs, one node, two cores, no policy.
func TestMapJob_Scenario1_TwoProcsOneNodeTwoCores(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageNCores(t, 2)))

	d := NewDriver(pool, policy.DefaultDefaults())
	j := job.NewJob("job1")
	j.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}

	require.NoError(t, d.MapJob(context.Background(), j))
	assert.Equal(t, job.StateMapComplete, j.State)
	assert.Equal(t, job.MapByCore, j.Map.Policy.Mapping)
	assert.Equal(t, job.RankBySlot, j.Map.Policy.Ranking)
	assert.Equal(t, job.BindCore, j.Map.Policy.Binding)
	assert.Equal(t, []int{0, 1}, ranksOf(j))
	for _, p := range j.Map.Processes {
		assert.Equal(t, 1, p.CPUBitmap.Size())
	}
}

// Scenario 2: eight procs, two nodes, one package x 4 cores each.
func TestMapJob_Scenario2_EightProcsTwoNodesByPackage(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageNCores(t, 4)))
	pool.Add(nodepool.NewNode("b", 4, 0, onePackageNCores(t, 4)))

	d := NewDriver(pool, policy.DefaultDefaults())
	j := job.NewJob("job2")
	j.Apps = []*job.AppContext{{Index: 0, NumProcs: 8}}

	require.NoError(t, d.MapJob(context.Background(), j))
	assert.Equal(t, job.MapByPackage, j.Map.Policy.Mapping)
	assert.Equal(t, job.BindPackage, j.Map.Policy.Binding)
	assert.Equal(t, 8, j.Map.NumProcs)
	assert.Equal(t, 2, j.Map.NumNodes)

	byNode := map[string][]int{}
	for _, p := range j.Map.Processes {
		byNode[p.NodeName] = append(byNode[p.NodeName], p.Rank)
	}
	assert.Len(t, byNode["a"], 4)
	assert.Len(t, byNode["b"], 4)
}

// Scenario 3: PPR 2:package on two nodes with 2 packages x 2 cores each.
func TestMapJob_Scenario3_PPRTwoPerPackage(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 8, 0, twoPackagesNCoresEach(t, 2)))
	pool.Add(nodepool.NewNode("b", 8, 0, twoPackagesNCoresEach(t, 2)))

	d := NewDriver(pool, policy.DefaultDefaults())
	j := job.NewJob("job3")
	j.Apps = []*job.AppContext{{Index: 0, NumProcs: 8}}
	j.Directives.Given = true
	j.Map.Policy.Mapping = job.MapPPR
	j.Directives.PPR = "2:package"

	require.NoError(t, d.MapJob(context.Background(), j))
	assert.Equal(t, 8, j.Map.NumProcs)

	type nodePkg struct {
		node string
		idx  int
	}
	perPackage := map[nodePkg]int{}
	counts := map[string]int{}
	for _, p := range j.Map.Processes {
		counts[p.NodeName]++
		perPackage[nodePkg{p.NodeName, p.BoundToIndex}]++
	}
	assert.Equal(t, 4, counts["a"])
	assert.Equal(t, 4, counts["b"])
	for key, n := range perPackage {
		assert.Equalf(t, 2, n, "node %s package %d expected exactly 2 procs", key.node, key.idx)
	}
}

// Scenario 4: oversubscribe refused.
func TestMapJob_Scenario4_OversubscribeRefused(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageNCores(t, 4)))

	d := NewDriver(pool, policy.DefaultDefaults())
	j := job.NewJob("job4")
	j.Apps = []*job.AppContext{{Index: 0, NumProcs: 5}}
	j.Directives.SubscribeGiven = true
	j.Directives.NoOversubscribe = true

	err := d.MapJob(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, errors.ResourceBusy, errors.KindOf(err))
	assert.Equal(t, job.StateMapFailed, j.State)
	assert.Empty(t, j.Map.Processes)
}

// Scenario 5: rankfile (ByUser).
func TestMapJob_Scenario5_Rankfile(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageNCores(t, 2)))
	pool.Add(nodepool.NewNode("b", 4, 0, onePackageNCores(t, 2)))

	d := NewDriver(pool, policy.DefaultDefaults())
	j := job.NewJob("job5")
	j.Apps = []*job.AppContext{{Index: 0, NumProcs: 3}}
	j.Directives.Given = true
	j.Map.Policy.Mapping = job.MapByUser
	j.Rankfile = &job.Rankfile{Entries: []job.RankfileEntry{
		{Rank: 0, Host: "a", Slot: job.SlotSpec{IDs: []int{0}}},
		{Rank: 1, Host: "a", Slot: job.SlotSpec{IDs: []int{1}}},
		{Rank: 2, Host: "b", Slot: job.SlotSpec{IDs: []int{0}}},
	}}

	require.NoError(t, d.MapJob(context.Background(), j))
	assert.Equal(t, []int{0, 1, 2}, ranksOf(j))
	for _, p := range j.Map.Processes {
		assert.False(t, p.CPUBitmap.IsEmpty())
	}
}

// Bookmark continuation: a second job on the same pool starts after the
// first job's last-used node ("b"), wrapping around to "a", and takes a
// later global offset.
func TestMapJob_BookmarkContinuation(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 2, 0, onePackageNCores(t, 2)))
	pool.Add(nodepool.NewNode("b", 2, 0, onePackageNCores(t, 2)))

	d := NewDriver(pool, policy.DefaultDefaults())

	first := job.NewJob("first")
	first.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
	first.Directives.Given = true
	first.Map.Policy.Mapping = job.MapByNode
	require.NoError(t, d.MapJob(context.Background(), first))

	second := job.NewJob("second")
	second.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
	second.LaunchProxy = first
	second.Directives.Inherit = true
	second.Map.Bookmark = first.Map.Bookmark
	require.NoError(t, d.MapJob(context.Background(), second))

	assert.Equal(t, "b", first.Map.Bookmark.NodeName)
	for _, p := range second.Map.Processes {
		if p.Rank == 0 {
			assert.Equal(t, "a", p.NodeName)
		}
	}
	assert.Greater(t, second.Map.GlobalOffset, first.Map.GlobalOffset)
}

func TestMapJob_CancelledBeforeMapping(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageNCores(t, 2)))

	d := NewDriver(pool, policy.DefaultDefaults())
	j := job.NewJob("job-cancel")
	j.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
	j.Cancelled = true

	err := d.MapJob(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, errors.Cancelled, errors.KindOf(err))
	assert.Equal(t, job.StateMapFailed, j.State)
}
