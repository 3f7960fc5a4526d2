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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/topology"
)

func onePackageTwoCores(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.Build(topology.Spec{
		Packages: []topology.PackageSpec{
			{NUMANodes: []topology.NUMASpec{{Cores: []topology.CoreSpec{{HWThreads: 1}, {HWThreads: 1}}}}},
		},
	})
	require.NoError(t, err)
	return topo
}

func onePackageFourCores(t *testing.T) *topology.Topology {
	t.Helper()
	pkg := topology.PackageSpec{NUMANodes: []topology.NUMASpec{{Cores: []topology.CoreSpec{
		{HWThreads: 1}, {HWThreads: 1}, {HWThreads: 1}, {HWThreads: 1},
	}}}}
	topo, err := topology.Build(topology.Spec{Packages: []topology.PackageSpec{pkg}})
	require.NoError(t, err)
	return topo
}

// Scenario 1: two procs, one node, two cores, no policy -> ByCore/BySlot/Core.
func TestResolveScenario1_TwoProcsOneNodeTwoCores(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageTwoCores(t)))

	j := job.NewJob("job1")
	j.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}

	nprocs, err := Resolve(j, DefaultDefaults(), pool)
	require.NoError(t, err)
	assert.Equal(t, 2, nprocs)
	assert.Equal(t, job.MapByCore, j.Map.Policy.Mapping)
	assert.Equal(t, job.RankBySlot, j.Map.Policy.Ranking)
	assert.Equal(t, job.BindCore, j.Map.Policy.Binding)
}

// Scenario 2: eight procs, two nodes, one package x 4 cores each, default -> ByPackage/Package.
func TestResolveScenario2_EightProcsTwoNodesByPackage(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageFourCores(t)))
	pool.Add(nodepool.NewNode("b", 4, 0, onePackageFourCores(t)))

	j := job.NewJob("job2")
	j.Apps = []*job.AppContext{{Index: 0, NumProcs: 8}}

	nprocs, err := Resolve(j, DefaultDefaults(), pool)
	require.NoError(t, err)
	assert.Equal(t, 8, nprocs)
	assert.Equal(t, job.MapByPackage, j.Map.Policy.Mapping)
	assert.Equal(t, job.BindPackage, j.Map.Policy.Binding)
}

// Scenario 6: inheritance. Child specifies neither mapping nor ranking and
// sets INHERIT; its resolved tuple must equal the parent's.
func TestResolveScenario6_Inheritance(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageTwoCores(t)))
	pool.Add(nodepool.NewNode("b", 4, 0, onePackageTwoCores(t)))

	parent := job.NewJob("parent")
	parent.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
	parent.Map.Policy.Mapping = job.MapByNode
	parent.Map.Policy.Ranking = job.RankBySlot

	child := job.NewJob("child")
	child.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
	child.LaunchProxy = parent
	child.Directives.Inherit = true

	_, err := Resolve(child, DefaultDefaults(), pool)
	require.NoError(t, err)
	assert.Equal(t, parent.Map.Policy.Mapping, child.Map.Policy.Mapping)
	assert.Equal(t, parent.Map.Policy.Ranking, child.Map.Policy.Ranking)
}

// A TOOL-flagged parent never lends its directives: the child falls back
// to ordinary defaulting instead of inheriting ByNode.
func TestResolveToolParentBlocksInheritance(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageTwoCores(t)))

	parent := job.NewJob("parent-tool")
	parent.IsTool = true
	parent.Map.Policy.Mapping = job.MapByNode

	child := job.NewJob("child")
	child.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
	child.LaunchProxy = parent

	_, err := Resolve(child, DefaultDefaults(), pool)
	require.NoError(t, err)
	assert.NotEqual(t, job.MapByNode, child.Map.Policy.Mapping)
	assert.Equal(t, job.MapByCore, child.Map.Policy.Mapping)
}

// TestResolveDefaultingTable checks the full resolved tuple against an
// expected PolicyTuple for a handful of nprocs/topology combinations in
// one table, diffing with go-cmp so a mismatch names the exact field
// that drifted rather than just the ones individual assertions check.
func TestResolveDefaultingTable(t *testing.T) {
	cases := []struct {
		name    string
		nprocs  int
		nodes   func(t *testing.T) []*nodepool.Node
		want    job.PolicyTuple
	}{
		{
			name:   "two procs one node two cores",
			nprocs: 2,
			nodes: func(t *testing.T) []*nodepool.Node {
				return []*nodepool.Node{nodepool.NewNode("a", 4, 0, onePackageTwoCores(t))}
			},
			want: job.PolicyTuple{
				Mapping: job.MapByCore,
				Ranking: job.RankBySlot,
				Binding: job.BindCore,
			},
		},
		{
			name:   "eight procs two nodes one package four cores",
			nprocs: 8,
			nodes: func(t *testing.T) []*nodepool.Node {
				return []*nodepool.Node{
					nodepool.NewNode("a", 4, 0, onePackageFourCores(t)),
					nodepool.NewNode("b", 4, 0, onePackageFourCores(t)),
				}
			},
			want: job.PolicyTuple{
				Mapping: job.MapByPackage,
				Ranking: job.RankBySlot,
				Binding: job.BindPackage,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pool := nodepool.NewPool()
			for _, n := range tc.nodes(t) {
				pool.Add(n)
			}

			j := job.NewJob(tc.name)
			j.Apps = []*job.AppContext{{Index: 0, NumProcs: tc.nprocs}}

			_, err := Resolve(j, DefaultDefaults(), pool)
			require.NoError(t, err)

			if diff := cmp.Diff(tc.want, j.Map.Policy); diff != "" {
				t.Errorf("resolved policy tuple mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveOversubscribeInheritedWhenUnset(t *testing.T) {
	pool := nodepool.NewPool()
	pool.Add(nodepool.NewNode("a", 4, 0, onePackageTwoCores(t)))

	parent := job.NewJob("parent")
	parent.Directives.SubscribeGiven = true
	parent.Directives.NoOversubscribe = false

	child := job.NewJob("child")
	child.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
	child.LaunchProxy = parent
	child.Directives.Inherit = true

	_, err := Resolve(child, DefaultDefaults(), pool)
	require.NoError(t, err)
	assert.False(t, child.Directives.NoOversubscribe)
}
