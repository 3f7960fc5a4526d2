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

package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPackageSpec() Spec {
	mkNuma := func() NUMASpec {
		return NUMASpec{
			L3Cache: true,
			Cores: []CoreSpec{
				{L1Cache: true, HWThreads: 2},
				{L1Cache: true, HWThreads: 2},
			},
		}
	}
	return Spec{
		Packages: []PackageSpec{
			{NUMANodes: []NUMASpec{mkNuma()}},
			{NUMANodes: []NUMASpec{mkNuma()}},
		},
	}
}

func TestBuildCounts(t *testing.T) {
	topo, err := Build(twoPackageSpec())
	require.NoError(t, err)

	assert.Equal(t, 2, topo.CountOfType(Package))
	assert.Equal(t, 2, topo.CountOfType(NUMANode))
	assert.Equal(t, 4, topo.CountOfType(Core))
	assert.Equal(t, 8, topo.CountOfType(HWThread))
	assert.Equal(t, 8, topo.CPUSet().Size())
}

func TestGetByType(t *testing.T) {
	topo, err := Build(twoPackageSpec())
	require.NoError(t, err)

	pkg1, ok := topo.GetByType(Package, 1)
	require.True(t, ok)
	assert.Equal(t, 1, pkg1.Index())

	core, ok := pkg1.GetByType(Core, 2)
	require.True(t, ok)
	assert.True(t, core.CPUSet().IsSubsetOf(pkg1.CPUSet()))

	// A core belonging to package 0 must not be reachable from package 1.
	_, ok = pkg1.GetByType(Core, 0)
	assert.False(t, ok)
}

func TestLocality(t *testing.T) {
	topo, err := Build(twoPackageSpec())
	require.NoError(t, err)

	cores := topo.ObjectsOfType(Core)
	require.Len(t, cores, 4)

	sameCoreA := cores[0].CPUSet()
	// Two threads of the same core: narrowest shared ancestor is the core.
	ht := cores[0].ObjectsOfType(HWThread)
	require.Len(t, ht, 2)
	assert.Equal(t, Core, topo.Locality(ht[0].CPUSet(), ht[1].CPUSet()))

	// Two cores in the same NUMA node (same package here): the shared
	// ancestor is the L3 cache they sit under, or the NUMA node itself
	// when no L3 is built.
	loc := topo.Locality(sameCoreA, cores[1].CPUSet())
	assert.Contains(t, []ObjectType{NUMANode, L3Cache}, loc)

	// Cores in different packages: shared ancestor is the machine.
	loc = topo.Locality(cores[0].CPUSet(), cores[2].CPUSet())
	assert.Equal(t, Machine, loc)
}
