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

import "github.com/awlauria/prrte/pkg/cpuset"

// Spec is the declarative description used to build a Topology. It is
// the planner's input format for "a topology-described pool of nodes"
// (spec §1): loaded from YAML node-pool descriptors (see pkg/nodepool),
// or built programmatically in tests, rather than discovered live from
// sysfs the way the teacher's pkg/sysfs does it.
type Spec struct {
	Packages []PackageSpec
}

// PackageSpec describes one physical package (socket).
type PackageSpec struct {
	NUMANodes []NUMASpec
}

// NUMASpec describes one NUMA node within a package. L3 is optional:
// some small nodes share no distinct L3 domain.
type NUMASpec struct {
	L3Cache bool
	Cores   []CoreSpec
}

// CoreSpec describes one physical core. HWThreads is the number of
// hardware threads (SMT siblings) the core exposes; it must be >= 1.
type CoreSpec struct {
	L2Cache   bool
	L1Cache   bool
	HWThreads int
}

// Build assembles a Topology from a Spec, assigning logical indices in
// depth-first construction order and hardware-thread (CPU) IDs
// sequentially starting at 0.
func Build(spec Spec) (*Topology, error) {
	t := &Topology{
		byType:  map[ObjectType][]*Object{},
		byCPUID: map[int]*Object{},
	}

	nextIndex := map[ObjectType]int{}
	nextCPU := 0

	root := &Object{typ: Machine, index: 0}
	t.root = root
	t.register(root)

	for _, pkgSpec := range spec.Packages {
		pkg := t.newChild(root, Package, nextIndex)

		for _, numaSpec := range pkgSpec.NUMANodes {
			numaParent := pkg
			numa := t.newChild(numaParent, NUMANode, nextIndex)

			l3Parent := numa
			var l3 *Object
			if numaSpec.L3Cache {
				l3 = t.newChild(l3Parent, L3Cache, nextIndex)
				l3Parent = l3
			}

			for _, coreSpec := range numaSpec.Cores {
				if coreSpec.HWThreads < 1 {
					coreSpec.HWThreads = 1
				}

				coreParent := l3Parent
				var l2 *Object
				if coreSpec.L2Cache {
					l2 = t.newChild(coreParent, L2Cache, nextIndex)
					coreParent = l2
				}
				var l1 *Object
				if coreSpec.L1Cache {
					l1 = t.newChild(coreParent, L1Cache, nextIndex)
					coreParent = l1
				}

				core := t.newChild(coreParent, Core, nextIndex)
				for i := 0; i < coreSpec.HWThreads; i++ {
					ht := t.newChild(core, HWThread, nextIndex)
					ht.cpus = cpuset.New(nextCPU)
					t.byCPUID[nextCPU] = ht
					nextCPU++
					propagateCPU(ht)
				}
				_ = l1
				_ = l2
			}
			_ = l3
		}
	}

	return t, nil
}

// newChild creates a child object of typ under parent, assigns it the
// next logical index for its type, links it into parent's children, and
// registers it in the topology's by-type index.
func (t *Topology) newChild(parent *Object, typ ObjectType, nextIndex map[ObjectType]int) *Object {
	idx := nextIndex[typ]
	nextIndex[typ] = idx + 1
	o := &Object{typ: typ, index: idx, parent: parent}
	parent.children = append(parent.children, o)
	t.register(o)
	return o
}

func (t *Topology) register(o *Object) {
	t.byType[o.typ] = append(t.byType[o.typ], o)
}

// propagateCPU unions a freshly assigned hardware-thread's CPU set into
// every ancestor, up to the Machine root.
func propagateCPU(ht *Object) {
	for p := ht.parent; p != nil; p = p.parent {
		p.cpus = p.cpus.Union(ht.cpus)
	}
}
