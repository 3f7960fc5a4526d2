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

// localityOrder lists object types from deepest to shallowest, the order
// Locality walks to find the narrowest shared ancestor.
var localityOrder = []ObjectType{HWThread, Core, L1Cache, L2Cache, L3Cache, NUMANode, Package, Machine}

// Locality returns the deepest object type that is an ancestor of both
// CPU sets a and b, i.e. the narrowest single object whose own CPU set
// is a superset of a union b. Both a and b must be non-empty and drawn
// from this topology's CPU ID space; the Machine root is always a valid
// (if uninteresting) answer.
func (t *Topology) Locality(a, b cpuset.CPUSet) ObjectType {
	union := a.Union(b)
	for _, typ := range localityOrder {
		for _, obj := range t.byType[typ] {
			if union.IsSubsetOf(obj.CPUSet()) {
				return typ
			}
		}
	}
	return Machine
}

// LocalityTag renders a Locality result as the human-readable tag used
// by the diagnostic display (spec §6): "same core", "same L1", ...
func LocalityTag(typ ObjectType) string {
	switch typ {
	case HWThread:
		return "same hwthread"
	case Core:
		return "same core"
	case L1Cache:
		return "same L1"
	case L2Cache:
		return "same L2"
	case L3Cache:
		return "same L3"
	case NUMANode:
		return "same NUMA"
	case Package:
		return "same package"
	default:
		return "same node"
	}
}
