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

// Package topology is the in-memory hierarchical description of a
// node's hardware: Machine -> Package -> {NUMA, L3Cache} -> L2Cache ->
// L1Cache -> Core -> HardwareThread. It is the Go-native equivalent of
// the teacher's pkg/sysfs object model (CPUPackage/Node/CPU/Cache),
// repointed from live sysfs discovery to a declarative Spec since the
// planner never reads hardware itself (§1 Non-goals): topology is an
// input, assembled once per node and then only queried.
package topology

import (
	"fmt"
	"sort"

	"github.com/awlauria/prrte/pkg/cpuset"
)

// ObjectType identifies a level of the topology tree. Ordering follows
// the tree's depth, shallowest first; the locality query walks its own
// explicit deepest-first list (localityOrder) rather than this order.
type ObjectType int

const (
	Machine ObjectType = iota
	Package
	NUMANode
	L3Cache
	L2Cache
	L1Cache
	Core
	HWThread
)

func (t ObjectType) String() string {
	switch t {
	case Machine:
		return "Machine"
	case Package:
		return "Package"
	case NUMANode:
		return "NUMANode"
	case L3Cache:
		return "L3Cache"
	case L2Cache:
		return "L2Cache"
	case L1Cache:
		return "L1Cache"
	case Core:
		return "Core"
	case HWThread:
		return "HWThread"
	default:
		return "Unknown"
	}
}

// Object is a single node of the topology tree.
type Object struct {
	typ      ObjectType
	index    int // logical index, unique within (topology, type)
	cpus     cpuset.CPUSet
	parent   *Object
	children []*Object
}

// Type returns the object's level in the hierarchy.
func (o *Object) Type() ObjectType { return o.typ }

// Index returns the object's logical index (unique within its type,
// machine-wide).
func (o *Object) Index() int { return o.index }

// CPUSet returns the set of hardware-thread IDs covered by this object.
func (o *Object) CPUSet() cpuset.CPUSet { return o.cpus }

// Parent returns the enclosing object, or nil for the Machine root.
func (o *Object) Parent() *Object { return o.parent }

// Children returns the immediate child objects, in logical index order.
// Because intermediate cache levels are optional, a child's Type() may
// skip several levels below o.Type() (e.g. a Core directly under a
// NUMA node when no cache levels were built for it).
func (o *Object) Children() []*Object { return o.children }

// GetByType returns the descendant (or self) of the given type with the
// given logical index, if it lies within this object's subtree. This is
// the Go equivalent of the source's get_by_type(type, index).
func (o *Object) GetByType(t ObjectType, index int) (*Object, bool) {
	if o.typ == t && o.index == index {
		return o, true
	}
	for _, c := range o.children {
		if found, ok := c.GetByType(t, index); ok {
			return found, ok
		}
	}
	return nil, false
}

// ObjectsOfType returns every descendant (including self) of the given
// type, in logical index order.
func (o *Object) ObjectsOfType(t ObjectType) []*Object {
	var out []*Object
	o.walk(func(obj *Object) {
		if obj.typ == t {
			out = append(out, obj)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func (o *Object) walk(fn func(*Object)) {
	fn(o)
	for _, c := range o.children {
		c.walk(fn)
	}
}

// Topology is a fully built hardware topology tree for one node, plus
// indices for O(1)-ish lookup by type.
type Topology struct {
	root    *Object
	byType  map[ObjectType][]*Object
	byCPUID map[int]*Object // HWThread owning each CPU ID
}

// Root returns the Machine object at the root of the tree.
func (t *Topology) Root() *Object { return t.root }

// CPUSet returns the full set of hardware-thread IDs in the topology.
func (t *Topology) CPUSet() cpuset.CPUSet { return t.root.cpus }

// CountOfType returns how many objects of the given type the topology
// contains (e.g. CountOfType(Package) == number of sockets).
func (t *Topology) CountOfType(typ ObjectType) int { return len(t.byType[typ]) }

// ObjectsOfType returns every object of the given type, in logical index
// order (root-wide, equivalent to t.Root().ObjectsOfType(typ)).
func (t *Topology) ObjectsOfType(typ ObjectType) []*Object {
	out := make([]*Object, len(t.byType[typ]))
	copy(out, t.byType[typ])
	return out
}

// HWThreadFor returns the HardwareThread object owning the given CPU ID.
func (t *Topology) HWThreadFor(cpuID int) (*Object, bool) {
	o, ok := t.byCPUID[cpuID]
	return o, ok
}

// GetByType looks up an object anywhere in the topology by type and
// logical index.
func (t *Topology) GetByType(typ ObjectType, index int) (*Object, bool) {
	return t.root.GetByType(typ, index)
}

// String renders a short human-readable summary, mainly for logging.
func (t *Topology) String() string {
	return fmt.Sprintf("topology{packages=%d numa=%d cores=%d hwthreads=%d}",
		t.CountOfType(Package), t.CountOfType(NUMANode), t.CountOfType(Core), t.CountOfType(HWThread))
}
