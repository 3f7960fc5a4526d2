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

// Package nodepool holds the set of usable nodes with slot accounting
// and state flags (spec §3 "Node"). It borrows topology objects but
// never owns them, the way the teacher's resource-manager cache borrows
// sysfs.System rather than copying it.
package nodepool

import (
	"sync"

	"github.com/awlauria/prrte/pkg/topology"
)

// Flag is a per-node scratch/state bit.
type Flag uint

const (
	// Oversubscribed is set once assigned procs on a node exceed its
	// SlotsTotal.
	Oversubscribed Flag = 1 << iota
	// Mapped is a scratch bit set on every node touched while mapping the
	// current job; the driver clears it in CLEANUP (spec §4.3 invariant 5).
	Mapped
	// Usable marks a node as eligible for new assignments at all; nodes
	// without it are excluded by the target selector unconditionally.
	Usable
)

// Node is one entry in the pool: a stable name, slot accounting, and a
// borrowed topology reference.
type Node struct {
	mu sync.Mutex

	name string

	topo *topology.Topology

	slotsTotal int // configured slots
	slotsInUse int // current reservations
	slotsMax   int // hard cap; <=0 means unlimited

	flags Flag

	// nextNodeRank hands out node_rank values: unique within this node
	// across every job ever mapped to it, never reused (spec §3 "Process",
	// GLOSSARY "Node rank").
	nextNodeRank int
}

// NewNode creates a usable node with the given name, slot count, and
// topology. slotsMax <= 0 means unlimited.
func NewNode(name string, slotsTotal, slotsMax int, topo *topology.Topology) *Node {
	return &Node{
		name:       name,
		topo:       topo,
		slotsTotal: slotsTotal,
		slotsMax:   slotsMax,
		flags:      Usable,
	}
}

func (n *Node) Name() string                    { return n.name }
func (n *Node) Topology() *topology.Topology     { return n.topo }

// SetTopology installs topo as this node's topology. Used only by the
// driver's do-not-launch borrow step (spec §4.6 step 4), which lends a
// topology-bearing node's topology to nodes the planner has none for.
func (n *Node) SetTopology(topo *topology.Topology) { n.topo = topo }
func (n *Node) SlotsTotal() int                  { return n.slotsTotal }
func (n *Node) SlotsMax() int                    { return n.slotsMax }
func (n *Node) HasFlag(f Flag) bool              { return n.flags&f != 0 }
func (n *Node) SetFlag(f Flag)                   { n.flags |= f }
func (n *Node) ClearFlag(f Flag)                 { n.flags &^= f }

// SlotsInUse returns the current reservation count.
func (n *Node) SlotsInUse() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.slotsInUse
}

// HasRoom reports whether count more slots fit without oversubscribing.
func (n *Node) HasRoom(count int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.slotsInUse+count <= n.slotsTotal
}

// HasCapacity reports whether count more slots fit under the hard cap,
// regardless of oversubscription. slotsMax <= 0 means unlimited.
func (n *Node) HasCapacity(count int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.slotsMax <= 0 {
		return true
	}
	return n.slotsInUse+count <= n.slotsMax
}

// Reserve records count additional slot reservations. It never refuses:
// callers (mappers) are responsible for checking HasRoom/HasCapacity and
// the oversubscribe policy before calling Reserve, per the "no partial
// plan" invariant (spec §4.3 invariant 3).
func (n *Node) Reserve(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.slotsInUse += count
	if n.slotsInUse > n.slotsTotal {
		n.flags |= Oversubscribed
	}
}

// Release undoes a prior Reserve. The driver uses it to hand back the
// slots of a mapping attempt that failed; a committed mapping is never
// unwound.
func (n *Node) Release(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.slotsInUse -= count
	if n.slotsInUse < 0 {
		n.slotsInUse = 0
	}
}

// NextNodeRank hands out the next node_rank value for a process placed
// on this node: dense, starting at 0, and never reused across jobs
// (spec GLOSSARY "Node rank").
func (n *Node) NextNodeRank() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.nextNodeRank
	n.nextNodeRank++
	return r
}

// ResetScratch clears the per-job scratch flags (Mapped, Oversubscribed)
// between planning passes, mirroring the driver's CLEANUP step.
func (n *Node) ResetScratch() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.flags &^= Mapped | Oversubscribed
}
