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

package nodepool

import (
	"sort"
	"sync"
)

// Pool is the process-wide set of usable nodes, indexed by name for
// stable lookup and iteration order (spec §3: "nodes live in a
// process-wide node pool with shared read access").
type Pool struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	// headNode, if set, is excluded by the target selector whenever the
	// NoUseLocal directive is in effect (spec §4.2).
	headNode string
}

// NewPool creates an empty node pool.
func NewPool() *Pool {
	return &Pool{nodes: map[string]*Node{}}
}

// Add registers a node in the pool.
func (p *Pool) Add(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[n.name] = n
}

// Get looks up a node by name.
func (p *Pool) Get(name string) (*Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[name]
	return n, ok
}

// SetHeadNode records which node is the head (launch daemon) node.
func (p *Pool) SetHeadNode(name string) { p.headNode = name }

// HeadNode returns the head node name, or "" if unset.
func (p *Pool) HeadNode() string { return p.headNode }

// All returns every node in the pool, sorted by name for stable
// iteration (spec §4.2 tie-break rule).
func (p *Pool) All() []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ResetScratch clears per-job scratch flags on every node, the driver's
// CLEANUP step (spec §4.6 step 14).
func (p *Pool) ResetScratch() {
	for _, n := range p.All() {
		n.ResetScratch()
	}
}
