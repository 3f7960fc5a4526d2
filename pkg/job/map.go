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

package job

import "github.com/awlauria/prrte/pkg/cpuset"

// Bookmark remembers the last node visited while mapping, so a later
// mapping phase (a later app in the same job, or a dynamic spawn)
// continues sequentially instead of restarting at the front of the
// target list (spec §3 "Map", GLOSSARY "Bookmark").
type Bookmark struct {
	NodeName string
	Valid    bool
}

// Map is owned by a Job: the resolved policy tuple, the nodes actually
// used, the bookmark cursor, and aggregate counters (spec §3).
type Map struct {
	Policy PolicyTuple

	// RequestedMapper records which mapper's name actually produced this
	// map, for diagnostics (SPEC_FULL §4, mirroring jdata->map->req_mapper
	// in the original C source).
	RequestedMapper string

	Nodes []string // names of nodes actually used, in the order first touched

	Bookmark Bookmark

	NumProcs      int
	NumNodes      int
	NumLocalProcs int

	// GlobalOffset is this job's starting point in the process-wide
	// total-procs counter, recorded once at the end of a successful
	// mapping pass (spec §4.6 step 11).
	GlobalOffset int

	Oversubscribed bool

	Processes []*Process
}

// NewMap creates an empty, unresolved Map.
func NewMap() *Map {
	return &Map{}
}

// AddNode records n as used, if not already present, preserving first-
// touched order (used by mappers to build Map.Nodes incrementally).
func (m *Map) AddNode(name string) {
	for _, n := range m.Nodes {
		if n == name {
			return
		}
	}
	m.Nodes = append(m.Nodes, name)
}

// Process is a single process in the plan: its node/rank assignment and
// CPU binding (spec §3 "Process").
type Process struct {
	Job      *Job
	Rank     int // global rank (vpid), unique within job
	AppIndex int
	LocalRank int // unique within (job, node)
	NodeRank  int // unique within node, across jobs
	NodeName  string

	CPUBitmap cpuset.CPUSet
	// BoundToType/BoundToIndex name the exact topology object this
	// process is bound to, when the binding matches one exactly (spec
	// §4.5); BoundToType == "" means no such object (e.g. AllowOverload
	// cycling, or CPUList binding).
	BoundToType  string
	BoundToIndex int
}
