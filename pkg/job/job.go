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

// Package job holds the data model the planner operates on: Job,
// AppContext, Map, and Process (spec §3), plus the policy tuple that the
// resolver (pkg/policy) fills in. Grounded on the teacher's
// pkg/resmgr/cache struct-with-getters idiom (cache.Container,
// cache.Pod), repointed from "container in a pod" to "process in a
// job".
package job

import (
	"github.com/awlauria/prrte/internal/errors"
)

// State is the job's lifecycle state (spec §3, §4.6).
type State int

const (
	StateInit State = iota
	StateMap
	StateMapComplete
	StateMapFailed
	StateCleanup
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateMap:
		return "MAP"
	case StateMapComplete:
		return "MAP_COMPLETE"
	case StateMapFailed:
		return "MAP_FAILED"
	case StateCleanup:
		return "CLEANUP"
	default:
		return "UNKNOWN"
	}
}

// AppContext is one application in a job: a request for some number of
// processes plus the attributes that scope where they may run.
type AppContext struct {
	Index     int    // position within Job.Apps
	NumProcs  int    // 0 means "fill" (estimated, spec §4.1)
	Executable string
	Prefix    string
	CWD       string
	FirstRank int // assigned by the ranker; offsets this app's ranks

	// HostList, when non-empty, restricts placement to these node names
	// (a hostfile/dash-host filter, spec §4.2). Ordered requests that the
	// target selector preserve this slice's order instead of sorting by
	// name.
	HostList []string
	Ordered  bool
}

// Job is an ordered list of application contexts sharing one mapping
// pass, plus the attribute bag, personality, and lifecycle state (spec
// §3).
type Job struct {
	Nspace      string // stable job identifier (stamped with a UUID by cmd/prrte-planner at submission)
	Apps        []*AppContext
	Personality string

	State    State
	ExitCode errors.Kind

	Map *Map

	// LaunchProxy names the parent job this job inherits launch
	// directives from, if any (spec §4.1 inheritance rule). nil for an
	// initial launch.
	LaunchProxy *Job
	// IsTool marks a launch-proxy job as a "tool" launch: children of a
	// TOOL job inherit only defaults, never its directives (spec §4.1).
	IsTool bool

	// Originator is set on a job produced by a dynamic spawn; its map's
	// bookmark is mirrored onto Originator.Map after mapping completes
	// (spec §4.6 step 12).
	Originator *Job

	Directives Directives

	Rankfile *Rankfile

	Cancelled bool

	// Display requests that the driver emit a human-readable and
	// diffable map after a successful mapping pass (spec §4.6 step 13);
	// only rank 0 of the launching job actually emits it (spec §6).
	Display bool

	NumProcs int // sum of process assignments once mapped
	NumNodes int // count of distinct nodes used once mapped
}

// NewJob creates an empty job in StateInit with an empty Map.
func NewJob(nspace string) *Job {
	return &Job{
		Nspace: nspace,
		State:  StateInit,
		Map:    NewMap(),
	}
}

// EstimatedNumProcs sums AppContext.NumProcs for apps whose count is
// already explicit (non-zero); apps still needing estimation are the
// resolver's job (spec §4.1 "Process estimation").
func (j *Job) EstimatedNumProcs() int {
	total := 0
	for _, a := range j.Apps {
		if a.NumProcs > 0 {
			total += a.NumProcs
		}
	}
	return total
}
