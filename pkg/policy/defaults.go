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

// Package policy implements the policy resolver (spec §4.1): it merges
// job-specified, inherited, and process-wide default directives into a
// fully specified {mapping, ranking, binding, oversubscribe, use-local}
// tuple on the job's Map.
package policy

import "github.com/awlauria/prrte/pkg/job"

// Defaults are the process-wide fallback directives used when a job has
// no parent to inherit from, or the parent itself left a field unset.
// These mirror the MCA-parameter defaults of the original runtime
// (prte_rmaps_base.*), reframed as a plain struct (design note §9).
type Defaults struct {
	Mapping       job.MappingPolicy
	Ranking       job.RankingPolicy
	Binding       job.BindingPolicy
	NoOversubscribe bool
	// ForceNoUseLocal models a global "launch daemons on head node"
	// setting: when true, every job gets NoUseLocal regardless of
	// inheritance (spec §4.1 "No-use-local directive").
	ForceNoUseLocal bool
	UseHWThreads    bool
	AllowOverload   bool
	// Inherit is the process-wide default for whether a dynamically
	// spawned job inherits its parent's directives when the job itself
	// neither requests nor refuses inheritance.
	Inherit bool
}

// DefaultDefaults returns the conventional defaults: ranking by slot,
// oversubscription refused, cores (not hwthreads) as the CPU designation,
// and inheritance enabled — matching the original runtime's out-of-the-
// box behavior.
func DefaultDefaults() Defaults {
	return Defaults{
		Mapping:         job.MapUnset,
		Ranking:         job.RankBySlot,
		Binding:         job.BindUnset,
		NoOversubscribe: true,
		Inherit:         true,
	}
}
