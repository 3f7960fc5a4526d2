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

// MappingPolicy selects the mapper strategy (spec §4.1).
type MappingPolicy int

const (
	MapUnset MappingPolicy = iota
	MapBySlot
	MapByNode
	MapByHWThread
	MapByCore
	MapByL1
	MapByL2
	MapByL3
	MapByPackage
	MapByNUMA
	MapByUser
	MapSequential
	MapPPR
)

func (m MappingPolicy) String() string {
	switch m {
	case MapBySlot:
		return "by-slot"
	case MapByNode:
		return "by-node"
	case MapByHWThread:
		return "by-hwthread"
	case MapByCore:
		return "by-core"
	case MapByL1:
		return "by-l1cache"
	case MapByL2:
		return "by-l2cache"
	case MapByL3:
		return "by-l3cache"
	case MapByPackage:
		return "by-package"
	case MapByNUMA:
		return "by-numa"
	case MapByUser:
		return "by-user"
	case MapSequential:
		return "sequential"
	case MapPPR:
		return "ppr"
	default:
		return "unset"
	}
}

// IsObjectType reports whether m maps onto a topology object type
// (hwthread/core/L1/L2/L3/package/numa), used by binding defaulting
// (spec §4.1 "Else if mapping policy is an object type...").
func (m MappingPolicy) IsObjectType() bool {
	switch m {
	case MapByHWThread, MapByCore, MapByL1, MapByL2, MapByL3, MapByPackage, MapByNUMA:
		return true
	default:
		return false
	}
}

// RankingPolicy selects how global/local/node ranks are assigned (spec §4.4).
type RankingPolicy int

const (
	RankUnset RankingPolicy = iota
	RankBySlot
	RankByNode
	RankByHWThread
	RankByCore
	RankByL1
	RankByL2
	RankByL3
	RankByPackage
	RankByNUMA
)

func (r RankingPolicy) String() string {
	switch r {
	case RankBySlot:
		return "by-slot"
	case RankByNode:
		return "by-node"
	case RankByHWThread:
		return "by-hwthread"
	case RankByCore:
		return "by-core"
	case RankByL1:
		return "by-l1cache"
	case RankByL2:
		return "by-l2cache"
	case RankByL3:
		return "by-l3cache"
	case RankByPackage:
		return "by-package"
	case RankByNUMA:
		return "by-numa"
	default:
		return "unset"
	}
}

// BindingPolicy selects what a process is bound to (spec §4.5).
type BindingPolicy int

const (
	BindUnset BindingPolicy = iota
	BindNone
	BindHWThread
	BindCore
	BindL1
	BindL2
	BindL3
	BindPackage
	BindNUMA
	BindCPUList
)

func (b BindingPolicy) String() string {
	switch b {
	case BindNone:
		return "none"
	case BindHWThread:
		return "hwthread"
	case BindCore:
		return "core"
	case BindL1:
		return "l1cache"
	case BindL2:
		return "l2cache"
	case BindL3:
		return "l3cache"
	case BindPackage:
		return "package"
	case BindNUMA:
		return "numa"
	case BindCPUList:
		return "cpu-list"
	default:
		return "unset"
	}
}

// BindingQualifiers are the qualifier bits that ride along with a
// BindingPolicy (spec §4.1).
type BindingQualifiers struct {
	AllowOverload bool
	IfSupported   bool
	Ordered       bool
}

// Directives are the mapping directive bits (spec §4.1), modeled as an
// explicit struct of booleans rather than a bitfield (design note §9).
type Directives struct {
	Given           bool // user explicitly set the mapping policy
	SubscribeGiven  bool // user explicitly set the oversubscribe directive
	NoOversubscribe bool
	NoUseLocal      bool
	LocalGiven      bool // user explicitly set the use-local directive
	Inherit         bool // job requests inheriting from LaunchProxy
	NoInherit       bool // job explicitly refuses inheritance
	DoNotLaunch     bool // planner-only / dry-run mode (spec §4.6 step 4)
	FullyDescribed  bool // request locality annotation alongside binding (spec §4.6 step 10)

	PPR         string // raw "N:node" / "N:package" string, if given
	PesPerProc  int    // hardware leaves per process, 0 = unset
	UseHWThreads bool  // CPU designation: hwthreads (true) vs cores (false)
	HWThreadsGiven bool

	// CPUList is a raw Linux-style CPU list ("0-3,8"), present only when
	// BindingPolicy == BindCPUList (spec §4.5 "CPUList binding").
	CPUList string
}

// PolicyTuple is the fully resolved {mapping, ranking, binding} tuple
// plus its directive bits (spec §4.1).
type PolicyTuple struct {
	Mapping    MappingPolicy
	Ranking    RankingPolicy
	Binding    BindingPolicy
	Qualifiers BindingQualifiers
	Directives Directives
}
