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

// Package cpuset aliases k8s.io/utils/cpuset so the rest of the planner
// never has to decide which CPU-set library to import.
package cpuset

import (
	"fmt"

	"k8s.io/utils/cpuset"
)

// CPUSet is an alias for k8s.io/utils/cpuset.CPUSet. It represents a set
// of hardware-thread (logical CPU) IDs.
type CPUSet = cpuset.CPUSet

var (
	// New builds a CPUSet from the given CPU IDs.
	New = cpuset.New
	// Parse parses a Linux-style CPU list ("0-3,8") into a CPUSet.
	Parse = cpuset.Parse
)

// MustParse panics if parsing the given cpuset string fails. Intended for
// constants and test fixtures only.
func MustParse(s string) cpuset.CPUSet {
	cset, err := cpuset.Parse(s)
	if err != nil {
		panic(fmt.Errorf("failed to parse CPUSet %q: %w", s, err))
	}
	return cset
}
