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

package policy

import (
	"github.com/awlauria/prrte/internal/logging"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/topology"
)

var log = logging.NewLogger("policy")

// Resolve fills in j.Map.Policy and j.Directives by applying inheritance
// (spec §4.1) followed by defaulting, using pool to estimate process
// counts for apps that requested "fill" (NumProcs == 0). It returns the
// estimated total process count for the job.
func Resolve(j *job.Job, defaults Defaults, pool *nodepool.Pool) (int, error) {
	parent := resolveInheritanceParent(j, defaults)

	if parent != nil {
		inheritDirectives(j, parent)
	}
	resolveOversubscribe(j, parent, defaults)
	resolveNoUseLocal(j, parent, defaults)
	if !j.Directives.HWThreadsGiven && defaults.UseHWThreads {
		j.Directives.UseHWThreads = true
	}

	nprocs, err := estimateNumProcs(j, pool)
	if err != nil {
		return 0, err
	}

	packagesPresent := anyNodeHasPackage(pool)

	if j.Map.Policy.Mapping == job.MapUnset && defaults.Mapping != job.MapUnset {
		j.Map.Policy.Mapping = defaults.Mapping
	}
	if j.Map.Policy.Mapping == job.MapUnset {
		j.Map.Policy.Mapping = defaultMapping(nprocs, j.Directives, packagesPresent)
		log.Debug("job %s: defaulted mapping policy to %s (nprocs=%d)", j.Nspace, j.Map.Policy.Mapping, nprocs)
	}

	if j.Map.Policy.Ranking == job.RankUnset {
		if defaults.Ranking != job.RankUnset {
			j.Map.Policy.Ranking = defaults.Ranking
		} else {
			j.Map.Policy.Ranking = job.RankBySlot
		}
	}

	if j.Map.Policy.Binding == job.BindUnset && defaults.Binding != job.BindUnset {
		j.Map.Policy.Binding = defaults.Binding
	}
	if j.Map.Policy.Binding == job.BindUnset {
		j.Map.Policy.Binding = defaultBinding(j.Map.Policy.Mapping, j.Directives, nprocs, packagesPresent)
		if defaults.AllowOverload {
			j.Map.Policy.Qualifiers.AllowOverload = true
		}
	}

	return nprocs, nil
}

// resolveInheritanceParent implements the inherit ladder at the top of
// the original rmaps_base_map_job.c: an initial launch (no proxy) always
// inherits defaults; a dynamic launch inherits its proxy's directives
// unless it explicitly refuses or the proxy is itself a TOOL launch, and,
// when it neither requests nor refuses, only if defaults.Inherit is set.
func resolveInheritanceParent(j *job.Job, defaults Defaults) *job.Job {
	if j.LaunchProxy == nil {
		return nil
	}

	switch {
	case j.Directives.NoInherit:
		return nil
	case j.LaunchProxy.IsTool:
		return nil
	case j.Directives.Inherit:
		return j.LaunchProxy
	case defaults.Inherit:
		return j.LaunchProxy
	default:
		return nil
	}
}

func inheritDirectives(j *job.Job, parent *job.Job) {
	if j.Directives.PPR == "" && parent.Directives.PPR != "" {
		j.Directives.PPR = parent.Directives.PPR
	}
	if j.Directives.PesPerProc == 0 && parent.Directives.PesPerProc != 0 {
		j.Directives.PesPerProc = parent.Directives.PesPerProc
	}
	if !j.Directives.HWThreadsGiven {
		if parent.Directives.HWThreadsGiven {
			j.Directives.UseHWThreads = parent.Directives.UseHWThreads
			j.Directives.HWThreadsGiven = true
		}
	}
	if j.Map.Policy.Mapping == job.MapUnset && !j.Directives.Given {
		j.Map.Policy.Mapping = parent.Map.Policy.Mapping
	}
	if j.Map.Policy.Ranking == job.RankUnset {
		j.Map.Policy.Ranking = parent.Map.Policy.Ranking
	}
	if j.Map.Policy.Binding == job.BindUnset {
		j.Map.Policy.Binding = parent.Map.Policy.Binding
	}
}

// resolveOversubscribe implements "If unset, inherit from parent; else
// take from process default; else set NO_OVERSUBSCRIBE" (spec §4.1).
func resolveOversubscribe(j *job.Job, parent *job.Job, defaults Defaults) {
	if j.Directives.SubscribeGiven {
		return
	}
	if parent != nil {
		j.Directives.NoOversubscribe = parent.Directives.NoOversubscribe
		return
	}
	j.Directives.NoOversubscribe = defaults.NoOversubscribe
}

// resolveNoUseLocal implements spec §4.1's "No-use-local directive".
func resolveNoUseLocal(j *job.Job, parent *job.Job, defaults Defaults) {
	if defaults.ForceNoUseLocal {
		j.Directives.NoUseLocal = true
		return
	}
	if j.Directives.LocalGiven {
		return
	}
	if parent != nil {
		j.Directives.NoUseLocal = parent.Directives.NoUseLocal
	}
}

// defaultMapping implements the nprocs-driven defaulting ladder (spec
// §4.1 "Defaulting rule for mapping").
func defaultMapping(nprocs int, d job.Directives, packagesPresent bool) job.MappingPolicy {
	switch {
	case nprocs <= 2 && d.PesPerProc > 1:
		return job.MapBySlot
	case nprocs <= 2 && d.UseHWThreads:
		return job.MapByHWThread
	case nprocs <= 2:
		return job.MapByCore
	case packagesPresent:
		return job.MapByPackage
	default:
		return job.MapBySlot
	}
}

// defaultBinding implements spec §4.1 "Default binding".
func defaultBinding(mapping job.MappingPolicy, d job.Directives, nprocs int, packagesPresent bool) job.BindingPolicy {
	if d.PesPerProc > 0 {
		if d.UseHWThreads {
			return job.BindHWThread
		}
		return job.BindCore
	}
	if mapping.IsObjectType() {
		return mappingToBinding(mapping)
	}
	switch {
	case nprocs <= 2 && d.UseHWThreads:
		return job.BindHWThread
	case nprocs <= 2:
		return job.BindCore
	case packagesPresent:
		return job.BindPackage
	default:
		return job.BindNone
	}
}

func mappingToBinding(m job.MappingPolicy) job.BindingPolicy {
	switch m {
	case job.MapByHWThread:
		return job.BindHWThread
	case job.MapByCore:
		return job.BindCore
	case job.MapByL1:
		return job.BindL1
	case job.MapByL2:
		return job.BindL2
	case job.MapByL3:
		return job.BindL3
	case job.MapByPackage:
		return job.BindPackage
	case job.MapByNUMA:
		return job.BindNUMA
	default:
		return job.BindNone
	}
}

func anyNodeHasPackage(pool *nodepool.Pool) bool {
	for _, n := range pool.All() {
		if n.Topology() != nil && n.Topology().CountOfType(topology.Package) > 0 {
			return true
		}
	}
	return false
}
