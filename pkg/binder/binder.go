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

// Package binder computes each process's CPU bitmap from the resolved
// binding policy and mapping granularity (spec §4.5). The per-node
// object-picking strategy is grounded on the teacher's pkg/cpuallocator,
// simplified from idle-resource selection against live sysfs state to
// a fixed assignment: each process on a node takes the objects at its
// local-rank position in logical index order; idleness is not checked.
package binder

import (
	"sort"

	"github.com/awlauria/prrte/internal/errors"
	"github.com/awlauria/prrte/internal/logging"
	"github.com/awlauria/prrte/pkg/cpuset"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/topology"
)

var log = logging.NewLogger("binder")

// Bind computes Process.CPUBitmap (and BoundToType/BoundToIndex, where
// it matches a topology object exactly) for every process in j.Map.
// Processes that already carry a bitmap (stamped directly by the
// by-user mapper from an explicit rankfile slot list) are left alone.
func Bind(j *job.Job, pool *nodepool.Pool) error {
	policy := j.Map.Policy

	if policy.Binding == job.BindNone {
		return nil
	}

	byNode := map[string][]*job.Process{}
	for _, p := range j.Map.Processes {
		if !p.CPUBitmap.IsEmpty() {
			continue
		}
		byNode[p.NodeName] = append(byNode[p.NodeName], p)
	}

	for nodeName, procs := range byNode {
		n, ok := pool.Get(nodeName)
		if !ok || n.Topology() == nil {
			continue
		}
		sort.SliceStable(procs, func(i, k int) bool { return procs[i].LocalRank < procs[k].LocalRank })
		if err := bindOnNode(policy, j.Directives, procs, n.Topology()); err != nil {
			return err
		}
	}
	return nil
}

func bindOnNode(policy job.PolicyTuple, d job.Directives, procs []*job.Process, topo *topology.Topology) error {
	if policy.Binding == job.BindCPUList {
		return bindCPUList(d, procs)
	}

	objType, ok := bindingObjectType(policy.Binding)
	if !ok {
		return errors.New(errors.BindingInfeasible, "unsupported binding policy %s", policy.Binding)
	}

	objects := topo.ObjectsOfType(objType)
	if len(objects) == 0 {
		return errors.New(errors.BindingInfeasible, "node topology has no %s objects to bind to", objType)
	}

	widen := 1
	if d.PesPerProc > 1 {
		widen = d.PesPerProc
	}

	arity := len(objects) / widen
	if arity < 1 {
		arity = 1
	}
	locals := len(procs)

	// Several ranks legitimately sharing one coarse-granularity container
	// (Package/NUMA/L3/L2/L1) is normal PRRTE binding, not oversubscription
	// — only a fine-granularity leaf (Core/HWThread) actually being
	// oversubscribed requires the explicit AllowOverload qualifier.
	if arity < locals && isLeafBindingObject(objType) && !policy.Qualifiers.AllowOverload {
		if !policy.Qualifiers.IfSupported {
			return errors.New(errors.BindingInfeasible,
				"binding %s has arity %d, need %d; overload not allowed", objType, arity, locals)
		}
		log.Warn("binding %s infeasible on node (arity %d < %d locals) but IfSupported set, leaving unbound", objType, arity, locals)
		return nil
	}

	for i, p := range procs {
		slot := i
		if arity < locals {
			slot = i % arity // AllowOverload: cycle round-robin (spec §4.5)
		}
		lo := slot * widen
		hi := lo + widen
		if hi > len(objects) {
			hi = len(objects)
		}

		bitmap := cpuset.New()
		for _, obj := range objects[lo:hi] {
			bitmap = bitmap.Union(obj.CPUSet())
		}
		p.CPUBitmap = bitmap

		if widen == 1 && arity >= locals {
			p.BoundToType = objType.String()
			p.BoundToIndex = objects[lo].Index()
		}
	}
	return nil
}

// bindCPUList distributes an explicit per-node CPU list across locals in
// local-rank order (spec §4.5 "CPUList binding distributes an explicit
// per-node list to locals in order").
func bindCPUList(d job.Directives, procs []*job.Process) error {
	if d.CPUList == "" {
		return errors.New(errors.BindingInfeasible, "CPUList binding requires a CPU list")
	}
	cset, err := cpuset.Parse(d.CPUList)
	if err != nil {
		return errors.Wrap(errors.BadParam, err, "malformed CPU list")
	}
	ids := cset.List()
	if len(ids) == 0 {
		return errors.New(errors.BindingInfeasible, "CPU list is empty")
	}
	for i, p := range procs {
		id := ids[i%len(ids)]
		p.CPUBitmap = cpuset.New(id)
	}
	return nil
}

// isLeafBindingObject reports whether objType is a fine enough
// granularity that placing more than one process on it is actual
// oversubscription (spec §4.5), as opposed to a coarse container
// (Package/NUMA/L3/L2/L1) that's expected to hold several ranks.
func isLeafBindingObject(objType topology.ObjectType) bool {
	return objType == topology.HWThread || objType == topology.Core
}

func bindingObjectType(b job.BindingPolicy) (topology.ObjectType, bool) {
	switch b {
	case job.BindHWThread:
		return topology.HWThread, true
	case job.BindCore:
		return topology.Core, true
	case job.BindL1:
		return topology.L1Cache, true
	case job.BindL2:
		return topology.L2Cache, true
	case job.BindL3:
		return topology.L3Cache, true
	case job.BindPackage:
		return topology.Package, true
	case job.BindNUMA:
		return topology.NUMANode, true
	default:
		return 0, false
	}
}
