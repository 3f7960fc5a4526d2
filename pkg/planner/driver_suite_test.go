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

package planner

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/awlauria/prrte/internal/errors"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/policy"
	"github.com/awlauria/prrte/pkg/topology"
)

func TestDriver(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Driver Suite")
}

// onePackageNCoresGinkgo builds a single-package topology with n one-thread
// cores; specs use Gomega's Expect rather than testify's require to check
// the error, since ginkgo specs have no *testing.T of their own.
func onePackageNCoresGinkgo(n int) *topology.Topology {
	cores := make([]topology.CoreSpec, n)
	for i := range cores {
		cores[i] = topology.CoreSpec{HWThreads: 1}
	}
	topo, err := topology.Build(topology.Spec{
		Packages: []topology.PackageSpec{{NUMANodes: []topology.NUMASpec{{Cores: cores}}}},
	})
	Expect(err).NotTo(HaveOccurred())
	return topo
}

var _ = Describe("Driver.MapJob", func() {
	var (
		pool *nodepool.Pool
		d    *Driver
	)

	BeforeEach(func() {
		pool = nodepool.NewPool()
		pool.Add(nodepool.NewNode("a", 4, 0, onePackageNCoresGinkgo(4)))
		pool.Add(nodepool.NewNode("b", 4, 0, onePackageNCoresGinkgo(4)))
		d = NewDriver(pool, policy.DefaultDefaults())
	})

	Context("when the mapping succeeds", func() {
		It("transitions INIT -> MAP -> MAP_COMPLETE and clears node scratch flags", func() {
			j := job.NewJob("ginkgo-ok")
			j.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}

			Expect(d.MapJob(context.Background(), j)).To(Succeed())
			Expect(j.State).To(Equal(job.StateMapComplete))

			n, ok := pool.Get("a")
			Expect(ok).To(BeTrue())
			Expect(n.HasFlag(nodepool.Mapped)).To(BeFalse(), "CLEANUP must clear MAPPED")
		})

		It("advances the global process counter exactly once per job", func() {
			j1 := job.NewJob("ginkgo-counter-1")
			j1.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
			Expect(d.MapJob(context.Background(), j1)).To(Succeed())

			j2 := job.NewJob("ginkgo-counter-2")
			j2.Apps = []*job.AppContext{{Index: 0, NumProcs: 3}}
			Expect(d.MapJob(context.Background(), j2)).To(Succeed())

			Expect(j1.Map.GlobalOffset).To(Equal(0))
			Expect(j2.Map.GlobalOffset).To(Equal(2))
			Expect(d.TotalProcs()).To(Equal(int64(5)))
		})
	})

	Context("when every mapper declines or the plan is empty", func() {
		It("fails with MAPPING_FAILED and still clears scratch flags", func() {
			// A job with no apps estimates to zero processes: the by-core
			// mapper places nothing and declines, and no other mapper
			// handles by-core. (An app with NumProcs 0 would instead be
			// filled to the pool's slot total.)
			j := job.NewJob("ginkgo-empty")
			j.Apps = []*job.AppContext{}

			err := d.MapJob(context.Background(), j)
			Expect(err).To(HaveOccurred())
			Expect(errors.KindOf(err)).To(Equal(errors.MappingFailed))
			Expect(j.State).To(Equal(job.StateMapFailed))

			n, ok := pool.Get("a")
			Expect(ok).To(BeTrue())
			Expect(n.HasFlag(nodepool.Mapped)).To(BeFalse())
		})
	})

	Context("when resources are oversubscribed beyond what's allowed", func() {
		It("fails with RESOURCE_BUSY and materializes no processes", func() {
			j := job.NewJob("ginkgo-busy")
			j.Apps = []*job.AppContext{{Index: 0, NumProcs: 50}}
			j.Directives.SubscribeGiven = true
			j.Directives.NoOversubscribe = true

			err := d.MapJob(context.Background(), j)
			Expect(err).To(HaveOccurred())
			Expect(errors.KindOf(err)).To(Equal(errors.ResourceBusy))
			Expect(j.Map.Processes).To(BeEmpty())
		})
	})

	Context("when the job is cancelled before the driver starts", func() {
		It("fails with CANCELLED", func() {
			j := job.NewJob("ginkgo-cancel")
			j.Apps = []*job.AppContext{{Index: 0, NumProcs: 2}}
			j.Cancelled = true

			err := d.MapJob(context.Background(), j)
			Expect(err).To(HaveOccurred())
			Expect(errors.KindOf(err)).To(Equal(errors.Cancelled))
		})
	})
})
