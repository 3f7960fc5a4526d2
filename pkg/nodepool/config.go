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
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/awlauria/prrte/pkg/topology"
)

// Config is the YAML-loadable node-pool descriptor, mirroring the
// teacher's habit (sigs.k8s.io/yaml, JSON-tagged structs) of driving
// runtime state from a declarative document rather than code.
type Config struct {
	HeadNode string       `json:"headNode,omitempty"`
	Nodes    []NodeConfig `json:"nodes"`
}

// NodeConfig describes a single node: its slot counts and topology.
type NodeConfig struct {
	Name       string          `json:"name"`
	SlotsTotal int             `json:"slotsTotal"`
	SlotsMax   int             `json:"slotsMax,omitempty"`
	Topology   topology.Spec   `json:"topology"`
	Usable     *bool           `json:"usable,omitempty"`
}

// LoadConfig parses a YAML document into a Config.
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing node pool config: %w", err)
	}
	return &cfg, nil
}

// BuildPool constructs a Pool from a Config, building each node's
// topology from its declared Spec.
func BuildPool(cfg *Config) (*Pool, error) {
	pool := NewPool()
	if cfg.HeadNode != "" {
		pool.SetHeadNode(cfg.HeadNode)
	}
	for _, nc := range cfg.Nodes {
		topo, err := topology.Build(nc.Topology)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nc.Name, err)
		}
		n := NewNode(nc.Name, nc.SlotsTotal, nc.SlotsMax, topo)
		if nc.Usable != nil && !*nc.Usable {
			n.ClearFlag(Usable)
		}
		pool.Add(n)
	}
	return pool, nil
}
