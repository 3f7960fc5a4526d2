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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/awlauria/prrte/internal/logging"
	"github.com/awlauria/prrte/pkg/hostfile"
	"github.com/awlauria/prrte/pkg/job"
	"github.com/awlauria/prrte/pkg/metrics"
	"github.com/awlauria/prrte/pkg/nodepool"
	"github.com/awlauria/prrte/pkg/planner"
	"github.com/awlauria/prrte/pkg/policy"
)

var log = logging.NewLogger("main")

func main() {
	var (
		listenAddr = flag.String("listen", ":8080", "address the planner HTTP API listens on")
		poolConfig = flag.String("node-pool-config", "", "path to the YAML node pool config (required)")
		watch      = flag.Bool("watch", true, "reload the node pool config when it changes on disk")
	)
	flag.Parse()

	if *poolConfig == "" {
		fmt.Fprintln(os.Stderr, "-node-pool-config is required")
		os.Exit(2)
	}

	srv, err := newServer(*poolConfig, *watch)
	if err != nil {
		log.Error("startup failed: %v", err)
		os.Exit(1)
	}
	defer srv.stop()

	log.Info("prrte-planner listening on %s", *listenAddr)
	if err := http.ListenAndServe(*listenAddr, srv.router); err != nil {
		log.Error("http server exited: %v", err)
		os.Exit(1)
	}
}

// server wires the HTTP surface to a planner.Driver over a node pool
// that can be hot-reloaded from disk (spec §6 "inbound from the
// orchestrator", reframed here as a small REST API standing in for the
// orchestrator's state-change callback).
type server struct {
	router *mux.Router
	driver *planner.Driver
	watch  *hostfile.Watcher

	jobsMu sync.RWMutex
	jobs   map[string]*job.Job
}

func newServer(poolConfigPath string, watch bool) (*server, error) {
	data, err := os.ReadFile(poolConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading node pool config: %w", err)
	}
	cfg, err := nodepool.LoadConfig(data)
	if err != nil {
		return nil, err
	}
	pool, err := nodepool.BuildPool(cfg)
	if err != nil {
		return nil, err
	}

	s := &server{
		driver: planner.NewDriver(pool, policy.DefaultDefaults()),
		jobs:   map[string]*job.Job{},
	}

	if watch {
		w, err := hostfile.Watch(poolConfigPath, func(data []byte) (interface{}, error) {
			return nodepool.LoadConfig(data)
		})
		if err != nil {
			return nil, fmt.Errorf("watching node pool config: %w", err)
		}
		s.watch = w
		go s.reloadLoop()
	}

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	if _, err := metrics.RegisterOpenCensusBridge(reg); err != nil {
		return nil, fmt.Errorf("registering opencensus metrics bridge: %w", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/jobs", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{nspace}/map", s.handleGetMap).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.router = r

	return s, nil
}

// reloadLoop rebuilds the driver's node pool whenever the watched config
// file changes; in-flight jobs keep their existing *nodepool.Pool
// reference, so a reload only affects jobs submitted afterward.
func (s *server) reloadLoop() {
	for ev := range s.watch.Events() {
		if ev.Err != nil {
			log.Warn("node pool config reload failed: %v", ev.Err)
			continue
		}
		cfg, ok := ev.Value.(*nodepool.Config)
		if !ok {
			continue
		}
		pool, err := nodepool.BuildPool(cfg)
		if err != nil {
			log.Warn("node pool config reload produced an invalid pool: %v", err)
			continue
		}
		log.Info("node pool config reloaded (%d nodes)", len(pool.All()))
		s.driver = planner.NewDriver(pool, s.driver.Defaults)
	}
}

func (s *server) stop() {
	if s.watch != nil {
		s.watch.Stop()
	}
}

// submitRequest is the wire form of a job submission: one or more app
// contexts plus the directive bits a client may set explicitly.
type submitRequest struct {
	Apps       []appRequest `json:"apps"`
	Display    bool         `json:"display,omitempty"`
	PPR        string       `json:"ppr,omitempty"`
	Rankfile   string       `json:"rankfile,omitempty"`
	Mapping    string       `json:"mapping,omitempty"`
}

type appRequest struct {
	NumProcs   int      `json:"numProcs"`
	Executable string   `json:"executable,omitempty"`
	HostList   []string `json:"hostList,omitempty"`
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("malformed request body: %v", err), http.StatusBadRequest)
		return
	}

	j := job.NewJob(uuid.NewString())
	j.Display = req.Display
	for i, a := range req.Apps {
		j.Apps = append(j.Apps, &job.AppContext{
			Index: i, NumProcs: a.NumProcs, Executable: a.Executable, HostList: a.HostList,
		})
	}
	if req.PPR != "" {
		j.Directives.Given = true
		j.Map.Policy.Mapping = job.MapPPR
		j.Directives.PPR = req.PPR
	}
	if req.Rankfile != "" {
		rf, err := job.ParseRankfile(req.Rankfile)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		j.Rankfile = rf
		j.Directives.Given = true
		j.Map.Policy.Mapping = job.MapByUser
	}
	if req.Mapping != "" && !j.Directives.Given {
		mapping, ok := parseMapping(req.Mapping)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown mapping policy %q", req.Mapping), http.StatusBadRequest)
			return
		}
		j.Directives.Given = true
		j.Map.Policy.Mapping = mapping
	}

	if err := s.driver.MapJob(r.Context(), j); err != nil {
		s.storeJob(j)
		writeJSON(w, http.StatusConflict, map[string]string{
			"nspace": j.Nspace, "state": j.State.String(), "error": err.Error(),
		})
		return
	}

	s.storeJob(j)
	writeJSON(w, http.StatusCreated, map[string]string{"nspace": j.Nspace, "state": j.State.String()})
}

func (s *server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	nspace := mux.Vars(r)["nspace"]
	j, ok := s.getJob(nspace)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nspace":   j.Nspace,
		"state":    j.State.String(),
		"numProcs": j.Map.NumProcs,
		"numNodes": j.Map.NumNodes,
		"nodes":    j.Map.Nodes,
	})
}

func (s *server) storeJob(j *job.Job) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	s.jobs[j.Nspace] = j
}

func (s *server) getJob(nspace string) (*job.Job, bool) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	j, ok := s.jobs[nspace]
	return j, ok
}

// parseMapping accepts the same keywords the mapper registry names
// itself with (job.MappingPolicy.String()), except "ppr" and "by-user":
// those need a PPR string or a rankfile and are handled separately above.
func parseMapping(s string) (job.MappingPolicy, bool) {
	switch s {
	case "by-slot":
		return job.MapBySlot, true
	case "by-node":
		return job.MapByNode, true
	case "by-hwthread":
		return job.MapByHWThread, true
	case "by-core":
		return job.MapByCore, true
	case "by-l1cache":
		return job.MapByL1, true
	case "by-l2cache":
		return job.MapByL2, true
	case "by-l3cache":
		return job.MapByL3, true
	case "by-package":
		return job.MapByPackage, true
	case "by-numa":
		return job.MapByNUMA, true
	case "sequential":
		return job.MapSequential, true
	default:
		return job.MapUnset, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
