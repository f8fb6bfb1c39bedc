// Copyright 2025 SmartAPI MCP Contributors
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

// Package metrics holds the Prometheus collectors shared by the loaders.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smartapi_mcp"

// Build results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder counts builds, loaded tools, batch loads and searches.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	builds      *prometheus.CounterVec
	toolsLoaded prometheus.Counter
	batchLoads  *prometheus.CounterVec
	searches    *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg.
// A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_builds_total",
			Help:      "Number of SmartAPI server builds, by result.",
		}, []string{"result"}),
		toolsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tools_loaded_total",
			Help:      "Number of tools registered on the served MCP server.",
		}),
		batchLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_loads_total",
			Help:      "Number of load_tools_batch invocations, by strategy.",
		}, []string{"strategy"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Number of API searches, by method that produced the result.",
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(r.builds, r.toolsLoaded, r.batchLoads, r.searches)
	}
	return r
}

// Build records the outcome of one API build.
func (r *Recorder) Build(err error) {
	if r == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.builds.WithLabelValues(result).Inc()
}

// ToolsLoaded adds n tools.
func (r *Recorder) ToolsLoaded(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.toolsLoaded.Add(float64(n))
}

// BatchLoad records one batch load for strategy.
func (r *Recorder) BatchLoad(strategy string) {
	if r == nil {
		return
	}
	r.batchLoads.WithLabelValues(strategy).Inc()
}

// Search records one search answered by method.
func (r *Recorder) Search(method string) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues(method).Inc()
}
