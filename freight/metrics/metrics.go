// Copyright 2010-2024 Google LLC
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

// Package metrics holds the Prometheus collectors of the planner.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry of the planner.
	Registry = prometheus.NewRegistry()
	// Solves counts planning solves by outcome status.
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "capplan_solves_total", Help: "Planning solves by status."},
		[]string{"status"},
	)
	// SolveDuration records solve wall time in seconds.
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "capplan_solve_duration_seconds", Help: "Solve wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}},
		[]string{"status"},
	)
	// ModelSize reports the size of the last assembled model.
	ModelSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "capplan_model_size", Help: "Variables and constraints of the last assembled model."},
		[]string{"kind"},
	)
	// SearchNodes records the branch-and-bound nodes explored per solve.
	SearchNodes = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "capplan_search_nodes", Help: "Search nodes explored per solve.", Buckets: prometheus.ExponentialBuckets(1, 4, 10)},
	)
	// UnservedFraction records the fraction of demand left unserved per solve.
	UnservedFraction = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "capplan_unserved_fraction", Help: "Fraction of demand left unserved per solve.", Buckets: prometheus.LinearBuckets(0, 0.1, 11)},
	)
)

// RegisterDefault registers the collectors to Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(Solves)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(ModelSize)
		Registry.MustRegister(SearchNodes)
		Registry.MustRegister(UnservedFraction)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObserveModel records the size of an assembled model.
func ObserveModel(variables, integers, constraints int) {
	ModelSize.WithLabelValues("variables").Set(float64(variables))
	ModelSize.WithLabelValues("integers").Set(float64(integers))
	ModelSize.WithLabelValues("constraints").Set(float64(constraints))
}

// ObserveSolve records one solve outcome.
func ObserveSolve(status string, d time.Duration, nodes int) {
	Solves.WithLabelValues(status).Inc()
	SolveDuration.WithLabelValues(status).Observe(d.Seconds())
	SearchNodes.Observe(float64(nodes))
}
