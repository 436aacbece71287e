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

package mpmodel

import (
	"fmt"
	"time"
)

// Status is the termination status reported by a solver.
type Status int

const (
	// StatusUnknown means the solver has not run.
	StatusUnknown Status = iota
	// StatusOptimal means the solution is optimal within the gap tolerance.
	StatusOptimal
	// StatusFeasible means a solution was found but the search stopped on a
	// limit before proving optimality.
	StatusFeasible
	// StatusInfeasible means the model has no solution.
	StatusInfeasible
	// StatusNotSolved means the search stopped on a limit before finding any
	// solution.
	StatusNotSolved
	// StatusUnbounded means the objective is unbounded.
	StatusUnbounded
	// StatusModelInvalid means the model failed validation.
	StatusModelInvalid
)

var statusNames = map[Status]string{
	StatusUnknown:      "UNKNOWN",
	StatusOptimal:      "OPTIMAL",
	StatusFeasible:     "FEASIBLE",
	StatusInfeasible:   "INFEASIBLE",
	StatusNotSolved:    "NOT_SOLVED",
	StatusUnbounded:    "UNBOUNDED",
	StatusModelInvalid: "MODEL_INVALID",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// HasSolution reports whether the response carries variable values.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// SolveParameters are handed to the solver along with the model.
type SolveParameters struct {
	// TimeLimit bounds the wall-clock solve time. Zero means no limit.
	TimeLimit time.Duration
	// RelativeGap stops the search once
	// |incumbent − bound| <= RelativeGap·max(1, |incumbent|).
	RelativeGap float64
	// Verbose asks the solver to log its progress.
	Verbose bool
}

// Response is the outcome of one solve.
type Response struct {
	Status         Status
	ObjectiveValue float64
	// BestBound is the proven bound on the optimal objective.
	BestBound float64
	// Values is indexed by VarIndex; nil unless Status.HasSolution().
	Values []float64
	// Nodes is the number of search nodes explored.
	Nodes    int
	WallTime time.Duration
}

// Gap returns the relative gap between the objective and the bound.
func (r *Response) Gap() float64 {
	if !r.Status.HasSolution() {
		return 0
	}
	d := r.ObjectiveValue - r.BestBound
	if d < 0 {
		d = -d
	}
	a := r.ObjectiveValue
	if a < 0 {
		a = -a
	}
	if a < 1 {
		a = 1
	}
	return d / a
}

// SolutionValue returns the value of LinearArgument `la` in the response.
// It returns 0 if the response carries no solution.
func SolutionValue(r *Response, la LinearArgument) float64 {
	if r == nil || r.Values == nil {
		return 0
	}
	return NewLinearExpr().Add(la).evaluate(r.Values)
}
