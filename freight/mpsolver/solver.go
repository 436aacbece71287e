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

// Package mpsolver solves mpmodel models with an LP based branch-and-bound.
//
// LP relaxations are solved with a bounded-variable primal simplex on gonum
// matrices, which checks the time limit and the interrupt while it pivots.
// The search is depth first and branches on the most fractional integral
// variable. It is meant for the small and medium instances of the planner
// and its tests; any solver that consumes an mpmodel.Model can replace it.
package mpsolver

import (
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/floats"

	"github.com/freightplan/intercity/freight/mpmodel"
)

const (
	// integralityTol is the distance to the nearest integer under which a
	// value counts as integral.
	integralityTol = 1e-6
	// fixedTol is the bound width under which a variable counts as fixed.
	fixedTol = 1e-9
	// feasibilityTol is the constraint violation tolerated on constant rows.
	feasibilityTol = 1e-7
)

// Solver adapts Solve to the planner's solver collaborator interface.
// A non-nil Interrupt stops the search when it is closed.
type Solver struct {
	Interrupt <-chan struct{}
}

// Solve solves `m` with the given parameters.
func (s Solver) Solve(m *mpmodel.Model, params mpmodel.SolveParameters) (*mpmodel.Response, error) {
	return SolveInterruptible(m, params, s.Interrupt)
}

// Solve solves the model with the given parameters and returns a Response.
func Solve(m *mpmodel.Model, params mpmodel.SolveParameters) (*mpmodel.Response, error) {
	return SolveInterruptible(m, params, nil)
}

// SolveInterruptible solves the model with the given parameters and returns
// a Response. The solve can be interrupted by closing `interrupt`; the best
// solution found so far is then returned with StatusFeasible.
//
// Invalid models are reported through StatusModelInvalid. An error is only
// returned when the root relaxation cannot be solved for numerical reasons.
func SolveInterruptible(m *mpmodel.Model, params mpmodel.SolveParameters, interrupt <-chan struct{}) (*mpmodel.Response, error) {
	start := time.Now()
	if err := validate(m); err != nil {
		log.Errorf("model %q is invalid: %v", m.Name, err)
		return &mpmodel.Response{Status: mpmodel.StatusModelInvalid, WallTime: time.Since(start)}, nil
	}
	s := newSearch(m, params, interrupt, start)
	res, err := s.run()
	if err != nil {
		return nil, err
	}
	res.WallTime = time.Since(start)
	if params.Verbose {
		log.Infof("model %q: %v objective=%v bound=%v nodes=%d time=%v",
			m.Name, res.Status, res.ObjectiveValue, res.BestBound, res.Nodes, res.WallTime)
	}
	return res, nil
}

func validate(m *mpmodel.Model) error {
	if m == nil {
		return errors.New("nil model")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	for i, v := range m.Variables {
		if math.IsInf(v.Bounds.Lb, -1) {
			return fmt.Errorf("variable %d (%q): unbounded below variables are not supported", i, v.Name)
		}
	}
	return nil
}

// node is an open subproblem of the search.
type node struct {
	lb, ub []float64
	// bound is the relaxation objective of the parent node.
	bound float64
}

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	// lpStopped means the time limit or the interrupt stopped the simplex.
	lpStopped
)

type search struct {
	m         *mpmodel.Model
	params    mpmodel.SolveParameters
	interrupt <-chan struct{}
	deadline  time.Time

	// sense is -1 for maximization; the search always minimizes sense·obj.
	sense float64
	cost  []float64
	// locked marks the variables that stay at their lower bound.
	locked []bool

	incumbent []float64
	incObj    float64
	nodes     int
}

func newSearch(m *mpmodel.Model, params mpmodel.SolveParameters, interrupt <-chan struct{}, start time.Time) *search {
	s := &search{
		m:         m,
		params:    params,
		interrupt: interrupt,
		sense:     1,
		cost:      make([]float64, len(m.Variables)),
		incObj:    math.Inf(1),
	}
	if params.TimeLimit > 0 {
		s.deadline = start.Add(params.TimeLimit)
	}
	if m.Objective.Maximize {
		s.sense = -1
	}
	for i, v := range m.Objective.Vars {
		s.cost[v] += s.sense * m.Objective.Coeffs[i]
	}
	s.locked = downLocked(m, s.cost)
	return s
}

// downLocked marks the variables that can always be moved to their lower
// bound without breaking a constraint or raising the objective: a
// non-negative cost, and only positive coefficients in rows bounded above
// and negative ones in rows bounded below.
func downLocked(m *mpmodel.Model, cost []float64) []bool {
	locked := make([]bool, len(m.Variables))
	for j := range locked {
		locked[j] = cost[j] >= 0
	}
	for _, c := range m.Constraints {
		hasLb := !math.IsInf(c.Bounds.Lb, -1)
		hasUb := !math.IsInf(c.Bounds.Ub, 1)
		for i, v := range c.Vars {
			if (c.Coeffs[i] > 0 && hasLb) || (c.Coeffs[i] < 0 && hasUb) {
				locked[v] = false
			}
		}
	}
	return locked
}

// stopped reports whether the time limit is reached or the solve was
// interrupted.
func (s *search) stopped() bool {
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return true
	}
	select {
	case <-s.interrupt:
		return true
	default:
		return false
	}
}

func (s *search) hasIncumbent() bool {
	return s.incumbent != nil
}

// closeEnough reports whether `obj` cannot improve the incumbent.
func (s *search) closeEnough(obj float64) bool {
	return s.hasIncumbent() && obj >= s.incObj-1e-9*math.Max(1, math.Abs(s.incObj))
}

func (s *search) run() (*mpmodel.Response, error) {
	n := len(s.m.Variables)
	lb := make([]float64, n)
	ub := make([]float64, n)
	for i, v := range s.m.Variables {
		lb[i], ub[i] = v.Bounds.Lb, v.Bounds.Ub
		if v.Integer {
			lb[i] = math.Ceil(lb[i] - integralityTol)
			ub[i] = math.Floor(ub[i] + integralityTol)
		}
		if lb[i] > ub[i] {
			log.V(1).Infof("model %q: variable %d has no integral value in %v", s.m.Name, i, v.Bounds)
			return s.response(mpmodel.StatusInfeasible, math.Inf(1)), nil
		}
	}

	stack := []node{{lb: lb, ub: ub, bound: math.Inf(-1)}}
	interrupted := false
	gapClosed := false
	for len(stack) > 0 {
		if s.nodes > 0 && s.stopped() {
			interrupted = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.closeEnough(nd.bound) {
			continue
		}

		s.nodes++
		obj, x, st, err := s.relaxation(nd.lb, nd.ub)
		if err != nil {
			if s.nodes == 1 {
				return nil, fmt.Errorf("solving the root relaxation of %q failed: %w", s.m.Name, err)
			}
			log.Warningf("model %q: pruning node %d after numerical failure: %v", s.m.Name, s.nodes, err)
			continue
		}
		switch st {
		case lpStopped:
			stack = append(stack, nd)
			interrupted = true
		case lpInfeasible:
			continue
		case lpUnbounded:
			if s.nodes == 1 {
				return s.response(mpmodel.StatusUnbounded, math.Inf(-1)), nil
			}
			continue
		}
		if interrupted {
			break
		}
		if s.closeEnough(obj) {
			continue
		}

		j := s.branchVariable(x)
		if j < 0 {
			s.setIncumbent(x)
			if s.gapClosed(stack) {
				gapClosed = true
				break
			}
			continue
		}
		v := x[j]
		up := node{lb: clone(nd.lb), ub: nd.ub, bound: obj}
		up.lb[j] = math.Ceil(v)
		down := node{lb: nd.lb, ub: clone(nd.ub), bound: obj}
		down.ub[j] = math.Floor(v)
		stack = append(stack, up, down)
	}

	switch {
	case !s.hasIncumbent() && interrupted:
		return s.response(mpmodel.StatusNotSolved, openBound(stack, math.Inf(1))), nil
	case !s.hasIncumbent():
		return s.response(mpmodel.StatusInfeasible, math.Inf(1)), nil
	case interrupted:
		return s.response(mpmodel.StatusFeasible, openBound(stack, s.incObj)), nil
	case gapClosed:
		return s.response(mpmodel.StatusOptimal, openBound(stack, s.incObj)), nil
	default:
		return s.response(mpmodel.StatusOptimal, s.incObj), nil
	}
}

// response converts the search state to a Response. `bound` is in the
// minimization sense.
func (s *search) response(status mpmodel.Status, bound float64) *mpmodel.Response {
	res := &mpmodel.Response{
		Status:    status,
		BestBound: s.sense*bound + s.m.Objective.Offset,
		Nodes:     s.nodes,
	}
	if status.HasSolution() {
		res.Values = s.incumbent
		res.ObjectiveValue = s.sense*s.incObj + s.m.Objective.Offset
	}
	return res
}

func (s *search) setIncumbent(x []float64) {
	values := clone(x)
	obj := 0.0
	for i, v := range s.m.Variables {
		if v.Integer {
			values[i] = math.Round(values[i])
		}
		values[i] = math.Max(v.Bounds.Lb, math.Min(v.Bounds.Ub, values[i]))
		obj += s.cost[i] * values[i]
	}
	if s.hasIncumbent() && obj >= s.incObj {
		return
	}
	s.incumbent, s.incObj = values, obj
	if s.params.Verbose {
		log.Infof("model %q: new incumbent %v at node %d", s.m.Name, s.sense*obj+s.m.Objective.Offset, s.nodes)
	} else {
		log.V(2).Infof("model %q: new incumbent %v at node %d", s.m.Name, s.sense*obj+s.m.Objective.Offset, s.nodes)
	}
}

// gapClosed reports whether the incumbent is within the relative gap of the
// best bound of the open nodes.
func (s *search) gapClosed(open []node) bool {
	if s.params.RelativeGap <= 0 || len(open) == 0 {
		return false
	}
	bound := openBound(open, s.incObj)
	return s.incObj-bound <= s.params.RelativeGap*math.Max(1, math.Abs(s.incObj))
}

// openBound returns the smallest bound among the open nodes, or `def` when
// there are none.
func openBound(open []node, def float64) float64 {
	bound := def
	for _, nd := range open {
		bound = math.Min(bound, nd.bound)
	}
	return bound
}

// branchVariable returns the most fractional integral variable of `x`, or
// -1 if `x` is integral.
func (s *search) branchVariable(x []float64) int {
	best, bestDist := -1, integralityTol
	for i, v := range s.m.Variables {
		if !v.Integer {
			continue
		}
		frac := x[i] - math.Floor(x[i])
		if d := math.Min(frac, 1-frac); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// relaxation solves the LP relaxation of the model restricted to
// `lb <= x <= ub` and returns its objective in the minimization sense.
//
// Fixed and locked variables are moved into the row bounds. Each remaining
// constraint becomes a single row scaled to a largest coefficient of one,
// and variable bounds stay on the columns.
func (s *search) relaxation(lb, ub []float64) (float64, []float64, lpStatus, error) {
	n := len(s.m.Variables)
	x := clone(lb)
	col := make([]int, n)
	var vars []int
	for j := range n {
		col[j] = -1
		if ub[j]-lb[j] > fixedTol && !s.locked[j] {
			col[j] = len(vars)
			vars = append(vars, j)
		}
	}

	var rows []lpRow
	for _, c := range s.m.Constraints {
		act, scale := 0.0, 0.0
		rw := lpRow{}
		for i, v := range c.Vars {
			switch {
			case col[v] < 0:
				act += c.Coeffs[i] * lb[v]
			case c.Coeffs[i] != 0:
				rw.cols = append(rw.cols, col[v])
				rw.coeffs = append(rw.coeffs, c.Coeffs[i])
				scale = math.Max(scale, math.Abs(c.Coeffs[i]))
			}
		}
		if len(rw.cols) == 0 {
			if !c.Bounds.Contains(act, feasibilityTol) {
				return 0, nil, lpInfeasible, nil
			}
			continue
		}
		if math.IsInf(c.Bounds.Lb, -1) && math.IsInf(c.Bounds.Ub, 1) {
			continue
		}
		floats.Scale(1/scale, rw.coeffs)
		rw.lb = (c.Bounds.Lb - act) / scale
		rw.ub = (c.Bounds.Ub - act) / scale
		rows = append(rows, rw)
	}

	base := 0.0
	for j := range n {
		if col[j] < 0 {
			base += s.cost[j] * lb[j]
		}
	}
	cost := make([]float64, len(vars))
	lo := make([]float64, len(vars))
	up := make([]float64, len(vars))
	for k, j := range vars {
		cost[k], lo[k], up[k] = s.cost[j], lb[j], ub[j]
	}
	obj, y, st, err := solveLP(rows, cost, lo, up, s.stopped)
	if err != nil || st != lpOptimal {
		return 0, nil, st, err
	}
	for k, j := range vars {
		x[j] = y[k]
	}
	return base + obj, x, lpOptimal, nil
}

func clone(s []float64) []float64 {
	return append([]float64(nil), s...)
}
