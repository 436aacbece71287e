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

package mpsolver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// pivotTol is the smallest tableau entry accepted as a pivot.
	pivotTol = 1e-9
	// costTol is the reduced cost under which a column cannot improve.
	costTol = 1e-9
	// phaseOneTol is the artificial infeasibility accepted at the end of
	// phase one.
	phaseOneTol = 1e-7
	// stopCheckEvery is the number of iterations between two checks of the
	// time limit and interrupt.
	stopCheckEvery = 64
	// refreshEvery is the number of pivots between two recomputations of
	// the basic values from the tableau.
	refreshEvery = 32
	// blandAfter is the number of consecutive degenerate steps after which
	// pricing switches to Bland's rule.
	blandAfter = 50
)

var errIterationLimit = errors.New("simplex iteration limit reached")

// tableau is a bounded-variable simplex tableau for
//
//	min cost·x  s.t.  A x = 0,  lo <= x <= up
//
// where every row of A holds the row's slack column. The basis starts as
// the identity, so the tableau never needs a factorization.
type tableau struct {
	m, n   int
	t      *mat.Dense
	d      []float64
	lo, up []float64
	x      []float64
	basis  []int
	basic  []bool
	stop   func() bool
}

// optimize minimizes `cost` from the current basic feasible solution.
func (tb *tableau) optimize(cost []float64) (lpStatus, error) {
	tb.d = clone(cost)
	for i, b := range tb.basis {
		if cost[b] != 0 {
			floats.AddScaled(tb.d, -cost[b], tb.t.RawRowView(i))
		}
	}
	col := make([]float64, tb.m)
	degenerate, pivots := 0, 0
	bland := false
	maxIter := 50*(tb.m+tb.n) + 1000
	for iter := 0; iter < maxIter; iter++ {
		if iter > 0 && iter%stopCheckEvery == 0 && tb.stop != nil && tb.stop() {
			return lpStopped, nil
		}
		j, dir := tb.price(bland)
		if j < 0 {
			return lpOptimal, nil
		}
		mat.Col(col, j, tb.t)
		step, leave := tb.ratio(col, j, dir, bland)
		if math.IsInf(step, 1) {
			return lpUnbounded, nil
		}

		tb.x[j] += dir * step
		for i, b := range tb.basis {
			tb.x[b] -= dir * step * col[i]
		}
		if step <= 1e-12 {
			degenerate++
			if degenerate > blandAfter {
				bland = true
			}
		} else {
			degenerate = 0
		}
		if leave < 0 {
			// Bound flip.
			continue
		}

		out := tb.basis[leave]
		if dir*col[leave] > 0 {
			tb.x[out] = tb.lo[out]
		} else {
			tb.x[out] = tb.up[out]
		}
		tb.pivot(leave, j)
		pivots++
		if pivots%refreshEvery == 0 {
			tb.refresh()
		}
	}
	return lpOptimal, errIterationLimit
}

// price returns the entering column and its direction (+1 to increase, -1
// to decrease), or -1 at optimality.
func (tb *tableau) price(bland bool) (int, float64) {
	best, dir, bestScore := -1, 0.0, costTol
	for j := range tb.n {
		if tb.basic[j] || tb.up[j]-tb.lo[j] <= fixedTol {
			continue
		}
		var score, sign float64
		switch {
		case tb.d[j] < -costTol && tb.x[j] < tb.up[j]:
			score, sign = -tb.d[j], 1
		case tb.d[j] > costTol && tb.x[j] > tb.lo[j]:
			score, sign = tb.d[j], -1
		default:
			continue
		}
		if bland {
			return j, sign
		}
		if score > bestScore {
			best, dir, bestScore = j, sign, score
		}
	}
	return best, dir
}

// ratio returns the step length of column j moving in direction dir, and
// the row that leaves the basis, or -1 when j reaches its opposite bound
// first.
func (tb *tableau) ratio(col []float64, j int, dir float64, bland bool) (float64, int) {
	step, leave := tb.up[j]-tb.lo[j], -1
	for i, b := range tb.basis {
		alpha := dir * col[i]
		var lim float64
		switch {
		case alpha > pivotTol && !math.IsInf(tb.lo[b], -1):
			lim = (tb.x[b] - tb.lo[b]) / alpha
		case alpha < -pivotTol && !math.IsInf(tb.up[b], 1):
			lim = (tb.up[b] - tb.x[b]) / -alpha
		default:
			continue
		}
		lim = math.Max(lim, 0)
		switch {
		case lim < step-1e-12:
		case lim <= step+1e-12 && leave >= 0:
			// Ties go to the smallest basic column under Bland's rule and
			// to the largest pivot otherwise.
			if bland && b >= tb.basis[leave] {
				continue
			}
			if !bland && math.Abs(col[i]) <= math.Abs(col[leave]) {
				continue
			}
		default:
			continue
		}
		step, leave = lim, i
	}
	return step, leave
}

// pivot brings column j into the basis in row r.
func (tb *tableau) pivot(r, j int) {
	row := tb.t.RawRowView(r)
	floats.Scale(1/row[j], row)
	row[j] = 1
	for i := range tb.m {
		if i == r {
			continue
		}
		other := tb.t.RawRowView(i)
		if f := other[j]; f != 0 {
			floats.AddScaled(other, -f, row)
			other[j] = 0
		}
	}
	if f := tb.d[j]; f != 0 {
		floats.AddScaled(tb.d, -f, row)
		tb.d[j] = 0
	}
	tb.basic[tb.basis[r]] = false
	tb.basis[r] = j
	tb.basic[j] = true
}

// refresh recomputes the basic values from the nonbasic ones. Every row of
// the tableau sums to zero, so x_B = -N x_N.
func (tb *tableau) refresh() {
	for i, b := range tb.basis {
		row := tb.t.RawRowView(i)
		v := 0.0
		for j, a := range row {
			if a != 0 && !tb.basic[j] {
				v -= a * tb.x[j]
			}
		}
		tb.x[b] = v
	}
}

// lpRow is the restriction of a constraint to the free columns of a node:
// lb <= Σ coeffs·x[cols] <= ub.
type lpRow struct {
	cols   []int
	coeffs []float64
	lb, ub float64
}

// solveLP minimizes cost·x over the rows and lo <= x <= up. Every lower
// bound must be finite.
func solveLP(rows []lpRow, cost, lo, up []float64, stop func() bool) (float64, []float64, lpStatus, error) {
	nx := len(cost)
	x := clone(lo)
	if len(rows) == 0 {
		obj := 0.0
		for j := range nx {
			if cost[j] < 0 {
				if math.IsInf(up[j], 1) {
					return 0, nil, lpUnbounded, nil
				}
				x[j] = up[j]
			}
			obj += cost[j] * x[j]
		}
		return obj, x, lpOptimal, nil
	}

	m := len(rows)
	act := make([]float64, m)
	slackBasic := make([]bool, m)
	nArt := 0
	for r, rw := range rows {
		for i, c := range rw.cols {
			act[r] += rw.coeffs[i] * lo[c]
		}
		slackBasic[r] = act[r] >= rw.lb-feasibilityTol && act[r] <= rw.ub+feasibilityTol
		if !slackBasic[r] {
			nArt++
		}
	}

	n := nx + m + nArt
	tb := &tableau{
		m:     m,
		n:     n,
		t:     mat.NewDense(m, n, nil),
		lo:    make([]float64, n),
		up:    make([]float64, n),
		x:     make([]float64, n),
		basis: make([]int, m),
		basic: make([]bool, n),
		stop:  stop,
	}
	copy(tb.lo, lo)
	copy(tb.up, up)
	copy(tb.x, lo)
	art := nx + m
	for r, rw := range rows {
		s := nx + r
		tb.lo[s], tb.up[s] = rw.lb, rw.ub
		row := tb.t.RawRowView(r)
		if slackBasic[r] {
			// -a x + s = 0
			for i, c := range rw.cols {
				row[c] -= rw.coeffs[i]
			}
			row[s] = 1
			tb.x[s] = act[r]
			tb.basis[r] = s
			tb.basic[s] = true
			continue
		}
		// sign·(a x - s) + a' = 0 with a' = |a x - s| at the start.
		tb.x[s] = rw.ub
		if act[r] < rw.lb {
			tb.x[s] = rw.lb
		}
		sign := 1.0
		if act[r]-tb.x[s] > 0 {
			sign = -1
		}
		for i, c := range rw.cols {
			row[c] += sign * rw.coeffs[i]
		}
		row[s] = -sign
		row[art] = 1
		tb.lo[art], tb.up[art] = 0, math.Inf(1)
		tb.x[art] = math.Abs(act[r] - tb.x[s])
		tb.basis[r] = art
		tb.basic[art] = true
		art++
	}

	if nArt > 0 {
		phaseOne := make([]float64, n)
		for j := nx + m; j < n; j++ {
			phaseOne[j] = 1
		}
		st, err := tb.optimize(phaseOne)
		if err != nil || st == lpStopped {
			return 0, nil, st, err
		}
		tb.refresh()
		infeas := 0.0
		for j := nx + m; j < n; j++ {
			infeas += tb.x[j]
		}
		if infeas > phaseOneTol {
			return 0, nil, lpInfeasible, nil
		}
		for j := nx + m; j < n; j++ {
			tb.up[j] = 0
		}
	}

	phaseTwo := make([]float64, n)
	copy(phaseTwo, cost)
	st, err := tb.optimize(phaseTwo)
	if err != nil || st != lpOptimal {
		return 0, nil, st, err
	}
	tb.refresh()
	obj := 0.0
	for j := range nx {
		x[j] = math.Max(lo[j], math.Min(up[j], tb.x[j]))
		obj += cost[j] * x[j]
	}
	return obj, x, lpOptimal, nil
}
