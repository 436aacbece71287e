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

package network

import (
	"cmp"
	"math"
	"slices"
)

// InfeasiblePair marks that routing order Order over Arc in City with Flow
// would break the order's time window. City is Intercity for autonomous
// arcs.
type InfeasiblePair struct {
	Arc   TimeArc
	City  City
	Flow  Flow
	Order int
}

// InfeasibleSet is an immutable set of InfeasiblePair.
type InfeasibleSet struct {
	pairs map[InfeasiblePair]struct{}
}

// Contains reports whether p is in the set.
func (s InfeasibleSet) Contains(p InfeasiblePair) bool {
	_, ok := s.pairs[p]
	return ok
}

// Len returns the number of pairs.
func (s InfeasibleSet) Len() int {
	return len(s.pairs)
}

// Pairs returns the pairs ordered by order, city, departure and arrival.
func (s InfeasibleSet) Pairs() []InfeasiblePair {
	out := make([]InfeasiblePair, 0, len(s.pairs))
	for p := range s.pairs {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b InfeasiblePair) int {
		return cmp.Or(
			cmp.Compare(a.Order, b.Order),
			cmp.Compare(a.City, b.City),
			cmp.Compare(a.Arc.From, b.Arc.From),
			cmp.Compare(a.Arc.To, b.Arc.To),
		)
	})
	return out
}

// FilterTimeWindows returns the (arc, order) pairs that no feasible plan can
// use. An order with window [s, e] travelling from city o to city d is
// collected by a manual arc in o, carried by an autonomous arc and delivered
// by a manual arc in d. With m_k the shortest manual trip in city k:
//
//	collection (i, j): infeasible if i < s or j + travel + m_d > e
//	linehaul   (i, j): infeasible if i < s + m_o or j + m_d > e
//	delivery   (i, j): infeasible if i < s + m_o + travel or j > e
//
// Freight arriving at the transfer point at period t may leave it at t. A
// window shorter than m_o + travel + m_d rules out every arc.
func FilterTimeWindows(manual map[City][]TimeArc, auto []TimeArc, travel int, orders []Order) InfeasibleSet {
	pairs := make(map[InfeasiblePair]struct{})
	shortest := make(map[City]int, len(Cities))
	for _, c := range Cities {
		shortest[c] = minDuration(manual[c])
	}
	mark := func(arcs []TimeArc, city City, o Order, infeasible func(TimeArc) bool) {
		for _, a := range arcs {
			if infeasible(a) {
				pairs[InfeasiblePair{Arc: a, City: city, Flow: o.Flow, Order: o.ID}] = struct{}{}
			}
		}
	}
	for _, o := range orders {
		orig, dest := o.Flow.Origin(), o.Flow.Destination()
		s, e := o.EarliestStart, o.LatestCompletion
		mo, md := shortest[orig], shortest[dest]
		mark(manual[orig], orig, o, func(a TimeArc) bool {
			return a.From < s || exceeds(a.To, travel, md, e)
		})
		mark(auto, Intercity, o, func(a TimeArc) bool {
			return mo == math.MaxInt || a.From < s+mo || exceeds(a.To, md, 0, e)
		})
		mark(manual[dest], dest, o, func(a TimeArc) bool {
			return mo == math.MaxInt || a.From < s+mo+travel || a.To > e
		})
	}
	return InfeasibleSet{pairs: pairs}
}

// exceeds reports whether t + d1 + d2 > limit without overflowing on the
// math.MaxInt "no arcs" sentinel.
func exceeds(t, d1, d2, limit int) bool {
	if d1 == math.MaxInt || d2 == math.MaxInt {
		return true
	}
	return t+d1+d2 > limit
}

// minDuration returns the shortest arc duration, or math.MaxInt for no arcs.
func minDuration(arcs []TimeArc) int {
	m := math.MaxInt
	for _, a := range arcs {
		m = min(m, a.Duration())
	}
	return m
}
