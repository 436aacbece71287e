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

package planner

import (
	"fmt"
	"time"

	"github.com/freightplan/intercity/freight/mpmodel"
	"github.com/freightplan/intercity/freight/network"
)

// Status is the outcome of a planning solve.
type Status int

const (
	// Optimal means the plan is optimal within the gap tolerance.
	Optimal Status = iota
	// TimeLimitReached means a plan was found but the time limit stopped
	// the search before optimality was proven.
	TimeLimitReached
	// Infeasible means no plan satisfies the constraints.
	Infeasible
	// NoFeasibleSolution means the time limit stopped the search before any
	// plan was found.
	NoFeasibleSolution
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "OPTIMAL"
	case TimeLimitReached:
		return "TIME_LIMIT_REACHED"
	case Infeasible:
		return "INFEASIBLE"
	case NoFeasibleSolution:
		return "NO_FEASIBLE_SOLUTION"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// nonZeroTol is the value under which a trip count or an unserved quantity
// is reported as zero.
const nonZeroTol = 1e-6

// Solution is the read-only result of Builder.Solve. Value accessors
// return 0 when the solve found no plan.
type Solution struct {
	Status Status
	// Objective is the plan's cost; it is only set when HasSolution.
	Objective float64
	BestBound float64
	SolveTime time.Duration
	Nodes     int

	b   *Builder
	res *mpmodel.Response
}

// HasSolution reports whether the solve found a plan.
func (s *Solution) HasSolution() bool {
	return s.Status == Optimal || s.Status == TimeLimitReached
}

// Gap returns the relative gap between the plan's cost and the best bound.
func (s *Solution) Gap() float64 {
	return s.res.Gap()
}

// Network returns the network the plan was built over.
func (s *Solution) Network() *network.Network {
	return s.b.net
}

// Response returns the raw solver response.
func (s *Solution) Response() *mpmodel.Response {
	return s.res
}

func (s *Solution) value(v mpmodel.Variable) float64 {
	if !s.HasSolution() {
		return 0
	}
	return mpmodel.SolutionValue(s.res, v)
}

// Trips returns the number of vehicles running trip `k`.
func (s *Solution) Trips(k TripKey) float64 {
	v, ok := s.b.trips[k]
	if !ok {
		return 0
	}
	return s.value(v)
}

// Load returns the quantity of an order carried on a trip. Pairs ruled out
// by the order's time window carry nothing.
func (s *Solution) Load(k LoadKey) float64 {
	v, ok := s.b.loads[k]
	if !ok {
		return 0
	}
	return s.value(v)
}

// Unserved returns the quantity of `order` left unserved.
func (s *Solution) Unserved(order int) float64 {
	v, ok := s.b.unserved[order]
	if !ok {
		return 0
	}
	return s.value(v)
}

// TotalUnserved returns the unserved quantity summed over all orders.
func (s *Solution) TotalUnserved() float64 {
	var total float64
	for id := range s.b.unserved {
		total += s.Unserved(id)
	}
	return total
}

// UnservedFraction returns the unserved share of the total demand, or 0
// when there is no demand.
func (s *Solution) UnservedFraction() float64 {
	demand := s.b.net.TotalDemand()
	if demand <= 0 {
		return 0
	}
	return s.TotalUnserved() / demand
}

// ManualUsage returns the number of manual trips over both cities.
func (s *Solution) ManualUsage() float64 {
	var total float64
	for _, k := range s.b.tripKeys {
		if k.City != network.Intercity {
			total += s.Trips(k)
		}
	}
	return total
}

// AutoUsage returns the number of autonomous trips.
func (s *Solution) AutoUsage() float64 {
	var total float64
	for _, k := range s.b.tripKeys {
		if k.City == network.Intercity {
			total += s.Trips(k)
		}
	}
	return total
}

// TripCount is the number of vehicles on one trip.
type TripCount struct {
	Key   TripKey
	Trips float64
}

// NonZeroAutoTrips returns the autonomous trips in use, ordered by arc and
// flow.
func (s *Solution) NonZeroAutoTrips() []TripCount {
	var out []TripCount
	for _, k := range s.b.tripKeys {
		if k.City != network.Intercity {
			continue
		}
		if v := s.Trips(k); v > nonZeroTol {
			out = append(out, TripCount{Key: k, Trips: v})
		}
	}
	return out
}

// UnservedQuantity is the part of an order's demand left unserved.
type UnservedQuantity struct {
	Order    int
	Quantity float64
}

// NonZeroUnserved returns the orders with unserved demand, ordered by id.
func (s *Solution) NonZeroUnserved() []UnservedQuantity {
	var out []UnservedQuantity
	for _, o := range s.b.net.Orders() {
		if v := s.Unserved(o.ID); v > nonZeroTol {
			out = append(out, UnservedQuantity{Order: o.ID, Quantity: v})
		}
	}
	return out
}

// Values returns the value of every variable, keyed by variable name.
func (s *Solution) Values() map[string]float64 {
	if !s.HasSolution() {
		return nil
	}
	m, err := s.b.mb.Model()
	if err != nil {
		return nil
	}
	out := make(map[string]float64, len(m.Variables))
	for i, v := range m.Variables {
		out[v.Name] = s.res.Values[i]
	}
	return out
}
