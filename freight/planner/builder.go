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

// Package planner assembles the capacity-planning model of a network and
// reads the plan back from a solver response.
//
// A Builder goes through DeclareVariables, SetObjective, SetConstraints and
// Solve, in that order and once each:
//
//	b := planner.NewBuilder(net)
//	if err := b.DeclareVariables(); err != nil { ... }
//	if err := b.SetObjective(); err != nil { ... }
//	if err := b.SetConstraints(); err != nil { ... }
//	sol, err := b.Solve(mpsolver.Solver{}, params)
//
// Plan runs all four steps.
package planner

import (
	"fmt"

	log "github.com/golang/glog"

	"github.com/freightplan/intercity/freight/errs"
	"github.com/freightplan/intercity/freight/metrics"
	"github.com/freightplan/intercity/freight/mpmodel"
	"github.com/freightplan/intercity/freight/network"
)

// State is the assembly stage of a Builder.
type State int

const (
	Empty State = iota
	VariablesDeclared
	ObjectiveSet
	ConstraintsSet
	Solved
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case VariablesDeclared:
		return "VariablesDeclared"
	case ObjectiveSet:
		return "ObjectiveSet"
	case ConstraintsSet:
		return "ConstraintsSet"
	case Solved:
		return "Solved"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TripKey identifies a trip-count variable. City is network.Intercity for
// autonomous arcs.
type TripKey struct {
	Arc  network.TimeArc
	City network.City
	Flow network.Flow
}

func (k TripKey) String() string {
	return fmt.Sprintf("%v,%v,%v", k.Arc, k.City, k.Flow)
}

// LoadKey identifies the load of one order on one trip.
type LoadKey struct {
	Arc   network.TimeArc
	City  network.City
	Flow  network.Flow
	Order int
}

func (k LoadKey) String() string {
	return fmt.Sprintf("%v,%v,%v,%d", k.Arc, k.City, k.Flow, k.Order)
}

// Trip returns the key of the trip carrying the load.
func (k LoadKey) Trip() TripKey {
	return TripKey{Arc: k.Arc, City: k.City, Flow: k.Flow}
}

// Solver is the collaborator that solves an assembled model.
type Solver interface {
	Solve(m *mpmodel.Model, params mpmodel.SolveParameters) (*mpmodel.Response, error)
}

// Builder assembles the model of one planning run. It is not safe for
// concurrent use.
type Builder struct {
	net   *network.Network
	state State
	mb    *mpmodel.Builder

	trips    map[TripKey]mpmodel.Variable
	tripKeys []TripKey
	loads    map[LoadKey]mpmodel.Variable
	loadKeys []LoadKey
	// loadsByTrip lists the load variables sharing a trip, in declaration
	// order.
	loadsByTrip map[TripKey][]mpmodel.Variable
	unserved    map[int]mpmodel.Variable
}

// NewBuilder returns an Empty builder over `net`.
func NewBuilder(net *network.Network) *Builder {
	return &Builder{
		net:         net,
		mb:          mpmodel.NewModelBuilder("intercity_capacity"),
		trips:       make(map[TripKey]mpmodel.Variable),
		loads:       make(map[LoadKey]mpmodel.Variable),
		loadsByTrip: make(map[TripKey][]mpmodel.Variable),
		unserved:    make(map[int]mpmodel.Variable),
	}
}

// State returns the current stage.
func (b *Builder) State() State {
	return b.state
}

// Network returns the network the model is built over.
func (b *Builder) Network() *network.Network {
	return b.net
}

func (b *Builder) expect(want State, step string) error {
	if b.state != want {
		return fmt.Errorf("%s called in state %v, want %v: %w", step, b.state, want, errs.ErrInvalidState)
	}
	return nil
}

// DeclareVariables creates the trip, load and unserved-quantity variables.
// Load variables exist only for the order's own flow and for pairs that
// the order's time window allows.
func (b *Builder) DeclareVariables() error {
	if err := b.expect(Empty, "DeclareVariables"); err != nil {
		return err
	}
	cfg := b.net.Config()
	for _, c := range network.Cities {
		fleet := float64(cfg.ManualFleet.Get(int(c)))
		for _, a := range b.net.ManualArcs(c) {
			for _, f := range network.Flows {
				b.addTrip(TripKey{Arc: a, City: c, Flow: f}, "x_manual", fleet)
			}
		}
	}
	autoFleet := float64(cfg.AutoFleet.Total())
	for _, a := range b.net.AutoArcs() {
		for _, f := range network.Flows {
			b.addTrip(TripKey{Arc: a, City: network.Intercity, Flow: f}, "y_auto", autoFleet)
		}
	}

	for _, o := range b.net.Orders() {
		for _, c := range []network.City{o.Flow.Origin(), o.Flow.Destination()} {
			capacity := b.net.Capacity(c)
			for _, a := range b.net.ManualArcs(c) {
				coeff, _ := capacity.Coefficient(a)
				b.addLoad(LoadKey{Arc: a, City: c, Flow: o.Flow, Order: o.ID}, "g_manual", coeff)
			}
		}
		for _, a := range b.net.AutoArcs() {
			b.addLoad(LoadKey{Arc: a, City: network.Intercity, Flow: o.Flow, Order: o.ID}, "g_auto", cfg.AutoCapacity)
		}
		b.unserved[o.ID] = b.mb.NewNumVar(0, o.Quantity).WithName(fmt.Sprintf("z_unserved[%d]", o.ID))
	}

	b.state = VariablesDeclared
	log.V(1).Infof("planner: declared %d trip, %d load and %d unserved variables",
		len(b.tripKeys), len(b.loadKeys), len(b.unserved))
	return nil
}

func (b *Builder) addTrip(k TripKey, prefix string, ub float64) {
	b.trips[k] = b.mb.NewIntVar(0, ub).WithName(fmt.Sprintf("%s[%v]", prefix, k))
	b.tripKeys = append(b.tripKeys, k)
}

func (b *Builder) addLoad(k LoadKey, prefix string, ub float64) {
	if b.net.IsInfeasible(network.InfeasiblePair(k)) {
		return
	}
	v := b.mb.NewIntVar(0, ub).WithName(fmt.Sprintf("%s[%v]", prefix, k))
	b.loads[k] = v
	b.loadKeys = append(b.loadKeys, k)
	b.loadsByTrip[k.Trip()] = append(b.loadsByTrip[k.Trip()], v)
}

// SetObjective sets the objective: penalties for unserved quantities plus
// the operating cost of manual and autonomous trips, charged per
// vehicle-minute.
func (b *Builder) SetObjective() error {
	if err := b.expect(VariablesDeclared, "SetObjective"); err != nil {
		return err
	}
	cfg := b.net.Config()
	var terms []mpmodel.LinearArgument
	var costs []float64
	for _, o := range b.net.Orders() {
		terms = append(terms, b.unserved[o.ID])
		costs = append(costs, o.PenaltyRate)
	}
	for _, k := range b.tripKeys {
		rate := cfg.ManualCost
		if k.City == network.Intercity {
			rate = cfg.AutoCost
		}
		terms = append(terms, b.trips[k])
		costs = append(costs, rate*float64(k.Arc.Duration())*cfg.PeriodMinutes)
	}
	b.mb.Minimize(mpmodel.NewLinearExpr().AddWeightedSum(terms, costs))
	b.state = ObjectiveSet
	return nil
}

// SetConstraints adds the fleet, capacity, transfer-coupling and demand
// constraints. Constraints without variables are left out.
func (b *Builder) SetConstraints() error {
	if err := b.expect(ObjectiveSet, "SetConstraints"); err != nil {
		return err
	}
	b.addFleetConstraints()
	b.addBalanceConstraints()
	b.addCapacityConstraints()
	b.addTransferConstraints()
	b.addDemandConstraints()
	if _, err := b.mb.Model(); err != nil {
		return err
	}
	b.state = ConstraintsSet
	log.V(1).Infof("planner: model has %d variables and %d constraints", b.mb.NumVariables(), b.mb.NumConstraints())
	return nil
}

// addFleetConstraints bounds the vehicles on the road at every period: per
// city for the manual fleets, in total for the autonomous fleet.
func (b *Builder) addFleetConstraints() {
	cfg := b.net.Config()
	for _, c := range network.Cities {
		active := b.net.ManualActive(c)
		for t := range b.net.Horizon() {
			expr := mpmodel.NewLinearExpr()
			for _, a := range active.At(t) {
				for _, f := range network.Flows {
					expr.Add(b.trips[TripKey{Arc: a, City: c, Flow: f}])
				}
			}
			if expr.Len() == 0 {
				continue
			}
			b.mb.AddLessOrEqual(expr, mpmodel.NewConstant(float64(cfg.ManualFleet.Get(int(c))))).
				WithName(fmt.Sprintf("manual_fleet[%v,%d]", c, t))
		}
	}
	active := b.net.AutoActive()
	for t := range b.net.Horizon() {
		expr := mpmodel.NewLinearExpr()
		for _, a := range active.At(t) {
			for _, f := range network.Flows {
				expr.Add(b.trips[TripKey{Arc: a, City: network.Intercity, Flow: f}])
			}
		}
		if expr.Len() == 0 {
			continue
		}
		b.mb.AddLessOrEqual(expr, mpmodel.NewConstant(float64(cfg.AutoFleet.Total()))).
			WithName(fmt.Sprintf("auto_fleet[%d]", t))
	}
}

// addBalanceConstraints keeps the cumulative difference between forward
// and reverse autonomous departures within each city's autonomous fleet.
func (b *Builder) addBalanceConstraints() {
	cfg := b.net.Config()
	arcs := b.net.AutoArcs()
	for t := range b.net.Horizon() {
		diff := mpmodel.NewLinearExpr()
		for _, a := range arcs {
			if a.From > t {
				break
			}
			diff.Add(b.trips[TripKey{Arc: a, City: network.Intercity, Flow: network.Forward}])
			diff.AddTerm(b.trips[TripKey{Arc: a, City: network.Intercity, Flow: network.Reverse}], -1)
		}
		if diff.Len() == 0 {
			continue
		}
		b.mb.AddLessOrEqual(diff, mpmodel.NewConstant(float64(cfg.AutoFleet.City1))).
			WithName(fmt.Sprintf("auto_balance_forward[%d]", t))
		b.mb.AddLessOrEqual(mpmodel.NewLinearExpr().AddTerm(diff, -1), mpmodel.NewConstant(float64(cfg.AutoFleet.City2))).
			WithName(fmt.Sprintf("auto_balance_reverse[%d]", t))
	}
}

// addCapacityConstraints bounds the load of every trip by the trip count
// times the capacity of one vehicle on that trip.
func (b *Builder) addCapacityConstraints() {
	cfg := b.net.Config()
	for _, k := range b.tripKeys {
		loads := b.loadsByTrip[k]
		if len(loads) == 0 {
			continue
		}
		capacity := cfg.AutoCapacity
		if k.City != network.Intercity {
			capacity, _ = b.net.Capacity(k.City).Coefficient(k.Arc)
		}
		expr := mpmodel.NewLinearExpr()
		for _, v := range loads {
			expr.Add(v)
		}
		expr.AddTerm(b.trips[k], -capacity)
		b.mb.AddLessOrEqual(expr, mpmodel.NewConstant(0)).WithName(fmt.Sprintf("capacity[%v]", k))
	}
}

// addTransferConstraints couples the legs at the transfer points: per flow
// and period t, the autonomous departures up to t cannot exceed the
// collections that arrived up to t, and the deliveries departing up to t
// cannot exceed the autonomous arrivals up to t. Freight arriving at t may
// leave at t.
func (b *Builder) addTransferConstraints() {
	for _, f := range network.Flows {
		for t := 0; t <= b.net.Horizon(); t++ {
			outbound := mpmodel.NewLinearExpr()
			inbound := mpmodel.NewLinearExpr()
			outboundTerms, inboundTerms := 0, 0
			for _, k := range b.loadKeys {
				if k.Flow != f {
					continue
				}
				v := b.loads[k]
				switch k.City {
				case network.Intercity:
					if k.Arc.From <= t {
						outbound.Add(v)
						outboundTerms++
					}
					if k.Arc.To <= t {
						inbound.AddTerm(v, -1)
					}
				case f.Origin():
					if k.Arc.To <= t {
						outbound.AddTerm(v, -1)
					}
				default:
					if k.Arc.From <= t {
						inbound.Add(v)
						inboundTerms++
					}
				}
			}
			if outboundTerms > 0 {
				b.mb.AddLessOrEqual(outbound, mpmodel.NewConstant(0)).WithName(fmt.Sprintf("transfer_origin[%v,%d]", f, t))
			}
			if inboundTerms > 0 {
				b.mb.AddLessOrEqual(inbound, mpmodel.NewConstant(0)).WithName(fmt.Sprintf("transfer_destination[%v,%d]", f, t))
			}
		}
	}
}

// leg is one of the three stages an order travels through.
type leg int

const (
	collection leg = iota
	linehaul
	delivery
)

func (l leg) String() string {
	return [...]string{"collection", "linehaul", "delivery"}[l]
}

func legOf(k LoadKey) leg {
	switch k.City {
	case network.Intercity:
		return linehaul
	case k.Flow.Origin():
		return collection
	}
	return delivery
}

// addDemandConstraints balances every leg of every order: the load carried
// on the leg plus the unserved quantity equals the demand. A leg without
// feasible arcs forces the whole demand to be unserved.
func (b *Builder) addDemandConstraints() {
	byLeg := make(map[int]*[3][]mpmodel.Variable)
	for _, k := range b.loadKeys {
		legs, ok := byLeg[k.Order]
		if !ok {
			legs = new([3][]mpmodel.Variable)
			byLeg[k.Order] = legs
		}
		legs[legOf(k)] = append(legs[legOf(k)], b.loads[k])
	}
	for _, o := range b.net.Orders() {
		legs := byLeg[o.ID]
		if legs == nil {
			legs = new([3][]mpmodel.Variable)
		}
		for l, vars := range legs {
			expr := mpmodel.NewLinearExpr().Add(b.unserved[o.ID])
			for _, v := range vars {
				expr.Add(v)
			}
			b.mb.AddEquality(expr, mpmodel.NewConstant(o.Quantity)).
				WithName(fmt.Sprintf("demand[%d,%v]", o.ID, leg(l)))
		}
	}
}

// Model returns the assembled model. It is available once the constraints
// are set.
func (b *Builder) Model() (*mpmodel.Model, error) {
	if b.state != ConstraintsSet && b.state != Solved {
		return nil, fmt.Errorf("Model called in state %v: %w", b.state, errs.ErrInvalidState)
	}
	return b.mb.Model()
}

// Solve hands the model to `solver` and returns the plan. Running out of
// time or finding no plan are reported through Solution.Status, not as
// errors.
func (b *Builder) Solve(solver Solver, params mpmodel.SolveParameters) (*Solution, error) {
	if err := b.expect(ConstraintsSet, "Solve"); err != nil {
		return nil, err
	}
	m, err := b.mb.Model()
	if err != nil {
		return nil, err
	}
	metrics.ObserveModel(len(m.Variables), m.NumIntegers(), len(m.Constraints))

	res, err := solver.Solve(m, params)
	if err != nil {
		return nil, fmt.Errorf("solving %q failed: %w", m.Name, err)
	}
	sol := &Solution{
		BestBound: res.BestBound,
		SolveTime: res.WallTime,
		Nodes:     res.Nodes,
		b:         b,
		res:       res,
	}
	switch res.Status {
	case mpmodel.StatusOptimal:
		sol.Status = Optimal
	case mpmodel.StatusFeasible:
		sol.Status = TimeLimitReached
	case mpmodel.StatusInfeasible:
		sol.Status = Infeasible
	case mpmodel.StatusNotSolved:
		sol.Status = NoFeasibleSolution
	default:
		return nil, fmt.Errorf("solver returned status %v for %q: %w", res.Status, m.Name, errs.ErrNumerical)
	}
	if sol.HasSolution() {
		sol.Objective = res.ObjectiveValue
	}
	b.state = Solved

	metrics.ObserveSolve(sol.Status.String(), res.WallTime, res.Nodes)
	switch sol.Status {
	case Optimal:
		metrics.UnservedFraction.Observe(sol.UnservedFraction())
		log.Infof("optimal plan found: cost %.2f", sol.Objective)
	case TimeLimitReached:
		metrics.UnservedFraction.Observe(sol.UnservedFraction())
		log.Warningf("time limit (%v) reached: best cost %.2f, gap %.2f%%", params.TimeLimit, sol.Objective, 100*sol.Gap())
	case Infeasible:
		log.Warningf("model %q is infeasible", m.Name)
	case NoFeasibleSolution:
		log.Warningf("no feasible plan found within %v", params.TimeLimit)
	}
	return sol, nil
}

// Plan builds the model of `net` and solves it.
func Plan(net *network.Network, solver Solver, params mpmodel.SolveParameters) (*Solution, error) {
	b := NewBuilder(net)
	for _, step := range []func() error{b.DeclareVariables, b.SetObjective, b.SetConstraints} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.Solve(solver, params)
}
