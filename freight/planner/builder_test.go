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
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/freightplan/intercity/freight/config"
	"github.com/freightplan/intercity/freight/errs"
	"github.com/freightplan/intercity/freight/metrics"
	"github.com/freightplan/intercity/freight/mpmodel"
	"github.com/freightplan/intercity/freight/mpsolver"
	"github.com/freightplan/intercity/freight/network"
	"github.com/freightplan/intercity/freight/orders"
)

const tol = 1e-6

func smallConfig() config.Config {
	cfg := config.Default()
	cfg.Horizon = 6
	cfg.TravelPeriods = 2
	return cfg
}

func forwardOrder(id int, quantity float64, s, e int) network.Order {
	return network.Order{ID: id, Flow: network.Forward, Quantity: quantity, EarliestStart: s, LatestCompletion: e, PenaltyRate: 500}
}

func buildNetwork(t *testing.T, cfg config.Config, orders ...network.Order) *network.Network {
	t.Helper()
	net, err := network.Build(cfg, orders)
	if err != nil {
		t.Fatalf("network.Build() returned with unexpected error %v", err)
	}
	return net
}

func TestBuilder_StateMachine(t *testing.T) {
	net := buildNetwork(t, smallConfig(), forwardOrder(1, 100, 0, 6))
	b := NewBuilder(net)
	solver := mpsolver.Solver{}

	if err := b.SetObjective(); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("SetObjective() before DeclareVariables = %v, want %v", err, errs.ErrInvalidState)
	}
	if err := b.SetConstraints(); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("SetConstraints() before DeclareVariables = %v, want %v", err, errs.ErrInvalidState)
	}
	if _, err := b.Solve(solver, mpmodel.SolveParameters{}); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("Solve() before DeclareVariables = %v, want %v", err, errs.ErrInvalidState)
	}
	if _, err := b.Model(); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("Model() before SetConstraints = %v, want %v", err, errs.ErrInvalidState)
	}

	if err := b.DeclareVariables(); err != nil {
		t.Fatalf("DeclareVariables() returned with unexpected error %v", err)
	}
	if err := b.DeclareVariables(); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("DeclareVariables() twice = %v, want %v", err, errs.ErrInvalidState)
	}
	if err := b.SetConstraints(); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("SetConstraints() before SetObjective = %v, want %v", err, errs.ErrInvalidState)
	}
	if err := b.SetObjective(); err != nil {
		t.Fatalf("SetObjective() returned with unexpected error %v", err)
	}
	if _, err := b.Solve(solver, mpmodel.SolveParameters{}); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("Solve() before SetConstraints = %v, want %v", err, errs.ErrInvalidState)
	}
	if err := b.SetConstraints(); err != nil {
		t.Fatalf("SetConstraints() returned with unexpected error %v", err)
	}
	if got, want := b.State(), ConstraintsSet; got != want {
		t.Errorf("State() = %v, want %v", got, want)
	}
	if _, err := b.Model(); err != nil {
		t.Errorf("Model() returned with unexpected error %v", err)
	}
	if _, err := b.Solve(solver, mpmodel.SolveParameters{}); err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	if got, want := b.State(), Solved; got != want {
		t.Errorf("State() = %v, want %v", got, want)
	}
	if _, err := b.Solve(solver, mpmodel.SolveParameters{}); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("Solve() twice = %v, want %v", err, errs.ErrInvalidState)
	}
}

func TestBuilder_NoLoadVariablesOnInfeasiblePairs(t *testing.T) {
	net := buildNetwork(t, smallConfig(), forwardOrder(1, 100, 0, 4), forwardOrder(2, 10, 4, 5))
	b := NewBuilder(net)
	if err := b.DeclareVariables(); err != nil {
		t.Fatalf("DeclareVariables() returned with unexpected error %v", err)
	}
	if net.Infeasible().Len() == 0 {
		t.Fatalf("Infeasible().Len() = 0, want pairs")
	}
	for _, p := range net.Infeasible().Pairs() {
		if _, ok := b.loads[LoadKey(p)]; ok {
			t.Errorf("load variable declared for infeasible pair %+v", p)
		}
	}
	for k := range b.loads {
		o, _ := net.Order(k.Order)
		if k.Flow != o.Flow {
			t.Errorf("load variable %v declared for flow %v of a %v order", k, k.Flow, o.Flow)
		}
	}
}

func TestBuilder_ModelSize(t *testing.T) {
	net := buildNetwork(t, smallConfig(), forwardOrder(1, 100, 0, 6))
	b := NewBuilder(net)
	for _, step := range []func() error{b.DeclareVariables, b.SetObjective, b.SetConstraints} {
		if err := step(); err != nil {
			t.Fatalf("step returned with unexpected error %v", err)
		}
	}
	m, err := b.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	// 6 manual arcs per city and 5 autonomous arcs, each in both flows.
	wantTrips := (6+6+5)*2
	// Collection (0,1)..(2,3), linehaul (1,3)..(3,5), delivery (3,4)..(5,6).
	wantLoads := 9
	if got, want := len(m.Variables), wantTrips+wantLoads+1; got != want {
		t.Errorf("len(Variables) = %v, want %v", got, want)
	}
	if got, want := m.NumIntegers(), wantTrips+wantLoads; got != want {
		t.Errorf("NumIntegers() = %v, want %v", got, want)
	}
	names := make(map[string]bool)
	for _, c := range m.Constraints {
		names[c.Name] = true
	}
	for _, name := range []string{
		"manual_fleet[city1,0]",
		"auto_fleet[5]",
		"auto_balance_forward[0]",
		"auto_balance_reverse[4]",
		"capacity[(1,3),intercity,+]",
		"transfer_origin[+,6]",
		"transfer_destination[+,3]",
		"demand[1,collection]",
		"demand[1,linehaul]",
		"demand[1,delivery]",
	} {
		if !names[name] {
			t.Errorf("constraint %q missing from the model", name)
		}
	}
	if names["transfer_origin[-,6]"] {
		t.Errorf("constraint %q declared without reverse orders", "transfer_origin[-,6]")
	}
}

func TestPlan_Scenarios(t *testing.T) {
	testCases := []struct {
		name          string
		cfg           func(*config.Config)
		orders        []network.Order
		wantUnserved  float64
		wantObjective float64
	}{
		{
			name:          "AmpleFleet",
			orders:        []network.Order{forwardOrder(1, 100, 0, 6)},
			wantUnserved:  0,
			wantObjective: 1200 + 1800 + 1200,
		},
		{
			name:          "WindowShorterThanTransit",
			orders:        []network.Order{forwardOrder(1, 100, 4, 5)},
			wantUnserved:  100,
			wantObjective: 500 * 100,
		},
		{
			name:          "NoAutonomousFleet",
			cfg:           func(c *config.Config) { c.AutoFleet = config.PerCity{} },
			orders:        []network.Order{forwardOrder(1, 100, 0, 6)},
			wantUnserved:  100,
			wantObjective: 500 * 100,
		},
		{
			// Collected at 1 and put on the linehaul leaving at 1.
			name:          "TransferAtArrivalPeriod",
			orders:        []network.Order{forwardOrder(1, 100, 0, 4)},
			wantUnserved:  0,
			wantObjective: 1200 + 1800 + 1200,
		},
		{
			name: "BothFlows",
			orders: []network.Order{
				forwardOrder(1, 100, 0, 6),
				{ID: 2, Flow: network.Reverse, Quantity: 50, EarliestStart: 0, LatestCompletion: 6, PenaltyRate: 500},
			},
			wantUnserved:  0,
			wantObjective: 2 * (1200 + 1800 + 1200),
		},
		{
			name: "PenaltyBelowCost",
			orders: []network.Order{
				{ID: 1, Flow: network.Forward, Quantity: 100, EarliestStart: 0, LatestCompletion: 6, PenaltyRate: 1},
			},
			wantUnserved:  100,
			wantObjective: 100,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			cfg := smallConfig()
			if test.cfg != nil {
				test.cfg(&cfg)
			}
			net := buildNetwork(t, cfg, test.orders...)
			sol, err := Plan(net, mpsolver.Solver{}, mpmodel.SolveParameters{TimeLimit: time.Minute})
			if err != nil {
				t.Fatalf("Plan() returned with unexpected error %v", err)
			}
			if got, want := sol.Status, Optimal; got != want {
				t.Fatalf("Plan() returned status = %v, want %v", got, want)
			}
			if got := sol.TotalUnserved(); math.Abs(got-test.wantUnserved) > tol {
				t.Errorf("TotalUnserved() = %v, want %v", got, test.wantUnserved)
			}
			if got := sol.Objective; math.Abs(got-test.wantObjective) > tol {
				t.Errorf("Objective = %v, want %v", got, test.wantObjective)
			}
			checkPlan(t, net, sol)
		})
	}
}

func TestPlan_TransferPath(t *testing.T) {
	net := buildNetwork(t, smallConfig(), forwardOrder(1, 100, 0, 4))
	sol, err := Plan(net, mpsolver.Solver{}, mpmodel.SolveParameters{})
	if err != nil {
		t.Fatalf("Plan() returned with unexpected error %v", err)
	}
	for _, k := range []LoadKey{
		{Arc: network.TimeArc{From: 0, To: 1}, City: network.City1, Flow: network.Forward, Order: 1},
		{Arc: network.TimeArc{From: 1, To: 3}, City: network.Intercity, Flow: network.Forward, Order: 1},
		{Arc: network.TimeArc{From: 3, To: 4}, City: network.City2, Flow: network.Forward, Order: 1},
	} {
		if got := sol.Load(k); math.Abs(got-100) > tol {
			t.Errorf("Load(%v) = %v, want 100", k, got)
		}
	}
	if got, want := sol.AutoUsage(), 1.0; got != want {
		t.Errorf("AutoUsage() = %v, want %v", got, want)
	}
	if got, want := sol.ManualUsage(), 2.0; got != want {
		t.Errorf("ManualUsage() = %v, want %v", got, want)
	}
	trips := sol.NonZeroAutoTrips()
	if len(trips) != 1 || trips[0].Key.Arc != (network.TimeArc{From: 1, To: 3}) {
		t.Errorf("NonZeroAutoTrips() = %+v, want one trip on (1,3)", trips)
	}
	if got := sol.NonZeroUnserved(); len(got) != 0 {
		t.Errorf("NonZeroUnserved() = %+v, want none", got)
	}
	if got := sol.Values()["z_unserved[1]"]; math.Abs(got) > tol {
		t.Errorf("Values()[z_unserved[1]] = %v, want 0", got)
	}
}

func TestPlan_DefaultConfig(t *testing.T) {
	cfg := config.Default()
	orders := []network.Order{
		forwardOrder(1, 120, 2, 9),
		{ID: 2, Flow: network.Reverse, Quantity: 40, EarliestStart: 5, LatestCompletion: 11, PenaltyRate: 500},
		forwardOrder(3, 30, 10, 12),
	}
	net := buildNetwork(t, cfg, orders...)
	sol, err := Plan(net, mpsolver.Solver{}, mpmodel.SolveParameters{TimeLimit: time.Minute})
	if err != nil {
		t.Fatalf("Plan() returned with unexpected error %v", err)
	}
	if !sol.HasSolution() {
		t.Fatalf("Plan() returned status = %v, want a solution", sol.Status)
	}
	// Order 3 cannot make it: 10 + 1 + 4 + 1 > 12.
	if got := sol.Unserved(3); math.Abs(got-30) > tol {
		t.Errorf("Unserved(3) = %v, want 30", got)
	}
	if got := sol.Unserved(1) + sol.Unserved(2); got > tol {
		t.Errorf("Unserved(1) + Unserved(2) = %v, want 0", got)
	}
	if got, want := sol.UnservedFraction(), 30.0/190; math.Abs(got-want) > tol {
		t.Errorf("UnservedFraction() = %v, want %v", got, want)
	}
	checkPlan(t, net, sol)
}

// planWithin runs Plan and fails the test if it does not return within
// `watchdog`.
func planWithin(t *testing.T, net *network.Network, params mpmodel.SolveParameters, watchdog time.Duration) *Solution {
	t.Helper()
	type result struct {
		sol *Solution
		err error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		sol, err := Plan(net, mpsolver.Solver{}, params)
		done <- result{sol, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Plan() returned with unexpected error %v", r.err)
		}
		return r.sol
	case <-time.After(watchdog):
		t.Fatalf("Plan() with TimeLimit=%v still running after %v", params.TimeLimit, time.Since(start))
	}
	return nil
}

func TestPlan_RespectsTimeLimit(t *testing.T) {
	net := buildNetwork(t, smallConfig(),
		forwardOrder(1, 100, 0, 6),
		network.Order{ID: 2, Flow: network.Reverse, Quantity: 50, EarliestStart: 0, LatestCompletion: 6, PenaltyRate: 500},
	)
	sol := planWithin(t, net, mpmodel.SolveParameters{TimeLimit: 2 * time.Second}, 30*time.Second)
	if !sol.HasSolution() {
		t.Fatalf("Plan() returned status = %v, want a solution", sol.Status)
	}
	checkPlan(t, net, sol)
}

func TestPlan_GeneratedOrders(t *testing.T) {
	cfg := config.Default()
	generated, err := orders.Generate(cfg, 20, 42)
	if err != nil {
		t.Fatalf("orders.Generate() returned with unexpected error %v", err)
	}
	net := buildNetwork(t, cfg, generated...)
	sol := planWithin(t, net, mpmodel.SolveParameters{TimeLimit: 10 * time.Second, RelativeGap: 0.01}, time.Minute)
	switch sol.Status {
	case Optimal, TimeLimitReached:
		checkPlan(t, net, sol)
		if got := sol.UnservedFraction(); got < 0 || got > 1 {
			t.Errorf("UnservedFraction() = %v, want a value in [0, 1]", got)
		}
	case NoFeasibleSolution:
	default:
		t.Errorf("Plan() returned status = %v, want OPTIMAL, TIME_LIMIT_REACHED or NO_FEASIBLE_SOLUTION", sol.Status)
	}
}

// loadKeys enumerates every load key of the network's orders, feasible or
// not.
func loadKeys(net *network.Network) []LoadKey {
	var keys []LoadKey
	for _, o := range net.Orders() {
		for _, c := range []network.City{o.Flow.Origin(), o.Flow.Destination()} {
			for _, a := range net.ManualArcs(c) {
				keys = append(keys, LoadKey{Arc: a, City: c, Flow: o.Flow, Order: o.ID})
			}
		}
		for _, a := range net.AutoArcs() {
			keys = append(keys, LoadKey{Arc: a, City: network.Intercity, Flow: o.Flow, Order: o.ID})
		}
	}
	return keys
}

// checkPlan asserts the invariants every plan must satisfy.
func checkPlan(t *testing.T, net *network.Network, sol *Solution) {
	t.Helper()
	cfg := net.Config()

	legs := make(map[int]*[3]float64)
	for _, o := range net.Orders() {
		legs[o.ID] = new([3]float64)
	}
	for _, k := range loadKeys(net) {
		load := sol.Load(k)
		if net.IsInfeasible(network.InfeasiblePair(k)) && load != 0 {
			t.Errorf("Load(%v) = %v on an infeasible pair, want 0", k, load)
		}
		legs[k.Order][legOf(k)] += load
	}
	for _, o := range net.Orders() {
		for l, load := range legs[o.ID] {
			if got := load + sol.Unserved(o.ID); math.Abs(got-o.Quantity) > tol {
				t.Errorf("order %d %v: load + unserved = %v, want %v", o.ID, leg(l), got, o.Quantity)
			}
		}
	}

	for _, c := range network.Cities {
		active := net.ManualActive(c)
		for p := range net.Horizon() {
			var used float64
			for _, a := range active.At(p) {
				for _, f := range network.Flows {
					used += sol.Trips(TripKey{Arc: a, City: c, Flow: f})
				}
			}
			if limit := float64(cfg.ManualFleet.Get(int(c))); used > limit+tol {
				t.Errorf("%v period %d: %v manual vehicles in use, want at most %v", c, p, used, limit)
			}
		}
	}
	for p := range net.Horizon() {
		var used float64
		for _, a := range net.AutoActive().At(p) {
			for _, f := range network.Flows {
				used += sol.Trips(TripKey{Arc: a, City: network.Intercity, Flow: f})
			}
		}
		if limit := float64(cfg.AutoFleet.Total()); used > limit+tol {
			t.Errorf("period %d: %v autonomous vehicles in use, want at most %v", p, used, limit)
		}
	}

	carried := make(map[TripKey]float64)
	for _, k := range loadKeys(net) {
		carried[k.Trip()] += sol.Load(k)
	}
	for k, load := range carried {
		capacity := cfg.AutoCapacity
		if k.City != network.Intercity {
			capacity, _ = net.Capacity(k.City).Coefficient(k.Arc)
		}
		if limit := capacity * sol.Trips(k); load > limit+tol {
			t.Errorf("trip %v carries %v, want at most %v", k, load, limit)
		}
	}
}

type fakeSolver struct {
	status mpmodel.Status
	err    error
}

func (f fakeSolver) Solve(m *mpmodel.Model, _ mpmodel.SolveParameters) (*mpmodel.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := &mpmodel.Response{Status: f.status, ObjectiveValue: 42, BestBound: 21}
	if f.status.HasSolution() {
		res.Values = make([]float64, len(m.Variables))
	}
	return res, nil
}

func TestBuilder_SolveStatus(t *testing.T) {
	testCases := []struct {
		status        mpmodel.Status
		want          Status
		wantSolution  bool
		wantObjective float64
	}{
		{status: mpmodel.StatusOptimal, want: Optimal, wantSolution: true, wantObjective: 42},
		{status: mpmodel.StatusFeasible, want: TimeLimitReached, wantSolution: true, wantObjective: 42},
		{status: mpmodel.StatusInfeasible, want: Infeasible},
		{status: mpmodel.StatusNotSolved, want: NoFeasibleSolution},
	}
	for _, test := range testCases {
		t.Run(test.status.String(), func(t *testing.T) {
			net := buildNetwork(t, smallConfig(), forwardOrder(1, 100, 0, 6))
			before := testutil.ToFloat64(metrics.Solves.WithLabelValues(test.want.String()))
			sol, err := Plan(net, fakeSolver{status: test.status}, mpmodel.SolveParameters{TimeLimit: time.Second})
			if err != nil {
				t.Fatalf("Plan() returned with unexpected error %v", err)
			}
			if sol.Status != test.want {
				t.Errorf("Status = %v, want %v", sol.Status, test.want)
			}
			if got := sol.HasSolution(); got != test.wantSolution {
				t.Errorf("HasSolution() = %v, want %v", got, test.wantSolution)
			}
			if sol.Objective != test.wantObjective {
				t.Errorf("Objective = %v, want %v", sol.Objective, test.wantObjective)
			}
			if !test.wantSolution {
				if got := sol.Unserved(1); got != 0 {
					t.Errorf("Unserved(1) = %v, want 0", got)
				}
				if got := sol.Values(); got != nil {
					t.Errorf("Values() = %v, want nil", got)
				}
			}
			after := testutil.ToFloat64(metrics.Solves.WithLabelValues(test.want.String()))
			if after-before != 1 {
				t.Errorf("Solves{%v} increased by %v, want 1", test.want, after-before)
			}
		})
	}
}

func TestBuilder_SolveErrors(t *testing.T) {
	solverErr := errors.New("solver crashed")
	testCases := []struct {
		name   string
		solver Solver
	}{
		{name: "SolverError", solver: fakeSolver{err: solverErr}},
		{name: "ModelInvalid", solver: fakeSolver{status: mpmodel.StatusModelInvalid}},
		{name: "Unbounded", solver: fakeSolver{status: mpmodel.StatusUnbounded}},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			net := buildNetwork(t, smallConfig(), forwardOrder(1, 100, 0, 6))
			if _, err := Plan(net, test.solver, mpmodel.SolveParameters{}); err == nil {
				t.Errorf("Plan() = nil error, want an error")
			}
		})
	}
	net := buildNetwork(t, smallConfig(), forwardOrder(1, 100, 0, 6))
	if _, err := Plan(net, fakeSolver{err: solverErr}, mpmodel.SolveParameters{}); !errors.Is(err, solverErr) {
		t.Errorf("Plan() = %v, want %v", err, solverErr)
	}
	if _, err := Plan(net, fakeSolver{status: mpmodel.StatusUnbounded}, mpmodel.SolveParameters{}); !errors.Is(err, errs.ErrNumerical) {
		t.Errorf("Plan() = %v, want %v", err, errs.ErrNumerical)
	}
}

func ExamplePlan() {
	cfg := config.Default()
	cfg.Horizon = 6
	cfg.TravelPeriods = 2
	net, err := network.Build(cfg, []network.Order{
		{ID: 1, Flow: network.Forward, Quantity: 100, EarliestStart: 0, LatestCompletion: 6, PenaltyRate: 500},
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	sol, err := Plan(net, mpsolver.Solver{}, mpmodel.SolveParameters{})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%v cost=%.0f unserved=%.0f\n", sol.Status, sol.Objective, sol.TotalUnserved())
	// Output: OPTIMAL cost=4200 unserved=0
}
