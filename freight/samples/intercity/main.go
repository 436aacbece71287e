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

// The intercity command plans a small two-city instance and prints the
// autonomous trips and the unserved orders.
package main

import (
	"fmt"
	"time"

	log "github.com/golang/glog"

	"github.com/freightplan/intercity/freight/config"
	"github.com/freightplan/intercity/freight/mpmodel"
	"github.com/freightplan/intercity/freight/mpsolver"
	"github.com/freightplan/intercity/freight/network"
	"github.com/freightplan/intercity/freight/planner"
)

func intercitySample() error {
	cfg := config.Default()
	cfg.Horizon = 8
	cfg.TravelPeriods = 2

	orders := []network.Order{
		{ID: 1, Flow: network.Forward, Quantity: 100, EarliestStart: 0, LatestCompletion: 6, PenaltyRate: cfg.PenaltyRate},
		{ID: 2, Flow: network.Reverse, Quantity: 40, EarliestStart: 1, LatestCompletion: 8, PenaltyRate: cfg.PenaltyRate},
		{ID: 3, Flow: network.Forward, Quantity: 25, EarliestStart: 6, LatestCompletion: 7, PenaltyRate: cfg.PenaltyRate},
	}
	net, err := network.Build(cfg, orders)
	if err != nil {
		return fmt.Errorf("failed to build the network: %w", err)
	}

	b := planner.NewBuilder(net)
	if err := b.DeclareVariables(); err != nil {
		return err
	}
	if err := b.SetObjective(); err != nil {
		return err
	}
	if err := b.SetConstraints(); err != nil {
		return err
	}

	// Sets a time limit of 10 seconds.
	params := mpmodel.SolveParameters{TimeLimit: 10 * time.Second}
	sol, err := b.Solve(mpsolver.Solver{}, params)
	if err != nil {
		return fmt.Errorf("failed to solve the model: %w", err)
	}

	fmt.Printf("Status: %v\n", sol.Status)
	if !sol.HasSolution() {
		return nil
	}
	fmt.Printf("Cost: %.2f\n", sol.Objective)
	for _, tc := range sol.NonZeroAutoTrips() {
		fmt.Printf(" autonomous %v flow %v: %v vehicles\n", tc.Key.Arc, tc.Key.Flow, tc.Trips)
	}
	for _, u := range sol.NonZeroUnserved() {
		fmt.Printf(" order %d: %v units unserved\n", u.Order, u.Quantity)
	}
	return nil
}

func main() {
	if err := intercitySample(); err != nil {
		log.Exitf("intercitySample returned with error: %v", err)
	}
}
