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

// The timelimit command is an example of setting a time limit and an
// interrupt on a solve.
package main

import (
	"fmt"
	"time"

	log "github.com/golang/glog"

	"github.com/freightplan/intercity/freight/mpmodel"
	"github.com/freightplan/intercity/freight/mpsolver"
)

func solveWithTimeLimitSample() error {
	model := mpmodel.NewModelBuilder("time_limit")

	x := model.NewIntVar(0, 20).WithName("x")
	y := model.NewIntVar(0, 20).WithName("y")
	z := model.NewIntVar(0, 20).WithName("z")

	model.AddLessOrEqual(mpmodel.NewLinearExpr().AddTerm(x, 7).AddTerm(y, 11).AddTerm(z, 13), mpmodel.NewConstant(97))
	model.AddGreaterOrEqual(mpmodel.NewLinearExpr().AddSum(x, y, z), mpmodel.NewConstant(3))
	model.Maximize(mpmodel.NewLinearExpr().AddTerm(x, 5).AddTerm(y, 8).AddTerm(z, 9))

	m, err := model.Model()
	if err != nil {
		return fmt.Errorf("failed to instantiate the model: %w", err)
	}

	// Sets a time limit of 10 seconds and stops at a 1% gap.
	params := mpmodel.SolveParameters{TimeLimit: 10 * time.Second, RelativeGap: 0.01}

	// Also stops the solve after 5 seconds through the interrupt channel.
	interrupt := make(chan struct{})
	timer := time.AfterFunc(5*time.Second, func() { close(interrupt) })
	defer timer.Stop()

	response, err := mpsolver.SolveInterruptible(m, params, interrupt)
	if err != nil {
		return fmt.Errorf("failed to solve the model: %w", err)
	}

	fmt.Printf("Status: %v\n", response.Status)

	if response.Status.HasSolution() {
		fmt.Printf(" objective = %v (bound %v)\n", response.ObjectiveValue, response.BestBound)
		fmt.Printf(" x = %v\n", mpmodel.SolutionValue(response, x))
		fmt.Printf(" y = %v\n", mpmodel.SolutionValue(response, y))
		fmt.Printf(" z = %v\n", mpmodel.SolutionValue(response, z))
	}

	return nil
}

func main() {
	if err := solveWithTimeLimitSample(); err != nil {
		log.Exitf("solveWithTimeLimitSample returned with error: %v", err)
	}
}
