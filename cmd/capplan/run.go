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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/golang/glog"

	"github.com/freightplan/intercity/freight/config"
	"github.com/freightplan/intercity/freight/mpmodel"
	"github.com/freightplan/intercity/freight/mpsolver"
	"github.com/freightplan/intercity/freight/network"
	"github.com/freightplan/intercity/freight/orders"
	"github.com/freightplan/intercity/freight/planner"
	"github.com/freightplan/intercity/freight/report"
)

const defaultTimeLimit = 500 * time.Second

// Levels of the sensitivity sweep.
var (
	sweepAutoFleet   = []int{10, 20, 30}
	sweepAutoCost    = []float64{10, 15, 20}
	sweepManualFleet = []int{20, 40}
)

// The scale experiment runs with enlarged fleets.
var (
	scaleAutoFleet   = config.PerCity{City1: 50, City2: 50}
	scaleManualFleet = config.PerCity{City1: 100, City2: 100}
)

type options struct {
	configPath string
	ordersPath string
	random     int
	seed       uint64
	timeLimit  time.Duration
	gap        float64
	verbose    bool
	sweep      bool
	scale      []int
	detailDir  string
}

// experiment is one planning run.
type experiment struct {
	label  string
	cfg    config.Config
	orders []network.Order
}

func parseCounts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var counts []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("order count %d must be positive", n)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

// experiments expands the options into the runs to perform.
func experiments(opts options) ([]experiment, error) {
	base := config.Default()
	if opts.configPath != "" {
		var err error
		if base, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	baseOrders := func(cfg config.Config, seed uint64) ([]network.Order, error) {
		if opts.ordersPath != "" {
			return orders.Load(opts.ordersPath)
		}
		return orders.Generate(cfg, opts.random, seed)
	}

	var exps []experiment
	if opts.sweep {
		fixed, err := baseOrders(base, opts.seed)
		if err != nil {
			return nil, err
		}
		for _, nAuto := range sweepAutoFleet {
			for _, cAuto := range sweepAutoCost {
				for _, nManual := range sweepManualFleet {
					cfg := base
					cfg.AutoFleet = config.PerCity{City1: nAuto, City2: nAuto}
					cfg.AutoCost = cAuto
					cfg.ManualFleet = config.PerCity{City1: nManual, City2: nManual}
					exps = append(exps, experiment{label: fmt.Sprintf("A_%d", len(exps)+1), cfg: cfg, orders: fixed})
				}
			}
		}
	}
	for i, n := range opts.scale {
		cfg := base
		cfg.AutoFleet = scaleAutoFleet
		cfg.ManualFleet = scaleManualFleet
		generated, err := orders.Generate(cfg, n, opts.seed+uint64(i))
		if err != nil {
			return nil, err
		}
		exps = append(exps, experiment{label: fmt.Sprintf("B_%d", n), cfg: cfg, orders: generated})
	}
	if len(exps) == 0 {
		single, err := baseOrders(base, opts.seed)
		if err != nil {
			return nil, err
		}
		exps = append(exps, experiment{label: "run", cfg: base, orders: single})
	}
	return exps, nil
}

// run performs the experiments and writes the summary table to `out`. An
// interrupt through `ctx` stops the current solve with its best plan and
// skips the remaining runs. A failed run is logged and left out of the
// table; the failures are returned once the table is written.
func run(ctx context.Context, opts options, out io.Writer) error {
	exps, err := experiments(opts)
	if err != nil {
		return err
	}
	if opts.detailDir != "" {
		if err := os.MkdirAll(opts.detailDir, 0o755); err != nil {
			return fmt.Errorf("creating detail directory: %w", err)
		}
	}
	params := mpmodel.SolveParameters{TimeLimit: opts.timeLimit, RelativeGap: opts.gap, Verbose: opts.verbose}
	solver := mpsolver.Solver{Interrupt: ctx.Done()}

	var summaries []report.Summary
	var failed []error
	for _, exp := range exps {
		if ctx.Err() != nil {
			log.Warningf("interrupted: skipping %s and later runs", exp.label)
			break
		}
		s, err := runExperiment(exp, solver, params, opts.detailDir)
		if err != nil {
			log.Errorf("Exp %s failed: %v", exp.label, err)
			failed = append(failed, fmt.Errorf("%s: %w", exp.label, err))
			continue
		}
		summaries = append(summaries, s)
	}
	if err := report.WriteCSV(out, summaries); err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d runs failed: %w", len(failed), len(exps), errors.Join(failed...))
	}
	return nil
}

func runExperiment(exp experiment, solver planner.Solver, params mpmodel.SolveParameters, detailDir string) (report.Summary, error) {
	start := time.Now()
	net, err := network.Build(exp.cfg, exp.orders)
	if err != nil {
		return report.Summary{}, err
	}
	sol, err := planner.Plan(net, solver, params)
	if err != nil {
		return report.Summary{}, err
	}
	s := report.NewSummary(exp.label, sol, time.Since(start))
	if s.HasSolution {
		log.Infof("Exp %s | Orders=%d | Auto=%d | Cost=%.2f", exp.label, s.NumOrders, s.AutoFleet, s.Objective)
	} else {
		log.Warningf("Exp %s | Orders=%d | Auto=%d | no plan (%v)", exp.label, s.NumOrders, s.AutoFleet, s.Status)
	}

	if detailDir != "" && s.HasSolution {
		data, err := report.NewDetail(s.RunID, sol).JSON()
		if err != nil {
			return report.Summary{}, err
		}
		path := filepath.Join(detailDir, fmt.Sprintf("detail_%s_%s.json", exp.label, s.RunID))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return report.Summary{}, fmt.Errorf("writing detail: %w", err)
		}
	}
	return s, nil
}
