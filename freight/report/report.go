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

// Package report turns a solved plan into the records handed to the
// reporting collaborator: a one-line Summary per run and an optional
// Detail log. Both convert to protobuf Struct values and serialize to JSON
// through protojson.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/freightplan/intercity/freight/config"
	"github.com/freightplan/intercity/freight/network"
	"github.com/freightplan/intercity/freight/planner"
)

// Summary is the outcome of one planning run.
type Summary struct {
	RunID string
	// Label names the run within an experiment, e.g. "A_3".
	Label     string
	Status    planner.Status
	NumOrders int

	// Key parameters of the run.
	AutoFleet   int
	ManualFleet int
	AutoCost    float64

	// The fields below are only meaningful when HasSolution is set.
	HasSolution      bool
	Objective        float64
	Gap              float64
	UnservedFraction float64
	AutoUsage        float64
	ManualUsage      float64

	// SolveTime covers network construction, assembly and solve.
	SolveTime time.Duration
}

// NewSummary summarizes `sol` under a fresh run id. `elapsed` is the wall
// time of the whole run.
func NewSummary(label string, sol *planner.Solution, elapsed time.Duration) Summary {
	net := sol.Network()
	cfg := net.Config()
	s := Summary{
		RunID:       uuid.NewString(),
		Label:       label,
		Status:      sol.Status,
		NumOrders:   len(net.Orders()),
		AutoFleet:   cfg.AutoFleet.City1,
		ManualFleet: cfg.ManualFleet.City1,
		AutoCost:    cfg.AutoCost,
		HasSolution: sol.HasSolution(),
		SolveTime:   elapsed,
	}
	if s.HasSolution {
		s.Objective = sol.Objective
		s.Gap = sol.Gap()
		s.UnservedFraction = round(sol.UnservedFraction(), 4)
		s.AutoUsage = sol.AutoUsage()
		s.ManualUsage = sol.ManualUsage()
	}
	return s
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// Struct converts the summary to a protobuf Struct. Solution fields are
// null when the run found no plan.
func (s Summary) Struct() (*structpb.Struct, error) {
	fields := map[string]any{
		"run_id":          s.RunID,
		"label":           s.Label,
		"status":          s.Status.String(),
		"num_orders":      s.NumOrders,
		"param_n_auto":    s.AutoFleet,
		"param_n_manual":  s.ManualFleet,
		"param_cost_auto": s.AutoCost,
		"solve_time_sec":  round(s.SolveTime.Seconds(), 2),
		"total_cost":      nil,
		"gap":             nil,
		"unserved_rate":   nil,
		"auto_usage":      0,
		"manual_usage":    0,
	}
	if s.HasSolution {
		fields["total_cost"] = s.Objective
		fields["gap"] = s.Gap
		fields["unserved_rate"] = s.UnservedFraction
		fields["auto_usage"] = s.AutoUsage
		fields["manual_usage"] = s.ManualUsage
	}
	return structpb.NewStruct(fields)
}

var csvHeader = []string{
	"Run_ID", "Exp_ID", "Num_Orders", "Param_N_Auto", "Param_Cost_Auto", "Param_N_Manual",
	"Total_Cost", "Unserved_Rate", "Solve_Time_Sec", "Status",
}

func (s Summary) csvRecord() []string {
	cost, unserved := "", ""
	if s.HasSolution {
		cost = strconv.FormatFloat(s.Objective, 'f', 2, 64)
		unserved = strconv.FormatFloat(s.UnservedFraction, 'f', 4, 64)
	}
	return []string{
		s.RunID,
		s.Label,
		strconv.Itoa(s.NumOrders),
		strconv.Itoa(s.AutoFleet),
		strconv.FormatFloat(s.AutoCost, 'f', -1, 64),
		strconv.Itoa(s.ManualFleet),
		cost,
		unserved,
		strconv.FormatFloat(s.SolveTime.Seconds(), 'f', 2, 64),
		s.Status.String(),
	}
}

// WriteCSV writes the summaries as a table with a header row.
func WriteCSV(w io.Writer, summaries []Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := cw.Write(s.csvRecord()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Detail is the full log of one run: its configuration, its orders and
// the non-zero parts of the plan.
type Detail struct {
	RunID     string
	Config    config.Config
	Orders    []network.Order
	AutoTrips []planner.TripCount
	Unserved  []planner.UnservedQuantity
}

// NewDetail collects the detail log of `sol` for run `runID`.
func NewDetail(runID string, sol *planner.Solution) Detail {
	net := sol.Network()
	return Detail{
		RunID:     runID,
		Config:    net.Config(),
		Orders:    net.Orders(),
		AutoTrips: sol.NonZeroAutoTrips(),
		Unserved:  sol.NonZeroUnserved(),
	}
}

// Struct converts the detail log to a protobuf Struct. Orders are keyed by
// id, autonomous trips by "(from,to),flow".
func (d Detail) Struct() (*structpb.Struct, error) {
	orders := make(map[string]any, len(d.Orders))
	for _, o := range d.Orders {
		orders[strconv.Itoa(o.ID)] = map[string]any{
			"id":                o.ID,
			"flow":              o.Flow.String(),
			"quantity":          o.Quantity,
			"earliest_start":    o.EarliestStart,
			"latest_completion": o.LatestCompletion,
			"penalty_rate":      o.PenaltyRate,
		}
	}
	trips := make(map[string]any, len(d.AutoTrips))
	for _, tc := range d.AutoTrips {
		trips[fmt.Sprintf("%v,%v", tc.Key.Arc, tc.Key.Flow)] = tc.Trips
	}
	unserved := make(map[string]any, len(d.Unserved))
	for _, u := range d.Unserved {
		unserved[strconv.Itoa(u.Order)] = u.Quantity
	}
	return structpb.NewStruct(map[string]any{
		"run_id": d.RunID,
		"config": configFields(d.Config),
		"orders": orders,
		"solution": map[string]any{
			"y_auto":     trips,
			"z_unserved": unserved,
		},
	})
}

// JSON returns the indented protojson encoding of the detail log.
func (d Detail) JSON() ([]byte, error) {
	s, err := d.Struct()
	if err != nil {
		return nil, fmt.Errorf("converting detail of run %s: %w", d.RunID, err)
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}

func configFields(cfg config.Config) map[string]any {
	perCity := func(p config.PerCity) map[string]any {
		return map[string]any{"city1": p.City1, "city2": p.City2}
	}
	rate := func(r config.ServiceRate) map[string]any {
		return map[string]any{"a": r.A, "b": r.B}
	}
	return map[string]any{
		"horizon":            cfg.Horizon,
		"period_minutes":     cfg.PeriodMinutes,
		"travel_periods":     cfg.TravelPeriods,
		"manual_fleet":       perCity(cfg.ManualFleet),
		"auto_fleet":         perCity(cfg.AutoFleet),
		"manual_capacity":    cfg.ManualCapacity,
		"auto_capacity":      cfg.AutoCapacity,
		"manual_cost":        cfg.ManualCost,
		"auto_cost":          cfg.AutoCost,
		"penalty_rate":       cfg.PenaltyRate,
		"service_rate_city1": rate(cfg.ServiceRate1),
		"service_rate_city2": rate(cfg.ServiceRate2),
	}
}
