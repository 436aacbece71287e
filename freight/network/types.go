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

// Package network builds the time-expanded network of one planning
// instance: the feasible time-arcs of every fleet, the arcs in service at
// each period, the per-arc load capacity of manually driven vehicles, and
// the (arc, order) pairs that an order's time window rules out.
//
// Build is the entry point; the returned Network is read-only.
package network

import (
	"fmt"
	"math"

	"github.com/freightplan/intercity/freight/errs"
)

// TimeArc is a trip departing at period From and arriving at period To.
type TimeArc struct {
	From int
	To   int
}

// Duration returns the number of periods the arc spans.
func (a TimeArc) Duration() int {
	return a.To - a.From
}

// String returns the arc as "(from,to)".
func (a TimeArc) String() string {
	return fmt.Sprintf("(%d,%d)", a.From, a.To)
}

// City identifies one of the two served cities. Intercity is the city
// component of autonomous-arc keys.
type City int

const (
	Intercity City = 0
	City1     City = 1
	City2     City = 2
)

// Cities lists the two served cities in order.
var Cities = []City{City1, City2}

func (c City) String() string {
	switch c {
	case City1:
		return "city1"
	case City2:
		return "city2"
	case Intercity:
		return "intercity"
	}
	return fmt.Sprintf("City(%d)", int(c))
}

// Flow is the direction of an order.
type Flow int

const (
	// Forward goes from city 1 to city 2.
	Forward Flow = iota
	// Reverse goes from city 2 to city 1.
	Reverse
)

// Flows lists both directions in order.
var Flows = []Flow{Forward, Reverse}

// Origin returns the city where the flow's freight is collected.
func (f Flow) Origin() City {
	if f == Reverse {
		return City2
	}
	return City1
}

// Destination returns the city where the flow's freight is delivered.
func (f Flow) Destination() City {
	if f == Reverse {
		return City1
	}
	return City2
}

func (f Flow) String() string {
	switch f {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return fmt.Sprintf("Flow(%d)", int(f))
}

// MarshalText encodes the flow as "+" or "-".
func (f Flow) MarshalText() ([]byte, error) {
	if f != Forward && f != Reverse {
		return nil, fmt.Errorf("unknown flow %d: %w", int(f), errs.ErrInvalidInput)
	}
	return []byte(f.String()), nil
}

// UnmarshalText accepts "+"/"-" and "forward"/"reverse".
func (f *Flow) UnmarshalText(text []byte) error {
	switch string(text) {
	case "+", "forward", "Forward":
		*f = Forward
	case "-", "reverse", "Reverse":
		*f = Reverse
	default:
		return fmt.Errorf("unknown flow %q: %w", text, errs.ErrInvalidInput)
	}
	return nil
}

// Order is a batch of demand travelling in one direction within a time
// window.
type Order struct {
	ID       int     `json:"id" yaml:"id"`
	Flow     Flow    `json:"flow" yaml:"flow"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	// EarliestStart is the first period the batch can be collected.
	EarliestStart int `json:"earliest_start" yaml:"earliest_start"`
	// LatestCompletion is the last period by which it must be delivered.
	LatestCompletion int `json:"latest_completion" yaml:"latest_completion"`
	// PenaltyRate is charged per unit left unserved.
	PenaltyRate float64 `json:"penalty_rate" yaml:"penalty_rate"`
}

// Validate checks the order against a horizon of `horizon` periods.
func (o Order) Validate(horizon int) error {
	invalid := func(format string, a ...any) error {
		return fmt.Errorf("order %d: "+format+": %w", append(append([]any{o.ID}, a...), errs.ErrInvalidInput)...)
	}
	switch {
	case o.Flow != Forward && o.Flow != Reverse:
		return invalid("unknown flow %d", int(o.Flow))
	case math.IsNaN(o.Quantity) || math.IsInf(o.Quantity, 0) || o.Quantity < 0:
		return invalid("quantity %v must be non-negative", o.Quantity)
	case math.IsNaN(o.PenaltyRate) || math.IsInf(o.PenaltyRate, 0) || o.PenaltyRate < 0:
		return invalid("penalty rate %v must be non-negative", o.PenaltyRate)
	case o.EarliestStart < 0:
		return invalid("earliest start %d is negative", o.EarliestStart)
	case o.EarliestStart >= o.LatestCompletion:
		return invalid("earliest start %d >= latest completion %d", o.EarliestStart, o.LatestCompletion)
	case o.LatestCompletion > horizon:
		return invalid("latest completion %d exceeds horizon %d", o.LatestCompletion, horizon)
	}
	return nil
}
