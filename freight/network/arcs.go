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
	"fmt"
	"math"

	"github.com/freightplan/intercity/freight/errs"
	"github.com/freightplan/intercity/freight/servicerate"
)

// ManualSpan returns the number of periods a manually driven vehicle needs
// to serve a full load of `capacity` in a city with service-rate `model`.
// It depends only on city-level parameters and is computed once per city.
func ManualSpan(model *servicerate.Model, capacity, periodMinutes float64) (int, error) {
	if !(periodMinutes > 0) {
		return 0, fmt.Errorf("period duration %v must be positive: %w", periodMinutes, errs.ErrInvalidInput)
	}
	minutes, err := model.Rate(capacity)
	if err != nil {
		return 0, fmt.Errorf("service time of capacity %v: %w", capacity, err)
	}
	periods := math.Ceil(minutes / periodMinutes)
	if periods > math.MaxInt32 {
		return 0, fmt.Errorf("capacity %v needs %v periods: %w", capacity, periods, errs.ErrInvalidInput)
	}
	return int(periods), nil
}

// ManualArcs returns every arc (i, j) with 0 <= i < horizon and
// i < j <= min(i+span, horizon), ordered by departure then arrival.
// A non-positive span yields no arcs.
func ManualArcs(horizon, span int) []TimeArc {
	var arcs []TimeArc
	for i := 0; i < horizon; i++ {
		limit := i + span + 1
		for j := i + 1; j < limit && j <= horizon; j++ {
			arcs = append(arcs, TimeArc{From: i, To: j})
		}
	}
	return arcs
}

// AutoArcs returns the arcs (i, i+travel) of autonomous vehicles. The set is
// empty when the drive does not fit strictly inside the horizon.
func AutoArcs(horizon, travel int) []TimeArc {
	if travel <= 0 || travel >= horizon {
		return nil
	}
	arcs := make([]TimeArc, 0, horizon-travel+1)
	for i := 0; i <= horizon-travel; i++ {
		arcs = append(arcs, TimeArc{From: i, To: i + travel})
	}
	return arcs
}
