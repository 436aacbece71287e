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

// ActiveIndex maps each period t of the horizon to the arcs in service at t,
// i.e. the arcs (i, j) with i <= t < j.
type ActiveIndex struct {
	periods [][]TimeArc
}

// NewActiveIndex indexes `arcs` over a horizon of `horizon` periods. Periods
// past the horizon are clipped. Every period in [0, horizon) has an entry.
func NewActiveIndex(horizon int, arcs []TimeArc) ActiveIndex {
	if horizon < 0 {
		horizon = 0
	}
	periods := make([][]TimeArc, horizon)
	for t := range periods {
		periods[t] = []TimeArc{}
	}
	for _, a := range arcs {
		for t := max(a.From, 0); t < a.To && t < horizon; t++ {
			periods[t] = append(periods[t], a)
		}
	}
	return ActiveIndex{periods: periods}
}

// Horizon returns the number of indexed periods.
func (ai ActiveIndex) Horizon() int {
	return len(ai.periods)
}

// At returns the arcs active at period t. The slice must not be modified.
// Periods outside the horizon have no active arcs.
func (ai ActiveIndex) At(t int) []TimeArc {
	if t < 0 || t >= len(ai.periods) {
		return nil
	}
	return ai.periods[t]
}
