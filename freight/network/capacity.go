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

	"github.com/freightplan/intercity/freight/servicerate"
)

// CapacityTable holds, per manual arc, the largest load one vehicle can
// serve within the arc's duration.
type CapacityTable struct {
	coeffs map[TimeArc]float64
}

// NewCapacityTable inverts `model` over the duration of every arc.
func NewCapacityTable(model *servicerate.Model, arcs []TimeArc, periodMinutes float64) (CapacityTable, error) {
	coeffs := make(map[TimeArc]float64, len(arcs))
	for _, a := range arcs {
		duration := float64(a.Duration()) * periodMinutes
		load, err := model.Inverse(duration)
		if err != nil {
			return CapacityTable{}, fmt.Errorf("capacity of arc %v: %w", a, err)
		}
		coeffs[a] = load
	}
	return CapacityTable{coeffs: coeffs}, nil
}

// Coefficient returns the capacity of arc `a`, and false if `a` is not a
// manual arc of the table.
func (ct CapacityTable) Coefficient(a TimeArc) (float64, bool) {
	v, ok := ct.coeffs[a]
	return v, ok
}

// Len returns the number of arcs in the table.
func (ct CapacityTable) Len() int {
	return len(ct.coeffs)
}
