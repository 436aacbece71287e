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

package mpmodel

import (
	"fmt"
	"math"
)

// Interval stores the closed interval `[Lb,Ub]`. Either end may be
// infinite. If `Lb` is greater than `Ub`, the interval is considered empty.
type Interval struct {
	Lb float64
	Ub float64
}

// NewInterval creates the interval `[lb,ub]`.
func NewInterval(lb, ub float64) Interval {
	return Interval{Lb: lb, Ub: ub}
}

// NewPoint creates the singleton interval `[v,v]`.
func NewPoint(v float64) Interval {
	return Interval{Lb: v, Ub: v}
}

// AtMost creates the interval `[-inf,ub]`.
func AtMost(ub float64) Interval {
	return Interval{Lb: math.Inf(-1), Ub: ub}
}

// AtLeast creates the interval `[lb,+inf]`.
func AtLeast(lb float64) Interval {
	return Interval{Lb: lb, Ub: math.Inf(1)}
}

// IsEmpty reports whether no value lies in the interval.
func (i Interval) IsEmpty() bool {
	return i.Lb > i.Ub || math.IsNaN(i.Lb) || math.IsNaN(i.Ub)
}

// Contains reports whether `v` lies in the interval, up to `tol`.
func (i Interval) Contains(v, tol float64) bool {
	return v >= i.Lb-tol && v <= i.Ub+tol
}

// Offset adds `delta` to both ends. Infinite ends stay infinite.
func (i Interval) Offset(delta float64) Interval {
	return Interval{Lb: i.Lb + delta, Ub: i.Ub + delta}
}

// String formats the interval as `[lb,ub]`.
func (i Interval) String() string {
	return fmt.Sprintf("[%v,%v]", i.Lb, i.Ub)
}
