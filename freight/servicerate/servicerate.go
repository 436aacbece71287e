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

// Package servicerate models how long one manually driven vehicle needs to
// serve a given load inside a city.
//
// The throughput model is the BHH approximation
//
//	T(λ) = a·λ + b·√λ
//
// where λ is the load and T the service time in minutes. The inverse maps a
// time budget back to the largest load that fits in it.
package servicerate

import (
	"fmt"
	"math"
	"sync"

	"github.com/freightplan/intercity/freight/errs"
)

// Model is the service-rate function of one city. Evaluations are memoized
// by input value; a Model is safe for concurrent use.
type Model struct {
	a, b float64

	mu       sync.Mutex
	rates    map[float64]float64
	inverses map[float64]float64
}

// New returns the model T(λ) = a·λ + b·√λ. Both parameters must be positive.
func New(a, b float64) (*Model, error) {
	if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return nil, fmt.Errorf("service rate parameters a=%v b=%v must be positive and finite: %w", a, b, errs.ErrInvalidInput)
	}
	return &Model{
		a:        a,
		b:        b,
		rates:    make(map[float64]float64),
		inverses: make(map[float64]float64),
	}, nil
}

// A returns the linear coefficient.
func (m *Model) A() float64 { return m.a }

// B returns the square-root coefficient.
func (m *Model) B() float64 { return m.b }

// Rate returns the minutes needed to serve `load`.
func (m *Model) Rate(load float64) (float64, error) {
	if math.IsNaN(load) || load < 0 {
		return 0, fmt.Errorf("load %v must be non-negative: %w", load, errs.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.rates[load]; ok {
		return v, nil
	}
	v := m.a*load + m.b*math.Sqrt(load)
	m.rates[load] = v
	return v, nil
}

// Inverse returns the load λ with Rate(λ) == duration.
//
// With u = √λ the equation becomes a·u² + b·u − duration = 0, whose only
// non-negative root is u = (−b + √(b² + 4·a·duration)) / 2a.
func (m *Model) Inverse(duration float64) (float64, error) {
	if math.IsNaN(duration) || duration < 0 {
		return 0, fmt.Errorf("duration %v must be non-negative: %w", duration, errs.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.inverses[duration]; ok {
		return v, nil
	}
	delta := m.b*m.b + 4*m.a*duration
	if delta < 0 {
		return 0, fmt.Errorf("discriminant %v < 0 for duration %v: %w", delta, duration, errs.ErrNumerical)
	}
	u := (-m.b + math.Sqrt(delta)) / (2 * m.a)
	// Cancellation in −b + √delta can leave a tiny negative root for
	// duration ≈ 0.
	if u < 0 {
		u = 0
	}
	v := u * u
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("load %v is not finite for duration %v: %w", v, duration, errs.ErrNumerical)
	}
	m.inverses[duration] = v
	return v, nil
}
