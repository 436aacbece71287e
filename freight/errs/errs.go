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

// Package errs holds the error sentinels shared by the planning packages.
//
// Producers wrap a sentinel with context, e.g.
//
//	fmt.Errorf("order %d: earliest start %d >= latest completion %d: %w", id, s, e, errs.ErrInvalidInput)
//
// and callers classify failures with errors.Is.
package errs

import "errors"

var (
	// ErrInvalidInput is returned for malformed configuration or order data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNumerical is returned when root finding degenerates.
	ErrNumerical = errors.New("numerical error")
	// ErrInvalidState is returned when a step is invoked before its prerequisite.
	ErrInvalidState = errors.New("invalid state")
)
