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
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVar_Name(t *testing.T) {
	model := NewModelBuilder("names")
	x := model.NewIntVar(0, 10).WithName("x")
	y := model.NewNumVar(0, 1)

	if got := x.Name(); got != "x" {
		t.Errorf("Name() = %q, want %q", got, "x")
	}
	if got := y.Name(); got != "" {
		t.Errorf("Name() = %q, want empty", got)
	}
	if !x.IsInteger() || y.IsInteger() {
		t.Errorf("IsInteger() = (%v, %v), want (true, false)", x.IsInteger(), y.IsInteger())
	}
	if diff := cmp.Diff(Interval{0, 10}, x.Bounds()); diff != "" {
		t.Errorf("Bounds() returned with unexpected diff (-want+got);\n%s", diff)
	}
	if got := y.Index(); got != 1 {
		t.Errorf("Index() = %v, want 1", got)
	}
}

func TestBuilder_LinearConstraints(t *testing.T) {
	model := NewModelBuilder("linear")
	x := model.NewIntVar(0, 10)
	y := model.NewIntVar(0, 10)
	z := model.NewNumVar(0, 5)

	model.AddLinearConstraint(NewConstant(1).AddTerm(x, 2).Add(y), NewInterval(3, 7)).WithName("range")
	model.AddEquality(NewLinearExpr().AddSum(x, y, x), z)
	model.AddLessOrEqual(x, NewConstant(4))
	model.AddGreaterOrEqual(NewLinearExpr().AddWeightedSum([]LinearArgument{x, y}, []float64{1, -1}), NewConstant(-2))
	model.Minimize(NewConstant(10).AddTerm(z, 3))

	m, err := model.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	inf := math.Inf(1)
	want := &Model{
		Name: "linear",
		Variables: []VariableProto{
			{Bounds: Interval{0, 10}, Integer: true},
			{Bounds: Interval{0, 10}, Integer: true},
			{Bounds: Interval{0, 5}},
		},
		Constraints: []LinearConstraintProto{
			{Name: "range", Vars: []VarIndex{0, 1}, Coeffs: []float64{2, 1}, Bounds: Interval{2, 6}},
			{Vars: []VarIndex{0, 1, 2}, Coeffs: []float64{2, 1, -1}, Bounds: Interval{0, 0}},
			{Vars: []VarIndex{0}, Coeffs: []float64{1}, Bounds: Interval{-inf, 4}},
			{Vars: []VarIndex{0, 1}, Coeffs: []float64{1, -1}, Bounds: Interval{-2, inf}},
		},
		Objective: ObjectiveProto{Vars: []VarIndex{2}, Coeffs: []float64{3}, Offset: 10},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("Model() returned with unexpected diff (-want+got);\n%s", diff)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if got := m.NumIntegers(); got != 2 {
		t.Errorf("NumIntegers() = %v, want 2", got)
	}
}

func TestBuilder_DropsCancelledTerms(t *testing.T) {
	model := NewModelBuilder("cancel")
	x := model.NewIntVar(0, 1)
	y := model.NewIntVar(0, 1)
	model.AddLessOrEqual(NewLinearExpr().Add(x).Add(y), x)
	m, err := model.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	if diff := cmp.Diff([]VarIndex{1}, m.Constraints[0].Vars); diff != "" {
		t.Errorf("Vars returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestBuilder_Maximize(t *testing.T) {
	model := NewModelBuilder("max")
	x := model.NewIntVar(0, 3)
	model.Maximize(x)
	m, err := model.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	if !m.Objective.Maximize {
		t.Errorf("Objective.Maximize = false, want true")
	}
}

func TestBuilder_MixedModels(t *testing.T) {
	model1 := NewModelBuilder("one")
	model2 := NewModelBuilder("two")
	x := model1.NewIntVar(0, 1)
	y := model2.NewIntVar(0, 1)

	model1.AddLessOrEqual(NewLinearExpr().AddSum(x, y), NewConstant(1))
	if _, err := model1.Model(); !errors.Is(err, ErrMixedModels) {
		t.Errorf("Model() err = %v, want %v", err, ErrMixedModels)
	}

	model3 := NewModelBuilder("three")
	model3.Minimize(y)
	if _, err := model3.Model(); !errors.Is(err, ErrMixedModels) {
		t.Errorf("Model() err = %v, want %v", err, ErrMixedModels)
	}
}

func TestModel_Validate(t *testing.T) {
	testCases := []struct {
		name  string
		model *Model
	}{
		{
			name:  "EmptyDomain",
			model: &Model{Variables: []VariableProto{{Bounds: Interval{2, 1}}}},
		},
		{
			name: "EmptyConstraint",
			model: &Model{
				Variables:   []VariableProto{{Bounds: Interval{0, 1}}},
				Constraints: []LinearConstraintProto{{Vars: []VarIndex{0}, Coeffs: []float64{1}, Bounds: Interval{1, 0}}},
			},
		},
		{
			name: "IndexOutOfRange",
			model: &Model{
				Variables:   []VariableProto{{Bounds: Interval{0, 1}}},
				Constraints: []LinearConstraintProto{{Vars: []VarIndex{3}, Coeffs: []float64{1}, Bounds: Interval{0, 1}}},
			},
		},
		{
			name: "NaNCoefficient",
			model: &Model{
				Variables: []VariableProto{{Bounds: Interval{0, 1}}},
				Objective: ObjectiveProto{Vars: []VarIndex{0}, Coeffs: []float64{math.NaN()}},
			},
		},
		{
			name: "LengthMismatch",
			model: &Model{
				Variables: []VariableProto{{Bounds: Interval{0, 1}}},
				Objective: ObjectiveProto{Vars: []VarIndex{0}},
			},
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if err := test.model.Validate(); err == nil {
				t.Errorf("Validate() = nil, want an error")
			}
		})
	}
}

func TestSolutionValue(t *testing.T) {
	model := NewModelBuilder("values")
	x := model.NewIntVar(0, 10)
	y := model.NewNumVar(0, 10)
	res := &Response{Status: StatusOptimal, Values: []float64{3, 0.5}}

	if got := SolutionValue(res, x); got != 3 {
		t.Errorf("SolutionValue(x) = %v, want 3", got)
	}
	expr := NewConstant(1).AddTerm(x, 2).AddTerm(y, 4)
	if got := SolutionValue(res, expr); got != 9 {
		t.Errorf("SolutionValue(2x+4y+1) = %v, want 9", got)
	}
	if got := SolutionValue(&Response{Status: StatusNotSolved}, x); got != 0 {
		t.Errorf("SolutionValue() without solution = %v, want 0", got)
	}
}

func TestResponse_Gap(t *testing.T) {
	testCases := []struct {
		res  Response
		want float64
	}{
		{res: Response{Status: StatusOptimal, ObjectiveValue: 100, BestBound: 100}, want: 0},
		{res: Response{Status: StatusFeasible, ObjectiveValue: 200, BestBound: 150}, want: 0.25},
		{res: Response{Status: StatusFeasible, ObjectiveValue: 0.5, BestBound: 0}, want: 0.5},
		{res: Response{Status: StatusNotSolved}, want: 0},
	}
	for _, test := range testCases {
		if got := test.res.Gap(); math.Abs(got-test.want) > 1e-12 {
			t.Errorf("Gap() = %v, want %v", got, test.want)
		}
	}
}

func TestStatus_String(t *testing.T) {
	if got := StatusOptimal.String(); got != "OPTIMAL" {
		t.Errorf("String() = %q, want %q", got, "OPTIMAL")
	}
	if got := Status(42).String(); got != "Status(42)" {
		t.Errorf("String() = %q, want %q", got, "Status(42)")
	}
}
