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

// Package mpmodel offers a user-friendly API to build mixed-integer linear
// models and the types exchanged with a solver.
//
// The `Builder` struct accumulates a `Model` and provides helper methods for
// adding variables and constraints and setting the objective.
// The `Variable` and `Constraint` structs are references to specific
// elements of the model.
// The `LinearExpr` struct provides helper methods for creating constraints
// and the objective from expressions with many variables and coefficients.
// A `Model` is handed to a solver together with `SolveParameters`; the solver
// answers with a `Response`.
package mpmodel

import (
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"
)

// ErrMixedModels holds the error when elements added to a model are different.
var ErrMixedModels = errors.New("elements are not part of the same model")

type (
	// VarIndex is the index of a variable in the model.
	VarIndex int32
	// ConstrIndex is the index of a constraint in the model.
	ConstrIndex int32
)

// LinearArgument provides an interface for Variable and LinearExpr.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c float64)
	builder() *Builder
}

// LinearExpr is a container for a linear expression.
type LinearExpr struct {
	terms  []term
	offset float64
	mb     *Builder
}

type term struct {
	ind   VarIndex
	coeff float64
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates and returns a LinearExpr containing the constant `c`.
func NewConstant(c float64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument term to the LinearExpr and returns itself.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	return l.AddTerm(la, 1)
}

// AddTerm adds the linear argument term with the given coefficient to the
// LinearExpr and returns itself.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff float64) *LinearExpr {
	if mb := la.builder(); mb != nil {
		if l.mb == nil {
			l.mb = mb
		} else if l.mb != mb {
			l.mb.checkSameModelAndSetErrorf(mb, "term added to a LinearExpr")
		}
	}
	la.addToLinearExpr(l, coeff)
	return l
}

// AddSum adds the sum of the linear arguments to the LinearExpr and returns itself.
func (l *LinearExpr) AddSum(las ...LinearArgument) *LinearExpr {
	for _, la := range las {
		l.Add(la)
	}
	return l
}

// AddWeightedSum adds the linear arguments with the corresponding
// coefficients to the LinearExpr and returns itself.
func (l *LinearExpr) AddWeightedSum(las []LinearArgument, coeffs []float64) *LinearExpr {
	if len(coeffs) != len(las) {
		log.Fatalf("las and coeffs must be the same length: %v != %v", len(las), len(coeffs))
	}
	for i, la := range las {
		l.AddTerm(la, coeffs[i])
	}
	return l
}

// Len returns the number of terms, counting repeated variables separately.
func (l *LinearExpr) Len() int {
	return len(l.terms)
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c float64) {
	for _, t := range l.terms {
		e.terms = append(e.terms, term{ind: t.ind, coeff: t.coeff * c})
	}
	e.offset += l.offset * c
}

func (l *LinearExpr) builder() *Builder {
	return l.mb
}

// merged returns the variables and coefficients of `l` with repeated
// variables summed and zero coefficients dropped, in first-seen order.
func (l *LinearExpr) merged() ([]VarIndex, []float64) {
	pos := make(map[VarIndex]int, len(l.terms))
	var vars []VarIndex
	var coeffs []float64
	for _, t := range l.terms {
		if p, ok := pos[t.ind]; ok {
			coeffs[p] += t.coeff
			continue
		}
		pos[t.ind] = len(vars)
		vars = append(vars, t.ind)
		coeffs = append(coeffs, t.coeff)
	}
	outVars, outCoeffs := vars[:0], coeffs[:0]
	for i, c := range coeffs {
		if c != 0 {
			outVars = append(outVars, vars[i])
			outCoeffs = append(outCoeffs, c)
		}
	}
	return outVars, outCoeffs
}

func (l *LinearExpr) evaluate(values []float64) float64 {
	result := l.offset
	for _, t := range l.terms {
		result += values[t.ind] * t.coeff
	}
	return result
}

// Variable is a reference to a variable in the model.
type Variable struct {
	ind VarIndex
	mb  *Builder
}

// Name returns the name of the variable.
func (v Variable) Name() string {
	return v.mb.model.Variables[v.ind].Name
}

// Bounds returns the domain of the variable.
func (v Variable) Bounds() Interval {
	return v.mb.model.Variables[v.ind].Bounds
}

// IsInteger reports whether the variable is integral.
func (v Variable) IsInteger() bool {
	return v.mb.model.Variables[v.ind].Integer
}

// Index returns the index of the variable.
func (v Variable) Index() VarIndex {
	return v.ind
}

// WithName sets the name of the variable.
func (v Variable) WithName(s string) Variable {
	v.mb.model.Variables[v.ind].Name = s
	return v
}

func (v Variable) addToLinearExpr(e *LinearExpr, c float64) {
	e.terms = append(e.terms, term{ind: v.ind, coeff: c})
}

func (v Variable) builder() *Builder {
	return v.mb
}

// Constraint is a reference to a constraint in the model.
type Constraint struct {
	ind ConstrIndex
	mb  *Builder
}

// WithName sets the name of the constraint.
func (c Constraint) WithName(s string) Constraint {
	c.mb.model.Constraints[c.ind].Name = s
	return c
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.mb.model.Constraints[c.ind].Name
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex {
	return c.ind
}

// VariableProto declares one variable of a Model.
type VariableProto struct {
	Name    string
	Bounds  Interval
	Integer bool
}

// LinearConstraintProto declares `Bounds.Lb <= Σ Coeffs[i]·x[Vars[i]] <= Bounds.Ub`.
type LinearConstraintProto struct {
	Name   string
	Vars   []VarIndex
	Coeffs []float64
	Bounds Interval
}

// ObjectiveProto is `Σ Coeffs[i]·x[Vars[i]] + Offset`, minimized unless
// Maximize is set.
type ObjectiveProto struct {
	Vars     []VarIndex
	Coeffs   []float64
	Offset   float64
	Maximize bool
}

// Model is a declarative mixed-integer linear model.
type Model struct {
	Name        string
	Variables   []VariableProto
	Constraints []LinearConstraintProto
	Objective   ObjectiveProto
}

// NumIntegers returns the number of integral variables.
func (m *Model) NumIntegers() int {
	n := 0
	for _, v := range m.Variables {
		if v.Integer {
			n++
		}
	}
	return n
}

// Validate reports the first structural defect of the model: an empty or
// NaN domain, a variable index out of range, or a non-finite coefficient.
func (m *Model) Validate() error {
	checkTerms := func(what string, vars []VarIndex, coeffs []float64) error {
		if len(vars) != len(coeffs) {
			return fmt.Errorf("%s: %d variables but %d coefficients", what, len(vars), len(coeffs))
		}
		for i, v := range vars {
			if v < 0 || int(v) >= len(m.Variables) {
				return fmt.Errorf("%s: variable index %d out of range", what, v)
			}
			if math.IsNaN(coeffs[i]) || math.IsInf(coeffs[i], 0) {
				return fmt.Errorf("%s: coefficient %v of variable %d is not finite", what, coeffs[i], v)
			}
		}
		return nil
	}
	for i, v := range m.Variables {
		if v.Bounds.IsEmpty() {
			return fmt.Errorf("variable %d (%q): empty domain %v", i, v.Name, v.Bounds)
		}
	}
	for i, c := range m.Constraints {
		if c.Bounds.IsEmpty() {
			return fmt.Errorf("constraint %d (%q): empty domain %v", i, c.Name, c.Bounds)
		}
		if err := checkTerms(fmt.Sprintf("constraint %d (%q)", i, c.Name), c.Vars, c.Coeffs); err != nil {
			return err
		}
	}
	return checkTerms("objective", m.Objective.Vars, m.Objective.Coeffs)
}

// Builder provides a wrapper for building a Model.
type Builder struct {
	model *Model
	// The first and only the first error is reported in Model.
	err error
}

// NewModelBuilder creates and returns a new Builder.
func NewModelBuilder(name string) *Builder {
	return &Builder{model: &Model{Name: name}}
}

// checkSameModelAndSetErrorf returns true if `mb` and `mb2` point to the same
// Builder. If false, an error is latched on `mb` if `mb.err` is nil.
func (mb *Builder) checkSameModelAndSetErrorf(mb2 *Builder, format string, a ...any) bool {
	if mb == mb2 {
		return true
	}
	var args = make([]any, len(a)+1)
	copy(args, a)
	args[len(a)] = ErrMixedModels
	err := fmt.Errorf(format+": %w", args...)
	log.Errorf("%v; use `-log_backtrace_at` flag to get the error stack", err)
	if mb.err == nil {
		mb.err = err
	}
	return false
}

func (mb *Builder) newVar(lb, ub float64, integer bool) Variable {
	v := Variable{mb: mb, ind: VarIndex(len(mb.model.Variables))}
	mb.model.Variables = append(mb.model.Variables, VariableProto{Bounds: NewInterval(lb, ub), Integer: integer})
	return v
}

// NewIntVar creates a new integral variable in `[lb,ub]`.
func (mb *Builder) NewIntVar(lb, ub float64) Variable {
	return mb.newVar(lb, ub, true)
}

// NewNumVar creates a new continuous variable in `[lb,ub]`.
func (mb *Builder) NewNumVar(lb, ub float64) Variable {
	return mb.newVar(lb, ub, false)
}

// NumVariables returns the number of variables created so far.
func (mb *Builder) NumVariables() int {
	return len(mb.model.Variables)
}

// NumConstraints returns the number of constraints created so far.
func (mb *Builder) NumConstraints() int {
	return len(mb.model.Constraints)
}

func (mb *Builder) asExpr(la LinearArgument) *LinearExpr {
	e := NewLinearExpr().Add(la)
	if e.mb != nil {
		mb.checkSameModelAndSetErrorf(e.mb, "argument added to a constraint")
	}
	return e
}

// AddLinearConstraint adds the linear constraint `expr in bounds`. The
// constant offset of `expr` is moved to the bounds.
func (mb *Builder) AddLinearConstraint(expr LinearArgument, bounds Interval) Constraint {
	le := mb.asExpr(expr)
	vars, coeffs := le.merged()
	c := Constraint{mb: mb, ind: ConstrIndex(len(mb.model.Constraints))}
	mb.model.Constraints = append(mb.model.Constraints, LinearConstraintProto{
		Vars:   vars,
		Coeffs: coeffs,
		Bounds: bounds.Offset(-le.offset),
	})
	return c
}

// AddEquality adds the linear constraint `lhs == rhs`.
func (mb *Builder) AddEquality(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return mb.AddLinearConstraint(diff, NewPoint(0))
}

// AddLessOrEqual adds the linear constraint `lhs <= rhs`.
func (mb *Builder) AddLessOrEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return mb.AddLinearConstraint(diff, AtMost(0))
}

// AddGreaterOrEqual adds the linear constraint `lhs >= rhs`.
func (mb *Builder) AddGreaterOrEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return mb.AddLinearConstraint(diff, AtLeast(0))
}

func (mb *Builder) setObjective(obj LinearArgument, maximize bool) {
	o := mb.asExpr(obj)
	vars, coeffs := o.merged()
	mb.model.Objective = ObjectiveProto{Vars: vars, Coeffs: coeffs, Offset: o.offset, Maximize: maximize}
}

// Minimize sets the objective of the model to minimize `obj`.
func (mb *Builder) Minimize(obj LinearArgument) {
	mb.setObjective(obj, false)
}

// Maximize sets the objective of the model to maximize `obj`.
func (mb *Builder) Maximize(obj LinearArgument) {
	mb.setObjective(obj, true)
}

// Model returns the built model. The model returned is a pointer to the
// model in Builder, and if modified, future calls to the Builder API can
// result in an invalid model.
//
// Model returns an error when invalid parameters have been used during model
// building (e.g. passing variables from other builders).
func (mb *Builder) Model() (*Model, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	return mb.model, nil
}
