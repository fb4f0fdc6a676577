// Package lp holds a sparse linear-program model, its solvers and an LP file writer.
package lp

import (
	"fmt"
	"math"
)

// Inf is the unbounded upper bound.
var Inf = math.Inf(1)

// Var is a handle to a model variable.
type Var int

// Sense is the relation of a constraint row.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is an affine expression: Σ coef·var + constant.
type Expr struct {
	Terms    []Term
	Constant float64
}

// NewExpr returns an expression with room for n terms.
func NewExpr(n int) Expr {
	return Expr{Terms: make([]Term, 0, n)}
}

// Add appends coef·v. Zero coefficients are dropped.
func (e *Expr) Add(v Var, coef float64) *Expr {
	if coef != 0 {
		e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	}
	return e
}

// AddExpr appends scale·o.
func (e *Expr) AddExpr(o Expr, scale float64) *Expr {
	for _, t := range o.Terms {
		e.Add(t.Var, t.Coef*scale)
	}
	e.Constant += o.Constant * scale
	return e
}

// AddConstant adds c to the constant part.
func (e *Expr) AddConstant(c float64) *Expr {
	e.Constant += c
	return e
}

// Sum returns the unit-coefficient sum of vars.
func Sum(vars ...Var) Expr {
	e := NewExpr(len(vars))
	for _, v := range vars {
		e.Add(v, 1)
	}
	return e
}

// Value evaluates the expression against a full vector of variable values.
func (e Expr) Value(values []float64) float64 {
	total := e.Constant
	for _, t := range e.Terms {
		total += t.Coef * values[t.Var]
	}
	return total
}

// Constraint is a single row: Expr Sense RHS.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Satisfied reports whether values satisfy the row within tol.
func (c Constraint) Satisfied(values []float64, tol float64) bool {
	lhs := c.Expr.Value(values)
	switch c.Sense {
	case LessEq:
		return lhs <= c.RHS+tol
	case GreaterEq:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

type variable struct {
	name   string
	lb, ub float64
}

// Model is a minimisation LP with bounded continuous variables.
type Model struct {
	Name        string
	vars        []variable
	constraints []Constraint
	objective   Expr
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVar declares a variable with bounds [lb, ub]. ub may be Inf.
func (m *Model) AddVar(name string, lb, ub float64) Var {
	if name == "" {
		name = fmt.Sprintf("x%d", len(m.vars))
	}
	m.vars = append(m.vars, variable{name: name, lb: lb, ub: ub})
	return Var(len(m.vars) - 1)
}

// SetBounds replaces the bounds of v.
func (m *Model) SetBounds(v Var, lb, ub float64) {
	m.vars[v].lb = lb
	m.vars[v].ub = ub
}

// Bounds returns the bounds of v.
func (m *Model) Bounds(v Var) (lb, ub float64) {
	return m.vars[v].lb, m.vars[v].ub
}

// VarName returns the declared name of v.
func (m *Model) VarName(v Var) string {
	return m.vars[v].name
}

// NumVars returns the number of declared variables.
func (m *Model) NumVars() int {
	return len(m.vars)
}

// AddConstraint appends the row lhs sense rhs.
func (m *Model) AddConstraint(name string, lhs Expr, sense Sense, rhs float64) {
	if name == "" {
		name = fmt.Sprintf("c%d", len(m.constraints))
	}
	m.constraints = append(m.constraints, Constraint{Name: name, Expr: lhs, Sense: sense, RHS: rhs})
}

// Constraints returns the rows in insertion order.
func (m *Model) Constraints() []Constraint {
	return m.constraints
}

// NumConstraints returns the number of rows.
func (m *Model) NumConstraints() int {
	return len(m.constraints)
}

// NonZeros counts the constraint coefficients.
func (m *Model) NonZeros() int {
	n := 0
	for _, c := range m.constraints {
		n += len(c.Expr.Terms)
	}
	return n
}

// SetObjective sets the expression to minimise.
func (m *Model) SetObjective(e Expr) {
	m.objective = e
}

// Objective returns the expression being minimised.
func (m *Model) Objective() Expr {
	return m.objective
}

// Solution holds the optimal point of a model.
type Solution struct {
	Objective float64
	Values    []float64
}

// Value returns the optimal value of v.
func (s *Solution) Value(v Var) float64 {
	return s.Values[v]
}

// Eval evaluates e at the optimum.
func (s *Solution) Eval(e Expr) float64 {
	return e.Value(s.Values)
}
