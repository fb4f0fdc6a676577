package lp

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const (
	defaultTolerance = 1e-9
	defaultMaxCells  = 8_000_000
	feasibilityTol   = 1e-7
	checkTol         = 1e-6
)

// Simplex solves models in-process with a dense bounded-variable simplex.
// It suits windows of a few days; a full year needs an external solver.
type Simplex struct {
	Tolerance     float64 // reduced-cost tolerance
	MaxCells      int     // upper limit on rows*columns of the tableau
	MaxIterations int     // pivot limit, zero derives one from the tableau size
}

// NewSimplex returns a Simplex with default settings.
func NewSimplex() *Simplex {
	return &Simplex{Tolerance: defaultTolerance, MaxCells: defaultMaxCells}
}

// Name implements Solver.
func (s *Simplex) Name() string {
	return "simplex"
}

// Solve implements Solver. Cancellation is checked between pivots.
func (s *Simplex) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sf, err := s.standardForm(m)
	if err != nil {
		return nil, err
	}

	x, err := sf.solve(ctx, s.tolerance(), s.MaxIterations)
	if err != nil {
		return nil, err
	}
	values := sf.recover(x)
	for _, c := range m.Constraints() {
		if !c.Satisfied(values, checkTol*(1+math.Abs(c.RHS))) {
			return nil, fmt.Errorf("%w: solution violates %s by %g", ErrSolverFailed, c.Name, math.Abs(c.Expr.Value(values)-c.RHS))
		}
	}
	return &Solution{Objective: m.Objective().Value(values), Values: values}, nil
}

func (s *Simplex) tolerance() float64 {
	if s.Tolerance > 0 {
		return s.Tolerance
	}
	return defaultTolerance
}

func (s *Simplex) maxCells() int {
	if s.MaxCells > 0 {
		return s.MaxCells
	}
	return defaultMaxCells
}

// standardForm is min cᵀy s.t. Ay = b, 0 <= y <= ub, with x = lb + y for
// the kept variables and every other variable pinned to a constant.
// Slack columns follow the structural ones.
type standardForm struct {
	column []int     // model variable -> column, -1 when pinned
	pinned []float64 // value of pinned variables
	lb     []float64
	c      []float64
	ub     []float64
	rows   []sparseRow
}

type sparseRow struct {
	cols  []int
	coefs []float64
	slack float64 // +1 for <=, -1 for >=, 0 for =
	rhs   float64
}

// sign is the factor that makes the right-hand side non-negative.
func (r sparseRow) sign() float64 {
	if r.rhs < 0 {
		return -1
	}
	return 1
}

func (s *Simplex) standardForm(m *Model) (*standardForm, error) {
	n := m.NumVars()
	sf := &standardForm{
		column: make([]int, n),
		pinned: make([]float64, n),
		lb:     make([]float64, n),
	}

	cost := make([]float64, n)
	for _, t := range m.Objective().Terms {
		cost[t.Var] += t.Coef
	}

	fixed := make([]bool, n)
	for j := 0; j < n; j++ {
		lb, ub := m.Bounds(Var(j))
		if math.IsInf(lb, 0) || math.IsNaN(lb) {
			return nil, fmt.Errorf("%w: variable %s needs a finite lower bound", ErrSolverFailed, m.VarName(Var(j)))
		}
		if ub < lb-feasibilityTol {
			return nil, fmt.Errorf("%w: variable %s has bounds [%g, %g]", ErrInfeasible, m.VarName(Var(j)), lb, ub)
		}
		sf.lb[j] = lb
		if ub-lb <= 0 {
			fixed[j] = true
			sf.pinned[j] = lb
		}
	}

	// Rows over model indices; repeated terms are merged through scratch.
	scratch := make([]float64, n)
	touched := make([]int, 0, 16)
	appears := make([]bool, n)
	var rows []sparseRow
	for _, c := range m.Constraints() {
		rhs := c.RHS - c.Expr.Constant
		touched = touched[:0]
		for _, t := range c.Expr.Terms {
			if t.Coef == 0 {
				continue
			}
			j := int(t.Var)
			if fixed[j] {
				rhs -= t.Coef * sf.pinned[j]
				continue
			}
			rhs -= t.Coef * sf.lb[j]
			if scratch[j] == 0 {
				touched = append(touched, j)
			}
			scratch[j] += t.Coef
		}

		row := sparseRow{rhs: rhs}
		for _, j := range touched {
			if scratch[j] != 0 {
				row.cols = append(row.cols, j)
				row.coefs = append(row.coefs, scratch[j])
				appears[j] = true
			}
			scratch[j] = 0
		}

		if len(row.cols) == 0 {
			if !emptyRowHolds(c.Sense, rhs) {
				return nil, fmt.Errorf("%w: constraint %s reduces to 0 %s %g", ErrInfeasible, c.Name, c.Sense, rhs)
			}
			continue
		}

		switch c.Sense {
		case LessEq:
			row.slack = 1
		case GreaterEq:
			row.slack = -1
		}
		rows = append(rows, row)
	}

	// Variables no row touches are decided by their cost alone.
	cols := 0
	for j := 0; j < n; j++ {
		if !fixed[j] && !appears[j] {
			lb, ub := m.Bounds(Var(j))
			switch {
			case cost[j] < 0 && math.IsInf(ub, 1):
				return nil, fmt.Errorf("%w: variable %s decreases the objective without limit", ErrUnbounded, m.VarName(Var(j)))
			case cost[j] < 0:
				sf.pinned[j] = ub
			default:
				sf.pinned[j] = lb
			}
			fixed[j] = true
		}
		if fixed[j] {
			sf.column[j] = -1
			continue
		}
		sf.column[j] = cols
		cols++
	}

	for i := range rows {
		for k, j := range rows[i].cols {
			rows[i].cols[k] = sf.column[j]
		}
		if rows[i].slack != 0 {
			cols++
		}
	}

	if len(rows) == 0 {
		return sf, nil
	}

	// Rows without a usable slack get an artificial column in phase 1.
	artificials := 0
	for _, row := range rows {
		if row.slack*row.sign() <= 0 {
			artificials++
		}
	}
	if cells := len(rows) * (cols + artificials); cells > s.maxCells() {
		return nil, fmt.Errorf("%w: %d x %d tableau exceeds %d cells", ErrTooLarge, len(rows), cols+artificials, s.maxCells())
	}

	sf.rows = rows
	sf.c = make([]float64, cols)
	sf.ub = make([]float64, cols)
	for j := range sf.ub {
		sf.ub[j] = math.Inf(1)
	}
	for j := 0; j < n; j++ {
		if col := sf.column[j]; col >= 0 {
			_, ub := m.Bounds(Var(j))
			sf.c[col] = cost[j]
			sf.ub[col] = ub - sf.lb[j]
		}
	}

	return sf, nil
}

func emptyRowHolds(sense Sense, rhs float64) bool {
	switch sense {
	case LessEq:
		return 0 <= rhs+feasibilityTol
	case GreaterEq:
		return 0 >= rhs-feasibilityTol
	default:
		return math.Abs(rhs) <= feasibilityTol
	}
}

func (sf *standardForm) solve(ctx context.Context, tol float64, maxIter int) ([]float64, error) {
	if len(sf.rows) == 0 {
		return nil, nil
	}

	tb := newTableau(sf, maxIter)
	if tb.n > tb.artificial {
		cost := make([]float64, tb.n)
		for j := tb.artificial; j < tb.n; j++ {
			cost[j] = 1
		}
		if err := tb.optimize(ctx, cost, tol); err != nil {
			if errors.Is(err, ErrUnbounded) {
				return nil, fmt.Errorf("%w: phase 1 diverged", ErrSolverFailed)
			}
			return nil, err
		}
		if infeasibility := tb.artificialSum(); infeasibility > feasibilityTol*(1+tb.maxRHS) {
			return nil, fmt.Errorf("%w: rows miss by %g after phase 1", ErrInfeasible, infeasibility)
		}
		tb.retireArtificials()
	}

	cost := make([]float64, tb.n)
	copy(cost, sf.c)
	if err := tb.optimize(ctx, cost, tol); err != nil {
		return nil, err
	}
	return tb.x[:len(sf.c)], nil
}

func (sf *standardForm) recover(x []float64) []float64 {
	values := make([]float64, len(sf.column))
	for j, col := range sf.column {
		if col < 0 {
			values[j] = sf.pinned[j]
			continue
		}
		values[j] = sf.lb[j] + math.Min(math.Max(x[col], 0), sf.ub[col])
	}
	return values
}
