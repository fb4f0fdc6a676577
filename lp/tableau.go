package lp

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	pivotTol      = 1e-9
	ratioTieTol   = 1e-12
	degenerateRun = 50
	ctxCheckEvery = 32
)

// tableau is a bounded-variable simplex tableau. Every nonbasic column sits
// at zero or at its upper bound and t holds B⁻¹A for the current basis, so
// upper bounds never turn into rows.
type tableau struct {
	m, n       int
	artificial int // first artificial column
	t          *mat.Dense
	d          []float64 // reduced costs
	x          []float64 // value of every column
	ub         []float64
	basis      []int // row -> column
	row        []int // column -> row, -1 when nonbasic
	atUpper    []bool
	blocked    []bool
	maxRHS     float64
	iters      int
	maxIter    int
}

// newTableau equilibrates every row, makes its right-hand side
// non-negative and starts from a basis of slacks and artificials.
func newTableau(sf *standardForm, maxIter int) *tableau {
	m := len(sf.rows)
	cols := len(sf.c)
	artificials := 0
	for _, row := range sf.rows {
		if row.slack*row.sign() <= 0 {
			artificials++
		}
	}
	n := cols + artificials

	tb := &tableau{
		m:          m,
		n:          n,
		artificial: cols,
		t:          mat.NewDense(m, n, nil),
		d:          make([]float64, n),
		x:          make([]float64, n),
		ub:         make([]float64, n),
		basis:      make([]int, m),
		row:        make([]int, n),
		atUpper:    make([]bool, n),
		blocked:    make([]bool, n),
		maxIter:    maxIter,
	}
	if tb.maxIter <= 0 {
		tb.maxIter = 50 * (m + n)
	}
	copy(tb.ub, sf.ub)
	for j := cols; j < n; j++ {
		tb.ub[j] = math.Inf(1)
	}
	for j := range tb.row {
		tb.row[j] = -1
	}

	slack := len(sf.c) - countSlacks(sf.rows)
	next := cols
	for i, r := range sf.rows {
		scale := r.sign() / floats.Norm(r.coefs, math.Inf(1))
		dst := tb.t.RawRowView(i)
		for k, col := range r.cols {
			dst[col] = r.coefs[k] * scale
		}
		rhs := r.rhs * scale
		tb.maxRHS = math.Max(tb.maxRHS, rhs)

		basic := -1
		if r.slack != 0 {
			dst[slack] = r.slack * r.sign()
			if dst[slack] > 0 {
				basic = slack
			}
			slack++
		}
		if basic < 0 {
			dst[next] = 1
			basic = next
			next++
		}
		tb.basis[i] = basic
		tb.row[basic] = i
		tb.x[basic] = rhs
	}
	return tb
}

func countSlacks(rows []sparseRow) int {
	n := 0
	for _, r := range rows {
		if r.slack != 0 {
			n++
		}
	}
	return n
}

// optimize runs primal simplex iterations for cost from the current basis.
// Dantzig pricing is used until a run of degenerate pivots switches to
// Bland's rule, which holds until the objective moves again.
func (tb *tableau) optimize(ctx context.Context, cost []float64, tol float64) error {
	tb.price(cost)
	bland := false
	stalled := 0
	for {
		if tb.iters%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if tb.iters >= tb.maxIter {
			return fmt.Errorf("%w: no optimum after %d pivots", ErrSolverFailed, tb.iters)
		}

		j, dir := tb.entering(tol, bland)
		if j < 0 {
			return nil
		}
		r, theta := tb.ratio(j, dir, bland)
		if math.IsInf(theta, 1) {
			return fmt.Errorf("%w: column %d improves the objective without limit", ErrUnbounded, j)
		}
		tb.iters++
		tb.step(j, r, dir, theta)

		if theta > ratioTieTol {
			stalled, bland = 0, false
			continue
		}
		if stalled++; stalled > degenerateRun {
			bland = true
		}
	}
}

// price recomputes the reduced costs d = c - c_Bᵀ B⁻¹A.
func (tb *tableau) price(cost []float64) {
	copy(tb.d, cost)
	for i, col := range tb.basis {
		if cb := cost[col]; cb != 0 {
			floats.AddScaled(tb.d, -cb, tb.t.RawRowView(i))
		}
	}
	for _, col := range tb.basis {
		tb.d[col] = 0
	}
}

// entering picks an improving nonbasic column and the direction it moves in.
func (tb *tableau) entering(tol float64, bland bool) (int, float64) {
	best, dir, score := -1, 0.0, 0.0
	for j := 0; j < tb.n; j++ {
		if tb.row[j] >= 0 || tb.blocked[j] {
			continue
		}
		var sc, dr float64
		switch d := tb.d[j]; {
		case !tb.atUpper[j] && d < -tol:
			sc, dr = -d, 1
		case tb.atUpper[j] && d > tol:
			sc, dr = d, -1
		default:
			continue
		}
		if bland {
			return j, dr
		}
		if sc > score {
			best, dir, score = j, dr, sc
		}
	}
	return best, dir
}

// ratio returns the blocking row and step length for moving column j in
// direction dir. Row -1 means j reaches its own opposite bound first.
// Ties go to the largest pivot, or to the lowest column under Bland's rule.
func (tb *tableau) ratio(j int, dir float64, bland bool) (int, float64) {
	theta := tb.ub[j]
	leave := -1
	pivot := 0.0
	for i := 0; i < tb.m; i++ {
		alpha := dir * tb.t.At(i, j)
		b := tb.basis[i]
		var lim float64
		switch {
		case alpha > pivotTol:
			lim = math.Max(tb.x[b], 0) / alpha
		case alpha < -pivotTol && !math.IsInf(tb.ub[b], 1):
			lim = math.Max(tb.ub[b]-tb.x[b], 0) / -alpha
		default:
			continue
		}

		switch {
		case lim < theta-ratioTieTol:
		case lim <= theta+ratioTieTol && leave >= 0:
			if bland && b > tb.basis[leave] {
				continue
			}
			if !bland && math.Abs(alpha) <= pivot {
				continue
			}
		default:
			continue
		}
		theta, leave, pivot = lim, i, math.Abs(alpha)
	}
	return leave, theta
}

// step moves column j by theta and either flips it to its other bound or
// pivots it into the basis at row r.
func (tb *tableau) step(j, r int, dir, theta float64) {
	if theta != 0 {
		for i, b := range tb.basis {
			if a := tb.t.At(i, j); a != 0 {
				tb.x[b] -= dir * theta * a
			}
		}
		tb.x[j] += dir * theta
	}

	if r < 0 {
		tb.atUpper[j] = !tb.atUpper[j]
		if tb.atUpper[j] {
			tb.x[j] = tb.ub[j]
		} else {
			tb.x[j] = 0
		}
		return
	}

	leaving := tb.basis[r]
	if dir*tb.t.At(r, j) > 0 {
		tb.x[leaving], tb.atUpper[leaving] = 0, false
	} else {
		tb.x[leaving], tb.atUpper[leaving] = tb.ub[leaving], true
	}
	tb.pivot(r, j)
}

// pivot makes column j basic in row r.
func (tb *tableau) pivot(r, j int) {
	prow := tb.t.RawRowView(r)
	floats.Scale(1/prow[j], prow)
	prow[j] = 1
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		if f := row[j]; f != 0 {
			floats.AddScaled(row, -f, prow)
			row[j] = 0
		}
	}
	if f := tb.d[j]; f != 0 {
		floats.AddScaled(tb.d, -f, prow)
	}
	tb.d[j] = 0

	tb.row[tb.basis[r]] = -1
	tb.basis[r] = j
	tb.row[j] = r
	tb.atUpper[j] = false
}

func (tb *tableau) artificialSum() float64 {
	return floats.Sum(tb.x[tb.artificial:])
}

// retireArtificials fixes every artificial at zero after phase 1 and
// swaps basic ones for a structural or slack column where the row allows.
// A row with no such column is redundant and keeps its artificial.
func (tb *tableau) retireArtificials() {
	for j := tb.artificial; j < tb.n; j++ {
		tb.blocked[j] = true
		tb.ub[j] = 0
		tb.x[j] = 0
		r := tb.row[j]
		if r < 0 {
			continue
		}
		row := tb.t.RawRowView(r)
		best, mag := -1, pivotTol
		for k := 0; k < tb.artificial; k++ {
			if tb.row[k] < 0 && math.Abs(row[k]) > mag {
				best, mag = k, math.Abs(row[k])
			}
		}
		if best >= 0 {
			tb.pivot(r, best)
		}
	}
}
