package lp

import (
	"context"
	"errors"
)

var (
	ErrInfeasible   = errors.New("lp: model is infeasible")
	ErrUnbounded    = errors.New("lp: model is unbounded")
	ErrTooLarge     = errors.New("lp: model too large for solver")
	ErrSolverFailed = errors.New("lp: solver failed")
)

// Solver finds an optimal solution of a model.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model) (*Solution, error)
}
