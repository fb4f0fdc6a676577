package lec

import (
	"context"
	"fmt"

	"github.com/devskill-org/lec-planner/lp"
)

// Model is one assembled community LP, ready to solve once.
type Model struct {
	Options   Options
	Params    *Params
	LP        *lp.Model
	Vars      *Variables
	Objective *Objective
}

// Build validates p and assembles variables, constraints and objective.
func Build(opts Options, p *Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m := lp.NewModel("lec")
	v := declareVariables(m, opts, p)
	addConstraints(m, v, p)
	obj := buildObjective(opts, v, p)
	m.SetObjective(obj.Total())

	return &Model{Options: opts, Params: p, LP: m, Vars: v, Objective: obj}, nil
}

// Stats summarises the model size.
type Stats struct {
	Variables   int `json:"variables"`
	Constraints int `json:"constraints"`
	NonZeros    int `json:"non_zeros"`
}

// Stats returns the size of the assembled LP.
func (m *Model) Stats() Stats {
	return Stats{
		Variables:   m.LP.NumVars(),
		Constraints: m.LP.NumConstraints(),
		NonZeros:    m.LP.NonZeros(),
	}
}

// Solve hands the LP to solver and reads the optimum back.
func (m *Model) Solve(ctx context.Context, solver lp.Solver) (*Result, error) {
	sol, err := solver.Solve(ctx, m.LP)
	if err != nil {
		return nil, fmt.Errorf("failed to solve with %s: %w", solver.Name(), err)
	}
	if len(sol.Values) != m.LP.NumVars() {
		return nil, fmt.Errorf("%w: %s returned %d values for %d variables", lp.ErrSolverFailed, solver.Name(), len(sol.Values), m.LP.NumVars())
	}
	return m.extract(sol), nil
}
