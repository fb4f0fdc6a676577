package planner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devskill-org/lec-planner/lec"
	"github.com/devskill-org/lec-planner/lp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPlanner(t *testing.T, cfg *Config, opts ...Option) *Planner {
	t.Helper()
	inputs, err := LoadInputs(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	p, err := New(cfg, inputs, zap.NewNop(), opts...)
	require.NoError(t, err)
	return p
}

func TestRunFlatCommunity(t *testing.T) {
	cfg := writeFixtures(t)
	events := &recorder{}
	metrics := NewMetrics()
	p := newTestPlanner(t, cfg, WithEvents(events), WithMetrics(metrics))

	run, err := p.Run(context.Background(), cfg.Scenarios[0])
	require.NoError(t, err)

	assert.Equal(t, RunSucceeded, run.Status)
	assert.Equal(t, 2, run.Households)
	assert.Equal(t, 24, run.Hours)
	assert.Equal(t, "simplex", run.Solver)
	assert.Greater(t, run.Stats.Variables, 0)
	assert.InDelta(t, 0, run.PVCapacity, 1e-6, "no sun, no pv")
	assert.Zero(t, run.StorageVolume)

	// Resistive heating makes all demand electric: 2 households x 24 h x 2 kWh.
	data, err := os.ReadFile(filepath.Join(run.OutputDir, "grid_import.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 25)
	assert.Equal(t, "hour,grid_import", lines[0])

	power, ok := lookupTerm(run.Terms, lec.TermPowerMarket)
	require.True(t, ok)
	assert.InDelta(t, 96*fixtureSpot/1000, power, 1e-6)

	total := 0.0
	for _, tv := range run.Terms {
		total += tv.Value
	}
	assert.InDelta(t, total, run.Objective, 1e-6)

	terms, err := os.ReadFile(filepath.Join(run.OutputDir, "objective_terms.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(terms), "\ntotal,")

	assert.Equal(t, []string{"run_started", "run_finished"}, events.types())
	st := p.GetStatus()
	assert.False(t, st.Running)
	require.Len(t, st.Completed, 1)
	assert.Equal(t, run.ID, st.Completed[0].ID)
}

func lookupTerm(terms []lec.TermValue, name string) (float64, bool) {
	for _, tv := range terms {
		if tv.Name == name {
			return tv.Value, true
		}
	}
	return 0, false
}

func TestRunClearsOutputDirectory(t *testing.T) {
	cfg := writeFixtures(t)
	p := newTestPlanner(t, cfg)

	stale := filepath.Join(cfg.OutputDir, "base", "stale.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := p.Run(context.Background(), cfg.Scenarios[0])
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "base", "heating_sources.csv"))
}

func TestRunFailureIsReported(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Scenarios = append(cfg.Scenarios, Scenario{Name: "future", NumHouses: 2, WindowHours: 24, UseFuturePrices: true})
	events := &recorder{}
	p := newTestPlanner(t, cfg, WithEvents(events))

	run, err := p.Run(context.Background(), cfg.Scenarios[1])
	require.Error(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "future prices")
	assert.Equal(t, []string{"run_started", "run_failed"}, events.types())
}

// blockingSolver solves normally after occupying an output file name with
// a directory, so writing that file fails once the others are written.
type blockingSolver struct {
	path string
}

func (blockingSolver) Name() string { return "blocking" }

func (b blockingSolver) Solve(ctx context.Context, m *lp.Model) (*lp.Solution, error) {
	if err := os.MkdirAll(filepath.Join(b.path, "inner"), 0o755); err != nil {
		return nil, err
	}
	return lp.NewSimplex().Solve(ctx, m)
}

func TestRunRemovesPartialResults(t *testing.T) {
	tests := []struct {
		name    string
		blocked string
	}{
		{name: "last file fails", blocked: "objective_terms.csv"},
		{name: "middle file fails", blocked: "stes_soc.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeFixtures(t)
			dir := filepath.Join(cfg.OutputDir, cfg.Scenarios[0].Name)
			p := newTestPlanner(t, cfg, WithSolver(blockingSolver{path: filepath.Join(dir, tt.blocked)}))

			run, err := p.Run(context.Background(), cfg.Scenarios[0])
			require.Error(t, err)
			assert.Equal(t, RunFailed, run.Status)
			assert.Contains(t, run.Error, "failed to write results")

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "no partial outputs are left behind")
		})
	}
}

type failingSolver struct{}

func (failingSolver) Name() string { return "failing" }

func (failingSolver) Solve(ctx context.Context, m *lp.Model) (*lp.Solution, error) {
	return nil, lp.ErrInfeasible
}

func TestRunAll(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Scenarios = append(cfg.Scenarios, Scenario{Name: "hp", NumHouses: 1, WindowHours: 12, Options: lec.Options{EnableHouseHP: true}})

	p := newTestPlanner(t, cfg)
	var done []string
	runs, err := p.RunAll(context.Background(), nil, func(r *RunSummary) { done = append(done, r.Scenario) })
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, []string{"base", "hp"}, done)

	_, err = p.RunAll(context.Background(), []string{"missing"}, nil)
	assert.Error(t, err)

	failing := newTestPlanner(t, cfg, WithSolver(failingSolver{}))
	runs, err = failing.RunAll(context.Background(), []string{"hp", "base"}, nil)
	assert.ErrorIs(t, err, lp.ErrInfeasible)
	require.Len(t, runs, 1, "stops at the first failure")
	assert.Equal(t, "failing", runs[0].Solver)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runs, err = p.RunAll(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, runs)
}

func TestBuildModelSamplesDeterministically(t *testing.T) {
	cfg := writeFixtures(t)
	p := newTestPlanner(t, cfg)
	sc := cfg.Scenarios[0]

	m1, c1, err := p.BuildModel(sc)
	require.NoError(t, err)
	m2, c2, err := p.BuildModel(sc)
	require.NoError(t, err)
	assert.Equal(t, c1.Households, c2.Households)
	assert.Equal(t, m1.Stats(), m2.Stats())
	assert.Equal(t, 24, m1.Params.Hours())
}

func TestNewSolver(t *testing.T) {
	s, err := NewSolver(SolverConfig{Backend: BackendSimplex, MaxCells: 10}, "")
	require.NoError(t, err)
	assert.Equal(t, 10, s.(*lp.Simplex).MaxCells)

	s, err = NewSolver(SolverConfig{Backend: BackendHiGHS, HiGHSBinary: "/opt/highs", Threads: 2}, "/tmp")
	require.NoError(t, err)
	h := s.(*lp.HiGHS)
	assert.Equal(t, "/opt/highs", h.Binary)
	assert.Equal(t, "/tmp", h.WorkDir)

	_, err = NewSolver(SolverConfig{Backend: "glpk"}, "")
	assert.Error(t, err)
}
