// Package planner runs LEC scenarios end to end: it loads the study data,
// samples each community, builds and solves the model, writes the result
// files and reports progress to logs, metrics, the database and the status
// server.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devskill-org/lec-planner/lec"
	"github.com/devskill-org/lec-planner/lp"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RunStatus is the state of a scenario run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunSummary describes one scenario run.
type RunSummary struct {
	ID            uuid.UUID       `json:"id"`
	Scenario      string          `json:"scenario"`
	Status        RunStatus       `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Households    int             `json:"households"`
	Hours         int             `json:"hours"`
	Solver        string          `json:"solver"`
	Stats         lec.Stats       `json:"stats"`
	Objective     float64         `json:"objective"`
	Terms         []lec.TermValue `json:"terms,omitempty"`
	PVCapacity    float64         `json:"pv_capacity"`    // kWp, community total
	StorageVolume float64         `json:"storage_volume"` // m3
	OutputDir     string          `json:"output_dir"`
	Error         string          `json:"error,omitempty"`
}

// EventSink receives run lifecycle events.
type EventSink interface {
	Publish(Event)
}

// Event is a run lifecycle notification.
type Event struct {
	Type string      `json:"type"` // run_started, run_finished or run_failed
	Run  *RunSummary `json:"run"`
	Time time.Time   `json:"time"`
}

// NewSolver returns the LP backend selected by cfg.
func NewSolver(cfg SolverConfig, workDir string) (lp.Solver, error) {
	switch cfg.Backend {
	case BackendSimplex:
		s := lp.NewSimplex()
		if cfg.MaxCells > 0 {
			s.MaxCells = cfg.MaxCells
		}
		return s, nil
	case BackendHiGHS:
		return &lp.HiGHS{
			Binary:    cfg.HiGHSBinary,
			TimeLimit: cfg.TimeLimit,
			Threads:   cfg.Threads,
			WorkDir:   workDir,
			KeepFiles: cfg.KeepFiles,
		}, nil
	default:
		return nil, fmt.Errorf("unknown solver backend: %s", cfg.Backend)
	}
}

// Planner runs the scenarios of a study.
type Planner struct {
	config *Config
	inputs *Inputs
	solver lp.Solver

	store   *Store
	metrics *Metrics
	events  EventSink
	logger  *zap.Logger

	mu      sync.RWMutex
	current *RunSummary
	history []*RunSummary
}

// Option configures a Planner.
type Option func(*Planner)

// WithStore persists every run.
func WithStore(s *Store) Option { return func(p *Planner) { p.store = s } }

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option { return func(p *Planner) { p.metrics = m } }

// WithEvents publishes run events.
func WithEvents(e EventSink) Option { return func(p *Planner) { p.events = e } }

// WithSolver overrides the solver selected by the configuration.
func WithSolver(s lp.Solver) Option { return func(p *Planner) { p.solver = s } }

// New creates a planner over loaded inputs.
func New(config *Config, inputs *Inputs, logger *zap.Logger, opts ...Option) (*Planner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Planner{
		config: config,
		inputs: inputs,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.solver == nil {
		solver, err := NewSolver(config.Solver, "")
		if err != nil {
			return nil, err
		}
		p.solver = solver
	}
	return p, nil
}

// GetConfig returns the study configuration.
func (p *Planner) GetConfig() *Config {
	return p.config
}

// BuildModel samples the community of sc and assembles its LP without solving it.
func (p *Planner) BuildModel(sc Scenario) (*lec.Model, *Community, error) {
	community, err := p.inputs.Community(p.config.City, sc)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	params, err := ScenarioParams(p.config.Model, sc, community)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	model, err := lec.Build(sc.Options, params)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario %s: failed to build model: %w", sc.Name, err)
	}
	return model, community, nil
}

// Run executes one scenario: clear its output directory, build, solve, write
// results and persist the summary. The summary is returned also on failure.
func (p *Planner) Run(ctx context.Context, sc Scenario) (*RunSummary, error) {
	writer := NewResultsWriter(p.config.OutputDir, sc.Name)
	run := &RunSummary{
		ID:        uuid.New(),
		Scenario:  sc.Name,
		Status:    RunRunning,
		StartedAt: time.Now(),
		Solver:    p.solver.Name(),
		OutputDir: writer.Dir,
	}
	logger := p.logger.With(zap.String("scenario", sc.Name), zap.Stringer("run_id", run.ID))
	p.begin(run)

	res, err := p.execute(ctx, sc, run, writer, logger)
	run.FinishedAt = time.Now()
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		logger.Error("run failed", zap.Error(err), zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	} else {
		run.Status = RunSucceeded
		logger.Info("run finished",
			zap.Float64("objective", run.Objective),
			zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
		)
	}

	if p.store != nil {
		if serr := p.store.SaveRun(ctx, run, res); serr != nil {
			logger.Error("failed to persist run", zap.Error(serr))
			if err == nil {
				err = serr
			}
		}
	}
	p.finish(run)
	return run, err
}

func (p *Planner) execute(ctx context.Context, sc Scenario, run *RunSummary, writer *ResultsWriter, logger *zap.Logger) (*lec.Result, error) {
	if err := writer.Clear(); err != nil {
		return nil, err
	}

	model, community, err := p.BuildModel(sc)
	if err != nil {
		return nil, err
	}
	run.Households = model.Params.Households
	run.Hours = model.Params.Hours()
	run.Stats = model.Stats()
	p.metrics.observeModel(sc.Name, run.Stats)
	logger.Info("model built",
		zap.Int("households", run.Households),
		zap.Int("hours", run.Hours),
		zap.Int("variables", run.Stats.Variables),
		zap.Int("constraints", run.Stats.Constraints),
		zap.Int("non_zeros", run.Stats.NonZeros),
	)

	start := time.Now()
	res, err := model.Solve(ctx, p.solver)
	p.metrics.observeSolve(sc.Name, p.solver.Name(), time.Since(start))
	if err != nil {
		if errors.Is(err, lp.ErrTooLarge) {
			logger.Warn("model too large for the in-process solver, use the highs backend or a window")
		}
		return nil, err
	}
	logger.Debug("model solved", zap.Duration("elapsed", time.Since(start)))

	run.Objective = res.Objective
	run.Terms = res.Terms
	run.PVCapacity = lo.Sum(res.PVCapacity)
	run.StorageVolume = res.StorageVolume

	if err := writer.Write(res, community.Households); err != nil {
		// A partial set of files would look like a finished run.
		if cerr := writer.Clear(); cerr != nil {
			logger.Warn("failed to remove partial results", zap.Error(cerr))
		}
		return res, fmt.Errorf("failed to write results: %w", err)
	}
	return res, nil
}

// RunAll executes the named scenarios in order, or every scenario when names
// is empty. It stops at the first failure or cancellation. done, when not nil,
// is called after each run.
func (p *Planner) RunAll(ctx context.Context, names []string, done func(*RunSummary)) ([]*RunSummary, error) {
	scenarios, err := p.selectScenarios(names)
	if err != nil {
		return nil, err
	}
	runs := make([]*RunSummary, 0, len(scenarios))
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		run, err := p.Run(ctx, sc)
		runs = append(runs, run)
		if done != nil {
			done(run)
		}
		if err != nil {
			return runs, err
		}
	}
	return runs, nil
}

func (p *Planner) selectScenarios(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return p.config.Scenarios, nil
	}
	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		sc, err := p.config.Scenario(name)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (p *Planner) begin(run *RunSummary) {
	snapshot := *run
	p.mu.Lock()
	p.current = &snapshot
	p.mu.Unlock()
	p.publish("run_started", run)
}

func (p *Planner) finish(run *RunSummary) {
	p.mu.Lock()
	p.current = nil
	p.history = append(p.history, run)
	p.mu.Unlock()

	p.metrics.observeRun(run)
	if run.Status == RunSucceeded {
		p.publish("run_finished", run)
	} else {
		p.publish("run_failed", run)
	}
}

func (p *Planner) publish(kind string, run *RunSummary) {
	if p.events == nil {
		return
	}
	snapshot := *run
	p.events.Publish(Event{Type: kind, Run: &snapshot, Time: time.Now().UTC()})
}

// Status is a snapshot of the planner for the status server.
type Status struct {
	Running   bool          `json:"running"`
	Current   *RunSummary   `json:"current,omitempty"`
	Completed []*RunSummary `json:"completed"`
	Scenarios []string      `json:"scenarios"`
}

// GetStatus returns the current run and the finished runs.
func (p *Planner) GetStatus() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := Status{
		Running:   p.current != nil,
		Completed: make([]*RunSummary, len(p.history)),
		Scenarios: lo.Map(p.config.Scenarios, func(s Scenario, _ int) string { return s.Name }),
	}
	copy(st.Completed, p.history)
	st.Current = p.current
	return st
}
