package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/devskill-org/lec-planner/lec"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("planner: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS lec_runs (
	id UUID PRIMARY KEY,
	scenario TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	households INTEGER NOT NULL,
	hours INTEGER NOT NULL,
	solver TEXT NOT NULL,
	variables INTEGER NOT NULL,
	constraints INTEGER NOT NULL,
	objective DOUBLE PRECISION NOT NULL,
	pv_capacity DOUBLE PRECISION NOT NULL,
	storage_volume DOUBLE PRECISION NOT NULL,
	output_dir TEXT NOT NULL,
	error TEXT
);
CREATE TABLE IF NOT EXISTS lec_objective_terms (
	run_id UUID NOT NULL REFERENCES lec_runs(id) ON DELETE CASCADE,
	term TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, term)
);
CREATE TABLE IF NOT EXISTS lec_hourly_totals (
	run_id UUID NOT NULL REFERENCES lec_runs(id) ON DELETE CASCADE,
	hour INTEGER NOT NULL,
	grid_import DOUBLE PRECISION NOT NULL,
	grid_export DOUBLE PRECISION NOT NULL,
	local_import DOUBLE PRECISION NOT NULL,
	stes_soc DOUBLE PRECISION NOT NULL,
	stes_temperature DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, hour)
);`

// Store persists run summaries and hourly totals in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenStore connects to PostgreSQL and creates the tables if needed.
func OpenStore(ctx context.Context, connString string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := NewStore(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Migrate creates the run tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a finished run. Saving the same id again replaces it.
// res may be nil for a failed run.
func (s *Store) SaveRun(ctx context.Context, run *RunSummary, res *lec.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lec_runs WHERE id = $1`, run.ID); err != nil {
		return fmt.Errorf("failed to delete existing run: %w", err)
	}

	var finished sql.NullTime
	if !run.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: run.FinishedAt, Valid: true}
	}
	var runErr sql.NullString
	if run.Error != "" {
		runErr = sql.NullString{String: run.Error, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO lec_runs (
			id, scenario, status, started_at, finished_at,
			households, hours, solver, variables, constraints,
			objective, pv_capacity, storage_volume, output_dir, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		run.ID, run.Scenario, string(run.Status), run.StartedAt, finished,
		run.Households, run.Hours, run.Solver, run.Stats.Variables, run.Stats.Constraints,
		run.Objective, run.PVCapacity, run.StorageVolume, run.OutputDir, runErr,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	termStmt, err := tx.PrepareContext(ctx, `INSERT INTO lec_objective_terms (run_id, term, value) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer termStmt.Close()
	for _, tv := range run.Terms {
		if _, err := termStmt.ExecContext(ctx, run.ID, tv.Name, tv.Value); err != nil {
			return fmt.Errorf("failed to insert term %s: %w", tv.Name, err)
		}
	}

	if res != nil {
		hourStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO lec_hourly_totals (
				run_id, hour, grid_import, grid_export, local_import, stes_soc, stes_temperature
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer hourStmt.Close()
		for t := range res.GridImport {
			_, err := hourStmt.ExecContext(ctx, run.ID, t,
				res.GridImport[t], res.GridExport[t], res.LocalImport[t],
				res.StorageSOC[t], res.StorageTemperature[t],
			)
			if err != nil {
				return fmt.Errorf("failed to insert totals for hour %d: %w", t, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("saved run", zap.Stringer("run_id", run.ID), zap.String("scenario", run.Scenario))
	return nil
}

// LoadRun reads a run summary with its objective terms.
func (s *Store) LoadRun(ctx context.Context, id uuid.UUID) (*RunSummary, error) {
	run := &RunSummary{ID: id}
	var status string
	var finished sql.NullTime
	var runErr sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT
			scenario, status, started_at, finished_at,
			households, hours, solver, variables, constraints,
			objective, pv_capacity, storage_volume, output_dir, error
		FROM lec_runs
		WHERE id = $1`, id).Scan(
		&run.Scenario, &status, &run.StartedAt, &finished,
		&run.Households, &run.Hours, &run.Solver, &run.Stats.Variables, &run.Stats.Constraints,
		&run.Objective, &run.PVCapacity, &run.StorageVolume, &run.OutputDir, &runErr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.Status = RunStatus(status)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	if runErr.Valid {
		run.Error = runErr.String
	}

	rows, err := s.db.QueryContext(ctx, `SELECT term, value FROM lec_objective_terms WHERE run_id = $1 ORDER BY term`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tv lec.TermValue
		if err := rows.Scan(&tv.Name, &tv.Value); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		run.Terms = append(run.Terms, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating terms: %w", err)
	}
	return run, nil
}

// HourlyImport returns the stored community grid import of a run.
func (s *Store) HourlyImport(ctx context.Context, id uuid.UUID) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT grid_import FROM lec_hourly_totals WHERE run_id = $1 ORDER BY hour ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly totals: %w", err)
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan hourly total: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hourly totals: %w", err)
	}
	return out, nil
}
