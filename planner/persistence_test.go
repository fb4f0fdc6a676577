package planner

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/devskill-org/lec-planner/lec"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// openTestStore connects to the database named by TEST_POSTGRES_CONN.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	conn := os.Getenv("TEST_POSTGRES_CONN")
	if conn == "" {
		t.Skip("TEST_POSTGRES_CONN not set")
	}
	store, err := OpenStore(context.Background(), conn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveAndLoadRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := &RunSummary{
		ID:         uuid.New(),
		Scenario:   "base",
		Status:     RunSucceeded,
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		FinishedAt: time.Now().UTC().Truncate(time.Second),
		Households: 2,
		Hours:      2,
		Solver:     "simplex",
		Stats:      lec.Stats{Variables: 10, Constraints: 5},
		Objective:  4.5,
		PVCapacity: 1.5,
		OutputDir:  "results/base",
	}
	res := sampleResult()
	run.Terms = res.Terms
	require.NoError(t, store.SaveRun(ctx, run, res))
	// Saving twice replaces the run.
	require.NoError(t, store.SaveRun(ctx, run, res))

	got, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Scenario, got.Scenario)
	assert.Equal(t, run.Status, got.Status)
	assert.Equal(t, run.Stats.Variables, got.Stats.Variables)
	assert.InDelta(t, run.Objective, got.Objective, 1e-9)
	assert.ElementsMatch(t, run.Terms, got.Terms)
	assert.Empty(t, got.Error)

	imports, err := store.HourlyImport(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.GridImport, imports)

	_, err = store.LoadRun(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStoreSavesFailedRunWithoutResult(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := &RunSummary{
		ID:        uuid.New(),
		Scenario:  "broken",
		Status:    RunFailed,
		StartedAt: time.Now().UTC(),
		Solver:    "highs",
		Error:     "infeasible",
	}
	require.NoError(t, store.SaveRun(ctx, run, nil))

	got, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "infeasible", got.Error)
	assert.Empty(t, got.Terms)

	imports, err := store.HourlyImport(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, imports)
}
