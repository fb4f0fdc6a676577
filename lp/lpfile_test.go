package lp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel() (*Model, Var, Var) {
	m := NewModel("sample")
	x := m.AddVar("grid_import[0,1]", 0, 43.47)
	y := m.AddVar("2nd", 0, Inf)
	row := NewExpr(2)
	row.Add(x, 1).Add(y, -2).AddConstant(1)
	m.AddConstraint("balance", row, Equal, 3)
	m.AddConstraint("cap", Sum(y), LessEq, 10)
	obj := NewExpr(2)
	obj.Add(x, 0.5).Add(y, 1).AddConstant(7)
	m.SetObjective(obj)
	return m, x, y
}

func TestWriteLP(t *testing.T) {
	m, _, _ := sampleModel()
	z := m.AddVar("fixed", 2, 2)
	_ = z

	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, m))
	out := buf.String()

	assert.Contains(t, out, "Minimize\n obj: 0.5 grid_import_0_1_ + 1 _2nd\n")
	assert.Contains(t, out, " balance: 1 grid_import_0_1_ - 2 _2nd = 2\n")
	assert.Contains(t, out, " cap: 1 _2nd <= 10\n")
	assert.Contains(t, out, " 0 <= grid_import_0_1_ <= 43.47\n")
	assert.Contains(t, out, " fixed = 2\n")
	assert.Contains(t, out, "\\ Objective constant: 7\n")
	assert.True(t, strings.HasSuffix(out, "End\n"))
}

func TestColumnNamesAreUnique(t *testing.T) {
	m := NewModel("dups")
	m.AddVar("a b", 0, Inf)
	m.AddVar("a_b", 0, Inf)
	names := ColumnNames(m)
	assert.Equal(t, []string{"a_b", "a_b_1"}, names)
}

func TestReadHiGHSSolution(t *testing.T) {
	m, x, y := sampleModel()

	tests := []struct {
		name    string
		content string
		wantErr error
		x, y    float64
	}{
		{
			name: "optimal",
			content: `Model status
Optimal

# Primal solution values
Feasible
Objective 8
# Columns 2
grid_import_0_1_ 2
_2nd 0
# Rows 2
balance 2
cap 0
`,
			x: 2,
			y: 0,
		},
		{
			name:    "infeasible",
			content: "Model status\nInfeasible\n\n# Primal solution values\nNone\n",
			wantErr: ErrInfeasible,
		},
		{
			name:    "time limit",
			content: "Model status\nTime limit reached\n",
			wantErr: ErrSolverFailed,
		},
		{
			name:    "truncated",
			content: "Model status\nOptimal\n\n# Primal solution values\nFeasible\n",
			wantErr: ErrSolverFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := readHiGHSSolution(strings.NewReader(tt.content), m)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.x, values[x], 1e-12)
			assert.InDelta(t, tt.y, values[y], 1e-12)
		})
	}
}

func TestHiGHSRunsBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "highs")
	content := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --solution_file) sol="$2"; shift ;;
  esac
  shift
done
cat > "$sol" <<EOF
Model status
Optimal

# Primal solution values
Feasible
Objective 8
# Columns 2
grid_import_0_1_ 2
_2nd 0
EOF
`
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

	m, x, _ := sampleModel()
	solver := &HiGHS{Binary: script, TimeLimit: time.Minute, WorkDir: dir}
	sol, err := solver.Solve(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, 2, sol.Value(x), 1e-12)
	assert.InDelta(t, 0.5*2+7, sol.Objective, 1e-12)
	assert.Equal(t, "highs", solver.Name())
}

func TestHiGHSReportsMissingBinary(t *testing.T) {
	m, _, _ := sampleModel()
	solver := &HiGHS{Binary: filepath.Join(t.TempDir(), "missing-highs")}
	_, err := solver.Solve(context.Background(), m)
	assert.ErrorIs(t, err, ErrSolverFailed)
}
