package lp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HiGHS solves models by running the highs command-line solver on an LP file.
type HiGHS struct {
	Binary    string        // executable, "highs" when empty
	TimeLimit time.Duration // solver time limit, 0 for none
	Threads   int           // 0 lets the solver decide
	WorkDir   string        // parent of the temporary model directory
	KeepFiles bool          // keep model and solution files after the run
}

// Name implements Solver.
func (h *HiGHS) Name() string {
	return "highs"
}

// Solve implements Solver.
func (h *HiGHS) Solve(ctx context.Context, m *Model) (*Solution, error) {
	dir, err := os.MkdirTemp(h.WorkDir, "lec-highs-")
	if err != nil {
		return nil, fmt.Errorf("failed to create solver work dir: %w", err)
	}
	if !h.KeepFiles {
		defer os.RemoveAll(dir)
	}

	modelFile := filepath.Join(dir, "model.lp")
	solutionFile := filepath.Join(dir, "model.sol")
	if err := WriteLPFile(modelFile, m); err != nil {
		return nil, err
	}

	binary := h.Binary
	if binary == "" {
		binary = "highs"
	}
	args := []string{"--model_file", modelFile, "--solution_file", solutionFile}
	if h.TimeLimit > 0 {
		args = append(args, "--time_limit", strconv.FormatFloat(h.TimeLimit.Seconds(), 'f', -1, 64))
	}
	if h.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(h.Threads))
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrSolverFailed, binary, err, lastLines(output.String(), 5))
	}

	file, err := os.Open(solutionFile)
	if err != nil {
		return nil, fmt.Errorf("%w: no solution file: %v", ErrSolverFailed, err)
	}
	defer file.Close()

	values, err := readHiGHSSolution(file, m)
	if err != nil {
		return nil, err
	}
	return &Solution{Objective: m.Objective().Value(values), Values: values}, nil
}

// readHiGHSSolution parses the raw solution style written by highs --solution_file.
func readHiGHSSolution(r io.Reader, m *Model) ([]float64, error) {
	index := make(map[string]int, m.NumVars())
	for j, name := range ColumnNames(m) {
		index[name] = j
	}

	values := make([]float64, m.NumVars())
	for j := range values {
		values[j], _ = m.Bounds(Var(j))
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	status := ""
	inPrimal := false
	remaining := -1
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case status == "" && strings.HasPrefix(line, "Model status"):
			status = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "Model status"), ":"))
			for status == "" && scanner.Scan() {
				status = strings.TrimSpace(scanner.Text())
			}
			if err := checkHiGHSStatus(status); err != nil {
				return nil, err
			}
		case line == "# Primal solution values":
			inPrimal = true
		case inPrimal && remaining < 0 && strings.HasPrefix(line, "# Columns"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "# Columns")))
			if err != nil {
				return nil, fmt.Errorf("%w: bad column count %q", ErrSolverFailed, line)
			}
			remaining = n
		case remaining > 0:
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: bad solution line %q", ErrSolverFailed, line)
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad value in %q", ErrSolverFailed, line)
			}
			if j, ok := index[fields[0]]; ok {
				values[j] = v
			}
			remaining--
			if remaining == 0 {
				return values, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read solution: %w", err)
	}
	if status == "" {
		return nil, fmt.Errorf("%w: solution file has no model status", ErrSolverFailed)
	}
	if remaining != 0 {
		return nil, fmt.Errorf("%w: solution file has no primal values", ErrSolverFailed)
	}
	return values, nil
}

func checkHiGHSStatus(status string) error {
	s := strings.ToLower(status)
	switch {
	case s == "optimal":
		return nil
	case strings.Contains(s, "unbounded") && !strings.Contains(s, "infeasible"):
		return fmt.Errorf("%w: highs reported %q", ErrUnbounded, status)
	case strings.Contains(s, "infeasible"):
		return fmt.Errorf("%w: highs reported %q", ErrInfeasible, status)
	default:
		return fmt.Errorf("%w: highs reported %q", ErrSolverFailed, status)
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
