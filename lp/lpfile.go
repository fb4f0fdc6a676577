package lp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const termsPerLine = 8

// WriteLPFile writes m to filename in CPLEX LP format.
func WriteLPFile(filename string, m *Model) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create LP file: %w", err)
	}
	defer file.Close()

	if err := WriteLP(file, m); err != nil {
		return err
	}
	return file.Close()
}

// WriteLP writes m in CPLEX LP format. The objective constant is recorded in a
// comment only, since not every reader accepts constants.
func WriteLP(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	names := ColumnNames(m)
	rowNames := rowNames(m)

	fmt.Fprintf(bw, "\\ Problem: %s\n", m.Name)
	fmt.Fprintf(bw, "\\ Objective constant: %s\n", formatFloat(m.Objective().Constant))
	bw.WriteString("Minimize\n obj:")
	writeTerms(bw, m.Objective().Terms, names, true)
	bw.WriteString("\n")

	bw.WriteString("Subject To\n")
	for i, c := range m.Constraints() {
		fmt.Fprintf(bw, " %s:", rowNames[i])
		terms := c.Expr.Terms
		if len(terms) == 0 && m.NumVars() > 0 {
			terms = []Term{{Var: 0, Coef: 0}}
		}
		writeTerms(bw, terms, names, false)
		fmt.Fprintf(bw, " %s %s\n", c.Sense, formatFloat(c.RHS-c.Expr.Constant))
	}

	bw.WriteString("Bounds\n")
	for j := 0; j < m.NumVars(); j++ {
		lb, ub := m.Bounds(Var(j))
		name := names[j]
		switch {
		case lb == ub:
			fmt.Fprintf(bw, " %s = %s\n", name, formatFloat(lb))
		case math.IsInf(lb, -1) && math.IsInf(ub, 1):
			fmt.Fprintf(bw, " %s free\n", name)
		case math.IsInf(ub, 1):
			if lb != 0 {
				fmt.Fprintf(bw, " %s >= %s\n", name, formatFloat(lb))
			}
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatFloat(lb), name, formatFloat(ub))
		}
	}
	bw.WriteString("End\n")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write LP model: %w", err)
	}
	return nil
}

func writeTerms(bw *bufio.Writer, terms []Term, names []string, allowEmpty bool) {
	if len(terms) == 0 && allowEmpty {
		return
	}
	for i, t := range terms {
		if i > 0 && i%termsPerLine == 0 {
			bw.WriteString("\n  ")
		}
		sign := "+"
		coef := t.Coef
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		if i == 0 && sign == "+" {
			fmt.Fprintf(bw, " %s %s", formatFloat(coef), names[t.Var])
			continue
		}
		fmt.Fprintf(bw, " %s %s %s", sign, formatFloat(coef), names[t.Var])
	}
}

// ColumnNames returns the unique LP-safe name of every variable, in declaration order.
func ColumnNames(m *Model) []string {
	names := make([]string, m.NumVars())
	seen := make(map[string]struct{}, m.NumVars())
	for j := range names {
		name := sanitizeName(m.VarName(Var(j)))
		if _, dup := seen[name]; dup {
			name = fmt.Sprintf("%s_%d", name, j)
		}
		seen[name] = struct{}{}
		names[j] = name
	}
	return names
}

func rowNames(m *Model) []string {
	names := make([]string, m.NumConstraints())
	seen := make(map[string]struct{}, m.NumConstraints())
	for i, c := range m.Constraints() {
		name := sanitizeName(c.Name)
		if _, dup := seen[name]; dup {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	return names
}

func sanitizeName(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
