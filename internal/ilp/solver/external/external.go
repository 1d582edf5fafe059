// Package external adapts ilp.Solver to an external solver process,
// the production path spec.md §4.11 calls out ("the ILP solver is an
// external plugin"), grounded directly in
// original_source/src/lp_solve/lp_solve_Plugin.cpp, which wraps the
// lp_solve library behind the same otawa::ilp::ILPPlugin interface
// this package's Solver wraps behind ilp.Solver. Rather than cgo-bind
// liblp_solve, this adapter shells out to the lp_solve command-line
// tool, writing the System in LP format and parsing its solution
// report, keeping the dependency a subprocess boundary like the
// teacher's own external-tool invocations.
package external

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	shellwords "github.com/kballard/go-shellquote"

	"github.com/statinf-otawa/otawa-core/internal/errcode"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
)

// Solver shells out to an lp_solve-compatible binary for each System.
type Solver struct {
	// Command is the binary name or path to invoke. Defaults to
	// "lp_solve".
	Command string
	// ExtraArgs is a shell-quoted string of additional flags appended
	// to the invocation, e.g. "-timeout 30 -p".
	ExtraArgs string
}

// New creates a Solver invoking the given binary (or "lp_solve" if
// path is empty).
func New(path string) *Solver {
	if path == "" {
		path = "lp_solve"
	}
	return &Solver{Command: path}
}

func (s *Solver) Solve(ctx context.Context, sys *ilp.System) (*ilp.Solution, error) {
	args, err := s.args()
	if err != nil {
		return nil, errcode.Wrap(errcode.SolverError, err, "parsing external solver args")
	}

	cmd := exec.CommandContext(ctx, s.Command, args...)
	cmd.Stdin = strings.NewReader(WriteLP(sys))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded {
			return nil, errcode.Wrap(errcode.Timeout, ctxErr, "external solver timed out")
		}
		return nil, errcode.Wrap(errcode.Cancelled, ctxErr, "external solver cancelled")
	}
	if err != nil {
		if isInfeasible(stdout.String()) {
			return nil, errcode.New(errcode.Infeasible, "external solver reported infeasible system")
		}
		return nil, errcode.Wrap(errcode.SolverError, err, "external solver failed: %s", stderr.String())
	}

	return parseSolution(sys, stdout.String())
}

func (s *Solver) args() ([]string, error) {
	args := []string{"-S3"}
	if s.ExtraArgs == "" {
		return args, nil
	}
	extra, err := shellwords.Split(s.ExtraArgs)
	if err != nil {
		return nil, err
	}
	return append(args, extra...), nil
}

func isInfeasible(output string) bool {
	return strings.Contains(strings.ToLower(output), "infeasible")
}

// WriteLP renders sys in lp_solve's native LP file format.
func WriteLP(sys *ilp.System) string {
	var b strings.Builder
	b.WriteString("/* objective */\n")
	if sys.Objective.Maximize {
		b.WriteString("max: ")
	} else {
		b.WriteString("min: ")
	}
	b.WriteString(termsToLP(sys.Objective.Terms))
	b.WriteString(";\n\n/* constraints */\n")

	for _, c := range sys.Constraints {
		fmt.Fprintf(&b, "%s: %s %s %s;\n", sanitizeName(c.Name), termsToLP(c.Terms), opToLP(c.Op), formatNum(c.RHS))
	}

	if len(sys.Vars) > 0 {
		b.WriteString("\nint ")
		names := make([]string, len(sys.Vars))
		for i, v := range sys.Vars {
			names[i] = sanitizeName(v.Name)
		}
		b.WriteString(strings.Join(names, ","))
		b.WriteString(";\n")
	}
	return b.String()
}

func termsToLP(terms []ilp.Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmt.Sprintf("%s %s", formatNum(t.Coeff), sanitizeName(t.Var.Name))
	}
	return strings.Join(parts, " + ")
}

func opToLP(op ilp.Op) string {
	switch op {
	case ilp.LE:
		return "<="
	case ilp.GE:
		return ">="
	default:
		return "="
	}
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// sanitizeName maps a Var's name onto an LP-format-safe identifier;
// block names may contain characters (':', '@') the LP grammar
// reserves, so non-alphanumerics collapse to '_'.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}

// parseSolution reads lp_solve's "-S3" report:
//
//	Value of objective function: 72.00000000
//
//	Actual values of the variables:
//	body                             10
//	header                           11
func parseSolution(sys *ilp.System, output string) (*ilp.Solution, error) {
	byLPName := make(map[string]*ilp.Var, len(sys.Vars))
	for _, v := range sys.Vars {
		byLPName[sanitizeName(v.Name)] = v
	}

	sol := &ilp.Solution{Values: make(map[*ilp.Var]float64, len(sys.Vars))}
	scanner := bufio.NewScanner(strings.NewReader(output))
	inVars := false
	found := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Value of objective function:"):
			raw := strings.TrimPrefix(line, "Value of objective function:")
			val, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, errcode.Wrap(errcode.SolverError, err, "parsing objective value")
			}
			sol.Objective = val
			found = true
		case strings.HasPrefix(line, "Actual values of the variables"):
			inVars = true
		case inVars && line != "":
			fields := strings.Fields(line)
			if len(fields) != 2 {
				continue
			}
			v, ok := byLPName[fields[0]]
			if !ok {
				continue
			}
			val, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, errcode.Wrap(errcode.SolverError, err, "parsing value for %s", fields[0])
			}
			sol.Values[v] = val
		}
	}
	if !found {
		return nil, errcode.New(errcode.SolverError, "external solver produced no parseable objective value")
	}
	return sol, nil
}
