// Package ilp models the integer linear program IPET builds (C11,
// spec.md §4.11): variables, linear constraints, and a maximization
// objective, solved by a pluggable Solver. Grounded in the shape of
// original_source's ilp::System/Var/Constraint (per _INDEX.md's
// ilp/System, ilp/Var, ilp/Constraint), kept variable-name-addressable
// the way the original's named ILP variables are, rather than raw
// matrix columns, so constraint-building code and solver back-end
// adapters both read naturally.
package ilp

import "fmt"

// Var is one ILP variable: a non-negative integer, per IPET's
// execution-count semantics (spec.md §4.10).
type Var struct {
	Name string
}

func (v *Var) String() string { return v.Name }

// Op is a constraint's relational operator.
type Op int

const (
	LE Op = iota
	GE
	EQ
)

func (o Op) String() string {
	switch o {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// Term is one coefficient*variable addend of a linear expression.
type Term struct {
	Coeff float64
	Var   *Var
}

// Constraint is one named linear inequality or equality over Terms.
type Constraint struct {
	Name  string
	Terms []Term
	Op    Op
	RHS   float64
}

// Objective is the linear function System maximizes (WCET's "sum of
// block execution count times block cost", spec.md §4.9).
type Objective struct {
	Terms    []Term
	Maximize bool
}

// System is the full ILP problem: its variables, constraints, and
// objective.
type System struct {
	Vars        []*Var
	byName      map[string]*Var
	Constraints []*Constraint
	Objective   Objective
}

// NewSystem creates an empty ILP system.
func NewSystem() *System {
	return &System{byName: map[string]*Var{}}
}

// NewVar declares a fresh variable, or returns the existing one if
// name was already declared (IPET reuses the same variable for a
// block across every constraint that mentions it).
func (s *System) NewVar(name string) *Var {
	if v, ok := s.byName[name]; ok {
		return v
	}
	v := &Var{Name: name}
	s.byName[name] = v
	s.Vars = append(s.Vars, v)
	return v
}

// Var looks up a previously declared variable by name.
func (s *System) Var(name string) (*Var, bool) {
	v, ok := s.byName[name]
	return v, ok
}

// AddConstraint appends and returns a new named constraint.
func (s *System) AddConstraint(name string, terms []Term, op Op, rhs float64) *Constraint {
	c := &Constraint{Name: name, Terms: terms, Op: op, RHS: rhs}
	s.Constraints = append(s.Constraints, c)
	return c
}

// SetObjective installs the system's objective function.
func (s *System) SetObjective(terms []Term, maximize bool) {
	s.Objective = Objective{Terms: terms, Maximize: maximize}
}

func (c *Constraint) String() string {
	s := ""
	for i, t := range c.Terms {
		if i > 0 {
			s += " + "
		}
		s += fmt.Sprintf("%g*%s", t.Coeff, t.Var.Name)
	}
	return fmt.Sprintf("%s: %s %s %g", c.Name, s, c.Op, c.RHS)
}

// Eval returns the value of a linear expression given a full variable
// assignment.
func Eval(terms []Term, values map[*Var]float64) float64 {
	total := 0.0
	for _, t := range terms {
		total += t.Coeff * values[t.Var]
	}
	return total
}

// Satisfied reports whether values satisfies c.
func (c *Constraint) Satisfied(values map[*Var]float64) bool {
	const eps = 1e-6
	lhs := Eval(c.Terms, values)
	switch c.Op {
	case LE:
		return lhs <= c.RHS+eps
	case GE:
		return lhs >= c.RHS-eps
	default:
		return lhs > c.RHS-eps && lhs < c.RHS+eps
	}
}
