// Package ipet builds and solves the Implicit Path Enumeration Technique
// ILP system (C10/C11/C12, spec.md §4.9-§4.11), grounded in the shape
// of original_source's ipet::VarAssignment / ipet::BasicConstraints /
// ipet::FlowFactConstraintBuilder / ipet::CacheConstraintBuilder (per
// _INDEX.md's ipet/ listing): one execution-count variable per block
// and per edge, one flow-conservation constraint per block, one bound
// constraint per flow fact, and one hit/miss pair per l-block
// reference, all folded into a single internal/ilp.System that a
// pluggable internal/ilp.Solver then maximizes.
package ipet

import (
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
	"github.com/statinf-otawa/otawa-core/internal/props"
)

// TimeKey and DeltaKey are the per-block/per-edge timing properties an
// external timing analysis supplies as input (spec.md §4.9: "Times are
// attached as t_b ... by a timing analysis outside the core"). The
// core never computes them; it only reads them back while building the
// objective.
var (
	TimeKey  = props.NewKey[int]("time")  // cycles, on a cfg.Block.Props
	DeltaKey = props.NewKey[int]("delta") // cycles, on a cfg.Edge.Props
)

// BlockVar returns the execution-count variable of b in sys, declaring
// it on first use.
func BlockVar(sys *ilp.System, b *cfg.Block) *ilp.Var {
	return sys.NewVar(blockVarName(b))
}

// EdgeVar returns the execution-count variable of e in sys, declaring
// it on first use.
func EdgeVar(sys *ilp.System, e *cfg.Edge) *ilp.Var {
	return sys.NewVar(edgeVarName(e))
}

func blockVarName(b *cfg.Block) string {
	return "x_b" + globalSuffix(b)
}

func edgeVarName(e *cfg.Edge) string {
	return "x_e" + globalSuffix(e.Source) + "_" + globalSuffix(e.Sink)
}

func globalSuffix(b *cfg.Block) string {
	return itoa(b.GlobalIndex)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// DeclareVars creates every block and edge variable of col in sys and
// installs the objective Σ t_b·x_b + Σ d_e·x_e (spec.md §4.9, C10). A
// block or edge with no time/delta property contributes zero, the
// convention for non-timed synthetic/phantom blocks and edges without
// a pipeline-boundary delta.
func DeclareVars(sys *ilp.System, col *cfg.Collection) {
	var terms []ilp.Term
	for _, c := range col.CFGs {
		for _, b := range c.Blocks {
			v := BlockVar(sys, b)
			if t, ok := props.Get(b.Props, TimeKey); ok && t != 0 {
				terms = append(terms, ilp.Term{Coeff: float64(t), Var: v})
			}
			for _, e := range b.Out() {
				ev := EdgeVar(sys, e)
				if d, ok := props.Get(e.Props, DeltaKey); ok && d != 0 {
					terms = append(terms, ilp.Term{Coeff: float64(d), Var: ev})
				}
			}
		}
	}
	sys.SetObjective(terms, true)
}
