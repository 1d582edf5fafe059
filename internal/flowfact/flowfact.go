// Package flowfact parses the flow-fact file of spec.md §6: one
// directive per line. Loop bounds feed the IPET constraint builder
// (C11); indirect-branch targets and call-ignore directives are parsed
// and stored, but no stage of the pipeline reads them. Grounded in the teacher's participle-based
// grammar (grammar/grammar.go, grammar/lexer.go) and parser
// (internal/parser/parser.go): a stateful lexer plus a struct-tagged
// grammar built once with participle.Build, generalized from the
// Kanso source-language grammar to this line-oriented fact language.
package flowfact

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/errcode"
)

// Lexer tokenizes one directive line. Hex must be tried before Int so
// "0x10" lexes as one Hex token rather than Int("0") + Ident("x10").
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Hex", Pattern: `0x[0-9a-fA-F]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

type directiveGrammar struct {
	Loop   *loopGrammar   `(  @@`
	Call   *callGrammar   ` | @@`
	Branch *branchGrammar ` | @@`
	Return *returnGrammar ` | @@ )`
}

type loopGrammar struct {
	Addr     string          `"loop" @Hex`
	Simple   *int            `( @Int`
	MaxTotal *maxTotalGrammar ` | @@ )`
}

type maxTotalGrammar struct {
	Max   int `"max" @Int`
	Total int `"total" @Int`
}

type callGrammar struct {
	Addr string `"call" @Hex "ignore"`
}

type branchGrammar struct {
	Addr   string `"branch" @Hex`
	Target string `@Hex`
}

type returnGrammar struct {
	Addr string `"return" @Hex`
}

var parser = buildParser()

func buildParser() *participle.Parser[directiveGrammar] {
	p, err := participle.Build[directiveGrammar](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
	if err != nil {
		panic(fmt.Errorf("flowfact: failed to build parser: %w", err))
	}
	return p
}

var knownKeywords = map[string]bool{"loop": true, "call": true, "branch": true, "return": true}

// LoopBound is a `loop ADDR [BOUND | max MAX total TOTAL]` fact. Total
// is -1 when the line supplied only a per-invocation bound.
type LoopBound struct {
	Header address.Address
	Max    int
	Total  int
}

// CallIgnore is a `call ADDR ignore` fact: do not inline this call.
type CallIgnore struct {
	Addr address.Address
}

// BranchTarget is a `branch ADDR TARGET` fact supplying an indirect
// branch's resolved target.
type BranchTarget struct {
	Addr   address.Address
	Target address.Address
}

// Return is a `return ADDR` fact declaring ADDR a return instruction.
type Return struct {
	Addr address.Address
}

// File is the parsed, aggregated contents of one flow-fact file.
type File struct {
	LoopBounds    []LoopBound
	CallIgnores   []CallIgnore
	BranchTargets []BranchTarget
	Returns       []Return
}

// LoopBoundFor looks up the fact for loop header addr, if supplied.
func (f *File) LoopBoundFor(addr address.Address) (LoopBound, bool) {
	for _, lb := range f.LoopBounds {
		if lb.Header == addr {
			return lb, true
		}
	}
	return LoopBound{}, false
}

// BranchTargetFor looks up a supplied indirect-branch target.
func (f *File) BranchTargetFor(addr address.Address) (address.Address, bool) {
	for _, bt := range f.BranchTargets {
		if bt.Addr == addr {
			return bt.Target, true
		}
	}
	return address.Null, false
}

// Warning records a non-fatal condition found while parsing (spec.md
// §6: "Unknown directives cause a non-fatal warning").
type Warning struct {
	Line int
	Err  *errcode.Error
}

// Parse reads a flow-fact file's text (spec.md §6): comments and blank
// lines are skipped, recognized directives are aggregated into File,
// unrecognized directive keywords degrade to a Warning, and a
// recognized keyword with a malformed shape is fatal.
func Parse(source string) (*File, []Warning, error) {
	file := &File{}
	var warnings []Warning

	for lineNo, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		keyword := fields[0]
		if !knownKeywords[keyword] {
			warnings = append(warnings, Warning{
				Line: lineNo + 1,
				Err:  errcode.New(errcode.ConsistencyError, "unknown flow-fact directive %q at line %d", keyword, lineNo+1),
			})
			continue
		}

		g, err := parser.ParseString("", line)
		if err != nil {
			return nil, warnings, errcode.Wrap(errcode.LoadError, err, "malformed flow-fact directive at line %d: %q", lineNo+1, line)
		}
		if err := accumulate(file, g); err != nil {
			return nil, warnings, errcode.Wrap(errcode.LoadError, err, "line %d: %q", lineNo+1, line)
		}
	}
	return file, warnings, nil
}

func accumulate(f *File, g *directiveGrammar) error {
	switch {
	case g.Loop != nil:
		addr, err := parseHex(g.Loop.Addr)
		if err != nil {
			return err
		}
		lb := LoopBound{Header: addr, Total: -1}
		switch {
		case g.Loop.Simple != nil:
			lb.Max = *g.Loop.Simple
		case g.Loop.MaxTotal != nil:
			lb.Max = g.Loop.MaxTotal.Max
			lb.Total = g.Loop.MaxTotal.Total
		default:
			return fmt.Errorf("loop directive has neither a bound nor max/total")
		}
		f.LoopBounds = append(f.LoopBounds, lb)
	case g.Call != nil:
		addr, err := parseHex(g.Call.Addr)
		if err != nil {
			return err
		}
		f.CallIgnores = append(f.CallIgnores, CallIgnore{Addr: addr})
	case g.Branch != nil:
		addr, err := parseHex(g.Branch.Addr)
		if err != nil {
			return err
		}
		target, err := parseHex(g.Branch.Target)
		if err != nil {
			return err
		}
		f.BranchTargets = append(f.BranchTargets, BranchTarget{Addr: addr, Target: target})
	case g.Return != nil:
		addr, err := parseHex(g.Return.Addr)
		if err != nil {
			return err
		}
		f.Returns = append(f.Returns, Return{Addr: addr})
	}
	return nil
}

func parseHex(s string) (address.Address, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return address.Null, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	return address.Address(n), nil
}
