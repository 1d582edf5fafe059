package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/errcode"
	ferrors "github.com/statinf-otawa/otawa-core/internal/errors"
	"github.com/statinf-otawa/otawa-core/internal/flowfact"
	"github.com/statinf-otawa/otawa-core/internal/hardware"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
	"github.com/statinf-otawa/otawa-core/internal/ilp/solver/branchbound"
	"github.com/statinf-otawa/otawa-core/internal/ilp/solver/external"
	"github.com/statinf-otawa/otawa-core/internal/ipet"
	"github.com/statinf-otawa/otawa-core/internal/program"
	"github.com/statinf-otawa/otawa-core/internal/props"
	"github.com/statinf-otawa/otawa-core/internal/sched"
	"github.com/statinf-otawa/otawa-core/internal/workspace"
)

// Exit codes, unchanged from spec.md §6.
const (
	exitSuccess          = 0
	exitMissingInput     = 1
	exitLoadError        = 2
	exitInfeasible       = 3
	exitCancelled        = 4
	exitConsistencyError = 5
)

const usage = `Usage: otawa-core <executable-stub> <entry-symbol> [-f flow-facts] [-p platform.xml] [-o out.dir] [-solver external:<path>] [-v]

<executable-stub> is a JSON program-model fixture (see README.md); the
real disassembler is an external concern this pipeline does not
implement.`

type options struct {
	stub       string
	entry      string
	flowFacts  string
	platform   string
	outDir     string
	solver     string
	verbose    bool
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		color.Red("%s", err)
		fmt.Println(usage)
		os.Exit(exitMissingInput)
	}

	verbosity := 1
	if opts.verbose {
		verbosity = 3
	}
	commonlog.Configure(verbosity, nil)

	os.Exit(run(opts))
}

func parseArgs(args []string) (options, error) {
	var opts options
	var positionals []string

	valueFlags := map[string]*string{
		"-f":      &opts.flowFacts,
		"-p":      &opts.platform,
		"-o":      &opts.outDir,
		"-solver": &opts.solver,
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "-v" {
			opts.verbose = true
			continue
		}
		if dst, ok := valueFlags[a]; ok {
			if i+1 >= len(args) {
				return opts, fmt.Errorf("flag %s needs a value", a)
			}
			i++
			*dst = args[i]
			continue
		}
		if strings.HasPrefix(a, "-") {
			return opts, fmt.Errorf("unknown flag %s", a)
		}
		positionals = append(positionals, a)
	}

	if len(positionals) < 2 {
		return opts, fmt.Errorf("missing <executable-stub> and/or <entry-symbol>")
	}
	opts.stub, opts.entry = positionals[0], positionals[1]
	return opts, nil
}

// run executes the pipeline and returns the process exit code, so main
// stays a thin os.Exit wrapper (every other function here is directly
// testable without process teardown).
func run(opts options) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file, cycles, code := loadProgram(opts.stub)
	if code != exitSuccess {
		return code
	}

	entrySym, ok := file.Symbols.ByName(opts.entry)
	if !ok {
		color.Red("entry symbol %q not found in %s", opts.entry, opts.stub)
		return exitLoadError
	}

	col, warnings, err := cfg.NewBuilder(file).Build(entrySym.Address)
	if err != nil {
		reportLoadError(err)
		return exitLoadError
	}
	for _, w := range warnings {
		color.Yellow("warning: %s", w.Err)
	}

	virtualized := cfg.Virtualize(col.CFGs[0])
	col = cfg.NewCollection(virtualized, []*cfg.CFG{virtualized})
	annotateTimes(col, cycles)

	var platform *hardware.Platform
	if opts.platform != "" {
		var code int
		platform, code = loadPlatform(opts.platform)
		if code != exitSuccess {
			return code
		}
	}

	var facts *flowfact.File
	if opts.flowFacts != "" {
		var code int
		facts, code = loadFlowFacts(opts.flowFacts)
		if code != exitSuccess {
			return code
		}
	}

	ws := workspace.New(file, platform)
	props.Set(ws.Props, workspace.TaskEntry, entrySym.Address)
	props.Set(ws.Props, workspace.CFGCollection, col)
	if len(warnings) > 0 {
		props.Set(ws.Props, workspace.Warnings, warnings)
	}
	if facts != nil {
		props.Set(ws.Props, workspace.FlowFacts, facts)
	}

	solver, code := buildSolver(opts.solver)
	if code != exitSuccess {
		return code
	}

	registry := sched.New(ws)
	registry.Register(&cfgCollectionAnalysis{})
	registry.Register(&ipet.SolveAnalysis{Solver: solver, Ctx: ctx})

	if err := registry.Require(ipet.FeatureWCET); err != nil {
		return reportPipelineError(err)
	}

	wcet := props.MustGet(ws.Props, workspace.WCET)
	if err := writeReport(opts.outDir, ws, col, wcet); err != nil {
		color.Red("failed writing report: %s", err)
		return exitConsistencyError
	}
	color.Green("WCET = %d cycles", wcet)
	return exitSuccess
}

// cfgCollectionAnalysis holds sched's cfg-collection feature once the
// driver has already built and attached the Collection directly (the
// CLI builds it itself rather than deferring to the scheduler, since
// the raw instruction stream first needs virtualizing and annotating
// with externally-supplied timing, neither of which is itself a
// sched.Analysis). Run is a no-op: by the time Require reaches it the
// property is already set.
type cfgCollectionAnalysis struct{}

func (a *cfgCollectionAnalysis) Name() string                { return "cfg.collection" }
func (a *cfgCollectionAnalysis) Requires() []sched.Feature    { return nil }
func (a *cfgCollectionAnalysis) Provides() []sched.Feature    { return []sched.Feature{ipet.FeatureCFGCollection} }
func (a *cfgCollectionAnalysis) Invalidates() []sched.Feature { return nil }
func (a *cfgCollectionAnalysis) Run(ws *workspace.Workspace) error {
	if !props.Has(ws.Props, workspace.CFGCollection) {
		return errcode.New(errcode.ConsistencyError, "cfg-collection required before it was built")
	}
	return nil
}

func loadProgram(path string) (*program.File, map[address.Address]int, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		color.Red("reading %s: %s", path, err)
		return nil, nil, exitMissingInput
	}
	file, cycles, err := program.ParseJSON(data)
	if err != nil {
		reportLoadError(err)
		return nil, nil, exitLoadError
	}
	return file, cycles, exitSuccess
}

func loadPlatform(path string) (*hardware.Platform, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		color.Red("reading %s: %s", path, err)
		return nil, exitMissingInput
	}
	icache, dcache, err := hardware.ParseCacheConfig(data)
	if err != nil {
		reportLoadError(err)
		return nil, exitLoadError
	}
	return &hardware.Platform{ICache: icache, DCache: dcache}, exitSuccess
}

func loadFlowFacts(path string) (*flowfact.File, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		color.Red("reading %s: %s", path, err)
		return nil, exitMissingInput
	}
	facts, warnings, err := flowfact.Parse(string(data))
	if err != nil {
		reportLoadError(err)
		return nil, exitLoadError
	}
	known := []string{"loop", "call", "branch", "return"}
	for _, w := range warnings {
		msg := w.Err.Error()
		color.Yellow("warning: %s", msg)
		for _, field := range strings.Fields(msg) {
			if hints := ferrors.Suggest(field, known); len(hints) > 0 {
				color.Yellow("  did you mean %q?", hints[0])
			}
		}
	}
	return facts, exitSuccess
}

func buildSolver(spec string) (ilp.Solver, int) {
	if spec == "" {
		return branchbound.New(), exitSuccess
	}
	if rest, ok := strings.CutPrefix(spec, "external:"); ok {
		return external.New(rest), exitSuccess
	}
	color.Red("unknown -solver spec %q (expected external:<path>)", spec)
	return nil, exitMissingInput
}

// annotateTimes sums the JSON fixture's per-instruction cycle hints
// into each basic block's ipet.TimeKey, scaled by however many
// instructions the CFG builder folded into that block (spec.md §4.4:
// a block only splits at a branch/return, so a run of fallthrough
// instructions can share one block). An instruction absent from
// cycles defaults to one cycle.
func annotateTimes(col *cfg.Collection, cycles map[address.Address]int) {
	for _, c := range col.CFGs {
		for _, b := range c.Blocks {
			if b.Tag != cfg.TagBasic {
				continue
			}
			total := 0
			for _, ins := range b.Instructions {
				if n, ok := cycles[ins.Address]; ok {
					total += n
				} else {
					total++
				}
			}
			props.Set(b.Props, ipet.TimeKey, total)
		}
	}
}

// writeReport renders the back-annotated block/edge execution counts
// into <out.dir>/wcet.txt (spec.md §6 "count per block/edge" of
// record). A blank outDir is a no-op: the WCET summary printed to
// stdout by run is enough when no report directory was requested.
func writeReport(outDir string, ws *workspace.Workspace, col *cfg.Collection, wcet int) error {
	if outDir == "" {
		return nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "WCET = %d cycles\n\n", wcet)
	for _, c := range col.CFGs {
		fmt.Fprintf(&b, "CFG %s\n", c.Label)
		for _, block := range c.Blocks {
			count, _ := props.Get(block.Props, workspace.Count)
			fmt.Fprintf(&b, "  %s: count=%d\n", block, count)
			for _, e := range block.Out() {
				ecount, _ := props.Get(e.Props, workspace.Count)
				fmt.Fprintf(&b, "    -> %s: count=%d\n", e.Sink, ecount)
			}
		}
	}

	return os.WriteFile(filepath.Join(outDir, "wcet.txt"), []byte(b.String()), 0o644)
}

func reportLoadError(err error) {
	d := ferrors.FromError(err)
	r := ferrors.NewReporter("", "")
	fmt.Print(r.Format(d))
}

// reportPipelineError prints err and maps its errcode.Kind to the
// driver's exit code (spec.md §6).
func reportPipelineError(err error) int {
	reportLoadError(err)
	kind, ok := errcode.KindOf(err)
	if !ok {
		return exitConsistencyError
	}
	switch kind {
	case errcode.Infeasible, errcode.Unbounded, errcode.Timeout, errcode.SolverError:
		return exitInfeasible
	case errcode.Cancelled:
		return exitCancelled
	case errcode.ConsistencyError, errcode.DomainDiverges:
		return exitConsistencyError
	default:
		return exitLoadError
	}
}
