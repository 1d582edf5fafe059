// Package errors formats pipeline diagnostics for human consumption
// (spec.md §7, SPEC_FULL.md §9): errcode-typed pipeline failures and
// flow-fact parse errors, rendered Rust-compiler style with
// file:line:column context when a position is available and a bare
// leveled message otherwise. Grounded in the teacher's own
// internal/errors.ErrorReporter, generalized from Kanso's
// undefined-variable/type-mismatch semantic diagnostics (which have no
// WCET-domain equivalent) to this pipeline's own errcode.Kind
// vocabulary.
package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/statinf-otawa/otawa-core/internal/errcode"
)

// Level is the severity of a Diagnostic.
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
	Note    Level = "note"
	Help    Level = "help"
)

// Position locates a Diagnostic in a source file. A zero Position
// (Line == 0) means no location is available, the case for most
// pipeline errcode failures, which carry no source coordinate.
type Position struct {
	Filename string
	Line     int
	Column   int
}

// Diagnostic is one reportable condition: a level, an optional
// errcode.Kind-derived code, a message, and an optional position plus
// free-form notes/help text.
type Diagnostic struct {
	Level    Level
	Code     string
	Message  string
	Position Position
	Length   int
	Notes    []string
	HelpText string
}

// FromError builds a Diagnostic from a pipeline error, tagging it with
// the wrapped errcode.Kind when present and falling back to a bare
// Error diagnostic otherwise (spec.md §7: every fatal condition wraps
// an errcode.Error, but Reporter must still render a plain error if
// something else slips through).
func FromError(err error) Diagnostic {
	d := Diagnostic{Level: Error, Message: err.Error()}
	if kind, ok := errcode.KindOf(err); ok {
		d.Code = kind.String()
	}
	return d
}

// Reporter formats Diagnostics against one named source, printing
// surrounding context lines when the diagnostic carries a Position
// within that source.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter creates a Reporter over source, used to print context
// lines around a Diagnostic's Position.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders d Rust-compiler style: a colored level/code header,
// then (if d.Position is set) a --> location line, source context, and
// a caret marker under the offending span.
func (r *Reporter) Format(d Diagnostic) string {
	var out strings.Builder

	levelColor := r.levelColor(d.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if d.Code != "" {
		out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message))
	} else {
		out.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))
	}

	if d.Position.Line <= 0 {
		out.WriteString("\n")
		return out.String()
	}

	width := lineNumberWidth(d.Position.Line)
	indent := strings.Repeat(" ", width)
	filename := d.Position.Filename
	if filename == "" {
		filename = r.filename
	}

	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), filename, d.Position.Line, d.Position.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Position.Line > 1 && d.Position.Line-1 <= len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n", dim(fmt.Sprintf("%*d", width, d.Position.Line-1)), dim("│"), r.lines[d.Position.Line-2]))
	}
	if d.Position.Line <= len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n", bold(fmt.Sprintf("%*d", width, d.Position.Line)), dim("│"), r.lines[d.Position.Line-1]))
		out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), r.marker(d.Position.Column, d.Length, d.Level)))
	}
	if d.Position.Line < len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n", dim(fmt.Sprintf("%*d", width, d.Position.Line+1)), dim("│"), r.lines[d.Position.Line]))
	}

	for _, note := range d.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), noteColor("note:"), note))
	}
	if d.HelpText != "" {
		helpColor := color.New(color.FgGreen).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), helpColor("help:"), d.HelpText))
	}

	out.WriteString("\n")
	return out.String()
}

func (r *Reporter) levelColor(level Level) func(...interface{}) string {
	switch level {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	case Help:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func (r *Reporter) marker(column, length int, level Level) string {
	if length <= 0 {
		length = 1
	}
	spaces := strings.Repeat(" ", max(0, column-1))

	markerColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if level == Warning {
		markerColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	return spaces + markerColor(strings.Repeat("^", length))
}

func lineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		return 3
	}
	return width
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Suggest returns every candidate within edit distance 2 of target and
// longer than two characters, for "did you mean" hints on an unknown
// flow-fact directive keyword or CLI flag (spec.md §6: "unknown
// directives: non-fatal warning").
func Suggest(target string, candidates []string) []string {
	var similar []string
	for _, c := range candidates {
		if len(c) > 2 && levenshteinDistance(target, c) <= 2 {
			similar = append(similar, c)
		}
	}
	return similar
}

func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}
	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min3(matrix[i-1][j]+1, matrix[i][j-1]+1, matrix[i-1][j-1]+cost)
		}
	}
	return matrix[len(a)][len(b)]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
