package errors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/statinf-otawa/otawa-core/internal/errcode"
)

func TestFormatWithPosition(t *testing.T) {
	source := "loop 0x1000 5\ncall 0x2000 ignore\n"
	reporter := NewReporter("flow.facts", source)

	d := Diagnostic{
		Level:    Error,
		Code:     errcode.LoadError.String(),
		Message:  "malformed flow-fact directive",
		Position: Position{Line: 1, Column: 6},
		Length:   6,
	}
	out := reporter.Format(d)

	assert.Contains(t, out, "error[LoadError]: malformed flow-fact directive")
	assert.Contains(t, out, "flow.facts:1:6")
	assert.Contains(t, out, "loop 0x1000 5")
}

func TestFormatWithoutPosition(t *testing.T) {
	reporter := NewReporter("", "")
	d := FromError(errcode.New(errcode.Infeasible, "no feasible assignment"))
	out := reporter.Format(d)

	assert.Contains(t, out, "error[Infeasible]: no feasible assignment")
	assert.NotContains(t, out, "-->")
}

func TestFromErrorTagsKind(t *testing.T) {
	d := FromError(errcode.New(errcode.ConsistencyError, "block %s missing time", "b3"))
	assert.Equal(t, "ConsistencyError", d.Code)
	assert.Contains(t, d.Message, "block b3 missing time")
}

func TestFromErrorWithoutKindFallsBackToBareMessage(t *testing.T) {
	d := FromError(assertErr{"plain failure"})
	assert.Empty(t, d.Code)
	assert.Equal(t, "plain failure", d.Message)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func TestSuggestFindsCloseNames(t *testing.T) {
	candidates := []string{"loop", "call", "branch", "return"}

	assert.Contains(t, Suggest("loob", candidates), "loop")
	assert.Empty(t, Suggest("xyzzyxyzzy", candidates))
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("loop", "loop"))
	assert.Equal(t, 1, levenshteinDistance("loop", "loob"))
	assert.Equal(t, 4, levenshteinDistance("loop", ""))
}

func TestMarkerSpacingAndLength(t *testing.T) {
	r := NewReporter("x", "abcdefgh")
	marker := r.marker(3, 4, Error)

	assert.Equal(t, 2, strings.Count(marker, " "))
	assert.Equal(t, 4, strings.Count(marker, "^"))
}
