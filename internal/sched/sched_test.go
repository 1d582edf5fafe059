package sched

import (
	"testing"

	"github.com/statinf-otawa/otawa-core/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalysis struct {
	name        string
	requires    []Feature
	provides    []Feature
	invalidates []Feature
	ran         *int
	fail        bool
}

func (f *fakeAnalysis) Name() string          { return f.name }
func (f *fakeAnalysis) Requires() []Feature   { return f.requires }
func (f *fakeAnalysis) Provides() []Feature   { return f.provides }
func (f *fakeAnalysis) Invalidates() []Feature { return f.invalidates }
func (f *fakeAnalysis) Run(*workspace.Workspace) error {
	*f.ran++
	if f.fail {
		return assertErr
	}
	return nil
}

var assertErr = &runErr{}

type runErr struct{}

func (*runErr) Error() string { return "boom" }

func TestRequireRunsPrerequisitesOnce(t *testing.T) {
	ws := workspace.New(nil, nil)
	r := New(ws)

	var cfgRuns, domRuns int
	r.Register(&fakeAnalysis{name: "cfg", provides: []Feature{"cfg"}, ran: &cfgRuns})
	r.Register(&fakeAnalysis{name: "dom", requires: []Feature{"cfg"}, provides: []Feature{"dom"}, ran: &domRuns})

	require.NoError(t, r.Require("dom"))
	assert.Equal(t, 1, cfgRuns)
	assert.Equal(t, 1, domRuns)
	assert.True(t, r.Held("cfg"))
	assert.True(t, r.Held("dom"))

	// Requiring an already-held feature does not re-run its provider.
	require.NoError(t, r.Require("cfg"))
	assert.Equal(t, 1, cfgRuns)
}

func TestInvalidateCascadesToDependents(t *testing.T) {
	ws := workspace.New(nil, nil)
	r := New(ws)

	var cfgRuns, domRuns, mutRuns int
	r.Register(&fakeAnalysis{name: "cfg", provides: []Feature{"cfg"}, ran: &cfgRuns})
	r.Register(&fakeAnalysis{name: "dom", requires: []Feature{"cfg"}, provides: []Feature{"dom"}, ran: &domRuns})
	r.Register(&fakeAnalysis{name: "mutate-cfg", provides: []Feature{"mutated"}, invalidates: []Feature{"cfg"}, ran: &mutRuns})

	require.NoError(t, r.Require("dom"))
	require.NoError(t, r.Require("mutated"))

	assert.False(t, r.Held("cfg"))
	assert.False(t, r.Held("dom"), "dom depended on cfg and must be invalidated transitively")
	assert.True(t, r.Held("mutated"))
}

func TestMissingProviderIsConsistencyError(t *testing.T) {
	ws := workspace.New(nil, nil)
	r := New(ws)
	err := r.Require("nowhere")
	require.Error(t, err)
}

func TestPreferOverridesRegistrationOrder(t *testing.T) {
	ws := workspace.New(nil, nil)
	r := New(ws)

	var firstRuns, secondRuns int
	first := &fakeAnalysis{name: "first", provides: []Feature{"f"}, ran: &firstRuns}
	second := &fakeAnalysis{name: "second", provides: []Feature{"f"}, ran: &secondRuns}
	r.Register(first)
	r.Register(second)
	r.Prefer("f", second)

	require.NoError(t, r.Require("f"))
	assert.Equal(t, 0, firstRuns)
	assert.Equal(t, 1, secondRuns)
}
