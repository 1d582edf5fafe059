// Package sched implements the feature registry & scheduler (C2,
// spec.md §4.2): the require/provide/invalidate bookkeeping that
// orders analyses so prerequisites run before dependents, and
// invalidates dependents transitively when a feature they relied on
// is destroyed. Grounded in the teacher's own pass-ordering discipline
// (internal/semantic/analyzer.go runs declaration collection before
// type resolution before flow analysis) generalized from an implicit
// call order into an explicit, declared dependency graph, and logged
// through commonlog the way the teacher's LSP handler
// (internal/lsp) logs request handling.
package sched

import (
	"github.com/statinf-otawa/otawa-core/internal/errcode"
	"github.com/statinf-otawa/otawa-core/internal/workspace"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("otawa.scheduler")

// Feature is a named, declared invariant an Analysis establishes and
// that others may require (spec.md §2).
type Feature string

// Analysis is one pipeline pass: it declares the features it needs as
// preconditions, the features it establishes as postconditions, and
// any features its own side effects destroy.
type Analysis interface {
	Name() string
	Requires() []Feature
	Provides() []Feature
	Invalidates() []Feature
	Run(ws *workspace.Workspace) error
}

// Registry tracks, per workspace, which features currently hold and
// which Analysis produced each one (spec.md §4.2).
type Registry struct {
	ws        *workspace.Workspace
	providers map[Feature][]Analysis // registration order; first is the default
	preferred map[Feature]Analysis
	held      map[Feature]Analysis // feature -> analysis that currently holds it
}

// New creates a Registry driving analyses over ws.
func New(ws *workspace.Workspace) *Registry {
	return &Registry{
		ws:        ws,
		providers: map[Feature][]Analysis{},
		preferred: map[Feature]Analysis{},
		held:      map[Feature]Analysis{},
	}
}

// Register makes a available as a provider of every feature it
// Provides(), in first-registered-wins default order.
func (r *Registry) Register(a Analysis) {
	for _, f := range a.Provides() {
		r.providers[f] = append(r.providers[f], a)
	}
}

// Prefer explicitly selects a as the provider the Registry picks for
// f, overriding registration order (spec.md §4.2 step 2).
func (r *Registry) Prefer(f Feature, a Analysis) {
	r.preferred[f] = a
}

// Held reports whether f currently holds on the workspace.
func (r *Registry) Held(f Feature) bool {
	_, ok := r.held[f]
	return ok
}

// Require ensures f holds, running its provider (and, recursively,
// that provider's own prerequisites) if it does not already
// (spec.md §4.2's 5-step algorithm).
func (r *Registry) Require(f Feature) error {
	if r.Held(f) {
		return nil
	}
	a, err := r.provider(f)
	if err != nil {
		return err
	}
	log.Debugf("requiring feature %q via analysis %q", f, a.Name())
	for _, prereq := range a.Requires() {
		if err := r.Require(prereq); err != nil {
			return err
		}
	}
	if err := a.Run(r.ws); err != nil {
		log.Errorf("analysis %q failed establishing %q: %s", a.Name(), f, err)
		return err
	}
	for _, provided := range a.Provides() {
		r.held[provided] = a
	}
	for _, invalidated := range a.Invalidates() {
		r.unhold(invalidated)
	}
	return nil
}

func (r *Registry) provider(f Feature) (Analysis, error) {
	if a, ok := r.preferred[f]; ok {
		return a, nil
	}
	candidates := r.providers[f]
	if len(candidates) == 0 {
		return nil, errcode.New(errcode.ConsistencyError, "no analysis registered to provide feature %q", f)
	}
	return candidates[0], nil
}

// unhold marks f (and, transitively, any feature whose producer
// required f) as not held, per spec.md §4.2 step 5.
func (r *Registry) unhold(f Feature) {
	if !r.Held(f) {
		return
	}
	delete(r.held, f)
	log.Debugf("invalidated feature %q", f)
	for held, producer := range r.held {
		for _, req := range producer.Requires() {
			if req == f {
				r.unhold(held)
				break
			}
		}
	}
}
