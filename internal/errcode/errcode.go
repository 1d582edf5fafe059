// Package errcode defines the structured, named error taxonomy of the
// pipeline (never stringly-typed). Every fatal condition the pipeline
// can raise wraps one of these kinds so the scheduler and the CLI
// driver can switch on Kind() rather than matching message text.
package errcode

import "fmt"

// Kind identifies the source and recovery policy of an error.
type Kind int

const (
	// LoadError originates in the program-model layer. No local
	// recovery: abort the pipeline.
	LoadError Kind = iota
	// UnresolvedBranch is raised by the CFG builder for an indirect
	// branch with no supplied target. Recoverable: degrades to a
	// warning plus an edge to the Unknown sink.
	UnresolvedBranch
	// MissingFlowFact is raised by the IPET constraint builder for a
	// loop header with no bound. Fatal: no finite WCET is possible.
	MissingFlowFact
	// DomainDiverges is raised by the dataflow engine when an
	// ascending-chain violation is detected at the iteration cap.
	// Fatal, with an offer to retry with widening.
	DomainDiverges
	// SolverError is a generic failure reported by the ILP plugin.
	SolverError
	// Infeasible means the ILP system has no solution.
	Infeasible
	// Unbounded means the ILP objective is unbounded.
	Unbounded
	// Timeout means the ILP plugin was stopped by its own timeout.
	Timeout
	// Cancelled is raised by the scheduler on cooperative cancellation.
	Cancelled
	// ConsistencyError marks a violated precondition: an internal bug.
	ConsistencyError
)

func (k Kind) String() string {
	switch k {
	case LoadError:
		return "LoadError"
	case UnresolvedBranch:
		return "UnresolvedBranch"
	case MissingFlowFact:
		return "MissingFlowFact"
	case DomainDiverges:
		return "DomainDiverges"
	case SolverError:
		return "SolverError"
	case Infeasible:
		return "Infeasible"
	case Unbounded:
		return "Unbounded"
	case Timeout:
		return "Timeout"
	case Cancelled:
		return "Cancelled"
	case ConsistencyError:
		return "ConsistencyError"
	default:
		return "UnknownError"
	}
}

// Error is a structured pipeline error: a Kind plus a human message and
// an optional wrapped cause.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind that carries cause as its
// unwrap target, so errors.Is/errors.As still see the original error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's taxonomy kind.
func (e *Error) Kind() Kind { return e.kind }

// Recoverable reports whether the scheduler's default policy repairs
// this error kind locally instead of propagating it. Presently only
// UnresolvedBranch is locally recovered, per the pipeline's error
// handling policy.
func (e *Error) Recoverable() bool { return e.kind == UnresolvedBranch }

// KindOf extracts the Kind of err if it (transitively) wraps an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	type kinder interface{ Kind() Kind }
	for err != nil {
		if k, ok := err.(kinder); ok {
			return k.Kind(), true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}
