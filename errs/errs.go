// Package errs defines the closed set of structured error kinds the core
// surfaces to callers. None of these are swallowed internally; every
// primitive, kernel, and facade failure path returns one of these values
// rather than a bare string or a generic error.
package errs

import (
	"fmt"

	"github.com/pingcap/errors"
)

// Kind identifies which of the documented error categories a failure
// belongs to. Callers should switch on Kind, not on message text.
type Kind int

const (
	// KindSpec covers ReportSpec validation and table-inference failures.
	KindSpec Kind = iota
	// KindSchema covers schema graph construction failures.
	KindSchema
	// KindJoin covers join-forest search failures.
	KindJoin
	// KindAgent covers agent DSL parsing failures.
	KindAgent
	// KindPlanner covers HTN kernel decomposition failures.
	KindPlanner
	// KindPrimitive covers a primitive's own internal failure.
	KindPrimitive
	// KindCancelled covers cooperative cancellation.
	KindCancelled
	// KindExecution covers database-boundary failures.
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindSpec:
		return "SpecError"
	case KindSchema:
		return "SchemaError"
	case KindJoin:
		return "JoinError"
	case KindAgent:
		return "AgentError"
	case KindPlanner:
		return "PlannerError"
	case KindPrimitive:
		return "PrimitiveError"
	case KindCancelled:
		return "CancelledError"
	case KindExecution:
		return "ExecutionError"
	default:
		return "UnknownError"
	}
}

// Error is the single structured error type every core error kind uses.
// Reason narrows KindPlanner/KindJoin into the documented sub-cases
// (e.g. "NoApplicableMethod", "Disconnected") without introducing a
// separate Go type per sub-case.
type Error struct {
	Kind      Kind
	Reason    string
	Message   string
	Offending string
	cause     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s(%s): %s", e.Kind, e.Reason, e.Message)
	}
	if e.Offending != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Offending)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, errs.Spec("", "")) match on Kind alone, ignoring
// Message/Offending/Reason, which is the common case in tests.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Reason != "" {
		return e.Kind == other.Kind && e.Reason == other.Reason
	}
	return e.Kind == other.Kind
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, cause: errors.New(msg)}
}

// Spec builds a KindSpec error, optionally naming the offending element.
func Spec(msg string, offending ...string) *Error {
	e := newErr(KindSpec, msg)
	if len(offending) > 0 {
		e.Offending = offending[0]
	}
	return e
}

// Schema builds a KindSchema error.
func Schema(msg string, offending ...string) *Error {
	e := newErr(KindSchema, msg)
	if len(offending) > 0 {
		e.Offending = offending[0]
	}
	return e
}

// JoinDisconnected builds the JoinError(Disconnected, table) case §7 names.
func JoinDisconnected(table string) *Error {
	e := newErr(KindJoin, "no path connects this table to the rest of the report")
	e.Reason = "Disconnected"
	e.Offending = table
	return e
}

// Agent builds a KindAgent error raised while parsing an agent's method
// catalog.
func Agent(msg string, offending ...string) *Error {
	e := newErr(KindAgent, msg)
	if len(offending) > 0 {
		e.Offending = offending[0]
	}
	return e
}

// NoApplicableMethod builds the PlannerError(NoApplicableMethod, task)
// case §7 names.
func NoApplicableMethod(task string) *Error {
	e := newErr(KindPlanner, "no method's guard passed for this task")
	e.Reason = "NoApplicableMethod"
	e.Offending = task
	return e
}

// Primitive builds a KindPrimitive error, annotated with the primitive
// name that failed.
func Primitive(name, msg string) *Error {
	e := newErr(KindPrimitive, msg)
	e.Offending = name
	return e
}

// Cancelled builds a KindCancelled error.
func Cancelled() *Error {
	return newErr(KindCancelled, "planning cancelled by caller")
}

// Execution wraps a database-boundary failure, preserving the underlying
// driver error via errors.Trace for %+v inspection while exposing the
// closed Kind contract to callers.
func Execution(cause error, msg string) *Error {
	return &Error{Kind: KindExecution, Message: msg, cause: errors.Trace(cause)}
}
