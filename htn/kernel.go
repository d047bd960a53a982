// Package htn implements the depth-first, backtracking-free HTN planning
// kernel: given a root task, a method catalog, and a primitive registry,
// it decomposes the task into a trace of primitive applications.
package htn

import (
	"context"

	"go.uber.org/zap"

	"github.com/htnql-engine/htnql/errs"
	"github.com/htnql-engine/htnql/planning"
)

// Predicate is one guard condition a Method's when-clause evaluates
// against the current state. Agent DSL implementations supply concrete
// predicate kinds; the kernel only ever calls Eval.
type Predicate interface {
	Eval(st *planning.State) bool
}

// Step is one child of a Method: exactly one of Task or Primitive is set.
// A Task step recurses into another compound task; a Primitive step is a
// registry lookup.
type Step struct {
	Task      string
	Primitive string
}

// Method is a named decomposition rule: if every predicate in Guard
// passes, Steps runs in order.
type Method struct {
	Name  string
	Guard []Predicate
	Steps []Step
}

// Catalog resolves a compound task name to its candidate methods, tried
// in registration order.
type Catalog interface {
	MethodsFor(task string) ([]Method, bool)
}

// PrimitiveFunc mutates state deterministically and reports which state
// keys it changed, for the trace.
type PrimitiveFunc func(ctx context.Context, st *planning.State) (*planning.State, []string, error)

// Registry is the name-to-function table primitives are looked up in.
type Registry map[string]PrimitiveFunc

// TraceStep records one method selection or primitive application.
type TraceStep struct {
	Task        string
	Method      string // empty for a primitive application
	Depth       int
	ChangedKeys []string
}

type frame struct {
	step  Step
	depth int
}

// Plan runs the kernel to completion or failure. ctx is checked for
// cancellation before each stack frame (compound task or primitive) is
// processed; the kernel itself never suspends.
func Plan(ctx context.Context, root string, initial *planning.State, catalog Catalog, registry Registry, logger *zap.Logger) (*planning.State, []TraceStep, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	state := initial
	var trace []TraceStep

	stack := []frame{{step: Step{Task: root}, depth: 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		select {
		case <-ctx.Done():
			return state, trace, errs.Cancelled()
		default:
		}

		if top.step.Primitive != "" {
			fn, ok := registry[top.step.Primitive]
			if !ok {
				return state, trace, errs.Agent("unknown primitive referenced from a method step", top.step.Primitive)
			}
			next, changed, err := fn(ctx, state)
			if err != nil {
				logger.Warn("primitive failed", zap.String("primitive", top.step.Primitive), zap.Error(err))
				return state, trace, err
			}
			state = next
			trace = append(trace, TraceStep{Task: top.step.Primitive, Depth: top.depth, ChangedKeys: changed})
			logger.Debug("primitive applied", zap.String("primitive", top.step.Primitive), zap.Strings("changed", changed))
			continue
		}

		task := top.step.Task
		methods, ok := catalog.MethodsFor(task)
		if !ok {
			return state, trace, errs.NoApplicableMethod(task)
		}
		var chosen *Method
		for i := range methods {
			if guardPasses(methods[i].Guard, state) {
				chosen = &methods[i]
				break
			}
		}
		if chosen == nil {
			return state, trace, errs.NoApplicableMethod(task)
		}
		trace = append(trace, TraceStep{Task: task, Method: chosen.Name, Depth: top.depth})
		logger.Debug("method selected", zap.String("task", task), zap.String("method", chosen.Name))

		// Push steps in reverse so the stack pops them left-to-right.
		for i := len(chosen.Steps) - 1; i >= 0; i-- {
			stack = append(stack, frame{step: chosen.Steps[i], depth: top.depth + 1})
		}
	}
	return state, trace, nil
}

func guardPasses(guard []Predicate, st *planning.State) bool {
	for _, p := range guard {
		if !p.Eval(st) {
			return false
		}
	}
	return true
}
