// Package planning holds the caller-facing ReportSpec and the
// PlanningState threaded through primitive application. State is
// conceptually immutable: every primitive receives a State and returns a
// new one via With, never mutating the value it was handed.
package planning

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Mode is the execution mode ChooseExecutionMode selects.
type Mode string

const (
	ModeRaw  Mode = "raw"
	ModeBase Mode = "base"
	ModeAuto Mode = "auto"
)

// Complexity is the tag AnalyzeComplexity derives from spec shape.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityStandard Complexity = "standard"
	ComplexityComplex  Complexity = "complex"
)

// Allowed filter operators, per §3.
const (
	OpEq   = "="
	OpNeq  = "!="
	OpLt   = "<"
	OpGt   = ">"
	OpLte  = "<="
	OpGte  = ">="
	OpIn   = "IN"
	OpLike = "LIKE"
)

// AllowedOps is the closed set ValidateSpecStructurally checks filter
// operators against.
var AllowedOps = map[string]bool{
	OpEq: true, OpNeq: true, OpLt: true, OpGt: true,
	OpLte: true, OpGte: true, OpIn: true, OpLike: true,
}

// Metric is one (expression, alias) pair from a ReportSpec's metrics list.
type Metric struct {
	Expr  string
	Alias string
}

// Condition is one (column, op, value) filter predicate. Value uses
// structpb so a single field carries either a scalar or a list (for IN)
// without a bespoke tagged union.
type Condition struct {
	Column string
	Op     string
	Value  *structpb.Value
}

// ScalarString builds a Condition value from a plain string.
func ScalarString(s string) *structpb.Value {
	return structpb.NewStringValue(s)
}

// ScalarNumber builds a Condition value from a float64.
func ScalarNumber(n float64) *structpb.Value {
	return structpb.NewNumberValue(n)
}

// ListStrings builds a Condition value for an IN filter's value list.
func ListStrings(vals ...string) *structpb.Value {
	items := make([]*structpb.Value, len(vals))
	for i, v := range vals {
		items[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: items})
}

// Values returns the flattened set of bindable scalars a Condition
// contributes: one element for scalar ops, N elements for IN.
func (c Condition) Values() []any {
	if c.Value == nil {
		return nil
	}
	if lv := c.Value.GetListValue(); lv != nil {
		out := make([]any, len(lv.Values))
		for i, v := range lv.Values {
			out[i] = v.AsInterface()
		}
		return out
	}
	return []any{c.Value.AsInterface()}
}

// ReportSpec is the caller's declarative report description.
type ReportSpec struct {
	Name    string
	Metrics []Metric
	GroupBy []string
	Filters []Condition
	Limit   *int
	RawSQL  string
	BaseSQL string
	// Agent names the built-in or registered agent to plan with; empty
	// selects the facade's default.
	Agent string
	// Dialect selects the Dialect Registry entry the SQL Builder and the
	// raw/base syntax pre-checks use. Empty defaults to "postgres".
	Dialect string
}

// State is the record threaded through primitive application. Fields
// mirror §3's documented PlanningState keys one-for-one, per DESIGN
// NOTES §9's preference for an explicit-schema record over a free-form
// map in a statically typed language.
type State struct {
	Spec           ReportSpec
	Mode           Mode
	InferredTables []string
	Complexity     Complexity
	JoinForest     []JoinStep
	SQL            string
	BoundValues    []any
	Diagnostics    []string

	// CacheKey and Dialect are derived, not part of the caller-visible
	// ReportSpec; see SPEC_FULL.md §3.
	CacheKey string
	Dialect  string
}

// JoinStep is one (left_table, left_col, right_table, right_col) tuple in
// the join forest, in the order FindJoinForest produced it. Left/right
// preserve the underlying FK edge's own child/parent direction, not the
// order tables were added to the plan.
type JoinStep struct {
	LeftTable  string
	LeftCol    string
	RightTable string
	RightCol   string
}

// New builds the initial state for a fresh planning run.
func New(spec ReportSpec) *State {
	return &State{Spec: spec}
}

// With returns a shallow copy of s with the given mutator functions
// applied in order. Primitives use this instead of mutating s in place,
// so state remains conceptually immutable between primitives.
func (s *State) With(fns ...func(*State)) *State {
	next := *s
	next.InferredTables = append([]string(nil), s.InferredTables...)
	next.JoinForest = append([]JoinStep(nil), s.JoinForest...)
	next.BoundValues = append([]any(nil), s.BoundValues...)
	next.Diagnostics = append([]string(nil), s.Diagnostics...)
	for _, fn := range fns {
		fn(&next)
	}
	return &next
}

// Field exposes named state (and spec-derived) values generically, for
// the agent DSL's guard predicates to read by name. Returns (nil, false)
// for an unknown key.
func (s *State) Field(name string) (any, bool) {
	switch name {
	case "mode":
		return string(s.Mode), true
	case "complexity":
		return string(s.Complexity), true
	case "inferred_tables":
		return s.InferredTables, true
	case "join_forest":
		return s.JoinForest, true
	case "sql":
		return s.SQL, true
	case "diagnostics":
		return s.Diagnostics, true
	case "raw_sql":
		return s.Spec.RawSQL, true
	case "base_sql":
		return s.Spec.BaseSQL, true
	case "metrics":
		return s.Spec.Metrics, true
	case "group_by":
		return s.Spec.GroupBy, true
	case "filters":
		return s.Spec.Filters, true
	default:
		return nil, false
	}
}
