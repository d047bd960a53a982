package agentdsl

import (
	"github.com/htnql-engine/htnql/primitives"
)

// Names of the built-in agents the Query Engine Facade recognizes without
// an explicit agents_config entry.
const (
	Default = "default"
	Strict  = "strict"
)

// BuildDefault assembles the catalog §4.F documents verbatim: the
// heuristic join method is tried only when AnalyzeComplexity tags the
// report complex, and falls back to Shape Suggestion on disconnection.
func BuildDefault() *Catalog {
	b := NewBuilder()
	b.Method("AnswerReport", "Default", nil,
		P(primitives.ChooseExecutionMode), T("PlanExecution"), P(primitives.ExecutePlannedSql))

	b.Method("PlanExecution", "RawPath", []Predicate{{Field: "mode", Kind: Equals, Value: "raw"}},
		P(primitives.PassThroughRawSql))
	b.Method("PlanExecution", "BasePath", []Predicate{{Field: "mode", Kind: Equals, Value: "base"}},
		P(primitives.ValidateSpecStructurally), P(primitives.WrapBaseSql))
	b.Method("PlanExecution", "AutoPath", nil,
		T("PlanAutoSql"))

	b.Method("PlanAutoSql", "Default", nil,
		P(primitives.ValidateSpecStructurally), P(primitives.InferTablesFromSpec),
		P(primitives.AnalyzeComplexity), T("FindJoinForest"), P(primitives.BuildSqlFromPlan))

	b.Method("FindJoinForest", "Strict", []Predicate{{Field: "complexity", Kind: NotEquals, Value: "complex"}},
		P(primitives.FindJoinForestStrictFK))
	b.Method("FindJoinForest", "Heuristic", []Predicate{{Field: "complexity", Kind: Equals, Value: "complex"}},
		P(primitives.FindJoinForestHeuristic))

	return b.Build()
}

// BuildStrict is identical to BuildDefault except FindJoinForest never
// falls back to Shape Suggestion: any disconnection is fatal regardless
// of complexity. §7 names this as the caller's recourse when it does not
// want the heuristic to introduce tables the report never mentioned.
func BuildStrict() *Catalog {
	b := NewBuilder()
	b.Method("AnswerReport", "Default", nil,
		P(primitives.ChooseExecutionMode), T("PlanExecution"), P(primitives.ExecutePlannedSql))

	b.Method("PlanExecution", "RawPath", []Predicate{{Field: "mode", Kind: Equals, Value: "raw"}},
		P(primitives.PassThroughRawSql))
	b.Method("PlanExecution", "BasePath", []Predicate{{Field: "mode", Kind: Equals, Value: "base"}},
		P(primitives.ValidateSpecStructurally), P(primitives.WrapBaseSql))
	b.Method("PlanExecution", "AutoPath", nil,
		T("PlanAutoSql"))

	b.Method("PlanAutoSql", "Default", nil,
		P(primitives.ValidateSpecStructurally), P(primitives.InferTablesFromSpec),
		P(primitives.AnalyzeComplexity), T("FindJoinForest"), P(primitives.BuildSqlFromPlan))

	b.Method("FindJoinForest", "Strict", nil, P(primitives.FindJoinForestStrictFK))

	return b.Build()
}

// Builtins returns the facade's default agent registry, name -> catalog.
func Builtins() map[string]*Catalog {
	return map[string]*Catalog{
		Default: BuildDefault(),
		Strict:  BuildStrict(),
	}
}
