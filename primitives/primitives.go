// Package primitives implements the Primitive Registry (§4.D): the named
// operations the HTN kernel applies to advance planning state. Naming and
// the registry-lookup-against-a-table pattern are grounded on the
// teacher's engine/parser/parser.go, which validates its first token
// against mapping.OperationGroups as a single source of truth; here the
// kernel's Step.Primitive is looked up against this package's Registry
// the same way.
package primitives

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pingcap/failpoint"

	"github.com/htnql-engine/htnql/dialect"
	"github.com/htnql-engine/htnql/errs"
	"github.com/htnql-engine/htnql/htn"
	"github.com/htnql-engine/htnql/planning"
	"github.com/htnql-engine/htnql/schema"
	"github.com/htnql-engine/htnql/shape"
	"github.com/htnql-engine/htnql/sqlbuild"
)

// Names of the primitives the built-in agents reference. Kept as
// constants so a typo in an agent's YAML step surfaces as an AgentError
// at parse time rather than silently no-oping.
const (
	ChooseExecutionMode       = "ChooseExecutionMode"
	ValidateSpecStructurally  = "ValidateSpecStructurally"
	InferTablesFromSpec       = "InferTablesFromSpec"
	AnalyzeComplexity         = "AnalyzeComplexity"
	FindJoinForestStrictFK    = "FindJoinForest.StrictFK"
	FindJoinForestHeuristic   = "FindJoinForest.Heuristic"
	BuildSqlFromPlan          = "BuildSqlFromPlan"
	ExecutePlannedSql         = "ExecutePlannedSql"
	PassThroughRawSql         = "PassThroughRawSql"
	WrapBaseSql               = "WrapBaseSql"
)

// New builds the registry every built-in and custom agent shares, bound
// to a single schema graph.
func New(g *schema.Graph) htn.Registry {
	return htn.Registry{
		ChooseExecutionMode:      chooseExecutionMode,
		ValidateSpecStructurally: validateSpecStructurally,
		InferTablesFromSpec:      inferTablesFromSpec,
		AnalyzeComplexity:        analyzeComplexity,
		FindJoinForestStrictFK:   findJoinForestStrictFK(g),
		FindJoinForestHeuristic:  findJoinForestHeuristic(g),
		BuildSqlFromPlan:         buildSqlFromPlan,
		ExecutePlannedSql:        executePlannedSql,
		PassThroughRawSql:        passThroughRawSql,
		WrapBaseSql:              wrapBaseSql,
	}
}

func chooseExecutionMode(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
	if st.Spec.RawSQL != "" && st.Spec.BaseSQL != "" {
		return nil, nil, errs.Spec("raw_sql and base_sql are mutually exclusive")
	}
	mode := planning.ModeAuto
	switch {
	case st.Spec.RawSQL != "":
		mode = planning.ModeRaw
	case st.Spec.BaseSQL != "":
		mode = planning.ModeBase
	}
	next := st.With(func(s *planning.State) { s.Mode = mode })
	return next, []string{"mode"}, nil
}

func validateSpecStructurally(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
	var diags []string
	seenAlias := make(map[string]bool)
	for _, m := range st.Spec.Metrics {
		if m.Alias == "" {
			return nil, nil, errs.Spec("metric has an empty alias", m.Expr)
		}
		if seenAlias[m.Alias] {
			return nil, nil, errs.Spec("duplicate metric alias", m.Alias)
		}
		seenAlias[m.Alias] = true
	}
	for _, f := range st.Spec.Filters {
		if !planning.AllowedOps[f.Op] {
			return nil, nil, errs.Spec("unknown filter operator", f.Op)
		}
		if f.Op == planning.OpIn && len(f.Values()) == 0 {
			return nil, nil, errs.Spec("IN filter carries an empty value list", f.Column)
		}
		if f.Op != planning.OpIn && len(f.Values()) == 0 {
			return nil, nil, errs.Spec("filter carries no bindable value", f.Column)
		}
	}
	for _, g := range st.Spec.GroupBy {
		if !strings.Contains(g, ".") {
			diags = append(diags, fmt.Sprintf("group_by item %q does not qualify a table", g))
		}
	}
	if len(diags) == 0 {
		return st, nil, nil
	}
	next := st.With(func(s *planning.State) { s.Diagnostics = append(s.Diagnostics, diags...) })
	return next, []string{"diagnostics"}, nil
}

func inferTablesFromSpec(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
	seen := make(map[string]bool)
	var unresolved bool
	collect := func(ref string) {
		parts := strings.SplitN(ref, ".", 2)
		if len(parts) != 2 || parts[0] == "" {
			unresolved = true
			return
		}
		seen[parts[0]] = true
	}
	for _, m := range st.Spec.Metrics {
		for _, tbl := range referencedTables(m.Expr) {
			seen[tbl] = true
		}
	}
	for _, g := range st.Spec.GroupBy {
		collect(g)
	}
	for _, f := range st.Spec.Filters {
		collect(f.Column)
	}
	if unresolved && st.Mode == planning.ModeAuto {
		return nil, nil, errs.Spec("a column reference is missing its table qualifier in auto mode")
	}

	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	next := st.With(func(s *planning.State) { s.InferredTables = tables })
	return next, []string{"inferred_tables"}, nil
}

// referencedTables scans a metric expression for table.column occurrences
// (e.g. "SUM(orders.amount_cents)") without a full SQL expression parser,
// since metrics are single aggregate calls over qualified columns.
func referencedTables(expr string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	tokens := strings.FieldsFunc(expr, func(r rune) bool {
		return !(r == '.' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})
	for _, tok := range tokens {
		if dot := strings.IndexByte(tok, '.'); dot > 0 {
			cur.WriteString(tok[:dot])
			flush()
		}
	}
	return out
}

func analyzeComplexity(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
	n := len(st.InferredTables)
	hasInOrLike := false
	hasBigInOrLike := false
	for _, f := range st.Spec.Filters {
		switch f.Op {
		case planning.OpLike:
			hasInOrLike = true
			hasBigInOrLike = true
		case planning.OpIn:
			hasInOrLike = true
			if len(f.Values()) > 32 {
				hasBigInOrLike = true
			}
		}
	}

	var c planning.Complexity
	switch {
	case n <= 1:
		c = planning.ComplexityTrivial
	case n <= 3 && !hasInOrLike:
		c = planning.ComplexitySimple
	case hasBigInOrLike:
		c = planning.ComplexityComplex
	default:
		c = planning.ComplexityStandard
	}

	next := st.With(func(s *planning.State) { s.Complexity = c })
	return next, []string{"complexity"}, nil
}

func resolveDialect(st *planning.State) (dialect.Dialect, error) {
	return dialect.Get(st.Spec.Dialect)
}

func findJoinForestStrictFK(g *schema.Graph) htn.PrimitiveFunc {
	return func(ctx context.Context, st *planning.State) (next *planning.State, changed []string, err error) {
		if _, fpErr := failpoint.Eval("github.com/htnql-engine/htnql/primitives/joinForestStrictFKFail"); fpErr == nil {
			return nil, nil, errs.JoinDisconnected("__failpoint__")
		}
		allowed := toSet(st.InferredTables)
		steps, offending, ok := connect(func(a, b string) ([]schema.FKEdge, bool) {
			return g.ShortestPathWithin(a, b, allowed)
		}, st.InferredTables)
		if !ok {
			return nil, nil, errs.JoinDisconnected(offending)
		}
		next = st.With(func(s *planning.State) { s.JoinForest = steps })
		return next, []string{"join_forest"}, nil
	}
}

func findJoinForestHeuristic(g *schema.Graph) htn.PrimitiveFunc {
	return func(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
		allowed := toSet(st.InferredTables)
		steps, offending, ok := connect(func(a, b string) ([]schema.FKEdge, bool) {
			return g.ShortestPathWithin(a, b, allowed)
		}, st.InferredTables)
		if ok {
			next := st.With(func(s *planning.State) { s.JoinForest = steps })
			return next, []string{"join_forest"}, nil
		}

		candidates := shape.Suggest(g, st.InferredTables)
		if len(candidates) == 0 {
			return nil, nil, errs.JoinDisconnected(offending)
		}
		bridged := toSet(st.InferredTables)
		var bridgeNames []string
		for _, c := range candidates {
			bridged[c.Table] = true
			bridgeNames = append(bridgeNames, c.Table)
		}
		steps, offending, ok = connect(func(a, b string) ([]schema.FKEdge, bool) {
			return g.ShortestPathWithin(a, b, bridged)
		}, st.InferredTables)
		if !ok {
			return nil, nil, errs.JoinDisconnected(offending)
		}
		diag := fmt.Sprintf("heuristic join bridged via: %s", strings.Join(bridgeNames, ", "))
		next := st.With(func(s *planning.State) {
			s.JoinForest = steps
			s.Diagnostics = append(s.Diagnostics, diag)
		})
		return next, []string{"join_forest", "diagnostics"}, nil
	}
}

func toSet(tables []string) map[string]bool {
	out := make(map[string]bool, len(tables))
	for _, t := range tables {
		out[t] = true
	}
	return out
}

// connect anchors on the lexicographically smallest table and links every
// other inferred table to it via pathFn, unioning edges in encounter
// order and skipping duplicates already present in the forest.
func connect(pathFn func(a, b string) ([]schema.FKEdge, bool), tables []string) ([]planning.JoinStep, string, bool) {
	if len(tables) <= 1 {
		return nil, "", true
	}
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)
	anchor := sorted[0]

	seen := make(map[planning.JoinStep]bool)
	var forest []planning.JoinStep
	for _, t := range sorted[1:] {
		path, ok := pathFn(anchor, t)
		if !ok {
			return nil, t, false
		}
		for _, e := range path {
			step := planning.JoinStep{LeftTable: e.ChildTable, LeftCol: e.ChildColumn, RightTable: e.ParentTable, RightCol: e.ParentColumn}
			if seen[step] {
				continue
			}
			seen[step] = true
			forest = append(forest, step)
		}
	}
	return forest, "", true
}

func buildSqlFromPlan(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
	d, err := resolveDialect(st)
	if err != nil {
		return nil, nil, err
	}
	sql, args, err := sqlbuild.Build(st, d)
	if err != nil {
		return nil, nil, err
	}
	next := st.With(func(s *planning.State) {
		s.SQL = sql
		s.BoundValues = args
	})
	return next, []string{"sql", "bound_values"}, nil
}

func wrapBaseSql(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
	d, err := resolveDialect(st)
	if err != nil {
		return nil, nil, err
	}
	if err := d.ValidateFragmentSyntax(st.Spec.BaseSQL); err != nil {
		return nil, nil, err
	}
	sql, args, err := sqlbuild.WrapBase(st, d)
	if err != nil {
		return nil, nil, err
	}
	next := st.With(func(s *planning.State) {
		s.SQL = sql
		s.BoundValues = args
	})
	return next, []string{"sql", "bound_values"}, nil
}

func passThroughRawSql(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
	d, err := resolveDialect(st)
	if err != nil {
		return nil, nil, err
	}
	if err := d.ValidateSyntax(st.Spec.RawSQL); err != nil {
		return nil, nil, err
	}
	next := st.With(func(s *planning.State) { s.SQL = st.Spec.RawSQL })
	return next, []string{"sql"}, nil
}

func executePlannedSql(ctx context.Context, st *planning.State) (*planning.State, []string, error) {
	if st.SQL == "" {
		return nil, nil, errs.Primitive(ExecutePlannedSql, "no sql produced by planning")
	}
	return st, nil, nil
}
