// Package sqlbuild implements the SQL Builder (§4.I): turning a finalized
// PlanningState into a SELECT statement and a parallel bound-values list.
// Adapted from the teacher's engine/builders/postgres BuildWhereClause /
// BuildJoinSQL / BuildAggregateSQL / BuildHavingClause shape — a
// helper-per-clause style that threads an args slice and returns
// (string, error) — generalized here from a five-operation-group
// universal Query to the single report-shaped SELECT this system emits.
package sqlbuild

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/htnql-engine/htnql/dialect"
	"github.com/htnql-engine/htnql/errs"
	"github.com/htnql-engine/htnql/planning"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteQualified quotes a "table.column" reference part by part.
func quoteQualified(d dialect.Dialect, ref string) string {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) == 1 {
		return d.QuoteIdent(parts[0])
	}
	return d.QuoteIdent(parts[0]) + "." + d.QuoteIdent(parts[1])
}

func quoteAliasIfNeeded(d dialect.Dialect, alias string) string {
	if identifierRe.MatchString(alias) {
		return alias
	}
	return d.QuoteIdent(alias)
}

// Build emits the auto-mode SELECT statement for a finalized state whose
// InferredTables and JoinForest are already populated. Returns the SQL
// text and its parallel ordered bound-values list.
func Build(st *planning.State, d dialect.Dialect) (string, []any, error) {
	if len(st.InferredTables) == 0 {
		return "", nil, errs.Primitive("BuildSqlFromPlan", "no inferred tables to select from")
	}

	root := st.InferredTables[0]
	for _, t := range st.InferredTables[1:] {
		if t < root {
			root = t
		}
	}

	selectList, err := buildSelectList(st, d)
	if err != nil {
		return "", nil, err
	}

	fromClause, err := buildFromJoin(st, d, root)
	if err != nil {
		return "", nil, err
	}

	var args []any
	whereClause, whereArgs, err := buildWhere(st, d)
	if err != nil {
		return "", nil, err
	}
	args = append(args, whereArgs...)

	var sql strings.Builder
	fmt.Fprintf(&sql, "SELECT %s FROM %s", selectList, fromClause)
	sql.WriteString(whereClause)
	if len(st.Spec.GroupBy) > 0 {
		groupCols := make([]string, len(st.Spec.GroupBy))
		for i, g := range st.Spec.GroupBy {
			groupCols[i] = quoteQualified(d, g)
		}
		sql.WriteString(" GROUP BY " + strings.Join(groupCols, ", "))
	}
	if st.Spec.Limit != nil {
		fmt.Fprintf(&sql, " LIMIT %d", *st.Spec.Limit)
	}
	return sql.String(), args, nil
}

func buildSelectList(st *planning.State, d dialect.Dialect) (string, error) {
	var cols []string
	for _, g := range st.Spec.GroupBy {
		cols = append(cols, quoteQualified(d, g))
	}
	for _, m := range st.Spec.Metrics {
		cols = append(cols, fmt.Sprintf("%s AS %s", m.Expr, quoteAliasIfNeeded(d, m.Alias)))
	}
	if len(cols) == 0 {
		return "", errs.Primitive("BuildSqlFromPlan", "spec has neither metrics nor group_by")
	}
	return strings.Join(cols, ", "), nil
}

// buildFromJoin walks the join forest in planning order, emitting one
// INNER JOIN per edge for whichever side of the edge is not yet included.
// Each table appears exactly once; an edge whose both sides are already
// included (a redundant path) is skipped.
func buildFromJoin(st *planning.State, d dialect.Dialect, root string) (string, error) {
	var sql strings.Builder
	sql.WriteString(d.QuoteIdent(root))
	included := map[string]bool{root: true}

	for _, j := range st.JoinForest {
		leftIn, rightIn := included[j.LeftTable], included[j.RightTable]
		var newTable string
		switch {
		case leftIn && rightIn:
			continue
		case leftIn:
			newTable = j.RightTable
		case rightIn:
			newTable = j.LeftTable
		default:
			return "", errs.Primitive("BuildSqlFromPlan", "join forest edge touches no table already in the plan: "+j.LeftTable+"/"+j.RightTable)
		}
		fmt.Fprintf(&sql, " INNER JOIN %s ON %s.%s = %s.%s",
			d.QuoteIdent(newTable),
			d.QuoteIdent(j.LeftTable), d.QuoteIdent(j.LeftCol),
			d.QuoteIdent(j.RightTable), d.QuoteIdent(j.RightCol))
		included[newTable] = true
	}
	return sql.String(), nil
}

func buildWhere(st *planning.State, d dialect.Dialect) (string, []any, error) {
	if len(st.Spec.Filters) == 0 {
		return "", nil, nil
	}
	var clauses []string
	var args []any
	for _, f := range st.Spec.Filters {
		spelling, err := d.Operator(f.Op)
		if err != nil {
			return "", nil, err
		}
		col := quoteQualified(d, f.Column)
		switch f.Op {
		case planning.OpIn:
			vals := f.Values()
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
			clauses = append(clauses, fmt.Sprintf("%s %s (%s)", col, spelling, placeholders))
			args = append(args, vals...)
		default:
			clauses = append(clauses, fmt.Sprintf("%s %s ?", col, spelling))
			args = append(args, f.Values()...)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// WrapBase builds the base-mode scaffold: metrics/group_by applied over
// the caller's base_sql treated as a subquery aliased __base__.
func WrapBase(st *planning.State, d dialect.Dialect) (string, []any, error) {
	selectList, err := buildSelectList(st, d)
	if err != nil {
		return "", nil, err
	}
	var sql strings.Builder
	fmt.Fprintf(&sql, "SELECT %s FROM (%s) __base__", selectList, st.Spec.BaseSQL)

	whereClause, args, err := buildWhere(st, d)
	if err != nil {
		return "", nil, err
	}
	sql.WriteString(whereClause)

	if len(st.Spec.GroupBy) > 0 {
		groupCols := make([]string, len(st.Spec.GroupBy))
		for i, g := range st.Spec.GroupBy {
			groupCols[i] = quoteQualified(d, g)
		}
		sql.WriteString(" GROUP BY " + strings.Join(groupCols, ", "))
	}
	if st.Spec.Limit != nil {
		fmt.Fprintf(&sql, " LIMIT %d", *st.Spec.Limit)
	}
	return sql.String(), args, nil
}
