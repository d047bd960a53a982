// Package dialect implements the Dialect Registry: per-target-SQL-dialect
// identifier quoting, operator spelling, and syntax pre-checks for
// raw_sql/base_sql mode. Only two dialects are supported today, matching
// the two SQL builder outputs HTNQL is expected to produce.
package dialect

import (
	"fmt"
	"strings"

	pgquery "github.com/pganalyze/pg_query_go/v5"
	"github.com/pingcap/tidb/parser"
	_ "github.com/pingcap/tidb/parser/test_driver" // registers literal expression evaluation the parser needs
	"github.com/xwb1989/sqlparser"

	"github.com/htnql-engine/htnql/errs"
	"github.com/htnql-engine/htnql/mapping"
)

// Dialect bundles the target-specific rules the SQL Builder and the
// raw/base syntax pre-check need.
type Dialect struct {
	name string
}

// Get resolves name to its Dialect, defaulting to postgres for the empty
// string as §4.I's "double-quotes by default" mandates.
func Get(name string) (Dialect, error) {
	if name == "" {
		name = "postgres"
	}
	if !mapping.IsSupportedDialect(name) {
		return Dialect{}, errs.Spec("unsupported SQL dialect", name)
	}
	return Dialect{name: name}, nil
}

// Name returns the dialect's identifier.
func (d Dialect) Name() string { return d.name }

// QuoteIdent wraps a single identifier per the dialect's convention.
// Fully qualified references (table.column) must be quoted per-part by
// the caller; this only quotes one name at a time.
func (d Dialect) QuoteIdent(name string) string {
	switch d.name {
	case "mysql":
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// Operator spells op the way this dialect renders it.
func (d Dialect) Operator(op string) (string, error) {
	spelling, ok := mapping.Operator(d.name, op)
	if !ok {
		return "", errs.Spec("unsupported filter operator", op)
	}
	return spelling, nil
}

// ValidateSyntax parses sql with this dialect's real grammar, used only
// to pre-check raw_sql (a full statement) before the raw-mode primitive
// commits to it.
func (d Dialect) ValidateSyntax(sql string) error {
	switch d.name {
	case "postgres":
		if _, err := pgquery.Parse(sql); err != nil {
			return errs.Spec(fmt.Sprintf("raw_sql is not valid PostgreSQL syntax: %v", err))
		}
		return nil
	case "mysql":
		p := parser.New()
		if _, _, err := p.Parse(sql, "", ""); err != nil {
			return errs.Spec(fmt.Sprintf("raw_sql is not valid MySQL syntax: %v", err))
		}
		return nil
	default:
		return errs.Spec("unsupported SQL dialect", d.name)
	}
}

// ValidateFragmentSyntax checks base_sql, which is a bare SELECT-shaped
// expression rather than a full statement list. PostgreSQL fragments
// reuse the full-statement grammar (pg_query_go handles a lone SELECT
// fine); MySQL fragments use the lighter xwb1989/sqlparser grammar, which
// tidb/parser's statement-list oriented API does not accept as cleanly.
func (d Dialect) ValidateFragmentSyntax(sql string) error {
	switch d.name {
	case "postgres":
		if _, err := pgquery.Parse(sql); err != nil {
			return errs.Spec(fmt.Sprintf("base_sql is not a valid PostgreSQL expression: %v", err))
		}
		return nil
	case "mysql":
		if _, err := sqlparser.Parse(sql); err != nil {
			return errs.Spec(fmt.Sprintf("base_sql is not a valid MySQL expression: %v", err))
		}
		return nil
	default:
		return errs.Spec("unsupported SQL dialect", d.name)
	}
}
