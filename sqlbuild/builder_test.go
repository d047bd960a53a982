package sqlbuild_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnql-engine/htnql/dialect"
	"github.com/htnql-engine/htnql/planning"
	"github.com/htnql-engine/htnql/sqlbuild"
)

func postgres(t *testing.T) dialect.Dialect {
	t.Helper()
	d, err := dialect.Get("postgres")
	require.NoError(t, err)
	return d
}

// S1: trivial single-table grouped count.
func TestBuild_S1_TrivialSingleTable(t *testing.T) {
	st := planning.New(planning.ReportSpec{
		Metrics: []planning.Metric{{Expr: "COUNT(*)", Alias: "n"}},
		GroupBy: []string{"orders.status"},
	})
	st.InferredTables = []string{"orders"}

	sql, args, err := sqlbuild.Build(st, postgres(t))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "orders"."status", COUNT(*) AS n FROM "orders" GROUP BY "orders"."status"`, sql)
	assert.Empty(t, args)
}

// S2: cross-table join.
func TestBuild_S2_CrossTableJoin(t *testing.T) {
	st := planning.New(planning.ReportSpec{
		Metrics: []planning.Metric{{Expr: "SUM(orders.amount_cents)", Alias: "total"}},
		GroupBy: []string{"customers.region"},
	})
	st.InferredTables = []string{"customers", "orders"}
	st.JoinForest = []planning.JoinStep{
		{LeftTable: "orders", LeftCol: "customer_id", RightTable: "customers", RightCol: "id"},
	}

	sql, _, err := sqlbuild.Build(st, postgres(t))
	require.NoError(t, err)
	assert.Contains(t, sql, `FROM "customers" INNER JOIN "orders" ON "orders"."customer_id" = "customers"."id"`)
}

// S3: IN filter with bound values.
func TestBuild_S3_InFilter(t *testing.T) {
	st := planning.New(planning.ReportSpec{
		Metrics: []planning.Metric{{Expr: "COUNT(*)", Alias: "n"}},
		GroupBy: []string{"orders.status"},
		Filters: []planning.Condition{
			{Column: "orders.status", Op: planning.OpIn, Value: planning.ListStrings("paid", "shipped")},
		},
	})
	st.InferredTables = []string{"orders"}

	sql, args, err := sqlbuild.Build(st, postgres(t))
	require.NoError(t, err)
	assert.Contains(t, sql, `WHERE "orders"."status" IN (?, ?)`)
	assert.Equal(t, []any{"paid", "shipped"}, args)
}

// S5: base mode wrapping.
func TestWrapBase_S5_WrapsCallerSuppliedSql(t *testing.T) {
	st := planning.New(planning.ReportSpec{
		Metrics: []planning.Metric{{Expr: "SUM(amount_cents)", Alias: "total"}},
		GroupBy: []string{"region"},
		BaseSQL: "SELECT region, amount_cents FROM orders_view",
	})

	sql, _, err := sqlbuild.WrapBase(st, postgres(t))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "region", SUM(amount_cents) AS total FROM (SELECT region, amount_cents FROM orders_view) __base__ GROUP BY "region"`, sql)
}

func TestBuild_QuotesAliasOnlyWhenNeeded(t *testing.T) {
	st := planning.New(planning.ReportSpec{
		Metrics: []planning.Metric{{Expr: "COUNT(*)", Alias: "order count"}},
	})
	st.InferredTables = []string{"orders"}

	sql, _, err := sqlbuild.Build(st, postgres(t))
	require.NoError(t, err)
	assert.Contains(t, sql, `COUNT(*) AS "order count"`)
}

func TestBuild_MysqlUsesBacktickQuoting(t *testing.T) {
	d, err := dialect.Get("mysql")
	require.NoError(t, err)

	st := planning.New(planning.ReportSpec{
		Metrics: []planning.Metric{{Expr: "COUNT(*)", Alias: "n"}},
		GroupBy: []string{"orders.status"},
	})
	st.InferredTables = []string{"orders"}

	sql, _, err := sqlbuild.Build(st, d)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `orders`.`status`, COUNT(*) AS n FROM `orders` GROUP BY `orders`.`status`", sql)
}

func TestBuild_AppliesLimit(t *testing.T) {
	limit := 10
	st := planning.New(planning.ReportSpec{
		Metrics: []planning.Metric{{Expr: "COUNT(*)", Alias: "n"}},
		GroupBy: []string{"orders.status"},
		Limit:   &limit,
	})
	st.InferredTables = []string{"orders"}

	sql, _, err := sqlbuild.Build(st, postgres(t))
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 10")
}

func TestBuild_FailsWithoutInferredTables(t *testing.T) {
	st := planning.New(planning.ReportSpec{})
	_, _, err := sqlbuild.Build(st, postgres(t))
	require.Error(t, err)
}

func TestBuild_FailsWithoutMetricsOrGroupBy(t *testing.T) {
	st := planning.New(planning.ReportSpec{})
	st.InferredTables = []string{"orders"}
	_, _, err := sqlbuild.Build(st, postgres(t))
	require.Error(t, err)
}
