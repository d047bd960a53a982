package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnql-engine/htnql/schema"
)

func illustrativeSchema(t *testing.T) *schema.Graph {
	t.Helper()
	g, err := schema.New(
		[]schema.TableDef{
			{Name: "customers", Columns: []string{"id", "region"}, PrimaryKey: []string{"id"}},
			{Name: "orders", Columns: []string{"id", "customer_id", "amount_cents", "status"}, PrimaryKey: []string{"id"}},
		},
		[]schema.FKEdge{
			{ChildTable: "orders", ChildColumn: "customer_id", ParentTable: "customers", ParentColumn: "id"},
		},
	)
	require.NoError(t, err)
	return g
}

func TestNew_RejectsUnknownTable(t *testing.T) {
	_, err := schema.New(
		[]schema.TableDef{{Name: "orders", Columns: []string{"id"}}},
		[]schema.FKEdge{{ChildTable: "orders", ChildColumn: "id", ParentTable: "customers", ParentColumn: "id"}},
	)
	require.Error(t, err)
}

func TestNew_RejectsUnknownColumn(t *testing.T) {
	_, err := schema.New(
		[]schema.TableDef{
			{Name: "orders", Columns: []string{"id"}},
			{Name: "customers", Columns: []string{"id"}},
		},
		[]schema.FKEdge{{ChildTable: "orders", ChildColumn: "customer_id", ParentTable: "customers", ParentColumn: "id"}},
	)
	require.Error(t, err)
}

func TestShortestPath_DirectEdge(t *testing.T) {
	g := illustrativeSchema(t)
	path, ok := g.ShortestPath("customers", "orders")
	require.True(t, ok)
	require.Len(t, path, 1)
	assert.Equal(t, "orders", path[0].ChildTable)
	assert.Equal(t, "customers", path[0].ParentTable)
}

func TestShortestPath_SameTable(t *testing.T) {
	g := illustrativeSchema(t)
	path, ok := g.ShortestPath("orders", "orders")
	require.True(t, ok)
	assert.Nil(t, path)
}

func TestShortestPath_Disconnected(t *testing.T) {
	g, err := schema.New(
		[]schema.TableDef{
			{Name: "a", Columns: []string{"id"}},
			{Name: "b", Columns: []string{"id"}},
		},
		nil,
	)
	require.NoError(t, err)
	_, ok := g.ShortestPath("a", "b")
	assert.False(t, ok)
}

func TestConnectedComponents_Partitions(t *testing.T) {
	g2, err := schema.New(
		[]schema.TableDef{
			{Name: "customers", Columns: []string{"id"}},
			{Name: "orders", Columns: []string{"id", "customer_id"}},
			{Name: "widgets", Columns: []string{"id"}},
		},
		[]schema.FKEdge{{ChildTable: "orders", ChildColumn: "customer_id", ParentTable: "customers", ParentColumn: "id"}},
	)
	require.NoError(t, err)

	components := g2.ConnectedComponents([]string{"customers", "orders", "widgets"})
	require.Len(t, components, 2)
	assert.Equal(t, []string{"customers", "orders"}, components[0])
	assert.Equal(t, []string{"widgets"}, components[1])
}

func TestTablesAndColumns_AreSorted(t *testing.T) {
	g := illustrativeSchema(t)
	assert.Equal(t, []string{"customers", "orders"}, g.Tables())
	cols, ok := g.Columns("orders")
	require.True(t, ok)
	assert.Equal(t, []string{"amount_cents", "customer_id", "id", "status"}, cols)
}

func TestSelfReferentialEdge_ValidWithAlias(t *testing.T) {
	_, err := schema.New(
		[]schema.TableDef{{Name: "employees", Columns: []string{"id", "manager_id"}}},
		[]schema.FKEdge{{ChildTable: "employees", ChildColumn: "manager_id", ParentTable: "employees", ParentColumn: "id"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "employees_self", schema.SelfJoinAlias("employees"))
}

func TestSelfReferentialEdge_AliasCollisionFails(t *testing.T) {
	_, err := schema.New(
		[]schema.TableDef{
			{Name: "employee", Columns: []string{"id", "manager_id"}},
			{Name: "employee_self", Columns: []string{"id"}},
		},
		[]schema.FKEdge{{ChildTable: "employee", ChildColumn: "manager_id", ParentTable: "employee", ParentColumn: "id"}},
	)
	require.Error(t, err)
}
