// Package schema holds the read-only foreign-key graph a QueryEngine plans
// joins against. A Graph is built once from a reflected metadata object and
// never mutated afterward, so it is safe to share across concurrent
// run_report calls.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/htnql-engine/htnql/errs"
)

// FKEdge is the directed form of a foreign-key constraint, oriented from
// the referencing (child) table to the referenced (parent) table. The
// graph exposes both directions for path-finding.
type FKEdge struct {
	ChildTable   string
	ChildColumn  string
	ParentTable  string
	ParentColumn string
}

func (e FKEdge) other(table string) string {
	if e.ChildTable == table {
		return e.ParentTable
	}
	return e.ChildTable
}

// less imposes the canonical ordering DESIGN NOTES §9 requires: sorted by
// (child_table, child_column, parent_table, parent_column).
func (e FKEdge) less(o FKEdge) bool {
	if e.ChildTable != o.ChildTable {
		return e.ChildTable < o.ChildTable
	}
	if e.ChildColumn != o.ChildColumn {
		return e.ChildColumn < o.ChildColumn
	}
	if e.ParentTable != o.ParentTable {
		return e.ParentTable < o.ParentTable
	}
	return e.ParentColumn < o.ParentColumn
}

// TableDef describes one table as produced by schema reflection: its
// column set and, optionally, its primary-key columns.
type TableDef struct {
	Name       string
	Columns    []string
	PrimaryKey []string
}

type tableNode struct {
	columns map[string]struct{}
	pk      map[string]struct{}
}

// Graph is the undirected multigraph of tables and FK edges. It is
// immutable after New returns successfully.
type Graph struct {
	tables map[string]tableNode
	byName map[string][]FKEdge // table -> incident edges, sorted by neighbor name
	all    []FKEdge             // all edges, sorted canonically
}

// New constructs a Graph from reflected tables and FK edges, failing with
// a SchemaError if any edge names a table or column the tables list does
// not define.
func New(tables []TableDef, edges []FKEdge) (*Graph, error) {
	g := &Graph{
		tables: make(map[string]tableNode, len(tables)),
		byName: make(map[string][]FKEdge),
	}
	for _, t := range tables {
		cols := make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			cols[c] = struct{}{}
		}
		pk := make(map[string]struct{}, len(t.PrimaryKey))
		for _, c := range t.PrimaryKey {
			pk[c] = struct{}{}
		}
		g.tables[t.Name] = tableNode{columns: cols, pk: pk}
	}

	for _, e := range edges {
		child, ok := g.tables[e.ChildTable]
		if !ok {
			return nil, errs.Schema("foreign key references unknown table", e.ChildTable)
		}
		if _, ok := child.columns[e.ChildColumn]; !ok {
			return nil, errs.Schema(fmt.Sprintf("foreign key references unknown column %s.%s", e.ChildTable, e.ChildColumn), e.ChildTable)
		}
		parent, ok := g.tables[e.ParentTable]
		if !ok {
			return nil, errs.Schema("foreign key references unknown table", e.ParentTable)
		}
		if _, ok := parent.columns[e.ParentColumn]; !ok {
			return nil, errs.Schema(fmt.Sprintf("foreign key references unknown column %s.%s", e.ParentTable, e.ParentColumn), e.ParentTable)
		}
		g.all = append(g.all, e)
		g.byName[e.ChildTable] = append(g.byName[e.ChildTable], e)
		if e.ParentTable != e.ChildTable {
			g.byName[e.ParentTable] = append(g.byName[e.ParentTable], e)
		}
	}

	sort.Slice(g.all, func(i, j int) bool { return g.all[i].less(g.all[j]) })
	for name := range g.byName {
		edges := g.byName[name]
		sort.Slice(edges, func(i, j int) bool {
			ni, nj := edges[i].other(name), edges[j].other(name)
			if ni != nj {
				return ni < nj
			}
			return edges[i].less(edges[j])
		})
		g.byName[name] = edges
	}

	if err := checkSelfJoinAliases(g); err != nil {
		return nil, err
	}
	return g, nil
}

// checkSelfJoinAliases resolves DESIGN.md's self-referential FK decision:
// a self-referential edge is accepted as a valid edge whose reserved alias
// is the table name suffixed "_self". That alias must not collide with the
// pluralization of any other real table already in the graph. Path search
// never traverses a self-referential edge, since both of its ends are the
// same, already-visited table.
func checkSelfJoinAliases(g *Graph) error {
	for _, e := range g.all {
		if e.ChildTable != e.ParentTable {
			continue
		}
		alias := SelfJoinAlias(e.ChildTable)
		for name := range g.tables {
			if name == e.ChildTable {
				continue
			}
			if inflection.Plural(name) == alias || name == alias {
				return errs.Schema(fmt.Sprintf("self-join alias %q for table %q collides with existing table %q", alias, e.ChildTable, name), e.ChildTable)
			}
		}
	}
	return nil
}

// SelfJoinAlias returns the alias a self-referential join on table must
// use, so the same table can appear twice in a FROM clause.
func SelfJoinAlias(table string) string {
	return table + "_self"
}

// Tables returns every table name, sorted.
func (g *Graph) Tables() []string {
	out := make([]string, 0, len(g.tables))
	for name := range g.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Columns returns table's column names, sorted, and whether table exists.
func (g *Graph) Columns(table string) ([]string, bool) {
	t, ok := g.tables[table]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(t.columns))
	for c := range t.columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, true
}

// HasTable reports whether table is defined in the graph.
func (g *Graph) HasTable(table string) bool {
	_, ok := g.tables[table]
	return ok
}

// EdgesIncident returns the edges touching table, ordered by the table at
// the other end, then canonically.
func (g *Graph) EdgesIncident(table string) []FKEdge {
	return g.byName[table]
}

// ShortestPath finds the shortest chain of edges connecting a to b in the
// undirected view of the graph, breaking ties deterministically by
// preferring the lexicographically smaller sequence of intermediate
// tables. Returns (nil, true) when a == b.
func (g *Graph) ShortestPath(a, b string) ([]FKEdge, bool) {
	if a == b {
		return nil, true
	}
	type frame struct {
		table string
		path  []FKEdge
	}
	visited := map[string]bool{a: true}
	queue := []frame{{table: a}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		neighbors := g.byName[cur.table]
		// neighbors is already sorted by neighbor table name, which yields
		// sorted (and thus deterministic) traversal order for equal-length ties.
		for _, e := range neighbors {
			next := e.other(cur.table)
			if visited[next] {
				continue
			}
			visited[next] = true
			path := make([]FKEdge, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			path = append(path, e)
			if next == b {
				return path, true
			}
			queue = append(queue, frame{table: next, path: path})
		}
	}
	return nil, false
}

// Fingerprint returns a deterministic string summarizing every table,
// column, and edge in the graph, suitable as an input to a cache key.
// It changes if and only if the graph's structure changes.
func (g *Graph) Fingerprint() string {
	var b strings.Builder
	for _, name := range g.Tables() {
		cols, _ := g.Columns(name)
		fmt.Fprintf(&b, "T:%s(%s);", name, strings.Join(cols, ","))
	}
	for _, e := range g.all {
		fmt.Fprintf(&b, "E:%s.%s->%s.%s;", e.ChildTable, e.ChildColumn, e.ParentTable, e.ParentColumn)
	}
	return b.String()
}

// ShortestPathWithin is ShortestPath restricted to an induced subgraph:
// only edges whose both endpoints are in allowed are considered. Used by
// the strict join method, which refuses to route through a table the
// report never mentioned.
func (g *Graph) ShortestPathWithin(a, b string, allowed map[string]bool) ([]FKEdge, bool) {
	if a == b {
		return nil, true
	}
	type frame struct {
		table string
		path  []FKEdge
	}
	visited := map[string]bool{a: true}
	queue := []frame{{table: a}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.byName[cur.table] {
			next := e.other(cur.table)
			if !allowed[next] || visited[next] {
				continue
			}
			visited[next] = true
			path := make([]FKEdge, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			path = append(path, e)
			if next == b {
				return path, true
			}
			queue = append(queue, frame{table: next, path: path})
		}
	}
	return nil, false
}

// ConnectedComponents partitions tableSet by mutual reachability through
// the full graph (bridging through tables outside tableSet is allowed).
// Each returned component is sorted; components are returned sorted by
// their first element.
func (g *Graph) ConnectedComponents(tableSet []string) [][]string {
	want := make(map[string]bool, len(tableSet))
	for _, t := range tableSet {
		want[t] = true
	}
	seen := make(map[string]bool)
	var components [][]string
	// Iterate tableSet in sorted order so component discovery order, and
	// therefore the returned slice order, is deterministic.
	ordered := append([]string(nil), tableSet...)
	sort.Strings(ordered)
	for _, start := range ordered {
		if seen[start] {
			continue
		}
		var component []string
		queue := []string{start}
		visitedWalk := map[string]bool{start: true}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if want[cur] {
				component = append(component, cur)
				seen[cur] = true
			}
			for _, e := range g.byName[cur] {
				next := e.other(cur)
				if visitedWalk[next] {
					continue
				}
				visitedWalk[next] = true
				queue = append(queue, next)
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}
	sort.Slice(components, func(i, j int) bool {
		if len(components[i]) == 0 || len(components[j]) == 0 {
			return len(components[i]) < len(components[j])
		}
		return components[i][0] < components[j][0]
	})
	return components
}
