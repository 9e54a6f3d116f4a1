// Package sqlast is the mutable select-statement model the include planner
// builds and the renderer turns into parameterized command text.
//
// Table sources and expressions are closed variant sets: TableSource is
// implemented only by *Table, *Join and *Statement, Expr only by the
// expression types in this package.
package sqlast

import (
	"github.com/google/uuid"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
)

// QuerySource identifies one entity occurrence in a query
type QuerySource struct {
	ID     uuid.UUID
	Entity *metadata.Entity
}

// NewQuerySource creates a query source with a fresh identifier
func NewQuerySource(e *metadata.Entity) *QuerySource {
	return &QuerySource{ID: uuid.New(), Entity: e}
}

// TableSource is anything a statement can select from
type TableSource interface {
	SourceAlias() string
	tableSource()
}

// Table is a base table reference
type Table struct {
	Name   string
	Schema string
	Alias  string
	Entity *metadata.Entity
	Source *QuerySource
}

func (*Table) tableSource() {}

// SourceAlias returns the table alias
func (t *Table) SourceAlias() string { return t.Alias }

// NewTable creates a table reference for an entity
func NewTable(e *metadata.Entity, alias string, source *QuerySource) *Table {
	return &Table{
		Name:   e.TableName(),
		Schema: e.Schema(),
		Alias:  alias,
		Entity: e,
		Source: source,
	}
}

// JoinKind is the kind of a join
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

// String returns the SQL keyword for the join kind
func (k JoinKind) String() string {
	switch k {
	case LeftOuterJoin:
		return "LEFT JOIN"
	default:
		return "INNER JOIN"
	}
}

// Join attaches a table or subquery to the statement with a predicate
type Join struct {
	Kind      JoinKind
	Table     TableSource
	Predicate Expr
}

func (*Join) tableSource() {}

// SourceAlias returns the alias of the joined source
func (j *Join) SourceAlias() string { return j.Table.SourceAlias() }

// Unwrap returns the source a join attaches, or src itself
func Unwrap(src TableSource) TableSource {
	if j, ok := src.(*Join); ok {
		return j.Table
	}
	return src
}

// ResolveColumn returns the column expression for p as seen through src.
// A subquery exposes the property under whatever output name its projection
// gave it. A base table, or a subquery that does not project p, yields a
// column named after the property's canonical column name.
func ResolveColumn(src TableSource, p *metadata.Property) *Column {
	src = Unwrap(src)
	if s, ok := src.(*Statement); ok {
		for _, c := range s.Projection {
			if c.Property == p {
				return &Column{Table: s, Name: c.OutputName(), Property: p, Type: c.Type}
			}
		}
	}
	return &Column{Table: src, Name: p.ColumnName(), Property: p, Type: p.Type()}
}

// EntityColumns returns a column for every property of the table's entity in
// ordinal order
func EntityColumns(t *Table) []*Column {
	props := t.Entity.Properties()
	cols := make([]*Column, 0, len(props))
	for _, p := range props {
		cols = append(cols, ResolveColumn(t, p))
	}
	return cols
}
