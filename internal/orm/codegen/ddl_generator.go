package codegen

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// DDLGenerator generates CREATE TABLE statements for the entities of a model
type DDLGenerator struct {
	dialect    sqlast.Dialect
	typeMapper *TypeMapper
}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator(dialect sqlast.Dialect) *DDLGenerator {
	return &DDLGenerator{
		dialect:    dialect,
		typeMapper: NewTypeMapper(dialect),
	}
}

// GenerateCreateTable generates a CREATE TABLE statement for an entity.
// Columns follow property order; keys and foreign keys become table
// constraints.
func (g *DDLGenerator) GenerateCreateTable(e *metadata.Entity) (string, error) {
	if e == nil {
		return "", fmt.Errorf("entity cannot be nil")
	}

	var defs []string
	for _, p := range e.Properties() {
		columnType, err := g.typeMapper.MapType(p.Type())
		if err != nil {
			return "", fmt.Errorf("%s: %w", p, err)
		}
		defs = append(defs, fmt.Sprintf("%s %s %s", pq.QuoteIdentifier(p.ColumnName()), columnType, g.typeMapper.MapNullability(p.Type())))
	}

	if pk, ok := e.PrimaryKey(); ok {
		defs = append(defs, "PRIMARY KEY ("+columnList(pk.Properties())+")")
	}
	for _, k := range e.Keys() {
		if !k.IsPrimary() {
			defs = append(defs, "UNIQUE ("+columnList(k.Properties())+")")
		}
	}
	for _, fk := range e.ForeignKeys() {
		principal := fk.PrincipalEntity()
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			columnList(fk.Properties()), g.tableName(principal), columnList(fk.PrincipalKey().Properties())))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", g.tableName(e))
	for i, def := range defs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String(), nil
}

// GenerateDropTable generates a DROP TABLE statement
func (g *DDLGenerator) GenerateDropTable(e *metadata.Entity) string {
	if g.dialect == sqlast.SQLite {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s;", g.tableName(e))
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", g.tableName(e))
}

// GenerateSchema generates every table of m, principals before dependents
func (g *DDLGenerator) GenerateSchema(m *metadata.Model) (string, error) {
	var b strings.Builder
	for i, e := range CreationOrder(m) {
		stmt, err := g.GenerateCreateTable(e)
		if err != nil {
			return "", fmt.Errorf("entity %s: %w", e.Name(), err)
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(stmt)
	}
	b.WriteString("\n")
	return b.String(), nil
}

// GenerateDropSchema drops every table of m, dependents first
func (g *DDLGenerator) GenerateDropSchema(m *metadata.Model) string {
	order := CreationOrder(m)
	var b strings.Builder
	for i := len(order) - 1; i >= 0; i-- {
		b.WriteString(g.GenerateDropTable(order[i]))
		b.WriteString("\n")
	}
	return b.String()
}

// CreationOrder sorts entities so that every principal precedes its
// dependents, keeping model order otherwise. Self references are ignored and
// entities on a cycle keep model order.
func CreationOrder(m *metadata.Model) []*metadata.Entity {
	entities := m.Entities()
	pending := make(map[*metadata.Entity]int, len(entities))
	dependents := make(map[*metadata.Entity][]*metadata.Entity)
	for _, e := range entities {
		seen := make(map[*metadata.Entity]bool)
		for _, fk := range e.ForeignKeys() {
			p := fk.PrincipalEntity()
			if p == e || seen[p] {
				continue
			}
			seen[p] = true
			pending[e]++
			dependents[p] = append(dependents[p], e)
		}
	}

	order := make([]*metadata.Entity, 0, len(entities))
	done := make(map[*metadata.Entity]bool, len(entities))
	for len(order) < len(entities) {
		progressed := false
		for _, e := range entities {
			if done[e] || pending[e] > 0 {
				continue
			}
			done[e] = true
			order = append(order, e)
			for _, d := range dependents[e] {
				pending[d]--
			}
			progressed = true
			break
		}
		if progressed {
			continue
		}
		// cycle: release the first remaining entity
		for _, e := range entities {
			if !done[e] {
				pending[e] = 0
				break
			}
		}
	}
	return order
}

func (g *DDLGenerator) tableName(e *metadata.Entity) string {
	name := pq.QuoteIdentifier(e.TableName())
	if e.Schema() != "" && g.dialect == sqlast.Postgres {
		return pq.QuoteIdentifier(e.Schema()) + "." + name
	}
	return name
}

func columnList(props []*metadata.Property) string {
	cols := make([]string, len(props))
	for i, p := range props {
		cols[i] = pq.QuoteIdentifier(p.ColumnName())
	}
	return strings.Join(cols, ", ")
}
