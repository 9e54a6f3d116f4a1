package sqlast

import (
	"strconv"
	"strings"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
)

// Ordering is one ORDER BY term
type Ordering struct {
	Column     *Column
	Descending bool
}

// Statement is a select statement. As a TableSource it is a subquery and must
// carry an Alias.
type Statement struct {
	// Tables holds the FROM source first, then one *Join per joined source
	Tables     []TableSource
	Projection []*Column
	Predicate  Expr
	OrderBy    []Ordering
	Distinct   bool
	Alias      string
}

func (*Statement) tableSource() {}

// SourceAlias returns the subquery alias
func (s *Statement) SourceAlias() string { return s.Alias }

// NewStatement creates an empty statement
func NewStatement() *Statement {
	return &Statement{}
}

// AddTable appends a source without a join predicate. The first call sets the
// FROM source.
func (s *Statement) AddTable(src TableSource) {
	s.Tables = append(s.Tables, src)
}

// AddInnerJoin joins src and appends columns to the projection
func (s *Statement) AddInnerJoin(src TableSource, columns []*Column) *Join {
	return s.addJoin(InnerJoin, src, columns)
}

// AddOuterJoin left-joins src and appends columns to the projection
func (s *Statement) AddOuterJoin(src TableSource, columns []*Column) *Join {
	return s.addJoin(LeftOuterJoin, src, columns)
}

func (s *Statement) addJoin(kind JoinKind, src TableSource, columns []*Column) *Join {
	j := &Join{Kind: kind, Table: Unwrap(src)}
	s.Tables = append(s.Tables, j)
	for _, c := range columns {
		s.AddToProjection(c)
	}
	return j
}

// HasOuterJoin reports whether any joined source is a left outer join
func (s *Statement) HasOuterJoin() bool {
	for _, src := range s.Tables {
		if j, ok := src.(*Join); ok && j.Kind == LeftOuterJoin {
			return true
		}
	}
	return false
}

// AddToProjection appends c and returns its index. A column already projected
// returns the existing index; an output name already taken gets a numbered alias.
func (s *Statement) AddToProjection(c *Column) int {
	for i, existing := range s.Projection {
		if existing.SameColumn(c) {
			return i
		}
	}

	col := *c
	if s.projects(col.OutputName()) {
		base := col.Name
		for i := 0; ; i++ {
			alias := base + strconv.Itoa(i)
			if !s.projects(alias) {
				col.Alias = alias
				break
			}
		}
	}
	s.Projection = append(s.Projection, &col)
	return len(s.Projection) - 1
}

func (s *Statement) projects(name string) bool {
	for _, c := range s.Projection {
		if strings.EqualFold(c.OutputName(), name) {
			return true
		}
	}
	return false
}

// ClearProjection removes every projected column
func (s *Statement) ClearProjection() {
	s.Projection = nil
}

// AddToOrderBy appends an ordering term unless c is already ordered
func (s *Statement) AddToOrderBy(c *Column, descending bool) {
	for _, o := range s.OrderBy {
		if o.Column.SameColumn(c) {
			return
		}
	}
	s.OrderBy = append(s.OrderBy, Ordering{Column: c, Descending: descending})
}

// ClearOrderBy removes every ordering term
func (s *Statement) ClearOrderBy() {
	s.OrderBy = nil
}

// AddPredicate ANDs e into the WHERE clause
func (s *Statement) AddPredicate(e Expr) {
	s.Predicate = And(s.Predicate, e)
}

// Sources returns the statement's own sources with joins unwrapped
func (s *Statement) Sources() []TableSource {
	result := make([]TableSource, 0, len(s.Tables))
	for _, src := range s.Tables {
		result = append(result, Unwrap(src))
	}
	return result
}

// FindTableForQuerySource returns the base table bound to qs
func (s *Statement) FindTableForQuerySource(qs *QuerySource) (*Table, bool) {
	for _, src := range s.Sources() {
		if t, ok := src.(*Table); ok && t.Source != nil && t.Source.ID == qs.ID {
			return t, true
		}
	}
	return nil, false
}

// LastTableForEntity returns the most recently added base table for e
func (s *Statement) LastTableForEntity(e *metadata.Entity) (*Table, bool) {
	sources := s.Sources()
	for i := len(sources) - 1; i >= 0; i-- {
		if t, ok := sources[i].(*Table); ok && t.Entity == e {
			return t, true
		}
	}
	return nil, false
}

// UniqueAlias returns base, or base followed by a number, such that no source
// anywhere in the statement tree already uses it
func (s *Statement) UniqueAlias(base string) string {
	return UniqueAliasIn(base, s)
}

// UniqueAliasIn returns an alias derived from base that none of the trees use
func UniqueAliasIn(base string, trees ...*Statement) string {
	used := make(map[string]bool)
	for _, s := range trees {
		s.collectAliases(used)
	}
	if !used[base] {
		return base
	}
	for i := 0; ; i++ {
		alias := base + strconv.Itoa(i)
		if !used[alias] {
			return alias
		}
	}
}

func (s *Statement) collectAliases(used map[string]bool) {
	if s.Alias != "" {
		used[s.Alias] = true
	}
	for _, src := range s.Sources() {
		if sub, ok := src.(*Statement); ok {
			sub.collectAliases(used)
			continue
		}
		used[src.SourceAlias()] = true
	}
}

// AliasFor returns the lowercase first letter of a table name, the base the
// planner uses for table aliases
func AliasFor(tableName string) string {
	for _, r := range tableName {
		return strings.ToLower(string(r))
	}
	return "t"
}
