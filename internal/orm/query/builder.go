// Package query is the front end that turns a root entity, filters, orderings
// and include paths into a compiled, renderable query
package query

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/orm/include"
	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// Ordering is one requested ORDER BY term on the root entity
type Ordering struct {
	Property   *metadata.Property
	Descending bool
}

// Builder provides a fluent API for building queries. The first invalid call
// is remembered and returned by Compile.
type Builder struct {
	entity *metadata.Entity
	logger *zap.Logger

	conditions []*Condition
	orderBy    []Ordering
	includes   [][]*metadata.Navigation
	err        error
}

// NewBuilder creates a builder for queries rooted at entity
func NewBuilder(entity *metadata.Entity, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		entity: entity,
		logger: logger,
	}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) property(name string) (*metadata.Property, bool) {
	p, ok := b.entity.Property(name)
	if !ok {
		b.fail(fmt.Errorf("%w: %s.%s", ErrUnknownProperty, b.entity.Name(), name))
	}
	return p, ok
}

// Where adds an AND condition on a root property
func (b *Builder) Where(property string, op Operator, value interface{}) *Builder {
	return b.where(property, op, value, false)
}

// OrWhere adds an OR condition on a root property
func (b *Builder) OrWhere(property string, op Operator, value interface{}) *Builder {
	return b.where(property, op, value, true)
}

func (b *Builder) where(property string, op Operator, value interface{}, or bool) *Builder {
	p, ok := b.property(property)
	if !ok {
		return b
	}
	b.conditions = append(b.conditions, &Condition{Property: p, Operator: op, Value: value, Or: or})
	return b
}

// WhereNull adds an IS NULL condition
func (b *Builder) WhereNull(property string) *Builder {
	return b.Where(property, OpIsNull, nil)
}

// WhereNotNull adds an IS NOT NULL condition
func (b *Builder) WhereNotNull(property string) *Builder {
	return b.Where(property, OpIsNotNull, nil)
}

// OrderBy adds an ORDER BY term; direction is "ASC" or "DESC", anything else
// means ascending
func (b *Builder) OrderBy(property string, direction string) *Builder {
	p, ok := b.property(property)
	if !ok {
		return b
	}
	b.orderBy = append(b.orderBy, Ordering{Property: p, Descending: strings.EqualFold(direction, "DESC")})
	return b
}

// OrderByDesc adds a descending ORDER BY term
func (b *Builder) OrderByDesc(property string) *Builder {
	return b.OrderBy(property, "DESC")
}

// Include adds one include path given as navigation names. Each name is
// resolved against the target of the previous step and, failing that, against
// the root entity, so Include("Customer", "OrderItems") on Order loads both
// navigations of the order in one path.
func (b *Builder) Include(navigations ...string) *Builder {
	if len(navigations) == 0 {
		return b.fail(include.ErrEmptyPath)
	}
	path := make([]*metadata.Navigation, 0, len(navigations))
	current := b.entity
	for _, name := range navigations {
		nav, ok := current.Navigation(name)
		if !ok && current != b.entity {
			nav, ok = b.entity.Navigation(name)
		}
		if !ok {
			return b.fail(fmt.Errorf("%w: %s.%s", ErrUnknownNavigation, current.Name(), name))
		}
		path = append(path, nav)
		current = nav.TargetEntity()
	}
	b.includes = append(b.includes, path)
	return b
}

// IncludePath adds an include path written as "Customer.Orders"
func (b *Builder) IncludePath(path string) *Builder {
	return b.Include(strings.Split(path, ".")...)
}

// Compile builds the root statement and plans every include path
func (b *Builder) Compile() (*Compiled, error) {
	if b.err != nil {
		return nil, b.err
	}

	qs := sqlast.NewQuerySource(b.entity)
	stmt := sqlast.NewStatement()
	table := sqlast.NewTable(b.entity, sqlast.AliasFor(b.entity.TableName()), qs)
	stmt.AddTable(table)
	for _, c := range sqlast.EntityColumns(table) {
		stmt.AddToProjection(c)
	}

	predicate, err := combine(b.conditions, table)
	if err != nil {
		return nil, err
	}
	stmt.AddPredicate(predicate)
	for _, o := range b.orderBy {
		stmt.AddToOrderBy(sqlast.ResolveColumn(table, o.Property), o.Descending)
	}

	cc := include.NewCompilationContext(b.logger)
	planner := include.NewPlanner(b.logger)
	compiled := &Compiled{
		ID:        cc.ID,
		Entity:    b.entity,
		Source:    qs,
		Statement: stmt,
		shape:     b.shape(),
		model:     b.entity.Model().Fingerprint(),
		logger:    b.logger,
	}
	for _, path := range b.includes {
		res, err := planner.Plan(cc, qs, stmt, path)
		if err != nil {
			return nil, err
		}
		compiled.Includes = append(compiled.Includes, Include{Path: path, Strategies: res.Strategies})
	}

	b.logger.Debug("query compiled",
		zap.String("compilation_id", cc.ID.String()),
		zap.String("entity", b.entity.Name()),
		zap.Int("includes", len(b.includes)),
		zap.Int("streams", cc.Streams()),
	)
	return compiled, nil
}

// shape describes the query without parameter values
func (b *Builder) shape() string {
	var sb strings.Builder
	sb.WriteString(b.entity.Name())
	for _, c := range b.conditions {
		join := "and"
		if c.Or {
			join = "or"
		}
		fmt.Fprintf(&sb, "|%s:%s %s", join, c.Property.Name(), c.Operator)
	}
	for _, o := range b.orderBy {
		dir := "asc"
		if o.Descending {
			dir = "desc"
		}
		fmt.Fprintf(&sb, "|order:%s %s", o.Property.Name(), dir)
	}
	for _, path := range b.includes {
		names := make([]string, len(path))
		for i, nav := range path {
			names[i] = nav.Name()
		}
		sb.WriteString("|include:" + strings.Join(names, "."))
	}
	return sb.String()
}
