// Package include plans eager loading. It extends a query's statement with a
// join for every to-one step of an include path and builds a separate ordered
// statement for every to-many step, returning the strategies the materializer
// uses to attach related entities.
package include

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// Result is the outcome of planning one include path
type Result struct {
	Statement  *sqlast.Statement
	Strategies []Strategy
}

// Planner plans include paths. It holds no per-query state and may be shared.
type Planner struct {
	logger *zap.Logger
}

// NewPlanner creates a planner. A nil logger disables planner logging; the
// compilation context's logger is used for per-step output.
func NewPlanner(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger}
}

// cursor is the position the next step extends from
type cursor struct {
	stmt   *sqlast.Statement
	table  *sqlast.Table
	stream int
}

// Plan extends stmt, which must contain the table for qs, with the given
// navigation path. The path is validated as a whole before stmt is touched, so
// a failed plan leaves stmt unchanged.
func (p *Planner) Plan(cc *CompilationContext, qs *sqlast.QuerySource, stmt *sqlast.Statement, path []*metadata.Navigation) (*Result, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	root, ok := stmt.FindTableForQuerySource(qs)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuerySource, qs.Entity.Name())
	}
	if err := validatePath(stmt, root, path); err != nil {
		return nil, err
	}

	cur := cursor{stmt: stmt, table: root, stream: RootStream}
	result := &Result{Statement: stmt, Strategies: make([]Strategy, 0, len(path))}

	for _, nav := range path {
		var (
			strategy Strategy
			err      error
		)
		if nav.IsCollection() {
			strategy, cur, err = p.collection(cc, cur, nav)
		} else {
			strategy, cur, err = p.reference(cc, cur, nav)
		}
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", nav, err)
		}
		result.Strategies = append(result.Strategies, strategy)
	}

	p.logger.Debug("include path planned",
		zap.String("compilation_id", cc.ID.String()),
		zap.String("root", qs.Entity.Name()),
		zap.Int("steps", len(path)),
		zap.Int("streams", cc.Streams()),
	)
	return result, nil
}

// validatePath checks every step against the metadata and simulates which
// entities each step can be reached from
func validatePath(stmt *sqlast.Statement, root *sqlast.Table, path []*metadata.Navigation) error {
	available := make(map[*metadata.Entity]bool)
	available[root.Entity] = true
	for _, src := range stmt.Sources() {
		if t, ok := src.(*sqlast.Table); ok {
			available[t.Entity] = true
		}
	}

	for _, nav := range path {
		declaring := nav.DeclaringEntity()
		target := nav.TargetEntity()
		if !available[declaring] {
			return fmt.Errorf("%w: %s", ErrNavigationUnreachable, nav)
		}
		if _, ok := target.PrimaryKey(); !ok {
			return fmt.Errorf("include %s: %w: %s", nav, ErrMissingPrimaryKey, target.Name())
		}
		if err := checkKeyTypes(nav.ForeignKey()); err != nil {
			return fmt.Errorf("include %s: %w", nav, err)
		}

		if nav.IsCollection() {
			if _, ok := declaring.PrimaryKey(); !ok {
				return fmt.Errorf("include %s: %w: %s", nav, ErrMissingPrimaryKey, declaring.Name())
			}
			available = map[*metadata.Entity]bool{target: true}
			continue
		}
		available[target] = true
	}
	return nil
}

func checkKeyTypes(fk *metadata.ForeignKey) error {
	keyProps := fk.PrincipalKey().Properties()
	for i, p := range fk.Properties() {
		if !metadata.Compatible(p.Type(), keyProps[i].Type()) {
			return fmt.Errorf("%w: %s (%s) and %s (%s)", ErrIncompatibleKeyTypes, p, p.Type(), keyProps[i], keyProps[i].Type())
		}
	}
	return nil
}

// sourceTable returns the table the navigation is traversed from
func (c cursor) sourceTable(nav *metadata.Navigation) (*sqlast.Table, error) {
	declaring := nav.DeclaringEntity()
	if c.table.Entity == declaring {
		return c.table, nil
	}
	if t, ok := c.stmt.LastTableForEntity(declaring); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNavigationUnreachable, nav)
}

func (p *Planner) reference(cc *CompilationContext, cur cursor, nav *metadata.Navigation) (Strategy, cursor, error) {
	source, err := cur.sourceTable(nav)
	if err != nil {
		return nil, cur, err
	}
	fk := nav.ForeignKey()
	target := nav.TargetEntity()
	table := sqlast.NewTable(target, cur.stmt.UniqueAlias(sqlast.AliasFor(target.TableName())), nil)

	fkSide, keySide := sqlast.TableSource(table), sqlast.TableSource(source)
	if nav.PointsToPrincipal() {
		fkSide, keySide = source, table
	}
	predicate, err := joinPredicate(fk, fkSide, keySide)
	if err != nil {
		return nil, cur, err
	}

	offset := len(cur.stmt.Projection)
	inner := fk.IsRequired() && nav.PointsToPrincipal() && !cc.isNullable(source)
	var join *sqlast.Join
	if inner {
		join = cur.stmt.AddInnerJoin(table, sqlast.EntityColumns(table))
	} else {
		join = cur.stmt.AddOuterJoin(table, sqlast.EntityColumns(table))
		cc.markNullable(table)
	}
	join.Predicate = predicate

	cc.Logger().Debug("planned reference include",
		zap.String("navigation", nav.String()),
		zap.String("join", join.Kind.String()),
		zap.String("alias", table.Alias),
		zap.Int("stream", cur.stream),
		zap.Int("offset", offset),
	)

	strategy := &ReferenceStrategy{
		Navigation:   nav,
		StreamIndex:  cur.stream,
		ReaderOffset: offset,
		Table:        table,
	}
	return strategy, cursor{stmt: cur.stmt, table: table, stream: cur.stream}, nil
}

func (p *Planner) collection(cc *CompilationContext, cur cursor, nav *metadata.Navigation) (Strategy, cursor, error) {
	principal, err := cur.sourceTable(nav)
	if err != nil {
		return nil, cur, err
	}
	fk := nav.ForeignKey()
	target := nav.TargetEntity()
	pk, ok := nav.DeclaringEntity().PrimaryKey()
	if !ok {
		return nil, cur, fmt.Errorf("%w: %s", ErrMissingPrimaryKey, nav.DeclaringEntity().Name())
	}
	keyProps := fk.PrincipalKey().Properties()

	// parent rows come out ordered by the principal's primary key
	parent := cur.stmt
	for _, prop := range pk.Properties() {
		parent.AddToOrderBy(sqlast.ResolveColumn(principal, prop), false)
	}
	parentKey := KeyExtractor{Offsets: make([]int, len(keyProps))}
	for i, prop := range keyProps {
		parentKey.Offsets[i] = parent.AddToProjection(sqlast.ResolveColumn(principal, prop))
	}

	// driving key set: the parent's distinct ordering columns plus the principal key
	keySet, remap := parent.CloneRemap()
	orderings := keySet.OrderBy
	keySet.Distinct = true
	keySet.ClearProjection()
	keySet.ClearOrderBy()
	orderIdx := make([]int, len(orderings))
	for i, o := range orderings {
		orderIdx[i] = keySet.AddToProjection(o.Column)
	}
	keyIdx := make([]int, len(keyProps))
	for i, prop := range keyProps {
		keyIdx[i] = keySet.AddToProjection(sqlast.ResolveColumn(remap(principal), prop))
	}

	child := sqlast.NewStatement()
	table := sqlast.NewTable(target, sqlast.UniqueAliasIn(sqlast.AliasFor(target.TableName()), keySet), nil)
	child.AddTable(table)
	for _, c := range sqlast.EntityColumns(table) {
		child.AddToProjection(c)
	}
	keySet.Alias = sqlast.UniqueAliasIn(sqlast.AliasFor(principal.Name), child, keySet)

	fkProps := fk.Properties()
	terms := make([]sqlast.Expr, 0, len(fkProps))
	for i, prop := range fkProps {
		eq, err := equality(sqlast.ResolveColumn(table, prop), exposed(keySet, keyIdx[i]))
		if err != nil {
			return nil, cur, err
		}
		terms = append(terms, eq)
	}
	join := child.AddInnerJoin(keySet, nil)
	join.Predicate = sqlast.And(terms...)

	for i, o := range orderings {
		child.AddToOrderBy(exposed(keySet, orderIdx[i]), o.Descending)
	}

	childKey := KeyExtractor{Offsets: make([]int, len(fkProps))}
	for i, prop := range fkProps {
		childKey.Offsets[i] = projectionIndex(child, table, prop)
	}

	stream := cc.NextStream()
	cc.Logger().Debug("planned collection include",
		zap.String("navigation", nav.String()),
		zap.String("key_set", keySet.Alias),
		zap.String("alias", table.Alias),
		zap.Int("parent_stream", cur.stream),
		zap.Int("stream", stream),
	)

	strategy := &CollectionStrategy{
		Navigation:   nav,
		StreamIndex:  stream,
		ParentStream: cur.stream,
		Statement:    child,
		ParentKey:    parentKey,
		ChildKey:     childKey,
		EntityOffset: 0,
	}
	return strategy, cursor{stmt: child, table: table, stream: stream}, nil
}

// exposed returns a column reading the idx-th output of a subquery
func exposed(sub *sqlast.Statement, idx int) *sqlast.Column {
	c := sub.Projection[idx]
	return &sqlast.Column{Table: sub, Name: c.OutputName(), Property: c.Property, Type: c.Type}
}

func projectionIndex(s *sqlast.Statement, t *sqlast.Table, prop *metadata.Property) int {
	for i, c := range s.Projection {
		if c.Table == sqlast.TableSource(t) && c.Property == prop {
			return i
		}
	}
	return s.AddToProjection(sqlast.ResolveColumn(t, prop))
}

// joinPredicate equates each foreign key column on fkSide with the matching
// principal key column on keySide
func joinPredicate(fk *metadata.ForeignKey, fkSide, keySide sqlast.TableSource) (sqlast.Expr, error) {
	fkProps := fk.Properties()
	keyProps := fk.PrincipalKey().Properties()
	terms := make([]sqlast.Expr, 0, len(fkProps))
	for i := range fkProps {
		eq, err := equality(sqlast.ResolveColumn(fkSide, fkProps[i]), sqlast.ResolveColumn(keySide, keyProps[i]))
		if err != nil {
			return nil, err
		}
		terms = append(terms, eq)
	}
	return sqlast.And(terms...), nil
}

// equality compares two key columns, lifting the non-nullable one when only
// one side is nullable
func equality(left, right *sqlast.Column) (sqlast.Expr, error) {
	if !metadata.Compatible(left.Type, right.Type) {
		return nil, fmt.Errorf("%w: %s (%s) and %s (%s)", ErrIncompatibleKeyTypes, left.Name, left.Type, right.Name, right.Type)
	}
	var l, r sqlast.Expr = left, right
	switch {
	case left.Type.Nullable && !right.Type.Nullable:
		r = &sqlast.Convert{Operand: right, Type: right.Type.AsNullable()}
	case right.Type.Nullable && !left.Type.Nullable:
		l = &sqlast.Convert{Operand: left, Type: left.Type.AsNullable()}
	}
	return sqlast.Equal(l, r), nil
}
