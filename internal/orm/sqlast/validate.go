package sqlast

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateAlias is returned when two sources in a statement tree share an alias
	ErrDuplicateAlias = errors.New("duplicate table alias")

	// ErrMissingAlias is returned when a source has no alias
	ErrMissingAlias = errors.New("missing table alias")

	// ErrUnresolvedColumn is returned when a column refers to a source the
	// statement does not declare
	ErrUnresolvedColumn = errors.New("column does not resolve to a declared source")

	// ErrEmptyStatement is returned for a statement without a FROM source
	ErrEmptyStatement = errors.New("statement has no table source")
)

// Validate checks that every alias in the tree is declared once and that every
// projected, ordered or predicate column resolves to a source of its statement
func (s *Statement) Validate() error {
	return s.validate(make(map[string]bool))
}

func (s *Statement) validate(seen map[string]bool) error {
	if len(s.Tables) == 0 {
		return ErrEmptyStatement
	}
	if _, ok := s.Tables[0].(*Join); ok {
		return fmt.Errorf("%w: first source is a join", ErrEmptyStatement)
	}

	declared := make(map[TableSource]bool)
	for _, src := range s.Sources() {
		alias := src.SourceAlias()
		if alias == "" {
			return ErrMissingAlias
		}
		if seen[alias] {
			return fmt.Errorf("%w: %s", ErrDuplicateAlias, alias)
		}
		seen[alias] = true
		declared[src] = true

		if sub, ok := src.(*Statement); ok {
			if err := sub.validate(seen); err != nil {
				return fmt.Errorf("subquery %s: %w", alias, err)
			}
		}
	}

	check := func(where string, e Expr) error {
		var err error
		walkColumns(e, func(c *Column) {
			if err == nil && !declared[c.Table] {
				err = fmt.Errorf("%w: %s %s", ErrUnresolvedColumn, where, c.Name)
			}
		})
		return err
	}

	for _, c := range s.Projection {
		if err := check("projection", c); err != nil {
			return err
		}
	}
	for _, src := range s.Tables {
		if j, ok := src.(*Join); ok {
			if err := check("join predicate", j.Predicate); err != nil {
				return err
			}
		}
	}
	if err := check("predicate", s.Predicate); err != nil {
		return err
	}
	for _, o := range s.OrderBy {
		if err := check("order by", o.Column); err != nil {
			return err
		}
	}
	return nil
}

func walkColumns(e Expr, fn func(*Column)) {
	switch v := e.(type) {
	case *Column:
		fn(v)
	case *Binary:
		walkColumns(v.Left, fn)
		walkColumns(v.Right, fn)
	case *IsNull:
		walkColumns(v.Operand, fn)
	case *Convert:
		walkColumns(v.Operand, fn)
	}
}
