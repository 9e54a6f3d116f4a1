package sqlast

// Clone deep-copies the statement tree. Columns and predicates that referred to
// sources inside the tree refer to the copies; references to sources outside
// the tree are kept.
func (s *Statement) Clone() *Statement {
	clone, _ := s.CloneRemap()
	return clone
}

// CloneRemap clones the statement and returns a function mapping a source of
// the original tree to its copy. Sources outside the tree map to themselves.
func (s *Statement) CloneRemap() (*Statement, func(TableSource) TableSource) {
	c := &cloner{sources: make(map[TableSource]TableSource)}
	out := c.statement(s)
	return out, func(src TableSource) TableSource { return c.remap(Unwrap(src)) }
}

type cloner struct {
	sources map[TableSource]TableSource
}

func (c *cloner) statement(s *Statement) *Statement {
	out := &Statement{
		Distinct: s.Distinct,
		Alias:    s.Alias,
	}
	c.sources[s] = out

	// first pass copies sources so predicates may refer to any of them
	joins := make(map[*Join]*Join)
	for _, src := range s.Tables {
		switch v := src.(type) {
		case *Join:
			nj := &Join{Kind: v.Kind, Table: c.source(v.Table)}
			joins[v] = nj
			out.Tables = append(out.Tables, nj)
		default:
			out.Tables = append(out.Tables, c.source(v))
		}
	}
	for old, nj := range joins {
		nj.Predicate = c.expr(old.Predicate)
	}

	for _, col := range s.Projection {
		out.Projection = append(out.Projection, c.column(col))
	}
	out.Predicate = c.expr(s.Predicate)
	for _, o := range s.OrderBy {
		out.OrderBy = append(out.OrderBy, Ordering{Column: c.column(o.Column), Descending: o.Descending})
	}
	return out
}

func (c *cloner) source(src TableSource) TableSource {
	switch v := src.(type) {
	case *Table:
		t := *v
		c.sources[v] = &t
		return &t
	case *Statement:
		return c.statement(v)
	case *Join:
		return &Join{Kind: v.Kind, Table: c.source(v.Table), Predicate: c.expr(v.Predicate)}
	default:
		return src
	}
}

func (c *cloner) remap(src TableSource) TableSource {
	if mapped, ok := c.sources[src]; ok {
		return mapped
	}
	return src
}

func (c *cloner) column(col *Column) *Column {
	out := *col
	out.Table = c.remap(col.Table)
	return &out
}

func (c *cloner) expr(e Expr) Expr {
	switch v := e.(type) {
	case nil:
		return nil
	case *Column:
		return c.column(v)
	case *Binary:
		return &Binary{Op: v.Op, Left: c.expr(v.Left), Right: c.expr(v.Right)}
	case *IsNull:
		return &IsNull{Operand: c.expr(v.Operand), Negate: v.Negate}
	case *Parameter:
		p := *v
		return &p
	case *Convert:
		return &Convert{Operand: c.expr(v.Operand), Type: v.Type}
	default:
		return e
	}
}
