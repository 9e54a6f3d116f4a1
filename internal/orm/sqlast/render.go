package sqlast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect selects placeholder syntax
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// String returns the dialect name
func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	default:
		return "postgres"
	}
}

// ParseDialect resolves a configured dialect name
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unknown dialect: %s", name)
	}
}

// Renderer turns statements into parameterized command text
type Renderer struct {
	Dialect Dialect
}

// NewRenderer creates a renderer for dialect
func NewRenderer(dialect Dialect) *Renderer {
	return &Renderer{Dialect: dialect}
}

// Render returns the command text and its arguments in placeholder order
func (r *Renderer) Render(s *Statement) (string, []any, error) {
	if err := s.Validate(); err != nil {
		return "", nil, err
	}
	w := &writer{dialect: r.Dialect}
	w.statement(s)
	if w.err != nil {
		return "", nil, w.err
	}
	return w.sb.String(), w.args, nil
}

type writer struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
	err     error
}

func (w *writer) statement(s *Statement) {
	w.sb.WriteString("SELECT ")
	if s.Distinct {
		w.sb.WriteString("DISTINCT ")
	}
	if len(s.Projection) == 0 {
		w.sb.WriteString("1")
	}
	for i, c := range s.Projection {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.column(c)
		if c.Alias != "" && c.Alias != c.Name {
			w.sb.WriteString(" AS ")
			w.sb.WriteString(pq.QuoteIdentifier(c.Alias))
		}
	}

	for i, src := range s.Tables {
		switch v := src.(type) {
		case *Join:
			w.sb.WriteString(" ")
			w.sb.WriteString(v.Kind.String())
			w.sb.WriteString(" ")
			w.source(v.Table)
			w.sb.WriteString(" ON ")
			w.expr(v.Predicate)
		default:
			if i == 0 {
				w.sb.WriteString(" FROM ")
			} else {
				w.sb.WriteString(", ")
			}
			w.source(v)
		}
	}

	if s.Predicate != nil {
		w.sb.WriteString(" WHERE ")
		w.expr(s.Predicate)
	}

	for i, o := range s.OrderBy {
		if i == 0 {
			w.sb.WriteString(" ORDER BY ")
		} else {
			w.sb.WriteString(", ")
		}
		w.column(o.Column)
		if o.Descending {
			w.sb.WriteString(" DESC")
		} else {
			w.sb.WriteString(" ASC")
		}
	}
}

func (w *writer) source(src TableSource) {
	switch v := src.(type) {
	case *Table:
		if v.Schema != "" {
			w.sb.WriteString(pq.QuoteIdentifier(v.Schema))
			w.sb.WriteString(".")
		}
		w.sb.WriteString(pq.QuoteIdentifier(v.Name))
		w.sb.WriteString(" AS ")
		w.sb.WriteString(pq.QuoteIdentifier(v.Alias))
	case *Statement:
		w.sb.WriteString("(")
		w.statement(v)
		w.sb.WriteString(") AS ")
		w.sb.WriteString(pq.QuoteIdentifier(v.Alias))
	default:
		w.fail(fmt.Errorf("unsupported table source %T", src))
	}
}

func (w *writer) column(c *Column) {
	w.sb.WriteString(pq.QuoteIdentifier(c.Table.SourceAlias()))
	w.sb.WriteString(".")
	w.sb.WriteString(pq.QuoteIdentifier(c.Name))
}

func (w *writer) expr(e Expr) {
	switch v := e.(type) {
	case *Column:
		w.column(v)
	case *Binary:
		if v.Op == OpAnd || v.Op == OpOr {
			w.sb.WriteString("(")
			w.expr(v.Left)
			w.sb.WriteString(" " + v.Op.String() + " ")
			w.expr(v.Right)
			w.sb.WriteString(")")
			return
		}
		w.expr(v.Left)
		w.sb.WriteString(" " + v.Op.String() + " ")
		w.expr(v.Right)
	case *IsNull:
		w.expr(v.Operand)
		if v.Negate {
			w.sb.WriteString(" IS NOT NULL")
		} else {
			w.sb.WriteString(" IS NULL")
		}
	case *Parameter:
		w.args = append(w.args, v.Value)
		if w.dialect == SQLite {
			w.sb.WriteString("?")
		} else {
			w.sb.WriteString("$" + strconv.Itoa(len(w.args)))
		}
	case *Convert:
		w.expr(v.Operand)
	default:
		w.fail(fmt.Errorf("unsupported expression %T", e))
	}
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Arguments returns the statement's parameter values in the order Render binds
// them. It lets a cached command text be reused with fresh values.
func Arguments(s *Statement) []any {
	var args []any
	collectArguments(s, &args)
	return args
}

func collectArguments(s *Statement, args *[]any) {
	for _, src := range s.Tables {
		switch v := src.(type) {
		case *Join:
			if sub, ok := v.Table.(*Statement); ok {
				collectArguments(sub, args)
			}
			collectExprArguments(v.Predicate, args)
		case *Statement:
			collectArguments(v, args)
		}
	}
	collectExprArguments(s.Predicate, args)
}

func collectExprArguments(e Expr, args *[]any) {
	switch v := e.(type) {
	case *Parameter:
		*args = append(*args, v.Value)
	case *Binary:
		collectExprArguments(v.Left, args)
		collectExprArguments(v.Right, args)
	case *IsNull:
		collectExprArguments(v.Operand, args)
	case *Convert:
		collectExprArguments(v.Operand, args)
	}
}
