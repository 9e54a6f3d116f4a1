package sqlast

import "github.com/conduit-lang/relmap/internal/orm/metadata"

// Expr is a scalar or boolean expression
type Expr interface {
	expr()
}

// Op is a binary operator
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAnd
	OpOr
)

// String returns the SQL form of the operator
func (o Op) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return "UNKNOWN"
	}
}

// Column references a column of a table source. Alias is the output name in a
// projection when it differs from Name.
type Column struct {
	Table    TableSource
	Name     string
	Alias    string
	Property *metadata.Property
	Type     metadata.ValueType
}

func (*Column) expr() {}

// OutputName returns the name the column has in a result set
func (c *Column) OutputName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// SameColumn reports whether c and other read the same column of the same source
func (c *Column) SameColumn(other *Column) bool {
	return c.Table == other.Table && c.Name == other.Name
}

// Binary applies Op to two operands
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (*Binary) expr() {}

// IsNull tests an operand for NULL, or NOT NULL when Negate is set
type IsNull struct {
	Operand Expr
	Negate  bool
}

func (*IsNull) expr() {}

// Parameter is a bound value
type Parameter struct {
	Name  string
	Value any
	Type  metadata.ValueType
}

func (*Parameter) expr() {}

// Convert coerces an operand to Type. It carries nullability through a
// comparison and renders as its operand.
type Convert struct {
	Operand Expr
	Type    metadata.ValueType
}

func (*Convert) expr() {}

// Equal builds left = right
func Equal(left, right Expr) *Binary {
	return &Binary{Op: OpEqual, Left: left, Right: right}
}

// And folds terms into a left-deep conjunction. It returns nil for no terms.
func And(terms ...Expr) Expr {
	var result Expr
	for _, t := range terms {
		if t == nil {
			continue
		}
		if result == nil {
			result = t
			continue
		}
		result = &Binary{Op: OpAnd, Left: result, Right: t}
	}
	return result
}
