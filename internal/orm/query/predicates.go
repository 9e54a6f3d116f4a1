package query

import (
	"fmt"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIsNull
	OpIsNotNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "UNKNOWN"
	}
}

// ParseOperator parses the textual form used on the command line
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "=", "==", "eq":
		return OpEqual, nil
	case "!=", "<>", "ne":
		return OpNotEqual, nil
	case ">", "gt":
		return OpGreaterThan, nil
	case ">=", "gte":
		return OpGreaterThanOrEqual, nil
	case "<", "lt":
		return OpLessThan, nil
	case "<=", "lte":
		return OpLessThanOrEqual, nil
	case "null":
		return OpIsNull, nil
	case "notnull":
		return OpIsNotNull, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownOperator, s)
	}
}

// Condition represents a WHERE condition
type Condition struct {
	Property *metadata.Property
	Operator Operator
	Value    interface{}
	Or       bool // true for OR, false for AND
}

var binaryOps = map[Operator]sqlast.Op{
	OpEqual:              sqlast.OpEqual,
	OpNotEqual:           sqlast.OpNotEqual,
	OpGreaterThan:        sqlast.OpGreaterThan,
	OpGreaterThanOrEqual: sqlast.OpGreaterThanOrEqual,
	OpLessThan:           sqlast.OpLessThan,
	OpLessThanOrEqual:    sqlast.OpLessThanOrEqual,
}

// expr converts the condition to an expression over table
func (c *Condition) expr(table *sqlast.Table) (sqlast.Expr, error) {
	col := sqlast.ResolveColumn(table, c.Property)
	switch c.Operator {
	case OpIsNull:
		return &sqlast.IsNull{Operand: col}, nil
	case OpIsNotNull:
		return &sqlast.IsNull{Operand: col, Negate: true}, nil
	}

	op, ok := binaryOps[c.Operator]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperator, c.Operator)
	}
	if c.Value == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNilValue, c.Property.Name(), c.Operator)
	}
	param := &sqlast.Parameter{Name: c.Property.Name(), Value: c.Value, Type: c.Property.Type()}
	return &sqlast.Binary{Op: op, Left: col, Right: param}, nil
}

// combine folds conditions left to right, joining each to the previous ones
// with AND or OR
func combine(conditions []*Condition, table *sqlast.Table) (sqlast.Expr, error) {
	var result sqlast.Expr
	for _, cond := range conditions {
		e, err := cond.expr(table)
		if err != nil {
			return nil, err
		}
		switch {
		case result == nil:
			result = e
		case cond.Or:
			result = &sqlast.Binary{Op: sqlast.OpOr, Left: result, Right: e}
		default:
			result = &sqlast.Binary{Op: sqlast.OpAnd, Left: result, Right: e}
		}
	}
	return result, nil
}
