package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/query"
)

// queryFlags describe one query on the command line
type queryFlags struct {
	includes []string
	where    []string
	orWhere  []string
	orderBy  []string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVarP(&f.includes, "include", "i", nil, `include path such as "Orders.OrderItems" (repeatable)`)
	flags.StringArrayVarP(&f.where, "where", "w", nil, `AND condition "Property op value", e.g. "Name = ann" (repeatable)`)
	flags.StringArrayVar(&f.orWhere, "or-where", nil, `OR condition, same form as --where (repeatable)`)
	flags.StringArrayVarP(&f.orderBy, "order", "o", nil, `ORDER BY term "Property" or "Property:desc" (repeatable)`)
}

// compile builds the query for root from the flags
func (f *queryFlags) compile(s *session, root string) (*query.Compiled, error) {
	entity, err := s.entity(root)
	if err != nil {
		return nil, err
	}

	b := query.NewBuilder(entity, s.logger)
	for _, raw := range f.where {
		c, err := parseCondition(entity, raw)
		if err != nil {
			return nil, err
		}
		b.Where(c.Property.Name(), c.Operator, c.Value)
	}
	for _, raw := range f.orWhere {
		c, err := parseCondition(entity, raw)
		if err != nil {
			return nil, err
		}
		b.OrWhere(c.Property.Name(), c.Operator, c.Value)
	}
	for _, raw := range f.orderBy {
		name, dir, _ := strings.Cut(raw, ":")
		if _, err := property(entity, name); err != nil {
			return nil, err
		}
		b.OrderBy(name, dir)
	}
	for _, raw := range f.includes {
		path, err := resolvePath(entity, raw)
		if err != nil {
			return nil, err
		}
		b.Include(path...)
	}
	return b.Compile()
}

func property(e *metadata.Entity, name string) (*metadata.Property, error) {
	if p, ok := e.Property(name); ok {
		return p, nil
	}
	var names []string
	for _, p := range e.Properties() {
		names = append(names, p.Name())
	}
	return nil, &notFoundError{kind: "property", name: e.Name() + "." + name, candidates: names}
}

// resolvePath checks every step of a dotted include path so that a typo is
// reported with the navigations that do exist. A step that is not a
// navigation of the previous target is looked up on the root.
func resolvePath(root *metadata.Entity, raw string) ([]string, error) {
	names := strings.Split(raw, ".")
	current := root
	for _, name := range names {
		nav, ok := current.Navigation(name)
		if !ok && current != root {
			nav, ok = root.Navigation(name)
		}
		if !ok {
			var candidates []string
			for _, n := range current.Navigations() {
				candidates = append(candidates, n.Name())
			}
			return nil, &notFoundError{kind: "navigation", name: current.Name() + "." + name, candidates: candidates}
		}
		current = nav.TargetEntity()
	}
	return names, nil
}

// parseCondition reads "Property op value"; null tests take no value
func parseCondition(e *metadata.Entity, raw string) (*query.Condition, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return nil, fmt.Errorf("condition %q: want \"Property op [value]\"", raw)
	}
	p, err := property(e, fields[0])
	if err != nil {
		return nil, err
	}
	op, err := query.ParseOperator(fields[1])
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", raw, err)
	}

	c := &query.Condition{Property: p, Operator: op}
	if op == query.OpIsNull || op == query.OpIsNotNull {
		if len(fields) > 2 {
			return nil, fmt.Errorf("condition %q: %s takes no value", raw, op)
		}
		return c, nil
	}
	if len(fields) < 3 {
		return nil, fmt.Errorf("condition %q: missing value", raw)
	}
	value := strings.Join(fields[2:], " ")
	c.Value, err = parseValue(p, value)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", raw, err)
	}
	return c, nil
}

// parseValue converts a command-line literal to the property's kind
func parseValue(p *metadata.Property, s string) (any, error) {
	switch p.Type().Kind {
	case metadata.KindInt, metadata.KindBigInt:
		return strconv.ParseInt(s, 10, 64)
	case metadata.KindFloat:
		return strconv.ParseFloat(s, 64)
	case metadata.KindBool:
		return strconv.ParseBool(s)
	default:
		return s, nil
	}
}
