package metadata

import (
	"fmt"

	"github.com/go-openapi/inflect"
)

// NamingStrategy derives store names for entities and properties that have
// no explicit table or column name
type NamingStrategy interface {
	TableName(entityName string) string
	ColumnName(propertyName string) string
}

// IdentityNaming uses the declared names unchanged
type IdentityNaming struct{}

func (IdentityNaming) TableName(entityName string) string    { return entityName }
func (IdentityNaming) ColumnName(propertyName string) string { return propertyName }

// SnakePluralNaming maps "OrderItem" to table "order_items" and "CustomerId"
// to column "customer_id"
type SnakePluralNaming struct{}

func (SnakePluralNaming) TableName(entityName string) string {
	return inflect.Pluralize(toSnakeCase(entityName))
}

func (SnakePluralNaming) ColumnName(propertyName string) string {
	return toSnakeCase(propertyName)
}

// ParseNaming resolves a configured naming strategy name
func ParseNaming(name string) (NamingStrategy, error) {
	switch name {
	case "", "identity":
		return IdentityNaming{}, nil
	case "snake_plural":
		return SnakePluralNaming{}, nil
	default:
		return nil, fmt.Errorf("unknown naming strategy: %s", name)
	}
}

// toSnakeCase converts a string to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			// camelCase boundary, or the end of an acronym ("HTTPServer" -> "http_server")
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}
