package metadata

import (
	"fmt"
	"strings"
)

// Kind represents the built-in primitive kinds a property value can have
type Kind int

const (
	// Text kinds
	KindString Kind = iota
	KindText

	// Numeric kinds
	KindInt
	KindBigInt
	KindFloat
	KindDecimal

	// Boolean
	KindBool

	// Time kinds
	KindTimestamp
	KindDate
	KindTime

	// Unique identifiers
	KindUUID

	// JSON kinds
	KindJSON
	KindJSONB
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	case KindJSON:
		return "json"
	case KindJSONB:
		return "jsonb"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "text":
		return KindText, nil
	case "int":
		return KindInt, nil
	case "bigint":
		return KindBigInt, nil
	case "float":
		return KindFloat, nil
	case "decimal":
		return KindDecimal, nil
	case "bool":
		return KindBool, nil
	case "timestamp":
		return KindTimestamp, nil
	case "date":
		return KindDate, nil
	case "time":
		return KindTime, nil
	case "uuid":
		return KindUUID, nil
	case "json":
		return KindJSON, nil
	case "jsonb":
		return KindJSONB, nil
	default:
		return 0, fmt.Errorf("unknown primitive type: %s", s)
	}
}

// ValueType is the value type of a property: a kind plus explicit nullability
type ValueType struct {
	Kind     Kind
	Nullable bool
}

// Required returns a non-nullable value type of the given kind
func Required(k Kind) ValueType {
	return ValueType{Kind: k}
}

// Optional returns a nullable value type of the given kind
func Optional(k Kind) ValueType {
	return ValueType{Kind: k, Nullable: true}
}

// String returns the type in "kind!" / "kind?" notation
func (t ValueType) String() string {
	if t.Nullable {
		return t.Kind.String() + "?"
	}
	return t.Kind.String() + "!"
}

// AsNullable returns the nullable form of the type
func (t ValueType) AsNullable() ValueType {
	t.Nullable = true
	return t
}

// ParseValueType parses "int!", "string?" or a bare kind (non-nullable)
func ParseValueType(s string) (ValueType, error) {
	s = strings.TrimSpace(s)
	nullable := false
	switch {
	case strings.HasSuffix(s, "?"):
		nullable = true
		s = strings.TrimSuffix(s, "?")
	case strings.HasSuffix(s, "!"):
		s = strings.TrimSuffix(s, "!")
	}

	k, err := ParseKind(s)
	if err != nil {
		return ValueType{}, err
	}
	return ValueType{Kind: k, Nullable: nullable}, nil
}

// Compatible reports whether values of a and b can be compared for equality.
// Nullability may differ; kinds may not.
func Compatible(a, b ValueType) bool {
	return a.Kind == b.Kind
}
