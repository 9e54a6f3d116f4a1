// Package codegen generates DDL for the tables of a frozen model
package codegen

import (
	"fmt"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

// TypeMapper maps value types to column types of one dialect
type TypeMapper struct {
	dialect sqlast.Dialect
}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper(dialect sqlast.Dialect) *TypeMapper {
	return &TypeMapper{dialect: dialect}
}

// MapType converts a value type to a column type
func (tm *TypeMapper) MapType(vt metadata.ValueType) (string, error) {
	if tm.dialect == sqlast.SQLite {
		return tm.mapSQLite(vt.Kind)
	}
	return tm.mapPostgres(vt.Kind)
}

func (tm *TypeMapper) mapPostgres(k metadata.Kind) (string, error) {
	switch k {
	case metadata.KindString:
		return "VARCHAR(255)", nil
	case metadata.KindText:
		return "TEXT", nil
	case metadata.KindInt:
		return "INTEGER", nil
	case metadata.KindBigInt:
		return "BIGINT", nil
	case metadata.KindFloat:
		return "DOUBLE PRECISION", nil
	case metadata.KindDecimal:
		return "NUMERIC", nil
	case metadata.KindBool:
		return "BOOLEAN", nil
	case metadata.KindTimestamp:
		return "TIMESTAMP WITH TIME ZONE", nil
	case metadata.KindDate:
		return "DATE", nil
	case metadata.KindTime:
		return "TIME", nil
	case metadata.KindUUID:
		return "UUID", nil
	case metadata.KindJSON:
		return "JSON", nil
	case metadata.KindJSONB:
		return "JSONB", nil
	default:
		return "", fmt.Errorf("unsupported type: %s", k)
	}
}

// mapSQLite picks declared types whose affinity matches the kind; the
// timestamp and date names are the ones go-sqlite3 scans into time.Time
func (tm *TypeMapper) mapSQLite(k metadata.Kind) (string, error) {
	switch k {
	case metadata.KindString, metadata.KindText, metadata.KindTime,
		metadata.KindUUID, metadata.KindJSON, metadata.KindJSONB:
		return "TEXT", nil
	case metadata.KindInt, metadata.KindBigInt:
		return "INTEGER", nil
	case metadata.KindFloat:
		return "REAL", nil
	case metadata.KindDecimal:
		return "NUMERIC", nil
	case metadata.KindBool:
		return "BOOLEAN", nil
	case metadata.KindTimestamp:
		return "TIMESTAMP", nil
	case metadata.KindDate:
		return "DATE", nil
	default:
		return "", fmt.Errorf("unsupported type: %s", k)
	}
}

// MapNullability returns the NULL/NOT NULL constraint for a type
func (tm *TypeMapper) MapNullability(vt metadata.ValueType) string {
	if vt.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}
