package include

import "errors"

var (
	// ErrEmptyPath is returned for an include with no navigations
	ErrEmptyPath = errors.New("include path is empty")

	// ErrMissingPrimaryKey is returned when a step needs an entity's primary key
	// and the entity has none
	ErrMissingPrimaryKey = errors.New("entity has no primary key")

	// ErrIncompatibleKeyTypes is returned when a foreign key column and its
	// principal key column differ by more than nullability
	ErrIncompatibleKeyTypes = errors.New("incompatible foreign key and principal key types")

	// ErrNavigationUnreachable is returned when no table in the statement holds
	// the entity a step navigates from
	ErrNavigationUnreachable = errors.New("navigation is not reachable from the query source")

	// ErrUnknownQuerySource is returned when the statement has no table for the query source
	ErrUnknownQuerySource = errors.New("statement has no table for query source")
)
