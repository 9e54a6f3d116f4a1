package query

import "errors"

var (
	// ErrUnknownProperty is returned when a filter or ordering names a property
	// the root entity does not have
	ErrUnknownProperty = errors.New("unknown property")

	// ErrUnknownNavigation is returned when an include path names a missing navigation
	ErrUnknownNavigation = errors.New("unknown navigation")

	// ErrUnknownOperator is returned for an operator the builder cannot express
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrNilValue is returned when a comparison has no value to bind
	ErrNilValue = errors.New("comparison value is nil")
)
