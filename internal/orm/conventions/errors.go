package conventions

import "errors"

var (
	// ErrUnknownEntity is returned when a relationship names an unregistered entity
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrUnknownProperty is returned when a definition names a missing property
	ErrUnknownProperty = errors.New("unknown property")

	// ErrMissingPrincipalKey is returned when a new foreign key needs a principal
	// key that the principal entity does not have
	ErrMissingPrincipalKey = errors.New("principal entity has no primary key")

	// ErrUnresolvedNavigation is returned by Build when a navigation hint still
	// targets an entity that was never registered
	ErrUnresolvedNavigation = errors.New("unresolved navigation")
)
