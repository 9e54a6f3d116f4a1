package metadata

import "errors"

var (
	// ErrModelFrozen is returned when a mutation is attempted after Freeze
	ErrModelFrozen = errors.New("model is frozen")

	// ErrDuplicateEntity is returned when an entity name is already registered
	ErrDuplicateEntity = errors.New("entity already exists")

	// ErrDuplicateMember is returned when a property or navigation name is already used on the entity
	ErrDuplicateMember = errors.New("member already exists")

	// ErrForeignMember is returned when a property, key or foreign key belongs to another entity
	ErrForeignMember = errors.New("member belongs to a different entity")

	// ErrEmptyKey is returned when a key or foreign key is declared without properties
	ErrEmptyKey = errors.New("key has no properties")

	// ErrForeignKeyArity is returned when foreign key and principal key property counts differ
	ErrForeignKeyArity = errors.New("foreign key and principal key property counts differ")

	// ErrIncompatibleTypes is returned when a foreign key property cannot be compared to its key property
	ErrIncompatibleTypes = errors.New("foreign key property type is incompatible with principal key property")

	// ErrNavigationSideTaken is returned when a foreign key already has a navigation on the requested side
	ErrNavigationSideTaken = errors.New("foreign key already has a navigation on this side")

	// ErrNavigationOwner is returned when a navigation is declared on an entity that is not part of its foreign key
	ErrNavigationOwner = errors.New("navigation entity is not on the requested side of the foreign key")

	// ErrInUse is returned when removing a record that other records still reference
	ErrInUse = errors.New("record is still referenced")

	// ErrRemoved is returned when a removed record is used
	ErrRemoved = errors.New("record has been removed")

	// ErrPropertyTypeConflict is returned by GetOrAddProperty when the existing property has another type
	ErrPropertyTypeConflict = errors.New("property exists with a different type")
)
