// Package conventions applies ordered, vetoable model-building rules when
// entities and relationships are registered.
package conventions

import "fmt"

// EntityConvention runs when an entity is registered. Returning a nil builder
// vetoes the registration. An error aborts it.
type EntityConvention interface {
	Apply(b *EntityBuilder) (*EntityBuilder, error)
}

// RelationshipConvention runs when a foreign key is added. Returning a nil
// builder vetoes the relationship. An error aborts it.
type RelationshipConvention interface {
	Apply(b *RelationshipBuilder) (*RelationshipBuilder, error)
}

// EntityConventionFunc adapts a function to EntityConvention
type EntityConventionFunc func(b *EntityBuilder) (*EntityBuilder, error)

// Apply calls f(b)
func (f EntityConventionFunc) Apply(b *EntityBuilder) (*EntityBuilder, error) { return f(b) }

// RelationshipConventionFunc adapts a function to RelationshipConvention
type RelationshipConventionFunc func(b *RelationshipBuilder) (*RelationshipBuilder, error)

// Apply calls f(b)
func (f RelationshipConventionFunc) Apply(b *RelationshipBuilder) (*RelationshipBuilder, error) {
	return f(b)
}

// Dispatcher holds the ordered convention lists. Both slices may be edited
// freely before the dispatcher is used.
type Dispatcher struct {
	EntityAdded       []EntityConvention
	RelationshipAdded []RelationshipConvention
}

// NewDispatcher creates a dispatcher with no conventions
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// OnEntityAdded threads b through the entity conventions in order. It stops at
// the first veto, returning nil, or at the first error.
func (d *Dispatcher) OnEntityAdded(b *EntityBuilder) (*EntityBuilder, error) {
	for i, c := range d.EntityAdded {
		next, err := c.Apply(b)
		if err != nil {
			return nil, fmt.Errorf("entity convention %d on %s: %w", i, b.Entity().Name(), err)
		}
		if next == nil {
			return nil, nil
		}
		b = next
	}
	return b, nil
}

// OnRelationshipAdded threads b through the relationship conventions in order
// with the same veto rules as OnEntityAdded
func (d *Dispatcher) OnRelationshipAdded(b *RelationshipBuilder) (*RelationshipBuilder, error) {
	for i, c := range d.RelationshipAdded {
		next, err := c.Apply(b)
		if err != nil {
			return nil, fmt.Errorf("relationship convention %d on %s: %w", i, b.ForeignKey(), err)
		}
		if next == nil {
			return nil, nil
		}
		b = next
	}
	return b, nil
}
