package conventions

import (
	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/relationships"
)

// NewDefaultDispatcher returns the standard convention order: key discovery and
// relationship discovery when an entity is added, foreign key property
// discovery when a relationship is added
func NewDefaultDispatcher() *Dispatcher {
	return &Dispatcher{
		EntityAdded: []EntityConvention{
			KeyConvention{},
			RelationshipDiscoveryConvention{},
		},
		RelationshipAdded: []RelationshipConvention{
			ForeignKeyPropertyDiscoveryConvention{},
		},
	}
}

// KeyConvention sets the primary key to a property named "Id" or "<Entity>Id"
// (case-insensitive) when the entity has none
type KeyConvention struct{}

// Apply implements EntityConvention
func (KeyConvention) Apply(b *EntityBuilder) (*EntityBuilder, error) {
	e := b.Entity()
	if _, ok := e.PrimaryKey(); ok {
		return b, nil
	}
	for _, name := range []string{"Id", e.Name() + "Id"} {
		if p, ok := e.FindPropertyFold(name); ok {
			if _, err := e.SetPrimaryKey(p); err != nil {
				return nil, err
			}
			break
		}
	}
	return b, nil
}

// RelationshipDiscoveryConvention turns navigation hints into relationships.
// Hints whose target is not registered yet are deferred and resolved when the
// target entity is added.
type RelationshipDiscoveryConvention struct{}

// Apply implements EntityConvention
func (RelationshipDiscoveryConvention) Apply(b *EntityBuilder) (*EntityBuilder, error) {
	mb := b.ModelBuilder()
	owner := b.Entity().Name()

	for _, h := range b.Hints() {
		if _, ok := mb.Model().Entity(h.Target); !ok {
			mb.Defer(owner, h)
			continue
		}
		if _, err := mb.Relationship(specFromHint(owner, h)); err != nil {
			return nil, err
		}
	}

	for _, d := range mb.TakePending(owner) {
		if _, err := mb.Relationship(specFromHint(d.Owner, d.Hint)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func specFromHint(owner string, h NavigationHint) RelationshipSpec {
	spec := RelationshipSpec{
		ForeignKey:   h.ForeignKey,
		PrincipalKey: h.PrincipalKey,
		Required:     h.Required,
	}
	if h.Collection {
		notUnique := false
		spec.Dependent = h.Target
		spec.Principal = owner
		spec.NavigationToDependent = h.Name
		spec.NavigationToPrincipal = h.Inverse
		spec.Unique = &notUnique
		return spec
	}

	spec.Dependent = owner
	spec.Principal = h.Target
	spec.NavigationToPrincipal = h.Name
	spec.NavigationToDependent = h.Inverse
	if h.Unique {
		unique := true
		spec.Unique = &unique
	}
	return spec
}

// ForeignKeyPropertyDiscoveryConvention replaces the shadow properties generated
// for a new foreign key with an existing property matched by the naming
// heuristics
type ForeignKeyPropertyDiscoveryConvention struct{}

// Apply implements RelationshipConvention
func (ForeignKeyPropertyDiscoveryConvention) Apply(b *RelationshipBuilder) (*RelationshipBuilder, error) {
	if len(b.Generated()) == 0 {
		return b, nil
	}
	fk := b.ForeignKey()
	if !fk.PrincipalKey().IsPrimary() {
		return b, nil
	}

	spec := b.Spec()
	implied, ok := b.ModelBuilder().Finder().ImpliedForeignKeyProperties(relationships.Request{
		Dependent:             fk.DependentEntity(),
		Principal:             fk.PrincipalEntity(),
		NavigationToPrincipal: spec.NavigationToPrincipal,
		NavigationToDependent: spec.NavigationToDependent,
		Ignore:                b.Generated(),
	})
	if !ok {
		return b, nil
	}
	for _, other := range fk.DependentEntity().ForeignKeys() {
		if other != fk && metadata.SameProperties(other.Properties(), implied) {
			// already claimed by another relationship
			return b, nil
		}
	}
	if err := b.ReplaceProperties(implied); err != nil {
		return nil, err
	}
	return b, nil
}
