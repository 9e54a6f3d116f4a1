package conventions

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/relationships"
)

// PropertyDefinition declares one property of an entity
type PropertyDefinition struct {
	Name   string
	Type   metadata.ValueType
	Column string
	Shadow bool
}

// NavigationHint declares a navigation whose relationship is resolved by
// conventions once both entities are registered.
//
// A reference hint makes the declaring entity the dependent; a collection hint
// makes it the principal.
type NavigationHint struct {
	Name       string
	Target     string
	Collection bool
	Inverse    string

	// ForeignKey names dependent properties; empty lets conventions choose
	ForeignKey []string
	// PrincipalKey names principal properties; empty means the primary key
	PrincipalKey []string

	Unique   bool
	Required *bool
}

// EntityDefinition declares an entity for ModelBuilder.Entity
type EntityDefinition struct {
	Name          string
	Table         string
	Schema        string
	Properties    []PropertyDefinition
	Key           []string
	AlternateKeys [][]string
	Navigations   []NavigationHint
}

// RelationshipSpec requests a relationship between two registered entities
type RelationshipSpec struct {
	Dependent string
	Principal string

	NavigationToPrincipal string
	NavigationToDependent string

	ForeignKey   []string
	PrincipalKey []string

	Unique   *bool
	Required *bool
}

// EntityBuilder is the registration state handed to entity conventions
type EntityBuilder struct {
	mb     *ModelBuilder
	entity *metadata.Entity
	hints  []NavigationHint
}

// Entity returns the entity being registered
func (b *EntityBuilder) Entity() *metadata.Entity { return b.entity }

// ModelBuilder returns the builder the entity is registered with
func (b *EntityBuilder) ModelBuilder() *ModelBuilder { return b.mb }

// Hints returns the navigation hints declared with the entity
func (b *EntityBuilder) Hints() []NavigationHint { return b.hints }

// RelationshipBuilder is the state handed to relationship conventions for a
// newly added foreign key
type RelationshipBuilder struct {
	mb        *ModelBuilder
	fk        *metadata.ForeignKey
	generated []*metadata.Property
	spec      RelationshipSpec
}

// ForeignKey returns the foreign key that was added
func (b *RelationshipBuilder) ForeignKey() *metadata.ForeignKey { return b.fk }

// ModelBuilder returns the owning builder
func (b *RelationshipBuilder) ModelBuilder() *ModelBuilder { return b.mb }

// Spec returns the request that created the relationship
func (b *RelationshipBuilder) Spec() RelationshipSpec { return b.spec }

// Generated returns the shadow properties created for the foreign key
func (b *RelationshipBuilder) Generated() []*metadata.Property { return b.generated }

// ReplaceProperties points the foreign key at props and drops the generated
// shadow properties it no longer uses
func (b *RelationshipBuilder) ReplaceProperties(props []*metadata.Property) error {
	model := b.mb.model
	if err := model.ReplaceForeignKeyProperties(b.fk, props); err != nil {
		return err
	}
	dependent := b.fk.DependentEntity()
	for _, p := range b.generated {
		if err := dependent.RemoveProperty(p); err != nil {
			return err
		}
	}
	b.generated = nil
	b.mb.generated[b.fk.ID()] = nil
	return nil
}

// DeferredHint is a navigation hint waiting for its target entity
type DeferredHint struct {
	Owner string
	Hint  NavigationHint
}

// ModelBuilder registers entities and relationships through a Dispatcher
type ModelBuilder struct {
	model      *metadata.Model
	dispatcher *Dispatcher
	finder     *relationships.Finder
	logger     *zap.Logger

	generated map[metadata.ForeignKeyID][]*metadata.Property
	pending   []DeferredHint
}

// NewModelBuilder creates a builder over model. A nil dispatcher applies no
// conventions and a nil logger disables logging.
func NewModelBuilder(model *metadata.Model, dispatcher *Dispatcher, logger *zap.Logger) *ModelBuilder {
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelBuilder{
		model:      model,
		dispatcher: dispatcher,
		finder:     relationships.NewFinder(logger),
		logger:     logger,
		generated:  make(map[metadata.ForeignKeyID][]*metadata.Property),
	}
}

// Model returns the model under construction
func (mb *ModelBuilder) Model() *metadata.Model { return mb.model }

// Finder returns the relationship finder used by the builder
func (mb *ModelBuilder) Finder() *relationships.Finder { return mb.finder }

// Entity registers def and runs the entity conventions. A vetoed registration
// is rolled back and returns (nil, nil).
func (mb *ModelBuilder) Entity(def EntityDefinition) (*EntityBuilder, error) {
	e, err := mb.model.AddEntity(def.Name)
	if err != nil {
		return nil, err
	}

	b := &EntityBuilder{mb: mb, entity: e, hints: def.Navigations}
	if err := mb.define(e, def); err != nil {
		return nil, errors.Join(err, mb.rollbackEntity(e))
	}

	saved := append([]DeferredHint(nil), mb.pending...)
	out, err := mb.dispatcher.OnEntityAdded(b)
	if err != nil {
		err = errors.Join(err, mb.rollbackEntity(e))
		mb.restorePending(saved, e.Name())
		return nil, err
	}
	if out == nil {
		mb.logger.Debug("entity registration vetoed", zap.String("entity", def.Name))
		err = mb.rollbackEntity(e)
		mb.restorePending(saved, e.Name())
		return nil, err
	}

	mb.logger.Debug("entity registered",
		zap.String("entity", e.Name()),
		zap.String("table", e.TableName()),
		zap.Int("properties", len(e.Properties())))
	return out, nil
}

func (mb *ModelBuilder) define(e *metadata.Entity, def EntityDefinition) error {
	if def.Table != "" {
		if err := e.SetTableName(def.Table); err != nil {
			return err
		}
	}
	if def.Schema != "" {
		if err := e.SetSchema(def.Schema); err != nil {
			return err
		}
	}
	for _, pd := range def.Properties {
		p, err := e.AddProperty(pd.Name, pd.Type, pd.Shadow)
		if err != nil {
			return err
		}
		if pd.Column != "" {
			if err := p.SetColumnName(pd.Column); err != nil {
				return err
			}
		}
	}
	if len(def.Key) > 0 {
		props, err := lookupProperties(e, def.Key)
		if err != nil {
			return err
		}
		if _, err := e.SetPrimaryKey(props...); err != nil {
			return err
		}
	}
	for _, names := range def.AlternateKeys {
		props, err := lookupProperties(e, names)
		if err != nil {
			return err
		}
		if _, err := e.GetOrAddKey(props...); err != nil {
			return err
		}
	}
	return nil
}

// Relationship finds a compatible existing foreign key for spec or creates one.
// Only a newly created foreign key runs the relationship conventions; a veto
// rolls back everything the call created and returns (nil, nil).
func (mb *ModelBuilder) Relationship(spec RelationshipSpec) (*RelationshipBuilder, error) {
	dependent, ok := mb.model.Entity(spec.Dependent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, spec.Dependent)
	}
	principal, ok := mb.model.Entity(spec.Principal)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, spec.Principal)
	}
	fkProps, err := lookupProperties(dependent, spec.ForeignKey)
	if err != nil {
		return nil, err
	}
	principalProps, err := lookupProperties(principal, spec.PrincipalKey)
	if err != nil {
		return nil, err
	}

	req := relationships.Request{
		Dependent:             dependent,
		Principal:             principal,
		NavigationToPrincipal: spec.NavigationToPrincipal,
		NavigationToDependent: spec.NavigationToDependent,
		ForeignKeyProperties:  fkProps,
		PrincipalProperties:   principalProps,
		IsUnique:              spec.Unique,
	}
	if fk, found := mb.finder.TryFindForeignKey(req); found {
		if err := mb.attach(fk, spec); err != nil {
			return nil, err
		}
		mb.logger.Debug("relationship matched existing foreign key", zap.Stringer("foreign_key", fk))
		return &RelationshipBuilder{mb: mb, fk: fk, generated: mb.generated[fk.ID()], spec: spec}, nil
	}

	key, err := principalKeyFor(principal, principalProps)
	if err != nil {
		return nil, err
	}

	var generated []*metadata.Property
	if len(fkProps) == 0 {
		generated, err = mb.generateProperties(dependent, principal, key, spec)
		if err != nil {
			return nil, err
		}
		fkProps = generated
	}

	fk, err := dependent.AddForeignKey(fkProps, key)
	if err != nil {
		return nil, errors.Join(err, removeProperties(dependent, generated))
	}
	mb.generated[fk.ID()] = generated
	rb := &RelationshipBuilder{mb: mb, fk: fk, generated: generated, spec: spec}

	if err := mb.attach(fk, spec); err != nil {
		return nil, errors.Join(err, mb.removeRelationship(fk))
	}

	out, err := mb.dispatcher.OnRelationshipAdded(rb)
	if err != nil {
		return nil, errors.Join(err, mb.removeRelationship(fk))
	}
	if out == nil {
		mb.logger.Debug("relationship vetoed", zap.Stringer("foreign_key", fk))
		return nil, mb.removeRelationship(fk)
	}

	mb.logger.Debug("relationship added", zap.Stringer("foreign_key", fk))
	return out, nil
}

// attach applies flags and adds the requested navigations that are missing
func (mb *ModelBuilder) attach(fk *metadata.ForeignKey, spec RelationshipSpec) error {
	if spec.Unique != nil && *spec.Unique != fk.IsUnique() {
		if err := fk.SetUnique(*spec.Unique); err != nil {
			return err
		}
	}
	if spec.Required != nil {
		if err := fk.SetRequired(*spec.Required); err != nil {
			return err
		}
	}
	if spec.NavigationToPrincipal != "" {
		if _, ok := fk.NavigationToPrincipal(); !ok {
			if _, err := fk.DependentEntity().AddNavigation(spec.NavigationToPrincipal, fk, true); err != nil {
				return err
			}
		}
	}
	if spec.NavigationToDependent != "" {
		if _, ok := fk.NavigationToDependent(); !ok {
			if _, err := fk.PrincipalEntity().AddNavigation(spec.NavigationToDependent, fk, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// generateProperties adds one shadow property per principal key property,
// named <Navigation|Principal><KeyProperty>
func (mb *ModelBuilder) generateProperties(dependent, principal *metadata.Entity, key *metadata.Key, spec RelationshipSpec) ([]*metadata.Property, error) {
	prefix := spec.NavigationToPrincipal
	if prefix == "" {
		prefix = principal.Name()
	}
	required := spec.Required != nil && *spec.Required

	var generated []*metadata.Property
	for _, kp := range key.Properties() {
		typ := kp.Type().AsNullable()
		if required {
			typ.Nullable = false
		}
		p, err := dependent.AddProperty(uniqueMemberName(dependent, prefix+kp.Name()), typ, true)
		if err != nil {
			return nil, errors.Join(err, removeProperties(dependent, generated))
		}
		generated = append(generated, p)
	}
	return generated, nil
}

func uniqueMemberName(e *metadata.Entity, base string) string {
	name := base
	for i := 1; e.HasMember(name); i++ {
		name = base + strconv.Itoa(i)
	}
	return name
}

// removeRelationship removes fk with its navigations and generated properties
func (mb *ModelBuilder) removeRelationship(fk *metadata.ForeignKey) error {
	dependent := fk.DependentEntity()
	generated := mb.generated[fk.ID()]
	delete(mb.generated, fk.ID())
	if err := mb.model.RemoveForeignKey(fk); err != nil {
		return err
	}
	return removeProperties(dependent, generated)
}

// rollbackEntity removes e and every relationship that touches it, so a failed
// or vetoed registration leaves the model as it was
func (mb *ModelBuilder) rollbackEntity(e *metadata.Entity) error {
	for _, fk := range mb.model.ReferencingForeignKeys(e) {
		if err := mb.removeRelationship(fk); err != nil {
			return err
		}
	}
	for _, fk := range e.ForeignKeys() {
		if err := mb.removeRelationship(fk); err != nil {
			return err
		}
	}

	mb.restorePending(mb.pending, e.Name())
	return mb.model.RemoveEntity(e)
}

// restorePending resets the deferred hints to saved minus those owned by owner
func (mb *ModelBuilder) restorePending(saved []DeferredHint, owner string) {
	kept := make([]DeferredHint, 0, len(saved))
	for _, d := range saved {
		if d.Owner != owner {
			kept = append(kept, d)
		}
	}
	mb.pending = kept
}

// Defer records a hint whose target entity is not registered yet
func (mb *ModelBuilder) Defer(owner string, hint NavigationHint) {
	mb.pending = append(mb.pending, DeferredHint{Owner: owner, Hint: hint})
}

// TakePending removes and returns, in deferral order, the hints that target entity
func (mb *ModelBuilder) TakePending(target string) []DeferredHint {
	var taken []DeferredHint
	kept := make([]DeferredHint, 0, len(mb.pending))
	for _, d := range mb.pending {
		if d.Hint.Target == target {
			taken = append(taken, d)
			continue
		}
		kept = append(kept, d)
	}
	mb.pending = kept
	return taken
}

// Pending returns the hints still waiting for their target
func (mb *ModelBuilder) Pending() []DeferredHint {
	return append([]DeferredHint(nil), mb.pending...)
}

// Build checks that every hint was resolved and freezes the model
func (mb *ModelBuilder) Build() (*metadata.Model, error) {
	if len(mb.pending) > 0 {
		d := mb.pending[0]
		return nil, fmt.Errorf("%w: %s.%s targets %s", ErrUnresolvedNavigation, d.Owner, d.Hint.Name, d.Hint.Target)
	}
	if err := mb.model.Freeze(); err != nil {
		return nil, err
	}
	return mb.model, nil
}

func principalKeyFor(principal *metadata.Entity, props []*metadata.Property) (*metadata.Key, error) {
	if len(props) > 0 {
		return principal.GetOrAddKey(props...)
	}
	pk, ok := principal.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingPrincipalKey, principal.Name())
	}
	return pk, nil
}

func lookupProperties(e *metadata.Entity, names []string) ([]*metadata.Property, error) {
	if len(names) == 0 {
		return nil, nil
	}
	props := make([]*metadata.Property, 0, len(names))
	for _, name := range names {
		p, ok := e.Property(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, e.Name(), name)
		}
		props = append(props, p)
	}
	return props, nil
}

func removeProperties(e *metadata.Entity, props []*metadata.Property) error {
	for _, p := range props {
		if err := e.RemoveProperty(p); err != nil {
			return err
		}
	}
	return nil
}
