// Package metadata provides the mapped entity graph used by the relational core:
// entities, properties, keys, foreign keys and navigations.
//
// The graph is logically cyclic (navigation -> foreign key -> entity -> navigations).
// All records live in flat collections owned by a Model and refer to each other by
// handle, so traversal is an index lookup and no record owns another.
//
// A Model is mutated only while it is being built. After Freeze it is read-only and
// may be shared by any number of goroutines without synchronization.
package metadata

import "fmt"

// EntityID is a stable handle to an entity in its model
type EntityID int

// PropertyID is a stable handle to a property in its model
type PropertyID int

// KeyID is a stable handle to a key in its model
type KeyID int

// ForeignKeyID is a stable handle to a foreign key in its model
type ForeignKeyID int

// NavigationID is a stable handle to a navigation in its model
type NavigationID int

const noID = -1

// Model owns every metadata record
type Model struct {
	entities    []*Entity
	properties  []*Property
	keys        []*Key
	foreignKeys []*ForeignKey
	navigations []*Navigation

	byName      map[string]EntityID
	referencing map[EntityID][]ForeignKeyID
	naming      NamingStrategy
	frozen      bool
	fingerprint string
}

// ModelOption configures a new Model
type ModelOption func(*Model)

// WithNaming sets the naming strategy used for default table and column names
func WithNaming(naming NamingStrategy) ModelOption {
	return func(m *Model) {
		if naming != nil {
			m.naming = naming
		}
	}
}

// NewModel creates an empty model
func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		byName:      make(map[string]EntityID),
		referencing: make(map[EntityID][]ForeignKeyID),
		naming:      IdentityNaming{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Naming returns the model's naming strategy
func (m *Model) Naming() NamingStrategy {
	return m.naming
}

// Frozen reports whether the model has been frozen
func (m *Model) Frozen() bool {
	return m.frozen
}

func (m *Model) checkMutable() error {
	if m.frozen {
		return ErrModelFrozen
	}
	return nil
}

// AddEntity registers a new entity
func (m *Model) AddEntity(name string) (*Entity, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("entity name is required")
	}
	if _, exists := m.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, name)
	}

	e := &Entity{
		model:      m,
		id:         EntityID(len(m.entities)),
		name:       name,
		primaryKey: noID,
	}
	m.entities = append(m.entities, e)
	m.byName[name] = e.id
	return e, nil
}

// Entity returns the entity with the given name
func (m *Model) Entity(name string) (*Entity, bool) {
	id, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return m.entities[id], true
}

// EntityByID resolves an entity handle
func (m *Model) EntityByID(id EntityID) *Entity {
	if id < 0 || int(id) >= len(m.entities) {
		return nil
	}
	return m.entities[id]
}

// Entities returns all live entities in registration order
func (m *Model) Entities() []*Entity {
	result := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		if e != nil {
			result = append(result, e)
		}
	}
	return result
}

// RemoveEntity removes an entity together with its properties, keys, foreign keys
// and navigations. It fails if a foreign key on another entity references it.
func (m *Model) RemoveEntity(e *Entity) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if !m.owns(e) {
		return fmt.Errorf("%w: entity %s", ErrRemoved, e.name)
	}
	for _, fkID := range m.referencing[e.id] {
		if m.foreignKeys[fkID].dependent != e.id {
			return fmt.Errorf("%w: entity %s is referenced by %s", ErrInUse, e.name,
				m.foreignKeys[fkID].DependentEntity().name)
		}
	}

	for _, fk := range e.ForeignKeys() {
		if err := m.RemoveForeignKey(fk); err != nil {
			return err
		}
	}
	for _, id := range e.keys {
		m.keys[id] = nil
	}
	for _, id := range e.properties {
		m.properties[id] = nil
	}
	delete(m.byName, e.name)
	delete(m.referencing, e.id)
	m.entities[e.id] = nil
	return nil
}

func (m *Model) owns(e *Entity) bool {
	return e != nil && e.model == m && int(e.id) < len(m.entities) && m.entities[e.id] == e
}

// PropertiesAndNavigations returns the entity's properties in ordinal order
// followed by its navigations in declaration order
func (m *Model) PropertiesAndNavigations(e *Entity) []PropertyBase {
	props := e.Properties()
	navs := e.Navigations()
	result := make([]PropertyBase, 0, len(props)+len(navs))
	for _, p := range props {
		result = append(result, p)
	}
	for _, n := range navs {
		result = append(result, n)
	}
	return result
}

// ReferencingForeignKeys returns the foreign keys, declared on any entity, whose
// principal side is e
func (m *Model) ReferencingForeignKeys(e *Entity) []*ForeignKey {
	ids := m.referencing[e.id]
	result := make([]*ForeignKey, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.foreignKeys[id])
	}
	return result
}

// Freeze validates the graph and makes the model read-only
func (m *Model) Freeze() error {
	if m.frozen {
		return nil
	}
	if err := m.Validate(); err != nil {
		return err
	}
	m.fingerprint = m.computeFingerprint()
	m.frozen = true
	return nil
}

// Validate checks the cross-record invariants of the graph
func (m *Model) Validate() error {
	for _, fk := range m.foreignKeys {
		if fk == nil {
			continue
		}
		key := m.keyByID(fk.principalKey)
		if key == nil {
			return fmt.Errorf("%w: principal key of foreign key on %s", ErrRemoved, fk.DependentEntity().name)
		}
		if err := checkForeignKeyShape(fk.Properties(), key); err != nil {
			return fmt.Errorf("foreign key on %s: %w", fk.DependentEntity().name, err)
		}
	}
	for _, nav := range m.navigations {
		if nav == nil {
			continue
		}
		if m.foreignKeyByID(nav.foreignKey) == nil {
			return fmt.Errorf("%w: foreign key of navigation %s.%s", ErrRemoved, nav.DeclaringEntity().name, nav.name)
		}
	}
	return nil
}

// RemoveForeignKey removes a foreign key and the navigations over it
func (m *Model) RemoveForeignKey(fk *ForeignKey) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if m.foreignKeyByID(fk.id) != fk {
		return fmt.Errorf("%w: foreign key", ErrRemoved)
	}

	for _, navID := range []NavigationID{fk.toPrincipal, fk.toDependent} {
		if nav := m.navigationByID(navID); nav != nil {
			m.removeNavigation(nav)
		}
	}

	dependent := m.entities[fk.dependent]
	dependent.foreignKeys = removeID(dependent.foreignKeys, fk.id)

	principal := fk.PrincipalEntity()
	m.referencing[principal.id] = removeID(m.referencing[principal.id], fk.id)
	m.foreignKeys[fk.id] = nil
	return nil
}

// RemoveNavigation removes a single navigation, leaving its foreign key in place
func (m *Model) RemoveNavigation(nav *Navigation) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if m.navigationByID(nav.id) != nav {
		return fmt.Errorf("%w: navigation %s", ErrRemoved, nav.name)
	}
	m.removeNavigation(nav)
	return nil
}

func (m *Model) removeNavigation(nav *Navigation) {
	if fk := m.foreignKeyByID(nav.foreignKey); fk != nil {
		if fk.toPrincipal == nav.id {
			fk.toPrincipal = noID
		}
		if fk.toDependent == nav.id {
			fk.toDependent = noID
		}
	}
	owner := m.entities[nav.entity]
	owner.navigations = removeID(owner.navigations, nav.id)
	m.navigations[nav.id] = nil
}

// ReplaceForeignKeyProperties points an existing foreign key at a different
// dependent property list
func (m *Model) ReplaceForeignKeyProperties(fk *ForeignKey, props []*Property) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	dependent := fk.DependentEntity()
	if err := dependent.checkOwnProperties(props); err != nil {
		return err
	}
	if err := checkForeignKeyShape(props, fk.PrincipalKey()); err != nil {
		return err
	}
	fk.properties = propertyIDs(props)
	return nil
}

func (m *Model) propertyByID(id PropertyID) *Property {
	if id < 0 || int(id) >= len(m.properties) {
		return nil
	}
	return m.properties[id]
}

func (m *Model) keyByID(id KeyID) *Key {
	if id < 0 || int(id) >= len(m.keys) {
		return nil
	}
	return m.keys[id]
}

func (m *Model) foreignKeyByID(id ForeignKeyID) *ForeignKey {
	if id < 0 || int(id) >= len(m.foreignKeys) {
		return nil
	}
	return m.foreignKeys[id]
}

func (m *Model) navigationByID(id NavigationID) *Navigation {
	if id < 0 || int(id) >= len(m.navigations) {
		return nil
	}
	return m.navigations[id]
}

func (m *Model) resolveProperties(ids []PropertyID) []*Property {
	result := make([]*Property, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.properties[id])
	}
	return result
}

func propertyIDs(props []*Property) []PropertyID {
	ids := make([]PropertyID, len(props))
	for i, p := range props {
		ids[i] = p.id
	}
	return ids
}

func removeID[T comparable](ids []T, id T) []T {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// SameProperties reports whether a and b are the same properties in the same order
func SameProperties(a, b []*Property) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
