package metadata

import (
	"fmt"
	"strings"
)

// Entity is a mapped shape
type Entity struct {
	model *Model
	id    EntityID
	name  string

	tableName string
	schema    string

	properties  []PropertyID
	navigations []NavigationID
	keys        []KeyID
	primaryKey  KeyID
	foreignKeys []ForeignKeyID
}

// ID returns the entity handle
func (e *Entity) ID() EntityID { return e.id }

// Name returns the entity name
func (e *Entity) Name() string { return e.name }

// Model returns the owning model
func (e *Entity) Model() *Model { return e.model }

// TableName returns the explicit table name, or the naming strategy's name
func (e *Entity) TableName() string {
	if e.tableName != "" {
		return e.tableName
	}
	return e.model.naming.TableName(e.name)
}

// Schema returns the table schema, empty for the default schema
func (e *Entity) Schema() string { return e.schema }

// SetTableName sets an explicit table name
func (e *Entity) SetTableName(name string) error {
	if err := e.model.checkMutable(); err != nil {
		return err
	}
	e.tableName = name
	return nil
}

// SetSchema sets the table schema
func (e *Entity) SetSchema(schema string) error {
	if err := e.model.checkMutable(); err != nil {
		return err
	}
	e.schema = schema
	return nil
}

// Properties returns the properties in ordinal order
func (e *Entity) Properties() []*Property {
	return e.model.resolveProperties(e.properties)
}

// Property returns the property with the given name
func (e *Entity) Property(name string) (*Property, bool) {
	for _, id := range e.properties {
		if p := e.model.properties[id]; p.name == name {
			return p, true
		}
	}
	return nil, false
}

// FindPropertyFold returns the property whose name matches case-insensitively
func (e *Entity) FindPropertyFold(name string) (*Property, bool) {
	if p, ok := e.Property(name); ok {
		return p, true
	}
	for _, id := range e.properties {
		if p := e.model.properties[id]; strings.EqualFold(p.name, name) {
			return p, true
		}
	}
	return nil, false
}

// HasMember reports whether a property or navigation already uses name
func (e *Entity) HasMember(name string) bool {
	if _, ok := e.Property(name); ok {
		return true
	}
	_, ok := e.Navigation(name)
	return ok
}

// AddProperty appends a property to the entity
func (e *Entity) AddProperty(name string, typ ValueType, shadow bool) (*Property, error) {
	if err := e.model.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("property name is required on %s", e.name)
	}
	if e.HasMember(name) {
		return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateMember, e.name, name)
	}

	p := &Property{
		model:   e.model,
		id:      PropertyID(len(e.model.properties)),
		entity:  e.id,
		name:    name,
		typ:     typ,
		shadow:  shadow,
		ordinal: len(e.properties),
	}
	e.model.properties = append(e.model.properties, p)
	e.properties = append(e.properties, p.id)
	return p, nil
}

// GetOrAddProperty returns the existing property with the given name, or adds it
func (e *Entity) GetOrAddProperty(name string, typ ValueType, shadow bool) (*Property, error) {
	if p, ok := e.Property(name); ok {
		if p.typ != typ {
			return nil, fmt.Errorf("%w: %s.%s is %s, requested %s", ErrPropertyTypeConflict, e.name, name, p.typ, typ)
		}
		return p, nil
	}
	return e.AddProperty(name, typ, shadow)
}

// RemoveProperty removes a property that no key or foreign key uses
func (e *Entity) RemoveProperty(p *Property) error {
	if err := e.model.checkMutable(); err != nil {
		return err
	}
	if p.entity != e.id || e.model.propertyByID(p.id) != p {
		return fmt.Errorf("%w: property %s", ErrForeignMember, p.name)
	}
	for _, k := range e.Keys() {
		if containsID(k.properties, p.id) {
			return fmt.Errorf("%w: %s.%s is part of a key", ErrInUse, e.name, p.name)
		}
	}
	for _, fk := range e.ForeignKeys() {
		if containsID(fk.properties, p.id) {
			return fmt.Errorf("%w: %s.%s is part of a foreign key", ErrInUse, e.name, p.name)
		}
	}

	e.properties = removeID(e.properties, p.id)
	for i, id := range e.properties {
		e.model.properties[id].ordinal = i
	}
	e.model.properties[p.id] = nil
	return nil
}

// Navigations returns the navigations in declaration order
func (e *Entity) Navigations() []*Navigation {
	result := make([]*Navigation, 0, len(e.navigations))
	for _, id := range e.navigations {
		result = append(result, e.model.navigations[id])
	}
	return result
}

// Navigation returns the navigation with the given name
func (e *Entity) Navigation(name string) (*Navigation, bool) {
	for _, id := range e.navigations {
		if n := e.model.navigations[id]; n.name == name {
			return n, true
		}
	}
	return nil, false
}

// Keys returns every key declared on the entity, primary included
func (e *Entity) Keys() []*Key {
	result := make([]*Key, 0, len(e.keys))
	for _, id := range e.keys {
		result = append(result, e.model.keys[id])
	}
	return result
}

// PrimaryKey returns the primary key, if one is set
func (e *Entity) PrimaryKey() (*Key, bool) {
	k := e.model.keyByID(e.primaryKey)
	return k, k != nil
}

// GetOrAddKey returns the key over exactly props, adding it when missing
func (e *Entity) GetOrAddKey(props ...*Property) (*Key, error) {
	if err := e.model.checkMutable(); err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyKey, e.name)
	}
	if err := e.checkOwnProperties(props); err != nil {
		return nil, err
	}
	for _, k := range e.Keys() {
		if SameProperties(k.Properties(), props) {
			return k, nil
		}
	}

	k := &Key{
		model:      e.model,
		id:         KeyID(len(e.model.keys)),
		entity:     e.id,
		properties: propertyIDs(props),
	}
	e.model.keys = append(e.model.keys, k)
	e.keys = append(e.keys, k.id)
	return k, nil
}

// SetPrimaryKey marks the key over props as primary, adding it when missing
func (e *Entity) SetPrimaryKey(props ...*Property) (*Key, error) {
	k, err := e.GetOrAddKey(props...)
	if err != nil {
		return nil, err
	}
	e.primaryKey = k.id
	return k, nil
}

// ForeignKeys returns the foreign keys declared on this (dependent) entity
func (e *Entity) ForeignKeys() []*ForeignKey {
	result := make([]*ForeignKey, 0, len(e.foreignKeys))
	for _, id := range e.foreignKeys {
		result = append(result, e.model.foreignKeys[id])
	}
	return result
}

// AddForeignKey declares a foreign key over props referencing principalKey
func (e *Entity) AddForeignKey(props []*Property, principalKey *Key) (*ForeignKey, error) {
	if err := e.model.checkMutable(); err != nil {
		return nil, err
	}
	if err := e.checkOwnProperties(props); err != nil {
		return nil, err
	}
	if principalKey == nil || e.model.keyByID(principalKey.id) != principalKey {
		return nil, fmt.Errorf("%w: principal key", ErrRemoved)
	}
	if err := checkForeignKeyShape(props, principalKey); err != nil {
		return nil, fmt.Errorf("foreign key on %s: %w", e.name, err)
	}

	fk := &ForeignKey{
		model:        e.model,
		id:           ForeignKeyID(len(e.model.foreignKeys)),
		dependent:    e.id,
		properties:   propertyIDs(props),
		principalKey: principalKey.id,
		toPrincipal:  noID,
		toDependent:  noID,
	}
	e.model.foreignKeys = append(e.model.foreignKeys, fk)
	e.foreignKeys = append(e.foreignKeys, fk.id)

	principal := principalKey.entity
	e.model.referencing[principal] = append(e.model.referencing[principal], fk.id)
	return fk, nil
}

// GetOrAddForeignKey returns the foreign key over props referencing principalKey,
// declaring it when missing
func (e *Entity) GetOrAddForeignKey(props []*Property, principalKey *Key) (*ForeignKey, error) {
	if principalKey == nil {
		return e.AddForeignKey(props, principalKey)
	}
	for _, fk := range e.ForeignKeys() {
		if fk.principalKey == principalKey.id && SameProperties(fk.Properties(), props) {
			return fk, nil
		}
	}
	return e.AddForeignKey(props, principalKey)
}

// AddNavigation declares a navigation over fk. pointsToPrincipal selects the side:
// true declares it on the dependent entity, false on the principal entity.
func (e *Entity) AddNavigation(name string, fk *ForeignKey, pointsToPrincipal bool) (*Navigation, error) {
	if err := e.model.checkMutable(); err != nil {
		return nil, err
	}
	if e.model.foreignKeyByID(fk.id) != fk {
		return nil, fmt.Errorf("%w: foreign key", ErrRemoved)
	}
	if name == "" {
		return nil, fmt.Errorf("navigation name is required on %s", e.name)
	}
	if e.HasMember(name) {
		return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateMember, e.name, name)
	}

	side := &fk.toDependent
	owner := fk.PrincipalEntity()
	if pointsToPrincipal {
		side = &fk.toPrincipal
		owner = fk.DependentEntity()
	}
	if owner != e {
		return nil, fmt.Errorf("%w: %s.%s", ErrNavigationOwner, e.name, name)
	}
	if *side != noID {
		return nil, fmt.Errorf("%w: %s.%s", ErrNavigationSideTaken, e.name, name)
	}

	nav := &Navigation{
		model:             e.model,
		id:                NavigationID(len(e.model.navigations)),
		entity:            e.id,
		name:              name,
		foreignKey:        fk.id,
		pointsToPrincipal: pointsToPrincipal,
	}
	e.model.navigations = append(e.model.navigations, nav)
	e.navigations = append(e.navigations, nav.id)
	*side = nav.id
	return nav, nil
}

func (e *Entity) checkOwnProperties(props []*Property) error {
	if len(props) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyKey, e.name)
	}
	for _, p := range props {
		if p == nil || p.entity != e.id || e.model.propertyByID(p.id) != p {
			return fmt.Errorf("%w: property is not declared on %s", ErrForeignMember, e.name)
		}
	}
	return nil
}

func containsID[T comparable](ids []T, id T) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
