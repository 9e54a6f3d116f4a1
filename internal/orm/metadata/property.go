package metadata

import "fmt"

// PropertyBase is implemented by the members of an entity: *Property and *Navigation
type PropertyBase interface {
	Name() string
	DeclaringEntity() *Entity
	propertyBase()
}

// Property is a mapped scalar value of an entity
type Property struct {
	model   *Model
	id      PropertyID
	entity  EntityID
	name    string
	typ     ValueType
	shadow  bool
	ordinal int
	column  string
}

func (p *Property) propertyBase() {}

// ID returns the property handle
func (p *Property) ID() PropertyID { return p.id }

// Name returns the property name
func (p *Property) Name() string { return p.name }

// Type returns the value type
func (p *Property) Type() ValueType { return p.typ }

// IsNullable reports whether the property accepts null
func (p *Property) IsNullable() bool { return p.typ.Nullable }

// IsShadow reports whether the property exists only in the mapping
func (p *Property) IsShadow() bool { return p.shadow }

// Ordinal returns the position of the property in its entity
func (p *Property) Ordinal() int { return p.ordinal }

// DeclaringEntity returns the entity the property belongs to
func (p *Property) DeclaringEntity() *Entity { return p.model.entities[p.entity] }

// ColumnName returns the explicit column name, or the naming strategy's name
func (p *Property) ColumnName() string {
	if p.column != "" {
		return p.column
	}
	return p.model.naming.ColumnName(p.name)
}

// SetColumnName sets an explicit column name
func (p *Property) SetColumnName(name string) error {
	if err := p.model.checkMutable(); err != nil {
		return err
	}
	p.column = name
	return nil
}

func (p *Property) String() string {
	return fmt.Sprintf("%s.%s", p.DeclaringEntity().name, p.name)
}

// Key is an ordered set of properties whose values are unique per instance
type Key struct {
	model      *Model
	id         KeyID
	entity     EntityID
	properties []PropertyID
}

// ID returns the key handle
func (k *Key) ID() KeyID { return k.id }

// Properties returns the key properties in order
func (k *Key) Properties() []*Property {
	return k.model.resolveProperties(k.properties)
}

// DeclaringEntity returns the entity the key belongs to
func (k *Key) DeclaringEntity() *Entity { return k.model.entities[k.entity] }

// IsPrimary reports whether this is the primary key of its entity
func (k *Key) IsPrimary() bool {
	return k.model.entities[k.entity].primaryKey == k.id
}
