package metadata

import "fmt"

// ForeignKey relates dependent properties to a principal key
type ForeignKey struct {
	model        *Model
	id           ForeignKeyID
	dependent    EntityID
	properties   []PropertyID
	principalKey KeyID

	unique      bool
	required    bool
	requiredSet bool

	toPrincipal NavigationID
	toDependent NavigationID
}

// ID returns the foreign key handle
func (fk *ForeignKey) ID() ForeignKeyID { return fk.id }

// Properties returns the dependent-side properties in order
func (fk *ForeignKey) Properties() []*Property {
	return fk.model.resolveProperties(fk.properties)
}

// PrincipalKey returns the referenced key
func (fk *ForeignKey) PrincipalKey() *Key {
	return fk.model.keys[fk.principalKey]
}

// DependentEntity returns the entity declaring the foreign key
func (fk *ForeignKey) DependentEntity() *Entity {
	return fk.model.entities[fk.dependent]
}

// PrincipalEntity returns the entity owning the principal key
func (fk *ForeignKey) PrincipalEntity() *Entity {
	return fk.model.entities[fk.model.keys[fk.principalKey].entity]
}

// IsUnique reports whether at most one dependent may reference a principal
func (fk *ForeignKey) IsUnique() bool { return fk.unique }

// IsRequired reports whether every dependent must reference a principal.
// Unless set explicitly it is true when no foreign key property is nullable.
func (fk *ForeignKey) IsRequired() bool {
	if fk.requiredSet {
		return fk.required
	}
	for _, p := range fk.Properties() {
		if p.IsNullable() {
			return false
		}
	}
	return true
}

// SetUnique sets the uniqueness flag
func (fk *ForeignKey) SetUnique(unique bool) error {
	if err := fk.model.checkMutable(); err != nil {
		return err
	}
	fk.unique = unique
	return nil
}

// SetRequired overrides the derived required flag
func (fk *ForeignKey) SetRequired(required bool) error {
	if err := fk.model.checkMutable(); err != nil {
		return err
	}
	fk.required = required
	fk.requiredSet = true
	return nil
}

// NavigationToPrincipal returns the navigation declared on the dependent side
func (fk *ForeignKey) NavigationToPrincipal() (*Navigation, bool) {
	n := fk.model.navigationByID(fk.toPrincipal)
	return n, n != nil
}

// NavigationToDependent returns the navigation declared on the principal side
func (fk *ForeignKey) NavigationToDependent() (*Navigation, bool) {
	n := fk.model.navigationByID(fk.toDependent)
	return n, n != nil
}

func (fk *ForeignKey) String() string {
	return fmt.Sprintf("%s%v -> %s", fk.DependentEntity().name, propertyNames(fk.Properties()), fk.PrincipalEntity().name)
}

// checkForeignKeyShape enforces equal arity and kind compatibility per position
func checkForeignKeyShape(props []*Property, key *Key) error {
	keyProps := key.Properties()
	if len(props) == 0 {
		return ErrEmptyKey
	}
	if len(props) != len(keyProps) {
		return fmt.Errorf("%w: %d vs %d", ErrForeignKeyArity, len(props), len(keyProps))
	}
	for i := range props {
		if !Compatible(props[i].typ, keyProps[i].typ) {
			return fmt.Errorf("%w: %s (%s) vs %s (%s)", ErrIncompatibleTypes,
				props[i].name, props[i].typ, keyProps[i].name, keyProps[i].typ)
		}
	}
	return nil
}

func propertyNames(props []*Property) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.name
	}
	return names
}
