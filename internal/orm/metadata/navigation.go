package metadata

// Navigation is a named, directional view of one foreign key from one side
type Navigation struct {
	model             *Model
	id                NavigationID
	entity            EntityID
	name              string
	foreignKey        ForeignKeyID
	pointsToPrincipal bool
}

func (n *Navigation) propertyBase() {}

// ID returns the navigation handle
func (n *Navigation) ID() NavigationID { return n.id }

// Name returns the navigation name
func (n *Navigation) Name() string { return n.name }

// DeclaringEntity returns the entity the navigation is declared on
func (n *Navigation) DeclaringEntity() *Entity { return n.model.entities[n.entity] }

// ForeignKey returns the foreign key the navigation traverses
func (n *Navigation) ForeignKey() *ForeignKey { return n.model.foreignKeys[n.foreignKey] }

// PointsToPrincipal reports whether the navigation leads from the dependent to the principal
func (n *Navigation) PointsToPrincipal() bool { return n.pointsToPrincipal }

// IsCollection reports whether the navigation can lead to many entities
func (n *Navigation) IsCollection() bool {
	return !n.pointsToPrincipal && !n.ForeignKey().IsUnique()
}

// TargetEntity returns the entity at the other end of the navigation
func (n *Navigation) TargetEntity() *Entity {
	fk := n.ForeignKey()
	if n.pointsToPrincipal {
		return fk.PrincipalEntity()
	}
	return fk.DependentEntity()
}

// Inverse returns the navigation on the other side of the same foreign key
func (n *Navigation) Inverse() (*Navigation, bool) {
	if n.pointsToPrincipal {
		return n.ForeignKey().NavigationToDependent()
	}
	return n.ForeignKey().NavigationToPrincipal()
}

func (n *Navigation) String() string {
	return n.DeclaringEntity().name + "." + n.name
}
