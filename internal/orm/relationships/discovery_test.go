package relationships

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
)

type fixture struct {
	model     *metadata.Model
	principal *metadata.Entity
	dependent *metadata.Entity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := metadata.NewModel()

	principal, err := m.AddEntity("PrincipalEntity")
	require.NoError(t, err)
	peeKay, err := principal.AddProperty("PeeKay", metadata.Required(metadata.KindInt), false)
	require.NoError(t, err)
	_, err = principal.SetPrimaryKey(peeKay)
	require.NoError(t, err)

	dependent, err := m.AddEntity("DependentEntity")
	require.NoError(t, err)
	kayPee, err := dependent.AddProperty("KayPee", metadata.Required(metadata.KindInt), true)
	require.NoError(t, err)
	_, err = dependent.SetPrimaryKey(kayPee)
	require.NoError(t, err)

	return &fixture{model: m, principal: principal, dependent: dependent}
}

func (f *fixture) property(t *testing.T, name string) *metadata.Property {
	t.Helper()
	p, err := f.dependent.GetOrAddProperty(name, metadata.Required(metadata.KindInt), true)
	require.NoError(t, err)
	return p
}

func (f *fixture) foreignKey(t *testing.T, props ...*metadata.Property) *metadata.ForeignKey {
	t.Helper()
	pk, ok := f.principal.PrimaryKey()
	require.True(t, ok)
	fk, err := f.dependent.GetOrAddForeignKey(props, pk)
	require.NoError(t, err)
	return fk
}

func (f *fixture) request(fkProps ...*metadata.Property) Request {
	notUnique := false
	return Request{
		Dependent:             f.dependent,
		Principal:             f.principal,
		NavigationToPrincipal: "SomeNav",
		NavigationToDependent: "SomeInverse",
		ForeignKeyProperties:  fkProps,
		IsUnique:              &notUnique,
	}
}

func TestPrincipalNamePlusKeyName(t *testing.T) {
	f := newFixture(t)
	fk := f.foreignKey(t, f.property(t, "PrincipalEntityPeEKaY"))

	found, ok := TryFindForeignKey(f.request())
	require.True(t, ok)
	assert.Same(t, fk, found)
}

func TestGivenPropertiesIgnoreNaming(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"SomeNavID", "SomeNavPeEKaY", "PrincipalEntityID", "PrincipalEntityPeEKaY"} {
		f.property(t, name)
	}
	fk := f.foreignKey(t, f.property(t, "HeToldMeYouKilledMyFk"))

	found, ok := TryFindForeignKey(f.request(fk.Properties()...))
	require.True(t, ok)
	assert.Same(t, fk, found)
}

func TestGivenCompositePropertiesMatchAlternateKey(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"SomeNavID", "SomeNavPeEKaY", "PrincipalEntityID", "PrincipalEntityPeEKaY"} {
		f.property(t, name)
	}
	no := f.property(t, "No")
	yours := f.property(t, "IAmYourFk")

	id1, err := f.principal.AddProperty("Id1", metadata.Required(metadata.KindInt), true)
	require.NoError(t, err)
	id2, err := f.principal.AddProperty("Id2", metadata.Required(metadata.KindInt), true)
	require.NoError(t, err)
	alternate, err := f.principal.GetOrAddKey(id1, id2)
	require.NoError(t, err)
	fk, err := f.dependent.GetOrAddForeignKey([]*metadata.Property{no, yours}, alternate)
	require.NoError(t, err)

	found, ok := TryFindForeignKey(f.request(no, yours))
	require.True(t, ok)
	assert.Same(t, fk, found)

	req := f.request(no, yours)
	pk, _ := f.principal.PrimaryKey()
	req.PrincipalProperties = pk.Properties()
	_, ok = TryFindForeignKey(req)
	assert.False(t, ok, "explicit principal properties must equal the candidate key")
}

func TestGivenPropertiesRequireExactOrder(t *testing.T) {
	f := newFixture(t)
	a := f.property(t, "A")
	b := f.property(t, "B")

	id1, _ := f.principal.AddProperty("Id1", metadata.Required(metadata.KindInt), false)
	id2, _ := f.principal.AddProperty("Id2", metadata.Required(metadata.KindInt), false)
	key, err := f.principal.GetOrAddKey(id1, id2)
	require.NoError(t, err)
	_, err = f.dependent.AddForeignKey([]*metadata.Property{a, b}, key)
	require.NoError(t, err)

	_, ok := TryFindForeignKey(f.request(b, a))
	assert.False(t, ok)
	_, ok = TryFindForeignKey(f.request(a))
	assert.False(t, ok)
}

func TestNavigationPlusID(t *testing.T) {
	f := newFixture(t)
	fkProp := f.property(t, "SomeNavID")
	for _, name := range []string{"SomeNavPeEKaY", "PrincipalEntityID", "PrincipalEntityPeEKaY"} {
		f.property(t, name)
	}
	fk := f.foreignKey(t, fkProp)

	found, ok := TryFindForeignKey(f.request())
	require.True(t, ok)
	assert.Same(t, fk, found)
}

func TestNavigationPlusKeyName(t *testing.T) {
	f := newFixture(t)
	fkProp := f.property(t, "SomeNavPeEKaY")
	f.property(t, "PrincipalEntityID")
	f.property(t, "PrincipalEntityPeEKaY")
	fk := f.foreignKey(t, fkProp)

	found, ok := TryFindForeignKey(f.request())
	require.True(t, ok)
	assert.Same(t, fk, found)
}

func TestPrincipalNamePlusID(t *testing.T) {
	f := newFixture(t)
	fkProp := f.property(t, "PrincipalEntityID")
	f.property(t, "PrincipalEntityPeEKaY")
	fk := f.foreignKey(t, fkProp)

	found, ok := TryFindForeignKey(f.request())
	require.True(t, ok)
	assert.Same(t, fk, found)
}

func TestHeuristicRejectsIncompatibleKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.dependent.AddProperty("SomeNavId", metadata.Required(metadata.KindString), false)
	require.NoError(t, err)

	_, ok := NewFinder(nil).ImpliedForeignKeyProperties(f.request())
	assert.False(t, ok)

	fkProp := f.property(t, "PrincipalEntityId")
	implied, ok := NewFinder(nil).ImpliedForeignKeyProperties(f.request())
	require.True(t, ok)
	assert.Equal(t, []*metadata.Property{fkProp}, implied)
}

func TestNoHeuristicMatch(t *testing.T) {
	f := newFixture(t)
	f.foreignKey(t, f.property(t, "Unrelated"))

	_, ok := TryFindForeignKey(f.request())
	assert.False(t, ok)
}

func TestDifferentNavigationToPrincipal(t *testing.T) {
	f := newFixture(t)
	fkProp := f.property(t, "SharedFk")
	fk := f.foreignKey(t, fkProp)
	_, err := f.dependent.AddNavigation("AnotherNav", fk, true)
	require.NoError(t, err)

	_, ok := TryFindForeignKey(f.request(fkProp))
	assert.False(t, ok)

	req := f.request(fkProp)
	req.NavigationToPrincipal = "AnotherNav"
	found, ok := TryFindForeignKey(req)
	require.True(t, ok)
	assert.Same(t, fk, found)
}

func TestDifferentNavigationToDependent(t *testing.T) {
	f := newFixture(t)
	fkProp := f.property(t, "SharedFk")
	fk := f.foreignKey(t, fkProp)
	_, err := f.principal.AddNavigation("AnotherNav", fk, false)
	require.NoError(t, err)

	_, ok := TryFindForeignKey(f.request(fkProp))
	assert.False(t, ok)

	req := f.request(fkProp)
	req.NavigationToDependent = ""
	_, ok = TryFindForeignKey(req)
	assert.True(t, ok, "an unsupplied navigation name does not constrain the match")
}

func TestDifferentUniqueness(t *testing.T) {
	f := newFixture(t)
	fkProp := f.property(t, "SharedFk")
	fk := f.foreignKey(t, fkProp)
	require.NoError(t, fk.SetUnique(true))

	_, ok := TryFindForeignKey(f.request(fkProp))
	assert.False(t, ok)

	req := f.request(fkProp)
	req.IsUnique = nil
	_, ok = TryFindForeignKey(req)
	assert.True(t, ok)
}

func TestOrderCustomer(t *testing.T) {
	m := metadata.NewModel()
	customer, _ := m.AddEntity("Customer")
	id, _ := customer.AddProperty("Id", metadata.Required(metadata.KindInt), false)
	_, err := customer.SetPrimaryKey(id)
	require.NoError(t, err)

	order, _ := m.AddEntity("Order")
	customerID, _ := order.AddProperty("CustomerId", metadata.Required(metadata.KindInt), false)
	pk, _ := customer.PrimaryKey()
	fk, err := order.AddForeignKey([]*metadata.Property{customerID}, pk)
	require.NoError(t, err)

	req := Request{Dependent: order, Principal: customer, NavigationToPrincipal: "Customer"}
	found, ok := TryFindForeignKey(req)
	require.True(t, ok)
	assert.Same(t, fk, found)

	// unchanged graph, same answer
	again, ok := TryFindForeignKey(req)
	require.True(t, ok)
	assert.Same(t, found, again)
}

func TestPrincipalMismatch(t *testing.T) {
	f := newFixture(t)
	fkProp := f.property(t, "SharedFk")
	f.foreignKey(t, fkProp)

	other, err := f.model.AddEntity("Other")
	require.NoError(t, err)
	otherID, _ := other.AddProperty("PeeKay", metadata.Required(metadata.KindInt), false)
	_, err = other.SetPrimaryKey(otherID)
	require.NoError(t, err)

	req := f.request(fkProp)
	req.Principal = other
	_, ok := TryFindForeignKey(req)
	assert.False(t, ok)
}

func TestAmbiguousNamingIsLogged(t *testing.T) {
	f := newFixture(t)
	first := f.property(t, "SomeNavId")
	f.property(t, "PrincipalEntityId")
	fk := f.foreignKey(t, first)

	core, logs := observer.New(zapcore.WarnLevel)
	finder := NewFinder(zap.New(core))

	found, ok := finder.TryFindForeignKey(f.request())
	require.True(t, ok)
	assert.Same(t, fk, found)

	entries := logs.FilterMessage("ambiguous foreign key naming").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "SomeNavId", entries[0].ContextMap()["chosen"])
	assert.Equal(t, "PrincipalEntityId", entries[0].ContextMap()["also_matched"])
}
