package codegen

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/modelfile"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

const shopModel = `
naming: snake_plural
entities:
  - name: OrderItem
    properties:
      - {name: Id, type: int!}
      - {name: OrderId, type: int!}
      - {name: Quantity, type: int?}
    navigations:
      - {name: Order, target: Order, inverse: Items}
  - name: Order
    schema: sales
    properties:
      - {name: Id, type: int!}
      - {name: CustomerId, type: int!}
      - {name: PlacedAt, type: timestamp?}
    navigations:
      - {name: Customer, target: Customer}
      - {name: Items, target: OrderItem, collection: true, inverse: Order}
  - name: Customer
    properties:
      - {name: Id, type: int!}
      - {name: Email, type: string!}
      - {name: Name, type: text?}
    alternate_keys:
      - [Email]
`

func loadModel(t *testing.T, doc string) *metadata.Model {
	t.Helper()
	f, err := modelfile.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	m, err := f.Build(modelfile.Options{})
	require.NoError(t, err)
	return m
}

func names(entities []*metadata.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Name()
	}
	return out
}

func TestCreationOrder(t *testing.T) {
	m := loadModel(t, shopModel)
	assert.Equal(t, []string{"Customer", "Order", "OrderItem"}, names(CreationOrder(m)))
}

func TestCreationOrderWithCycle(t *testing.T) {
	m := loadModel(t, `
entities:
  - name: A
    properties: [{name: Id, type: int}, {name: BId, type: int?}]
    navigations: [{name: B, target: B}]
  - name: B
    properties: [{name: Id, type: int}, {name: AId, type: int?}]
    navigations: [{name: A, target: A}]
  - name: C
    properties: [{name: Id, type: int}]
`)
	assert.Equal(t, []string{"C", "A", "B"}, names(CreationOrder(m)))
}

func TestGenerateCreateTablePostgres(t *testing.T) {
	m := loadModel(t, shopModel)
	gen := NewDDLGenerator(sqlast.Postgres)

	order, _ := m.Entity("Order")
	got, err := gen.GenerateCreateTable(order)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "sales"."orders" (
  "id" INTEGER NOT NULL,
  "customer_id" INTEGER NOT NULL,
  "placed_at" TIMESTAMP WITH TIME ZONE NULL,
  PRIMARY KEY ("id"),
  FOREIGN KEY ("customer_id") REFERENCES "customers" ("id")
);`, got)

	customer, _ := m.Entity("Customer")
	got, err = gen.GenerateCreateTable(customer)
	require.NoError(t, err)
	assert.Contains(t, got, `"email" VARCHAR(255) NOT NULL,`)
	assert.Contains(t, got, `UNIQUE ("email")`)

	item, _ := m.Entity("OrderItem")
	got, err = gen.GenerateCreateTable(item)
	require.NoError(t, err)
	assert.Contains(t, got, `REFERENCES "sales"."orders" ("id")`)

	assert.Equal(t, `DROP TABLE IF EXISTS "sales"."orders" CASCADE;`, gen.GenerateDropTable(order))
	_, err = gen.GenerateCreateTable(nil)
	assert.Error(t, err)
}

func TestGenerateSchemaRunsOnSQLite(t *testing.T) {
	m := loadModel(t, shopModel)
	gen := NewDDLGenerator(sqlast.SQLite)
	ddl, err := gen.GenerateSchema(m)
	require.NoError(t, err)
	assert.NotContains(t, ddl, `"sales"`)
	assert.Less(t, strings.Index(ddl, `"customers"`), strings.Index(ddl, `"orders"`))

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "ddl.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ddl)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO customers (id, email) VALUES (1, 'a@x')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders (id, customer_id) VALUES (10, 1)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO orders (id, customer_id) VALUES (11, 99)`)
	assert.Error(t, err, "foreign key enforced")
	_, err = db.Exec(`INSERT INTO customers (id, email) VALUES (2, 'a@x')`)
	assert.Error(t, err, "alternate key enforced")
	_, err = db.Exec(`INSERT INTO order_items (id, order_id) VALUES (100, NULL)`)
	assert.Error(t, err, "required column enforced")

	_, err = db.Exec(gen.GenerateDropSchema(m))
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE IF EXISTS \"order_items\";\nDROP TABLE IF EXISTS \"orders\";\nDROP TABLE IF EXISTS \"customers\";\n", gen.GenerateDropSchema(m))
}

func TestTypeMapper(t *testing.T) {
	pg := NewTypeMapper(sqlast.Postgres)
	lite := NewTypeMapper(sqlast.SQLite)
	for _, tt := range []struct {
		kind     metadata.Kind
		postgres string
		sqlite   string
	}{
		{metadata.KindBigInt, "BIGINT", "INTEGER"},
		{metadata.KindFloat, "DOUBLE PRECISION", "REAL"},
		{metadata.KindUUID, "UUID", "TEXT"},
		{metadata.KindJSONB, "JSONB", "TEXT"},
		{metadata.KindBool, "BOOLEAN", "BOOLEAN"},
	} {
		got, err := pg.MapType(metadata.Required(tt.kind))
		require.NoError(t, err)
		assert.Equal(t, tt.postgres, got)
		got, err = lite.MapType(metadata.Required(tt.kind))
		require.NoError(t, err)
		assert.Equal(t, tt.sqlite, got)
	}
	assert.Equal(t, "NULL", pg.MapNullability(metadata.Optional(metadata.KindInt)))

	_, err := pg.MapType(metadata.ValueType{Kind: metadata.Kind(99)})
	assert.Error(t, err)
}
