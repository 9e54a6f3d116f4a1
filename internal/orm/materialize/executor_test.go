package materialize

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/relmap/internal/orm/metadata"
	"github.com/conduit-lang/relmap/internal/orm/query"
	"github.com/conduit-lang/relmap/internal/orm/sqlast"
)

type shop struct {
	customer *metadata.Entity
	order    *metadata.Entity
	item     *metadata.Entity
}

func setupTestModel(t *testing.T) shop {
	t.Helper()
	m := metadata.NewModel(metadata.WithNaming(metadata.SnakePluralNaming{}))
	intR := metadata.Required(metadata.KindInt)

	customer, err := m.AddEntity("Customer")
	require.NoError(t, err)
	cid, _ := customer.AddProperty("Id", intR, false)
	_, _ = customer.AddProperty("Name", metadata.Optional(metadata.KindString), false)
	customerPK, err := customer.SetPrimaryKey(cid)
	require.NoError(t, err)

	order, err := m.AddEntity("Order")
	require.NoError(t, err)
	oid, _ := order.AddProperty("Id", intR, false)
	ocid, _ := order.AddProperty("CustomerId", intR, false)
	orderPK, err := order.SetPrimaryKey(oid)
	require.NoError(t, err)

	item, err := m.AddEntity("OrderItem")
	require.NoError(t, err)
	iid, _ := item.AddProperty("Id", intR, false)
	ioid, _ := item.AddProperty("OrderId", intR, false)
	_, _ = item.AddProperty("Quantity", metadata.Optional(metadata.KindInt), false)
	_, err = item.SetPrimaryKey(iid)
	require.NoError(t, err)

	fk, err := order.AddForeignKey([]*metadata.Property{ocid}, customerPK)
	require.NoError(t, err)
	_, err = order.AddNavigation("Customer", fk, true)
	require.NoError(t, err)
	_, err = customer.AddNavigation("Orders", fk, false)
	require.NoError(t, err)

	fk, err = item.AddForeignKey([]*metadata.Property{ioid}, orderPK)
	require.NoError(t, err)
	_, err = item.AddNavigation("Order", fk, true)
	require.NoError(t, err)
	_, err = order.AddNavigation("OrderItems", fk, false)
	require.NoError(t, err)

	require.NoError(t, m.Freeze())
	return shop{customer: customer, order: order, item: item}
}

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var renderer = sqlast.NewRenderer(sqlast.Postgres)

func compile(t *testing.T, b *query.Builder) (*query.Compiled, []query.Command) {
	t.Helper()
	compiled, err := b.Compile()
	require.NoError(t, err)
	cmds, err := compiled.Commands(context.Background(), renderer, nil)
	require.NoError(t, err)
	return compiled, cmds
}

func ids(entries []*Entry) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.Get("Id")
	}
	return out
}

func TestExecuteCollection(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.customer, nil).Include("Orders"))

	mock.ExpectQuery(cmds[0].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "ann").
		AddRow(int64(2), "bob").
		AddRow(int64(3), "cy"))
	mock.ExpectQuery(cmds[1].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).
		AddRow(int64(10), int64(1)).
		AddRow(int64(11), int64(1)).
		AddRow(int64(12), int64(3)))

	entries, err := NewExecutor(renderer, nil, nil).Execute(context.Background(), db, compiled)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	ann, bob, cy := entries[0], entries[1], entries[2]
	assert.Equal(t, "ann", ann.Get("Name"))
	assert.Equal(t, []any{int64(10), int64(11)}, ids(ann.Collection("Orders")))
	assert.NotNil(t, bob.Collection("Orders"))
	assert.Empty(t, bob.Collection("Orders"))
	assert.Equal(t, []any{int64(12)}, ids(cy.Collection("Orders")))

	assert.Same(t, ann, ann.Collection("Orders")[0].Reference("Customer"), "inverse reference is fixed up")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteReferenceSharesEntries(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.order, nil).Include("Customer"))
	require.Len(t, cmds, 1)

	mock.ExpectQuery(cmds[0].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "id0", "name"}).
		AddRow(int64(10), int64(1), int64(1), "ann").
		AddRow(int64(11), int64(1), int64(1), "ann").
		AddRow(int64(12), int64(2), int64(2), []byte("bob")))

	entries, err := NewExecutor(renderer, nil, nil).Execute(context.Background(), db, compiled)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Same(t, entries[0].Reference("Customer"), entries[1].Reference("Customer"))
	assert.Equal(t, "bob", entries[2].Reference("Customer").Get("Name"), "text bytes become strings")
	assert.Nil(t, entries[0].Reference("Customer").Collection("Orders"), "to-many inverse is not filled")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCollectionBelowReference(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.order, nil).Include("Customer", "Orders"))
	require.Len(t, cmds, 2)

	// root rows come out ordered by customer, so two rows share a parent key
	mock.ExpectQuery(cmds[0].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "id0", "name"}).
		AddRow(int64(10), int64(1), int64(1), "ann").
		AddRow(int64(11), int64(1), int64(1), "ann").
		AddRow(int64(12), int64(2), int64(2), "bob"))
	mock.ExpectQuery(cmds[1].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).
		AddRow(int64(10), int64(1)).
		AddRow(int64(11), int64(1)).
		AddRow(int64(12), int64(2)))

	entries, err := NewExecutor(renderer, nil, nil).Execute(context.Background(), db, compiled)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	ann := entries[0].Reference("Customer")
	require.Len(t, ann.Collection("Orders"), 2)
	assert.Same(t, entries[0], ann.Collection("Orders")[0], "identity map shares root and child entries")
	assert.Same(t, entries[1], ann.Collection("Orders")[1])
	assert.Equal(t, []*Entry{entries[2]}, entries[2].Reference("Customer").Collection("Orders"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteNestedCollections(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.customer, nil).IncludePath("Orders.OrderItems"))
	require.Len(t, cmds, 3)

	mock.ExpectQuery(cmds[0].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "ann").
		AddRow(int64(2), "bob"))
	mock.ExpectQuery(cmds[1].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).
		AddRow(int64(10), int64(1)).
		AddRow(int64(11), int64(2)))
	mock.ExpectQuery(cmds[2].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "quantity"}).
		AddRow(int64(100), int64(10), int64(2)).
		AddRow(int64(101), int64(10), nil).
		AddRow(int64(102), int64(11), int64(5)))

	entries, err := NewExecutor(renderer, nil, nil).Execute(context.Background(), db, compiled)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	annOrders := entries[0].Collection("Orders")
	require.Len(t, annOrders, 1)
	assert.Equal(t, []any{int64(100), int64(101)}, ids(annOrders[0].Collection("OrderItems")))
	assert.Nil(t, annOrders[0].Collection("OrderItems")[1].Get("Quantity"))
	assert.Same(t, annOrders[0], annOrders[0].Collection("OrderItems")[0].Reference("Order"))

	bobOrders := entries[1].Collection("Orders")
	require.Len(t, bobOrders, 1)
	assert.Equal(t, []any{int64(102)}, ids(bobOrders[0].Collection("OrderItems")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteClosesStreamsOnError(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.customer, nil).Include("Orders"))
	boom := errors.New("boom")

	mock.ExpectQuery(cmds[0].SQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "ann")).
		RowsWillBeClosed()
	mock.ExpectQuery(cmds[1].SQL).WillReturnError(boom)

	_, err := NewExecutor(renderer, nil, nil).Execute(context.Background(), db, compiled)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stream 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRowError(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.customer, nil).Include("Orders"))
	boom := errors.New("connection reset")

	mock.ExpectQuery(cmds[0].SQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "ann")).
		RowsWillBeClosed()
	mock.ExpectQuery(cmds[1].SQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).
			AddRow(int64(10), int64(1)).
			AddRow(int64(11), int64(1)).
			RowError(1, boom)).
		RowsWillBeClosed()

	_, err := NewExecutor(renderer, nil, nil).Execute(context.Background(), db, compiled)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// cancelAfter cancels the context once the given number of queries were issued
type cancelAfter struct {
	db     Querier
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) QueryContext(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	c.n--
	if c.n == 0 {
		c.cancel()
	}
	return rows, err
}

func TestExecuteStopsOnCancel(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.customer, nil).Include("Orders"))

	mock.ExpectQuery(cmds[0].SQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "ann")).
		RowsWillBeClosed()
	mock.ExpectQuery(cmds[1].SQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(int64(10), int64(1))).
		RowsWillBeClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := &cancelAfter{db: db, n: 2, cancel: cancel}

	_, err := NewExecutor(renderer, nil, nil).Execute(ctx, q, compiled)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteShortRow(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.customer, nil))

	mock.ExpectQuery(cmds[0].SQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	_, err := NewExecutor(renderer, nil, nil).Execute(context.Background(), db, compiled)
	assert.ErrorIs(t, err, ErrShortRow)
}

func TestExecuteWarnsOnUnmatchedChildren(t *testing.T) {
	s := setupTestModel(t)
	db, mock := setupTestDB(t)
	compiled, cmds := compile(t, query.NewBuilder(s.customer, nil).Include("Orders"))
	core, logs := observer.New(zapcore.WarnLevel)

	mock.ExpectQuery(cmds[0].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "ann"))
	mock.ExpectQuery(cmds[1].SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(int64(10), int64(99)))

	entries, err := NewExecutor(renderer, nil, zap.New(core)).Execute(context.Background(), db, compiled)
	require.NoError(t, err)
	assert.Empty(t, entries[0].Collection("Orders"))
	assert.Equal(t, 1, logs.FilterMessage("child rows left unmatched").Len())
}

func TestEntryMapBreaksCycles(t *testing.T) {
	s := setupTestModel(t)
	identity := newIdentityMap()
	ann, created := identity.resolve(s.customer, []any{int64(1), "ann"})
	require.True(t, created)
	order, _ := identity.resolve(s.order, []any{int64(10), int64(1)})

	customerOrders, _ := s.customer.Navigation("Orders")
	attach(ann, customerOrders, order)

	again, created := identity.resolve(s.customer, []any{int64(1), "ann"})
	assert.False(t, created)
	assert.Same(t, ann, again)
	empty, _ := identity.resolve(s.customer, []any{nil, nil})
	assert.Nil(t, empty)

	m := ann.Map()
	orders := m["Orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, "Customer(1)", orders[0].(map[string]any)["Customer"])
	assert.Equal(t, "ann", m["Name"])
}
