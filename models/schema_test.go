package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmdatafocus/shop_inventory/tabular"
)

func TestEnsureSchema_CreatesTablesAndDropsDefaultSheet(t *testing.T) {
	store := tabular.NewMemoryStore()
	store.Seed("Sheet1")
	ctx := context.Background()

	report, err := EnsureSchema(ctx, store, nil)
	require.NoError(t, err)
	assert.Len(t, report.CreatedSheets, len(Schemas))
	assert.True(t, report.RemovedDefault)

	sheets, err := store.Sheets(ctx)
	require.NoError(t, err)
	assert.NotContains(t, sheets, "Sheet1")

	values, err := store.Values(ctx, SheetMovements)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Move_ID", "Date", "Kind", "Product", "Quantity", "Reason", "Note"}, values[0])
}

func TestEnsureSchema_AppendsMissingColumnsKeepingOrder(t *testing.T) {
	store := tabular.NewMemoryStore()
	store.Seed(SheetProducts,
		[]interface{}{"Name", "ID", "Price"},
		[]interface{}{"Rice", 1.0, 10.0},
	)
	ctx := context.Background()

	report, err := EnsureSchema(ctx, store, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Unit", "Stock_Current", "Stock_Minimum", "Image", "Created_At"}, report.AddedColumns[SheetProducts])

	values, err := store.Values(ctx, SheetProducts)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Name", "ID", "Price", "Category", "Unit", "Stock_Current", "Stock_Minimum", "Image", "Created_At"}, values[0])

	// writes follow the sheet's own order
	reader := tabular.NewCachedReader(store, tabular.NewMemoryCache(8, time.Minute), nil)
	_, err = NewCatalog(reader, nil).Add(ctx, NewProduct{Name: "Beans", Price: dec(2)})
	require.NoError(t, err)
	values, _ = store.Values(ctx, SheetProducts)
	assert.Equal(t, "Beans", values[2][0])
	assert.Equal(t, 2, values[2][1])

	again, err := EnsureSchema(ctx, store, nil)
	require.NoError(t, err)
	assert.Empty(t, again.CreatedSheets)
	assert.Empty(t, again.AddedColumns)
}

func TestEnsureSchema_JoinsPerTableFailures(t *testing.T) {
	store := tabular.NewMemoryStore()
	store.Fail(SheetPurchases, errors.New("permission denied"))

	_, err := EnsureSchema(context.Background(), store, nil)
	require.Error(t, err)
	assert.Equal(t, tabular.ReasonPermissionDenied, tabular.Classify(err))

	sheets, _ := store.Sheets(context.Background())
	assert.Contains(t, sheets, SheetProducts)
	assert.NotContains(t, sheets, SheetPurchases)
}

func TestSession_TokensCartAndSchemaFlag(t *testing.T) {
	st := NewSessionStore(time.Hour, tabular.NewLocalGenerations())
	s, created := st.Get("")
	assert.True(t, created)
	assert.NotEmpty(t, s.Id)

	same, created := st.Get(s.Id)
	assert.False(t, created)
	assert.Same(t, s, same)

	ctx := context.Background()
	s.Bump(ctx, SheetProducts)
	assert.Equal(t, int64(1), s.Token(SheetProducts))
	s.BumpAll(ctx)
	assert.Equal(t, int64(2), s.Token(SheetProducts))
	assert.Equal(t, int64(1), s.Token(SheetSubscriptions))

	calls := 0
	fail := errors.New("down")
	assert.ErrorIs(t, s.VerifySchema(func() error { calls++; return fail }), fail)
	assert.NoError(t, s.VerifySchema(func() error { calls++; return nil }))
	assert.NoError(t, s.VerifySchema(func() error { calls++; return nil }))
	assert.Equal(t, 2, calls)
	assert.True(t, s.SchemaVerified())

	require.NoError(t, s.WithCart(func(c *Cart) error {
		c.Add(LineItem{ProductName: "A", Quantity: dec(1)})
		return nil
	}))
	assert.Len(t, s.CartItems(), 1)

	assert.Equal(t, 1, st.Sweep(time.Now().Add(2*time.Hour)))
	assert.Equal(t, 0, st.Len())
}

func TestSubscriptionRegistry(t *testing.T) {
	f := newFixture(t)
	reg := NewSubscriptionRegistry(f.reader, nil)
	ctx := context.Background()

	sub, err := reg.Add(ctx, NewAlertSubscription{Email: "owner@shop.test"})
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Id)
	assert.True(t, sub.Active)

	_, err = reg.Add(ctx, NewAlertSubscription{Email: "OWNER@shop.test"})
	assert.True(t, IsValidationError(err))
	_, err = reg.Add(ctx, NewAlertSubscription{Email: "not-an-email"})
	assert.True(t, IsValidationError(err))

	inactive := false
	_, err = reg.Add(ctx, NewAlertSubscription{Email: "clerk@shop.test", Active: &inactive})
	require.NoError(t, err)

	subs, err := reg.LoadFresh(ctx)
	require.NoError(t, err)
	assert.Len(t, Active(subs), 1)

	_, err = reg.SetActive(ctx, 2, true)
	require.NoError(t, err)
	subs, _ = reg.LoadFresh(ctx)
	assert.Len(t, Active(subs), 2)

	require.NoError(t, reg.TouchLastChecked(ctx, subs))
	subs, _ = reg.LoadFresh(ctx)
	require.NotNil(t, subs[0].LastChecked)

	_, err = reg.SetActive(ctx, 42, true)
	assert.True(t, IsNotFoundError(err))
}

func TestSession_BumpNeverLandsOnAnotherSessionsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := NewSessionStore(time.Hour, tabular.NewLocalGenerations())
	a, _ := st.Get("")
	b, _ := st.Get("")
	f.addProduct(t, "Rice", 10, 10, 5)

	a.Bump(ctx, SheetProducts)
	require.Len(t, f.catalog().List(ctx, a.Token(SheetProducts)), 1)

	f.addProduct(t, "Beans", 3, 10, 5)
	b.Bump(ctx, SheetProducts)
	assert.NotEqual(t, a.Token(SheetProducts), b.Token(SheetProducts))
	assert.Len(t, f.catalog().List(ctx, b.Token(SheetProducts)), 2, "writer must see its own write")

	// a keeps its snapshot until it bumps
	assert.Len(t, f.catalog().List(ctx, a.Token(SheetProducts)), 1)
	a.Bump(ctx, SheetProducts)
	assert.Len(t, f.catalog().List(ctx, a.Token(SheetProducts)), 2)
}

type failingGenerations struct{}

func (failingGenerations) Next(context.Context, string) (int64, error) {
	return 0, errors.New("redis down")
}

func TestSession_BumpStillAdvancesWhenSharedCounterFails(t *testing.T) {
	st := NewSessionStore(time.Hour, failingGenerations{})
	s, _ := st.Get("")
	ctx := context.Background()

	s.Bump(ctx, SheetProducts)
	first := s.Token(SheetProducts)
	assert.Greater(t, first, int64(0))
	s.Bump(ctx, SheetProducts)
	assert.Greater(t, s.Token(SheetProducts), first)
}

func TestCart_DiscardRemovesOnlyTheGivenLines(t *testing.T) {
	var c Cart
	c.Add(LineItem{ProductName: "A", Quantity: dec(1)})
	c.Add(LineItem{ProductName: "B", Quantity: dec(1)})
	snapshot := c.Snapshot()
	assert.NotEqual(t, snapshot[0].Id, snapshot[1].Id)

	require.NoError(t, c.Remove(0))
	c.Add(LineItem{ProductName: "C", Quantity: dec(1)})
	c.Discard(snapshot)

	require.Len(t, c.Items, 1)
	assert.Equal(t, "C", c.Items[0].ProductName)
}
