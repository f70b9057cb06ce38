package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_AddThenFindByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := time.Now()

	added, err := f.catalog().Add(ctx, NewProduct{Name: "  Rice  ", Category: " Grains ", Price: decimal.RequireFromString("12.34")})
	require.NoError(t, err)
	assert.Equal(t, 1, added.Id)
	assert.Equal(t, "un", added.Unit)
	assert.True(t, added.StockCurrent.IsZero())
	assert.True(t, added.StockMinimum.Equal(decimal.NewFromInt(5)))

	found, err := f.catalog().FindByName(ctx, "Rice")
	require.NoError(t, err)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("12.34")), "price %s", found.Price)
	assert.Equal(t, "Grains", found.Category)
	assert.False(t, added.CreatedAt.Before(before), "created %v before %v", added.CreatedAt, before)
	assert.False(t, found.CreatedAt.Before(before), "stored %v before %v", found.CreatedAt, before)
	assert.True(t, found.CreatedAt.Equal(added.CreatedAt), "stored %v, added %v", found.CreatedAt, added.CreatedAt)

	second, err := f.catalog().Add(ctx, NewProduct{Name: "Beans", Price: decimal.NewFromInt(3)})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Id)
}

func TestCatalog_AddValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog().Add(ctx, NewProduct{Name: "   "})
	assert.True(t, IsValidationError(err))

	_, err = f.catalog().Add(ctx, NewProduct{Name: "Rice", Price: decimal.NewFromInt(-1)})
	assert.True(t, IsValidationError(err))

	values, err := f.store.Values(ctx, SheetProducts)
	require.NoError(t, err)
	assert.Len(t, values, 1, "nothing written after validation failure")
}

func TestCatalog_FindByNameIsExact(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Rice", 10, 10, 5)

	_, err := f.catalog().FindByName(context.Background(), "rice")
	assert.True(t, IsNotFoundError(err))
}

func TestCatalog_ListFailsOpenLoadDoesNot(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Rice", 10, 10, 5)
	f.store.Fail(SheetProducts, errors.New("googleapi: Error 429: Quota exceeded"))

	products, err := f.catalog().Load(context.Background(), 1)
	require.Error(t, err)
	assert.Empty(t, products)
	assert.True(t, IsStoreUnavailable(err))

	assert.Empty(t, f.catalog().List(context.Background(), 1))
}

func TestCatalog_ReadsHeaderOrderFromSheet(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(SheetProducts,
		[]interface{}{"Name", "ID", "Price", "Stock_Current", "Stock_Minimum", "Unit", "Category", "Image", "Created_At"},
		[]interface{}{"Oil", 1.0, "7,5", 2.0, 3.0, "", "", "", "2024-01-02 10:00:00"},
	)
	products, err := f.catalog().Load(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Oil", products[0].Name)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, "un", products[0].Unit)
	assert.Equal(t, 2024, products[0].CreatedAt.Year())
}

func TestCritical(t *testing.T) {
	products := []*Product{
		{Name: "A", StockCurrent: dec(5), StockMinimum: dec(5)},
		{Name: "B", StockCurrent: dec(6), StockMinimum: dec(5)},
		{Name: "C", StockCurrent: dec(1), StockMinimum: dec(4)},
	}
	critical := Critical(products)
	require.Len(t, critical, 2)
	assert.Equal(t, "A", critical[0].Name)
	assert.True(t, critical[0].Deficit.IsZero())
	assert.Equal(t, "C", critical[1].Name)
	assert.True(t, critical[1].Deficit.Equal(dec(3)))
}

func TestSearch(t *testing.T) {
	products := []*Product{{Name: "Brown Rice"}, {Name: "Beans"}, {Name: "rice flour"}}
	assert.Len(t, Search(products, "RICE"), 2)
	assert.Len(t, Search(products, " "), 3)
	assert.Empty(t, Search(products, "oil"))
}
