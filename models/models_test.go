package models

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmdatafocus/shop_inventory/tabular"
)

type fixture struct {
	store  *tabular.MemoryStore
	reader *tabular.CachedReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := tabular.NewMemoryStore()
	_, err := EnsureSchema(context.Background(), store, nil)
	require.NoError(t, err)
	return &fixture{
		store:  store,
		reader: tabular.NewCachedReader(store, tabular.NewMemoryCache(64, time.Minute), nil),
	}
}

func (f *fixture) catalog() *Catalog {
	return NewCatalog(f.reader, nil)
}

func (f *fixture) addProduct(t *testing.T, name string, price, stock, minimum float64) *Product {
	t.Helper()
	current := decimal.NewFromFloat(stock)
	floor := decimal.NewFromFloat(minimum)
	p, err := f.catalog().Add(context.Background(), NewProduct{
		Name:         name,
		Category:     "Groceries",
		Price:        decimal.NewFromFloat(price),
		StockCurrent: &current,
		StockMinimum: &floor,
	})
	require.NoError(t, err)
	return p
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
