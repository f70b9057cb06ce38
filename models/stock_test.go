package models

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockReconciler_ExitClampsAtZero(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Rice", 10, 3, 5)
	r := NewStockReconciler(f.reader, nil, nil)

	change, err := r.Apply(context.Background(), "Rice", dec(5), MovementKindExit)
	require.NoError(t, err)
	assert.True(t, change.Current.IsZero())
	assert.True(t, change.Clamped)
	assert.True(t, change.Previous.Equal(dec(3)))

	p, err := f.catalog().FindByName(context.Background(), "Rice")
	require.NoError(t, err)
	assert.True(t, p.StockCurrent.IsZero())
}

func TestStockReconciler_WentCriticalAtMinimum(t *testing.T) {
	cases := []struct {
		start, exit float64
		critical    bool
	}{
		{10, 5, true},
		{10, 4, false},
	}
	for _, tc := range cases {
		f := newFixture(t)
		f.addProduct(t, "Rice", 10, tc.start, 5)
		r := NewStockReconciler(f.reader, nil, nil)

		change, err := r.Apply(context.Background(), "Rice", dec(tc.exit), MovementKindExit)
		require.NoError(t, err)
		assert.Equal(t, tc.critical, change.WentCritical, "new stock %s", change.Current)
	}
}

func TestStockReconciler_EntryAndSetAbsolute(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Beans", 4, 2, 5)
	r := NewStockReconciler(f.reader, nil, nil)
	ctx := context.Background()

	change, err := r.Apply(ctx, "Beans", dec(8), MovementKindEntry)
	require.NoError(t, err)
	assert.True(t, change.Current.Equal(dec(10)))
	assert.False(t, change.WentCritical)

	change, err = r.SetAbsolute(ctx, "Beans", dec(1))
	require.NoError(t, err)
	assert.True(t, change.Previous.Equal(dec(10)))
	assert.True(t, change.Current.Equal(dec(1)))

	_, err = r.SetAbsolute(ctx, "Beans", dec(-1))
	assert.True(t, IsValidationError(err))
}

func TestStockReconciler_Rejections(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Beans", 4, 2, 5)
	r := NewStockReconciler(f.reader, nil, nil)
	ctx := context.Background()

	_, err := r.Apply(ctx, "Beans", dec(0), MovementKindExit)
	assert.True(t, IsValidationError(err))

	_, err = r.Apply(ctx, "Nope", dec(1), MovementKindExit)
	assert.True(t, IsNotFoundError(err))
}

func TestStockReconciler_ResolvesRowAfterReorder(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "A", 1, 5, 1)
	f.addProduct(t, "B", 1, 7, 1)
	r := NewStockReconciler(f.reader, nil, nil)
	ctx := context.Background()

	// warm the cache, then move B to another row behind its back
	_, err := f.catalog().Load(ctx, 0)
	require.NoError(t, err)
	values, err := f.store.Values(ctx, SheetProducts)
	require.NoError(t, err)
	f.store.Seed(SheetProducts, values[0], values[2], values[1])

	_, err = r.Apply(ctx, "B", dec(2), MovementKindExit)
	require.NoError(t, err)

	a, _ := f.catalog().FindByName(ctx, "A")
	b, _ := f.catalog().FindByName(ctx, "B")
	assert.True(t, a.StockCurrent.Equal(dec(5)))
	assert.True(t, b.StockCurrent.Equal(dec(5)))
}

type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}

func TestStockReconciler_SerializedExitsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Rice", 1, 100, 5)
	r := NewStockReconciler(f.reader, &mutexLocker{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Apply(context.Background(), "Rice", dec(1), MovementKindExit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := f.catalog().FindByName(context.Background(), "Rice")
	require.NoError(t, err)
	assert.True(t, p.StockCurrent.Equal(dec(80)), "stock %s", p.StockCurrent)
}
