package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/tabular"
)

var errBackend = errors.New("backend unavailable")

// flakyStore fails the n-th append to a sheet. afterAppend, when set, runs after every successful append.
type flakyStore struct {
	*tabular.MemoryStore

	mu          sync.Mutex
	appends     map[string]int
	failOn      map[string]int
	afterAppend func(sheet string)
}

func (s *flakyStore) failAppend(sheet string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[sheet] = s.appends[sheet] + n
}

func (s *flakyStore) AppendRow(ctx context.Context, sheet string, row []interface{}) error {
	s.mu.Lock()
	s.appends[sheet]++
	fail := s.failOn[sheet] == s.appends[sheet]
	s.mu.Unlock()
	if fail {
		return tabular.Wrap("append", sheet, errBackend)
	}
	if err := s.MemoryStore.AppendRow(ctx, sheet, row); err != nil {
		return err
	}
	if s.afterAppend != nil {
		s.afterAppend(sheet)
	}
	return nil
}

// newSession comes from its own store so token values start from zero.
func newSession() *models.Session {
	s, _ := models.NewSessionStore(time.Hour, tabular.NewLocalGenerations()).Get("")
	return s
}

type testEnv struct {
	mem       *tabular.MemoryStore
	store     *flakyStore
	reader    *tabular.CachedReader
	catalog   *models.Catalog
	purchases *models.PurchaseLedger
	movements *models.MovementLedger
	stock     *models.StockReconciler
	subs      *models.SubscriptionRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := tabular.NewMemoryStore()
	store := &flakyStore{MemoryStore: mem, appends: map[string]int{}, failOn: map[string]int{}}
	_, err := models.EnsureSchema(context.Background(), store, nil)
	require.NoError(t, err)

	reader := tabular.NewCachedReader(store, tabular.NewMemoryCache(64, time.Minute), nil)
	catalog := models.NewCatalog(reader, nil)
	return &testEnv{
		mem:       mem,
		store:     store,
		reader:    reader,
		catalog:   catalog,
		purchases: models.NewPurchaseLedger(reader, nil),
		movements: models.NewMovementLedger(reader, catalog, nil),
		stock:     models.NewStockReconciler(reader, NewLocalStockLocker(nil), nil),
		subs:      models.NewSubscriptionRegistry(reader, nil),
	}
}

func (e *testEnv) addProduct(t *testing.T, name string, price, stock, minimum int64) *models.Product {
	t.Helper()
	current := decimal.NewFromInt(stock)
	floor := decimal.NewFromInt(minimum)
	p, err := e.catalog.Add(context.Background(), models.NewProduct{
		Name:         name,
		Price:        decimal.NewFromInt(price),
		StockCurrent: &current,
		StockMinimum: &floor,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) line(t *testing.T, p *models.Product, qty int64) models.LineItem {
	t.Helper()
	item, err := models.NewLineItem(p, decimal.NewFromInt(qty))
	require.NoError(t, err)
	return item
}

func (e *testEnv) stockOf(t *testing.T, name string) decimal.Decimal {
	t.Helper()
	p, err := e.catalog.FindByName(context.Background(), name)
	require.NoError(t, err)
	return p.StockCurrent
}

func (e *testEnv) records(t *testing.T, sheet string) []tabular.Record {
	t.Helper()
	values, err := e.mem.Values(context.Background(), sheet)
	require.NoError(t, err)
	_, records := tabular.Records(values)
	return records
}

// recordingTrigger counts DispatchAsync calls.
type recordingTrigger struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingTrigger) DispatchAsync(ctx context.Context) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *recordingTrigger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
