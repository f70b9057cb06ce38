package tabular

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestRecords_SkipsBlankRowsKeepsRowNumbers(t *testing.T) {
	values := [][]interface{}{
		{"ID", "Name", "Price"},
		{1.0, "Rice", 2.5},
		{"", "", ""},
		{3.0, "Beans"},
	}
	headers, records := Records(values)

	assert.Equal(t, []string{"ID", "Name", "Price"}, headers)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Row)
	assert.Equal(t, "Rice", records[0].Get("Name"))
	assert.Equal(t, 4, records[1].Row)
	assert.Equal(t, "", records[1].Get("Price"))
}

func TestRowValues_FollowsHeaderOrder(t *testing.T) {
	row := RowValues([]string{"B", "A", "C"}, map[string]interface{}{"A": 1, "B": "x"})
	assert.Equal(t, []interface{}{"x", 1, ""}, row)
	assert.Equal(t, 2, ColumnIndex([]string{"B", "A"}, "A"))
	assert.Equal(t, 0, ColumnIndex([]string{"B", "A"}, "Z"))
}

func TestMemoryStore_AppendUpdateAndCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.AddSheet(ctx, "Products"))
	require.NoError(t, store.AppendRow(ctx, "Products", []interface{}{"ID", "Name"}))
	require.NoError(t, store.AppendRow(ctx, "Products", []interface{}{1, "Rice"}))
	require.NoError(t, store.UpdateCell(ctx, "Products", 2, 3, "extra"))

	values, err := store.Values(ctx, "Products")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, "Rice", "extra"}, values[1])

	values[1][1] = "mutated"
	again, _ := store.Values(ctx, "Products")
	assert.Equal(t, "Rice", again[1][1])

	_, err = store.Values(ctx, "Missing")
	assert.True(t, IsNotFound(err))
}

func TestMemoryStore_FailWrapsAsUnavailable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Seed("Products", []interface{}{"ID"})
	store.Fail("Products", errors.New("googleapi: Error 429: RATE_LIMIT_EXCEEDED"))

	_, err := store.Values(ctx, "Products")
	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ReasonRateLimited, ue.Reason)
	assert.Equal(t, "read", ue.Op)
	assert.NotEmpty(t, ue.Message())

	store.Recover("Products")
	_, err = store.Values(ctx, "Products")
	assert.NoError(t, err)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Reason
	}{
		{"google 429", &googleapi.Error{Code: http.StatusTooManyRequests}, ReasonRateLimited},
		{"google 404", &googleapi.Error{Code: http.StatusNotFound}, ReasonNotFound},
		{"bad range", &googleapi.Error{Code: http.StatusBadRequest, Message: "Unable to parse range: 'Nope'"}, ReasonNotFound},
		{"google 403", &googleapi.Error{Code: http.StatusForbidden}, ReasonPermissionDenied},
		{"quota text", errors.New("Quota exceeded for quota metric"), ReasonRateLimited},
		{"sentinel", ErrSheetNotFound, ReasonNotFound},
		{"permission text", errors.New("The caller does not have permission"), ReasonPermissionDenied},
		{"other", errors.New("connection reset"), ReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
	assert.Nil(t, Wrap("read", "x", nil))
}

func TestCachedReader_TokenControlsFreshness(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Seed("Products", []interface{}{"Name"}, []interface{}{"Rice"})
	reader := NewCachedReader(store, NewMemoryCache(16, time.Minute), nil)

	first, err := reader.Values(ctx, "Products", 0)
	require.NoError(t, err)
	require.Len(t, first, 2)

	require.NoError(t, store.AppendRow(ctx, "Products", []interface{}{"Beans"}))

	stale, err := reader.Values(ctx, "Products", 0)
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	fresh, err := reader.Values(ctx, "Products", 1)
	require.NoError(t, err)
	assert.Len(t, fresh, 3)

	stats := reader.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestCachedReader_DoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Seed("Products", []interface{}{"Name"})
	reader := NewCachedReader(store, NewMemoryCache(16, time.Minute), nil)

	store.Fail("Products", errors.New("boom"))
	_, err := reader.Values(ctx, "Products", 0)
	require.Error(t, err)

	store.Recover("Products")
	values, err := reader.Values(ctx, "Products", 0)
	require.NoError(t, err)
	assert.Len(t, values, 1)
}

func TestLocalGenerations_PerSheetAndNeverRepeats(t *testing.T) {
	g := NewLocalGenerations()
	ctx := context.Background()

	a, _ := g.Next(ctx, "Products")
	b, _ := g.Next(ctx, "Products")
	c, _ := g.Next(ctx, "Purchases")
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
	assert.Equal(t, int64(1), c)
}
