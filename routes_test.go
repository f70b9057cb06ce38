package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmdatafocus/shop_inventory/middlewares"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/notification"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/workflow"
)

type testServer struct {
	t       *testing.T
	api     *api
	router  *gin.Engine
	session string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	metrics := workflow.NewMetrics(reg)
	a := newAPI(tabular.NewMemoryStore(), tabular.NewMemoryCache(16, 0), tabular.NewLocalGenerations(), notification.NewLogSink(logger),
		workflow.NewLocalStockLocker(metrics), reg, metrics, logger)
	t.Cleanup(a.alerts.Wait)
	return &testServer{t: t, api: a, router: newRouter(a, logger)}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.session != "" {
		req.Header.Set(middlewares.SessionHeader, s.session)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if id := w.Header().Get(middlewares.SessionHeader); id != "" {
		s.session = id
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCheckoutOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/products", gin.H{"name": "Rice", "price": "10", "stockCurrent": "10", "stockMinimum": "5"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotEmpty(t, s.session)
	assert.NotEmpty(t, w.Header().Get(middlewares.CorrelationHeader))

	w = s.do(http.MethodPost, "/cart/items", gin.H{"productName": "Rice", "quantity": "6"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "60", decode(t, w)["total"])

	w = s.do(http.MethodPost, "/checkout", gin.H{"paymentMethod": "Pix"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decode(t, w)
	assert.Equal(t, "CMP0001", result["purchaseId"])
	assert.Len(t, result["critical"], 1)

	w = s.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["items"])

	w = s.do(http.MethodGet, "/products/critical", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var critical []models.CriticalProduct
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &critical))
	require.Len(t, critical, 1)
	assert.Equal(t, "Rice", critical[0].Name)
	assert.Equal(t, "4", critical[0].StockCurrent.String())

	w = s.do(http.MethodGet, "/purchases/receipts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var receipts []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipts))
	require.Len(t, receipts, 1)
	assert.Equal(t, "CMP0001", receipts[0]["purchaseId"])
	assert.Equal(t, "60", receipts[0]["total"])
}

func TestWriteIsVisibleToWriterWhileOthersHoldSnapshots(t *testing.T) {
	first := newTestServer(t)
	second := &testServer{t: t, api: first.api, router: first.router}
	countProducts := func(s *testServer) int {
		w := s.do(http.MethodGet, "/products", nil)
		require.Equal(t, http.StatusOK, w.Code)
		return len(decode(t, w)["products"].([]interface{}))
	}

	w := first.do(http.MethodPost, "/products", gin.H{"name": "Rice", "price": "10"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, 1, countProducts(first))

	w = second.do(http.MethodPost, "/products", gin.H{"name": "Beans", "price": "3"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEqual(t, first.session, second.session)
	assert.Equal(t, 2, countProducts(second))

	w = second.do(http.MethodPost, "/cart/items", gin.H{"productName": "Beans", "quantity": "1"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestEmptyCartCheckoutIsRejected(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestCartItemForUnknownProduct(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/cart/items", gin.H{"productName": "Ghost", "quantity": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidMovementIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/movements", gin.H{"kind": "sideways", "productName": "Rice", "quantity": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "kind", decode(t, w)["field"])

	w = s.do(http.MethodPost, "/movements", gin.H{"kind": 7, "productName": "Rice", "quantity": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "kind", decode(t, w)["field"])

	w = s.do(http.MethodPost, "/movements", gin.H{"kind": "Entry", "productName": "Rice", "quantity": "oops"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request", decode(t, w)["error"])
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decode(t, w)["error"])
}

func TestRespondErrorStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", models.NewValidationError("quantity", "must be positive"), http.StatusBadRequest},
		{"not found", &models.NotFoundError{Kind: "product", Key: "Rice"}, http.StatusNotFound},
		{"lock busy", workflow.ErrStockLockBusy, http.StatusConflict},
		{"rate limited", &tabular.UnavailableError{Op: "read", Sheet: "Products", Reason: tabular.ReasonRateLimited, Err: errors.New("429")}, http.StatusTooManyRequests},
		{"wrapped rate limited", fmt.Errorf("checkout: %w", &tabular.UnavailableError{Op: "append", Sheet: "Purchases", Reason: tabular.ReasonRateLimited, Err: errors.New("quota")}), http.StatusTooManyRequests},
		{"unavailable", &tabular.UnavailableError{Op: "read", Sheet: "Products", Reason: tabular.ReasonUnknown, Err: errors.New("eof")}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tc.err)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestProductImageKey(t *testing.T) {
	key := productImageKey("My Photo!.PNG", mustDate(t, "2026-03-09"))
	assert.Regexp(t, `^products/202603/my_photo_[0-9a-f]{8}\.jpg$`, key)
	assert.Equal(t, "products/202603/thumbnails/a.jpg", thumbnailObjectKey("products/202603/a.jpg"))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	require.NoError(t, err)
	return d
}
