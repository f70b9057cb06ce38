package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(SessionHeader, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionMiddlewareIssuesAndReusesSessions(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sessions := models.NewSessionStore(time.Hour, nil)
	migrations := 0
	migrate := func(ctx context.Context) error {
		migrations++
		return nil
	}

	r := gin.New()
	r.Use(SessionMiddleware(sessions, migrate, logger))
	r.GET("/ping", func(c *gin.Context) {
		id, _ := utils.GetSessionIdFromContext(c.Request.Context())
		c.String(http.StatusOK, id)
	})

	w := serve(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(SessionHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())

	w = serve(r, id)
	assert.Equal(t, id, w.Header().Get(SessionHeader))
	assert.Equal(t, 1, migrations, "schema is verified once per session")
	assert.Equal(t, 1, sessions.Len())
}

func TestSessionMiddlewareRetriesFailedMigration(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sessions := models.NewSessionStore(time.Hour, nil)
	fail := true
	migrate := func(ctx context.Context) error {
		if fail {
			return errors.New("quota exceeded")
		}
		return nil
	}

	r := gin.New()
	r.Use(SessionMiddleware(sessions, migrate, logger))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	id := w.Header().Get(SessionHeader)

	fail = false
	w = serve(r, id)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCorrelationMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.String(http.StatusOK, cid)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Body.String(), 36)
}

func TestHTTPMetricsUsesRouteTemplate(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.Middleware())
	r.DELETE("/cart/items/:index", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/cart/items/0", "/cart/items/3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, path, nil))
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodDelete, "/cart/items/:index", "204")))
}
