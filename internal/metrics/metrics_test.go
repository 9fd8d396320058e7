package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	m := New()

	m.ObserveCache("daily", "fresh")
	m.ObserveCache("daily", "fresh")
	m.ObserveCache("categories", "miss")
	m.ObserveWrite("create", nil)
	m.ObserveWrite("create", errors.New("boom"))
	m.ObserveChange("deleted", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheOutcomes.WithLabelValues("daily", "fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheOutcomes.WithLabelValues("categories", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptWrites.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptWrites.WithLabelValues("create", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptChanges.WithLabelValues("deleted", "ok")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/receipts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/receipts/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/receipts/{id}", http.MethodGet, "404")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveCache("daily", "stale")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `resit_cache_lookups_total{cache="daily",outcome="stale"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
