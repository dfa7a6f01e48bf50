package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "donations_test_total",
		Help: "test counter",
	}).Inc()

	dbUp := true
	router := NewOpsRouter(reg, map[string]Check{
		"postgres": func(context.Context) error {
			if dbUp {
				return nil
			}
			return errors.New("connection refused")
		},
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	t.Run("healthz", func(t *testing.T) {
		rec := get("/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("readyz when dependencies are up", func(t *testing.T) {
		rec := get("/readyz")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"postgres":"ok"}`, rec.Body.String())
	})

	t.Run("readyz when a dependency is down", func(t *testing.T) {
		dbUp = false
		defer func() { dbUp = true }()

		rec := get("/readyz")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"postgres":"connection refused"}`, rec.Body.String())
	})

	t.Run("metrics", func(t *testing.T) {
		rec := get("/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "donations_test_total 1")
	})
}
