package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errMissing = errors.New("missing")

func TestMetrics_CountsRequests(t *testing.T) {
	m := NewMetrics(nil)
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		if c.Param("id") == "nope" {
			return echo.NewHTTPError(http.StatusNotFound, "patient nope not found")
		}
		return c.String(http.StatusOK, "ok")
	})

	for _, path := range []string{"/api/v1/patients/P-1", "/api/v1/patients/P-2", "/api/v1/patients/nope"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/patients/:id", "200")); got != 2 {
		t.Errorf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/patients/:id", "404")); got != 1 {
		t.Errorf("expected 1 not found request, got %v", got)
	}
}

func TestMetrics_ObserveMutation(t *testing.T) {
	m := NewMetrics(OutcomeClassifier(map[string]error{"not_found": errMissing}))

	m.ObserveMutation("order", "create", nil)
	m.ObserveMutation("order", "update", errMissing)
	m.ObserveMutation("order", "update", errors.New("disk full"))

	if got := testutil.ToFloat64(m.mutations.WithLabelValues("order", "create", "ok")); got != 1 {
		t.Errorf("ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("order", "update", "not_found")); got != 1 {
		t.Errorf("not_found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("order", "update", "error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveMutation("patient", "create", nil)

	e := echo.New()
	e.GET("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `clinic_store_mutations_total{entity="patient",op="create",outcome="ok"} 1`) {
		t.Errorf("expected mutation counter in exposition:\n%s", rec.Body.String())
	}
}
