package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakePinger struct {
	err  error
	seen bool
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.seen = true
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline")
	}
	return f.err
}

func runHealth(t *testing.T, p Pinger) (*httptest.ResponseRecorder, HealthStatus) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	if err := HealthHandler("sqlite", p, time.Second)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec, status
}

func TestHealthHandler_Healthy(t *testing.T) {
	p := &fakePinger{}
	rec, status := runHealth(t, p)

	if !p.seen {
		t.Error("expected backend to be pinged")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if status.Status != "healthy" || status.Backend != "sqlite" || status.Pool != nil {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	rec, status := runHealth(t, &fakePinger{err: errors.New("database is locked")})

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if status.Status != "unhealthy" || status.Error != "database is locked" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestNewPool_BadURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "postgres://bad host:port/db", 0, 0); err == nil {
		t.Fatal("expected parse error")
	}
}
