package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runReadiness(t *testing.T, checks ...Check) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := ReadinessHandler(nil, checks...)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec, body
}

func TestReadinessHandler_Healthy(t *testing.T) {
	rec, body := runReadiness(t, Check{Name: "redis", Fn: func(context.Context) error { return nil }})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	checks := body["checks"].(map[string]interface{})
	if checks["redis"] != "ok" {
		t.Errorf("expected redis ok, got %v", checks["redis"])
	}
	if _, ok := body["pool"]; ok {
		t.Error("expected no pool stats without a pool")
	}
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	rec, body := runReadiness(t,
		Check{Name: "redis", Fn: func(context.Context) error { return nil }},
		Check{Name: "kafka", Fn: func(context.Context) error { return errors.New("dial refused") }},
	)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected unhealthy, got %v", body["status"])
	}
	checks := body["checks"].(map[string]interface{})
	if checks["kafka"] != "dial refused" {
		t.Errorf("expected kafka error, got %v", checks["kafka"])
	}
}
