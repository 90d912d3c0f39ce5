package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/slotbook/scheduler/internal/platform/db"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if RequestIDFrom(c) == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := RequestIDFrom(c); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}
	RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	RequestID()(func(c echo.Context) error { return nil })(c)
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Errorf("expected a generated uuid, got %q", rec.Header().Get(RequestIDHeader))
	}
}

func decodeLog(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/calendar/day", nil)
	req = req.WithContext(db.WithBusinessID(req.Context(), 9))
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-1")

	err := Logger(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := decodeLog(t, &buf)
	if entry["level"] != "info" || entry["status"] != float64(200) || entry["business_id"] != float64(9) {
		t.Errorf("unexpected log entry %v", entry)
	}
	if entry["request_id"] != "req-1" || entry["path"] != "/api/v1/calendar/day" {
		t.Errorf("unexpected log entry %v", entry)
	}
}

func TestLogger_ErrorLevels(t *testing.T) {
	tests := []struct {
		code  int
		level string
	}{
		{http.StatusConflict, "warn"},
		{http.StatusInternalServerError, "error"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())

		Logger(zerolog.New(&buf))(func(c echo.Context) error {
			return echo.NewHTTPError(tt.code, "boom")
		})(c)

		entry := decodeLog(t, &buf)
		if entry["level"] != tt.level || entry["status"] != float64(tt.code) {
			t.Errorf("code %d: unexpected entry %v", tt.code, entry)
		}
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/panic", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("test panic")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecovery_PanicInsideTimeout(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	h := Recovery(zerolog.Nop())(RequestTimeout(time.Second)(func(c echo.Context) error {
		panic("boom")
	}))
	err := h(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 from a panic in the timed handler, got %v", err)
	}
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
		}
	}()
	Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic(http.ErrAbortHandler)
	})(c)
}

func TestAudit_LogsWrites(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/3/schedules", nil)
	req = req.WithContext(db.WithBusinessID(req.Context(), 4))
	c := e.NewContext(req, httptest.NewRecorder())

	Audit(zerolog.New(&buf))(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)

	entry := decodeLog(t, &buf)
	if entry["action"] != "update" || entry["resource"] != "providers" || entry["business_id"] != float64(4) {
		t.Errorf("unexpected audit entry %v", entry)
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/calendar/summary", nil), httptest.NewRecorder())

	Audit(zerolog.New(&buf))(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	if buf.Len() != 0 {
		t.Errorf("expected no audit entry for a read, got %s", buf.String())
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/api/v1/appointments":          "appointments",
		"/api/v1/appointments/12":       "appointments",
		"/api/v1/":                      "unknown",
		"/health":                       "unknown",
		"/api/v1/providers/1/schedules": "providers",
	}
	for path, want := range tests {
		if got := resourceOf(path); got != want {
			t.Errorf("resourceOf(%q) = %q, want %q", path, got, want)
		}
	}
}
