package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/slotbook/scheduler/internal/platform/db"
)

func newTestHandler() (*Handler, *mockRepo, *mockSeeder, *echo.Echo) {
	svc, repo, seeder := newTestService()
	return NewHandler(svc), repo, seeder, echo.New()
}

func scopedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(db.WithBusinessID(req.Context(), 1))
}

func TestHandler_CreateProvider(t *testing.T) {
	h, _, seeder, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(scopedRequest(http.MethodPost, "/providers", `{"name":"Alice Stone"}`), rec)

	if err := h.CreateProvider(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Provider
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.ID == 0 || p.Name != "Alice Stone" {
		t.Errorf("unexpected body %+v", p)
	}
	if len(seeder.seeded) != 1 {
		t.Error("expected default schedule")
	}
}

func TestHandler_CreateProvider_BadRequest(t *testing.T) {
	h, _, _, e := newTestHandler()
	c := e.NewContext(scopedRequest(http.MethodPost, "/providers", `{}`), httptest.NewRecorder())

	err := h.CreateProvider(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetProvider(t *testing.T) {
	h, repo, _, e := newTestHandler()
	repo.items[4] = &Provider{ID: 4, BusinessID: 1, Name: "Bob", IsActive: true}
	repo.items[5] = &Provider{ID: 5, BusinessID: 2, Name: "Other", IsActive: true}

	rec := httptest.NewRecorder()
	c := e.NewContext(scopedRequest(http.MethodGet, "/", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues("4")
	if err := h.GetProvider(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(scopedRequest(http.MethodGet, "/", ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("5")
	err := h.GetProvider(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListProviders(t *testing.T) {
	h, repo, _, e := newTestHandler()
	repo.items[1] = &Provider{ID: 1, BusinessID: 1, Name: "A", IsActive: true}
	repo.items[2] = &Provider{ID: 2, BusinessID: 1, Name: "B", IsActive: false}
	repo.items[3] = &Provider{ID: 3, BusinessID: 1, Name: "C", IsActive: true}

	rec := httptest.NewRecorder()
	c := e.NewContext(scopedRequest(http.MethodGet, "/providers?pageSize=1", ""), rec)
	if err := h.ListProviders(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Items      []Provider `json:"items"`
		TotalCount int        `json:"totalCount"`
		HasNext    bool       `json:"hasNext"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.TotalCount != 2 || len(body.Items) != 1 || !body.HasNext {
		t.Errorf("unexpected list %+v", body)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(scopedRequest(http.MethodGet, "/providers?active=false", ""), rec)
	h.ListProviders(c)
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.TotalCount != 3 {
		t.Errorf("expected inactive providers included, got %d", body.TotalCount)
	}
}

func TestHandler_Deactivate(t *testing.T) {
	h, repo, _, e := newTestHandler()
	repo.items[1] = &Provider{ID: 1, BusinessID: 1, Name: "A", IsActive: true}

	rec := httptest.NewRecorder()
	c := e.NewContext(scopedRequest(http.MethodPost, "/", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.DeactivateProvider(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent || repo.items[1].IsActive {
		t.Errorf("expected provider deactivated, got code %d", rec.Code)
	}
}
