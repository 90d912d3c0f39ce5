package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c).Normalize()

	if p.Page != DefaultPage {
		t.Errorf("expected default page %d, got %d", DefaultPage, p.Page)
	}
	if p.PageSize != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, p.PageSize)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&pageSize=25", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.PageSize != 25 {
		t.Errorf("expected page size 25, got %d", p.PageSize)
	}
}

func TestFromContext_SnakeCaseSize(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page_size=7", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if p := FromContext(c); p.PageSize != 7 {
		t.Errorf("expected page size 7, got %d", p.PageSize)
	}
}

func TestNormalize_Clamps(t *testing.T) {
	tests := []struct {
		in       Params
		wantPage int
		wantSize int
	}{
		{Params{Page: -1, PageSize: 0}, 1, 10},
		{Params{Page: 0, PageSize: -5}, 1, 10},
		{Params{Page: 4, PageSize: 2}, 4, 2},
		{Params{Page: 1, PageSize: 500}, 1, 500},
	}
	for _, tt := range tests {
		got := tt.in.Normalize()
		if got.Page != tt.wantPage || got.PageSize != tt.wantSize {
			t.Errorf("Normalize(%+v) = %+v, want page=%d size=%d", tt.in, got, tt.wantPage, tt.wantSize)
		}
	}
}

func TestTotalPages(t *testing.T) {
	p := Params{Page: 1, PageSize: 10}
	cases := map[int]int{0: 0, 1: 1, 10: 1, 11: 2, 25: 3}
	for total, want := range cases {
		if got := p.TotalPages(total); got != want {
			t.Errorf("TotalPages(%d) = %d, want %d", total, got, want)
		}
	}
}

func TestWindow(t *testing.T) {
	p := Params{Page: 2, PageSize: 3}
	start, end := p.Window(7)
	if start != 3 || end != 6 {
		t.Errorf("expected [3,6), got [%d,%d)", start, end)
	}

	start, end = Params{Page: 3, PageSize: 3}.Window(7)
	if start != 6 || end != 7 {
		t.Errorf("expected [6,7), got [%d,%d)", start, end)
	}

	start, end = Params{Page: 9, PageSize: 3}.Window(7)
	if start != 7 || end != 7 {
		t.Errorf("expected empty window past the end, got [%d,%d)", start, end)
	}
}

func TestHasNext(t *testing.T) {
	p := Params{Page: 1, PageSize: 10}
	if !p.HasNext(11) {
		t.Error("expected next page for 11 items")
	}
	if p.HasNext(10) {
		t.Error("expected no next page for 10 items")
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]int{1, 2}, 12, Params{Page: 1, PageSize: 10})
	if resp.TotalPages != 2 || !resp.HasNext || resp.TotalCount != 12 {
		t.Errorf("unexpected response %+v", resp)
	}
}
