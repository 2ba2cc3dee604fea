package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=10&offset=30", 10, 30},
		{"limit=9999", MaxLimit, 0},
		{"limit=-5&offset=-5", DefaultLimit, 0},
		{"limit=abc", DefaultLimit, 0},
	}
	for _, tc := range cases {
		p := paramsFor(t, tc.query)
		if p.Limit != tc.wantLimit || p.Offset != tc.wantOffset {
			t.Errorf("query %q: got limit=%d offset=%d, want limit=%d offset=%d",
				tc.query, p.Limit, p.Offset, tc.wantLimit, tc.wantOffset)
		}
	}
}

func TestHasNext(t *testing.T) {
	p := Params{Limit: 10, Offset: 20}
	if !p.HasNext(31) {
		t.Error("expected more pages when total exceeds offset+limit")
	}
	if p.HasNext(30) {
		t.Error("expected no more pages when total equals offset+limit")
	}
	if p.NextOffset() != 30 {
		t.Errorf("expected next offset 30, got %d", p.NextOffset())
	}
}
