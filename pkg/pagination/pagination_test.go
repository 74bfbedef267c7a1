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
		query  string
		limit  int
		offset int
	}{
		{"", DefaultLimit, 0},
		{"limit=10&offset=30", 10, 30},
		{"limit=0", DefaultLimit, 0},
		{"limit=-5&offset=-1", DefaultLimit, 0},
		{"limit=5000", MaxLimit, 0},
		{"limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tc := range cases {
		p := paramsFor(t, tc.query)
		if p.Limit != tc.limit || p.Offset != tc.offset {
			t.Errorf("query %q: got limit=%d offset=%d, want %d/%d",
				tc.query, p.Limit, p.Offset, tc.limit, tc.offset)
		}
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if r := NewResponse(nil, 50, 20, 0); !r.HasMore {
		t.Error("expected has_more with 30 rows remaining")
	}
	if r := NewResponse(nil, 50, 20, 40); r.HasMore {
		t.Error("expected has_more false on the last page")
	}
	if r := NewResponse(nil, 0, 20, 0); r.HasMore {
		t.Error("expected has_more false for empty set")
	}
}
