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
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return FromContext(c)
}

func TestFromContextDefaults(t *testing.T) {
	p := paramsFor(t, "")
	if p.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", p.Limit, DefaultLimit)
	}
	if p.Offset != 0 {
		t.Errorf("Offset = %d, want 0", p.Offset)
	}
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"explicit values", "limit=50&offset=10", 50, 10},
		{"limit capped at max", "limit=500", MaxLimit, 0},
		{"zero limit ignored", "limit=0", DefaultLimit, 0},
		{"negative offset ignored", "offset=-5", DefaultLimit, 0},
		{"non-numeric ignored", "limit=abc&offset=xyz", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paramsFor(t, tt.query)
			if p.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", p.Limit, tt.wantLimit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", p.Offset, tt.wantOffset)
			}
		})
	}
}

func TestSQL(t *testing.T) {
	p := Params{Limit: 25, Offset: 50}
	got := p.SQL()
	want := " LIMIT 25 OFFSET 50"
	if got != want {
		t.Errorf("SQL() = %q, want %q", got, want)
	}
}

func TestHasNext(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		total int
		want  bool
	}{
		{"more pages remain", Params{Limit: 10, Offset: 0}, 25, true},
		{"last page exact", Params{Limit: 10, Offset: 10}, 20, false},
		{"past the end", Params{Limit: 10, Offset: 30}, 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext(%d) = %v, want %v", tt.total, got, tt.want)
			}
		})
	}
}

func TestOffsets(t *testing.T) {
	p := Params{Limit: 10, Offset: 15}
	if !p.HasPrevious() {
		t.Error("HasPrevious() = false, want true")
	}
	if got := p.NextOffset(); got != 25 {
		t.Errorf("NextOffset() = %d, want 25", got)
	}
	if got := p.PreviousOffset(); got != 5 {
		t.Errorf("PreviousOffset() = %d, want 5", got)
	}

	first := Params{Limit: 10, Offset: 5}
	if got := first.PreviousOffset(); got != 0 {
		t.Errorf("PreviousOffset() = %d, want 0", got)
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b"}
	resp := NewResponse(data, 12, Params{Limit: 2, Offset: 0})
	if resp.Total != 12 {
		t.Errorf("Total = %d, want 12", resp.Total)
	}
	if !resp.HasMore {
		t.Error("HasMore = false, want true")
	}
	if resp.Limit != 2 || resp.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want 2/0", resp.Limit, resp.Offset)
	}
}
