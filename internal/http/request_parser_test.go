package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name     string
		query    url.Values
		want     core.Page
		wantErr  bool
		errField string
	}{
		{
			name:  "defaults",
			query: url.Values{},
			want:  core.Page{Number: 1, Size: 10},
		},
		{
			name:  "explicit values",
			query: url.Values{"page": {"3"}, "page_size": {"25"}},
			want:  core.Page{Number: 3, Size: 25},
		},
		{
			name:  "surrounding whitespace",
			query: url.Values{"page": {" 2 "}},
			want:  core.Page{Number: 2, Size: 10},
		},
		{
			name:     "non-numeric page",
			query:    url.Values{"page": {"two"}},
			wantErr:  true,
			errField: "page",
		},
		{
			name:     "non-numeric page size",
			query:    url.Values{"page_size": {"lots"}},
			wantErr:  true,
			errField: "page_size",
		},
		{
			name:     "page size above cap",
			query:    url.Values{"page_size": {"1001"}},
			wantErr:  true,
			errField: "page_size",
		},
		{
			// Range checks on small values happen in the engine.
			name:  "zero page passes through",
			query: url.Values{"page": {"0"}},
			want:  core.Page{Number: 0, Size: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePage(tt.query, 10)
			if tt.wantErr {
				var ve *core.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("ParsePage() error = %v, want ValidationError", err)
				}
				if ve.Field != tt.errField {
					t.Errorf("Field = %q, want %q", ve.Field, tt.errField)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParsePage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFilters(t *testing.T) {
	query := url.Values{
		"page":        {"2"},
		"page_size":   {"5"},
		"category_id": {" 1 ", "2"},
		"name":        {"Fo\x00od"},
	}

	f := ParseFilters(query, pageKeys...)
	if len(f) != 2 {
		t.Fatalf("len(filters) = %d, want 2: %v", len(f), f)
	}
	if f["category_id"] != "1" {
		t.Errorf("category_id = %v, want first value trimmed", f["category_id"])
	}
	if f["name"] != "Food" {
		t.Errorf("name = %q, want control characters stripped", f["name"])
	}

	if got := ParseFilters(url.Values{"page": {"1"}}, pageKeys...); got != nil {
		t.Errorf("ParseFilters() = %v, want nil when only reserved keys are present", got)
	}
}

func TestParseBool(t *testing.T) {
	q := url.Values{"yes": {"true"}, "no": {"0"}, "bad": {"maybe"}}

	if v, err := ParseBool(q, "missing", true); err != nil || !v {
		t.Errorf("missing key = %v, %v; want default true", v, err)
	}
	if v, err := ParseBool(q, "yes", false); err != nil || !v {
		t.Errorf("yes = %v, %v; want true", v, err)
	}
	if v, err := ParseBool(q, "no", true); err != nil || v {
		t.Errorf("no = %v, %v; want false", v, err)
	}
	if _, err := ParseBool(q, "bad", true); core.KindOf(err) != core.KindValidation {
		t.Errorf("bad = %v, want validation error", err)
	}
}

func TestParseBound(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{value: "", want: time.Time{}},
		{value: "2025-01-10 08:30:00", want: time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)},
		{value: "2025-01-10", want: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		{value: "2025-01-10T08:30:00Z", want: time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)},
		{value: "10/01/2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseBound(url.Values{"start_date": {tt.value}}, "start_date")
			if tt.wantErr {
				if core.KindOf(err) != core.KindValidation {
					t.Fatalf("ParseBound(%q) error = %v, want validation error", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBound(%q) error = %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseBound(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{"tab\tkept", "tab\tkept"},
		{"bell\x07gone", "bellgone"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJSONBody_Decode(t *testing.T) {
	decode := func(body string, v any) error {
		req := httptest.NewRequest(http.MethodPost, "/api/entities/categories", strings.NewReader(body))
		return NewJSONBody(httptest.NewRecorder(), req).Decode(v)
	}

	var c core.Category
	if err := decode(`{"name":"Income"}`, &c); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if c.Name != "Income" {
		t.Errorf("Name = %q, want Income", c.Name)
	}

	if err := decode("   ", &c); !errors.Is(err, errEmptyBody) {
		t.Errorf("empty body error = %v, want errEmptyBody", err)
	}
	if err := decode(`{"name":"A"}{"name":"B"}`, &c); !errors.Is(err, errTrailingData) {
		t.Errorf("trailing data error = %v, want errTrailingData", err)
	}
	if err := decode(`{"name":"A","colour":"red"}`, &c); err == nil {
		t.Error("expected unknown field to be rejected")
	}

	big := `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	if err := decode(big, &c); err == nil {
		t.Error("expected oversized body to be rejected")
	}
}

func TestJSONBody_DecodeTwice(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[{"name":"A"}]`))
	body := NewJSONBody(httptest.NewRecorder(), req)

	var first, second []core.Category
	if err := body.Decode(&first); err != nil {
		t.Fatalf("first Decode() error = %v", err)
	}
	if err := body.Decode(&second); err != nil {
		t.Fatalf("second Decode() error = %v", err)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Name != "A" {
		t.Errorf("decoded %v and %v, want the same single record", first, second)
	}
}
