package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:           time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		UserTelegramID: 1,
		CategoryID:     1,
		SubcategoryID:  1,
		Amount:         decimal.NewFromInt(1000),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		mutate func(*Transaction)
		want   error
	}{
		{func(tr *Transaction) { tr.Date = time.Time{} }, ErrMissingDate},
		{func(tr *Transaction) { tr.UserTelegramID = 0 }, ErrMissingTelegram},
		{func(tr *Transaction) { tr.CategoryID = 0 }, ErrMissingCategory},
		{func(tr *Transaction) { tr.SubcategoryID = 0 }, ErrMissingSubcat},
		{func(tr *Transaction) { tr.Comment = strings.Repeat("x", 501) }, ErrCommentTooLong},
		{func(tr *Transaction) { tr.Comment = strings.Repeat("ж", 500) }, nil},
		{func(tr *Transaction) { tr.Comment = strings.Repeat("ж", 501) }, ErrCommentTooLong},
		{func(tr *Transaction) { tr.Amount = decimal.RequireFromString("999999999999.99") }, nil},
		{func(tr *Transaction) { tr.Amount = decimal.RequireFromString("1000000000000") }, ErrAmountRange},
		{func(tr *Transaction) { tr.Amount = decimal.RequireFromString("99999999999999999.99") }, ErrAmountRange},
		{func(tr *Transaction) { tr.Amount = decimal.RequireFromString("12.345") }, ErrAmountRange},
		{func(tr *Transaction) { tr.Amount = decimal.RequireFromString("12.500") }, nil},
	}
	for i, tc := range cases {
		tr := good
		tc.mutate(&tr)
		if err := tr.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestNamedEntitiesValidate(t *testing.T) {
	if err := (Category{Name: "Income"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: "  "}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (Subcategory{Name: "Salary"}).Validate(); !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("expected ErrMissingCategory, got %v", err)
	}
	if err := (Subcategory{CategoryID: 1, Name: strings.Repeat("n", 101)}).Validate(); !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
	if err := (Category{Name: strings.Repeat("ж", 100)}).Validate(); err != nil {
		t.Fatalf("100 Cyrillic letters should fit, got %v", err)
	}
	if err := (Category{Name: strings.Repeat("ж", 101)}).Validate(); !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
	if err := (User{}).Validate(); !errors.Is(err, ErrMissingTelegram) {
		t.Fatalf("expected ErrMissingTelegram, got %v", err)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	if got := FormatTimestamp(ts); got != "2025-01-10 00:00:00" {
		t.Fatalf("format: got %q", got)
	}
	for _, in := range []string{"2025-01-10 00:00:00", "2025-01-10", "2025-01-10T00:00:00Z"} {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if !got.Equal(ts) {
			t.Fatalf("%q: got %v", in, got)
		}
	}
	if _, err := ParseTimestamp("10/01/2025"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestTransactionJSON(t *testing.T) {
	var tr Transaction
	in := `{"date":"2025-01-10 00:00:00","user_telegram_id":1,"category_id":1,"subcategory_id":1,"amount":1000,"comment":"зарплата"}`
	if err := json.Unmarshal([]byte(in), &tr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !tr.Date.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", tr.Date)
	}
	if !tr.Amount.Equal(decimal.NewFromInt(1000)) || tr.Comment != "зарплата" {
		t.Errorf("decoded %+v", tr)
	}

	raw, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if out["date"] != "2025-01-10 00:00:00" {
		t.Errorf("date = %v, want 2025-01-10 00:00:00", out["date"])
	}
	if out["amount"] != float64(1000) {
		t.Errorf("amount = %#v, want number 1000", out["amount"])
	}

	var again Transaction
	if err := json.Unmarshal(raw, &again); err != nil || !again.Date.Equal(tr.Date) || !again.Amount.Equal(tr.Amount) {
		t.Errorf("round trip = %+v, %v", again, err)
	}

	for _, bad := range []string{
		`{"date":"10/01/2025"}`,
		`{"amount":"ten"}`,
		`{"colour":"red"}`,
	} {
		var tr Transaction
		if err := json.Unmarshal([]byte(bad), &tr); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}

	var quoted Transaction
	if err := json.Unmarshal([]byte(`{"date":"2025-01-10T00:00:00Z","amount":"12.50"}`), &quoted); err != nil {
		t.Fatalf("RFC3339 date and quoted amount: %v", err)
	}
	if !quoted.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("amount = %s", quoted.Amount)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"1.005", "1.01", true},
		{" 2.50 ", "2.5", true},
		{"1000", "1000", true},
		{"-1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}
