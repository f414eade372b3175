package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the wire format for transaction dates.
const TimestampLayout = "2006-01-02 15:04:05"

type (
	// User is keyed by its Telegram chat identifier. Transactions reference
	// TelegramID, not ID.
	User struct {
		ID         int64  `json:"id"`
		TelegramID int64  `json:"telegram_id"`
		Username   string `json:"username,omitempty"`
	}

	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Subcategory struct {
		ID         int64  `json:"id"`
		CategoryID int64  `json:"category_id"`
		Name       string `json:"name"`
	}

	// Transaction travels as JSON with Date in TimestampLayout and Amount
	// as a number; see MarshalJSON.
	Transaction struct {
		ID             int64           `json:"id"`
		Date           time.Time       `json:"date"`
		UserTelegramID int64           `json:"user_telegram_id"`
		CategoryID     int64           `json:"category_id"`
		SubcategoryID  int64           `json:"subcategory_id"`
		Amount         decimal.Decimal `json:"amount"`
		Comment        string          `json:"comment,omitempty"`
	}

	// TransactionView is a transaction joined with the names of the rows it
	// references.
	TransactionView struct {
		ID              int64
		Date            time.Time
		UserName        string
		CategoryName    string
		SubcategoryName string
		Amount          decimal.Decimal
		Comment         string
	}
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrMissingTelegram = errors.New("missing telegram id")
	ErrMissingCategory = errors.New("missing category")
	ErrMissingSubcat   = errors.New("missing subcategory")
	ErrMissingDate     = errors.New("missing date")
	ErrCommentTooLong  = errors.New("comment too long (max 500 characters)")
	ErrNameTooLong     = errors.New("name too long (max 100 characters)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrAmountRange     = errors.New("amount out of range (max 12 integer digits and 2 decimal places)")
)

// maxAmount is the first magnitude DECIMAL(14,2) cannot hold.
var maxAmount = decimal.New(1, 12)

func (u User) Validate() error {
	if u.TelegramID == 0 {
		return ErrMissingTelegram
	}
	return nil
}

func (c Category) Validate() error {
	return validateName(c.Name)
}

func (s Subcategory) Validate() error {
	if s.CategoryID == 0 {
		return ErrMissingCategory
	}
	return validateName(s.Name)
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if t.UserTelegramID == 0 {
		return ErrMissingTelegram
	}
	if t.CategoryID == 0 {
		return ErrMissingCategory
	}
	if t.SubcategoryID == 0 {
		return ErrMissingSubcat
	}
	if t.Amount.Abs().GreaterThanOrEqual(maxAmount) || !t.Amount.Equal(t.Amount.Truncate(2)) {
		return ErrAmountRange
	}
	if utf8.RuneCountInString(t.Comment) > 500 {
		return ErrCommentTooLong
	}
	return nil
}

type transactionFields Transaction

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		transactionFields
		Date   string      `json:"date"`
		Amount json.Number `json:"amount"`
	}{
		transactionFields: transactionFields(t),
		Date:              FormatTimestamp(t.Date),
		Amount:            json.Number(t.Amount.String()),
	})
}

// UnmarshalJSON accepts any layout ParseTimestamp does for date and a
// number or numeric string for amount. Unknown fields are rejected.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	aux := struct {
		*transactionFields
		Date *string `json:"date"`
	}{transactionFields: (*transactionFields)(t)}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	if aux.Date != nil {
		date, err := ParseTimestamp(*aux.Date)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		t.Date = date
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > 100 {
		return ErrNameTooLong
	}
	return nil
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout, a bare date or RFC3339.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimestampLayout, "2006-01-02", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp " + s)
}
