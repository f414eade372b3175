package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type columnKind int

const (
	kindInt columnKind = iota
	kindText
	kindDecimal
	kindTime
)

type column struct {
	name string
	kind columnKind
}

// table describes the columns of one entity. columns[0] is always the
// generated primary key.
type table struct {
	entity  string
	name    string
	alias   string
	columns []column
}

func (t *table) column(key string) (column, bool) {
	for _, c := range t.columns {
		if c.name == key {
			return c, true
		}
	}
	return column{}, false
}

func (t *table) selectList(qualified bool) string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		if qualified {
			names[i] = t.alias + "." + c.name
		} else {
			names[i] = c.name
		}
	}
	return strings.Join(names, ", ")
}

func (t *table) insertSQL() string {
	cols := t.columns[1:]
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(names, ", "), strings.Join(marks, ", "))
}

type rowScanner interface {
	Scan(dest ...any) error
}

// entity binds a table to the Go type stored in it.
type entity[T any] struct {
	*table
	scan     func(rowScanner) (T, error)
	values   func(T) []any
	validate func(T) error
	id       func(T) int64
}

var (
	usersTable = &table{
		entity: "User", name: "users", alias: "u",
		columns: []column{{"id", kindInt}, {"telegram_id", kindInt}, {"username", kindText}},
	}
	categoriesTable = &table{
		entity: "Category", name: "categories", alias: "c",
		columns: []column{{"id", kindInt}, {"name", kindText}},
	}
	subcategoriesTable = &table{
		entity: "Subcategory", name: "subcategories", alias: "s",
		columns: []column{{"id", kindInt}, {"category_id", kindInt}, {"name", kindText}},
	}
	transactionsTable = &table{
		entity: "Transaction", name: "transactions", alias: "t",
		columns: []column{
			{"id", kindInt}, {"date", kindTime}, {"user_telegram_id", kindInt},
			{"category_id", kindInt}, {"subcategory_id", kindInt},
			{"amount", kindDecimal}, {"comment", kindText},
		},
	}
)

var userEntity = &entity[core.User]{
	table: usersTable,
	scan: func(r rowScanner) (core.User, error) {
		var u core.User
		var username sql.NullString
		err := r.Scan(&u.ID, &u.TelegramID, &username)
		u.Username = username.String
		return u, err
	},
	values: func(u core.User) []any {
		return []any{u.TelegramID, nullString(u.Username)}
	},
	validate: core.User.Validate,
	id:       func(u core.User) int64 { return u.ID },
}

var categoryEntity = &entity[core.Category]{
	table: categoriesTable,
	scan: func(r rowScanner) (core.Category, error) {
		var c core.Category
		err := r.Scan(&c.ID, &c.Name)
		return c, err
	},
	values:   func(c core.Category) []any { return []any{strings.TrimSpace(c.Name)} },
	validate: core.Category.Validate,
	id:       func(c core.Category) int64 { return c.ID },
}

var subcategoryEntity = &entity[core.Subcategory]{
	table: subcategoriesTable,
	scan: func(r rowScanner) (core.Subcategory, error) {
		var s core.Subcategory
		err := r.Scan(&s.ID, &s.CategoryID, &s.Name)
		return s, err
	},
	values: func(s core.Subcategory) []any {
		return []any{s.CategoryID, strings.TrimSpace(s.Name)}
	},
	validate: core.Subcategory.Validate,
	id:       func(s core.Subcategory) int64 { return s.ID },
}

var transactionEntity = &entity[core.Transaction]{
	table: transactionsTable,
	scan: func(r rowScanner) (core.Transaction, error) {
		var t core.Transaction
		var date timestamp
		var comment sql.NullString
		err := r.Scan(&t.ID, &date, &t.UserTelegramID, &t.CategoryID, &t.SubcategoryID, &t.Amount, &comment)
		t.Date = date.Time
		t.Comment = comment.String
		return t, err
	},
	values: func(t core.Transaction) []any {
		return []any{bindTime(t.Date), t.UserTelegramID, t.CategoryID, t.SubcategoryID, t.Amount, nullString(t.Comment)}
	},
	validate: core.Transaction.Validate,
	id:       func(t core.Transaction) int64 { return t.ID },
}

// joinOrder is the order in which the joined transaction view resolves
// filter keys: the first table declaring the attribute wins.
var joinOrder = []*table{transactionsTable, usersTable, categoriesTable, subcategoriesTable}

// predicates turns equality filters into SQL conditions. resolve maps a key
// to its qualified column expression; unknown keys are rejected.
func predicates(f core.Filters, scope string, resolve func(string) (string, column, bool)) ([]string, []any, error) {
	var (
		conds []string
		args  []any
	)
	for _, key := range f.Keys() {
		expr, col, ok := resolve(key)
		if !ok {
			return nil, nil, &core.ValidationError{Field: key, Reason: "unknown filter for " + scope}
		}
		v := f[key]
		if v == nil {
			conds = append(conds, expr+" IS NULL")
			continue
		}
		arg, err := coerce(col, v)
		if err != nil {
			return nil, nil, &core.ValidationError{Field: key, Reason: err.Error()}
		}
		conds = append(conds, expr+" = ?")
		args = append(args, arg)
	}
	return conds, args, nil
}

func (t *table) resolveOwn(key string) (string, column, bool) {
	c, ok := t.column(key)
	return c.name, c, ok
}

func resolveJoined(key string) (string, column, bool) {
	for _, t := range joinOrder {
		if c, ok := t.column(key); ok {
			return t.alias + "." + c.name, c, true
		}
	}
	return "", column{}, false
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// coerce converts a filter value to the bind value of its column.
func coerce(c column, v any) (any, error) {
	switch c.kind {
	case kindInt:
		return toInt64(v)
	case kindText:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		}
		return nil, fmt.Errorf("expected text, got %T", v)
	case kindDecimal:
		d, err := toDecimal(v)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	case kindTime:
		switch t := v.(type) {
		case time.Time:
			return bindTime(t), nil
		case string:
			parsed, err := core.ParseTimestamp(t)
			if err != nil {
				return nil, err
			}
			return bindTime(parsed), nil
		}
		return nil, fmt.Errorf("expected timestamp, got %T", v)
	}
	return nil, fmt.Errorf("unsupported column kind %d", c.kind)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	}
	return decimal.Zero, fmt.Errorf("expected number, got %T", v)
}
