package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

// countThenWrite runs write right after the COUNT(*) of a listing has been
// read, before the page itself is fetched.
type countThenWrite struct {
	Querier
	write   func()
	counted bool
	written bool
}

func (q *countThenWrite) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if strings.Contains(query, "COUNT(*)") {
		q.counted = true
	}
	return q.Querier.QueryRowContext(ctx, query, args...)
}

func (q *countThenWrite) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if q.counted && !q.written {
		q.written = true
		q.write()
	}
	return q.Querier.QueryContext(ctx, query, args...)
}

// newSharedStores opens two pools on one sqlite file.
func newSharedStores(t *testing.T) (*Store, *Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open(Options{Driver: DriverSQLite, DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := Open(Options{Driver: DriverSQLite, DSN: path, SkipMigrations: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return a, b
}

func addCategory(t *testing.T, s *Store, name string) func() {
	return func() {
		ctx := context.Background()
		require.NoError(t, s.Write(ctx, func(q Querier) error {
			_, err := NewCategoryRepository().AddOne(ctx, q, core.Category{Name: name})
			return err
		}))
	}
}

func addSalary(t *testing.T, s *Store, day int) func() {
	return func() { addTransactions(t, s, salary(day, 10)) }
}

// Count and fetch are two statements. Inside one read unit of work they
// share a snapshot, so a concurrent commit is invisible to both. Without
// one, the fetch can see rows the count missed.
func TestCountAndFetchUnderConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	page := core.Page{Number: 1, Size: 10}

	t.Run("find many in a read unit of work", func(t *testing.T) {
		s, other := newSharedStores(t)
		seedTaxonomy(t, s)

		var res core.PageResult[core.Category]
		require.NoError(t, s.Read(ctx, func(q Querier) error {
			var err error
			res, err = NewCategoryRepository().FindMany(ctx, &countThenWrite{Querier: q, write: addCategory(t, other, "Savings")}, nil, page)
			return err
		}))
		assert.Equal(t, 2, res.TotalRecords)
		assert.Len(t, res.Records, 2)
		assert.Equal(t, 3, countRows(t, s, "categories"))
	})

	t.Run("find many without a unit of work", func(t *testing.T) {
		s, other := newSharedStores(t)
		seedTaxonomy(t, s)

		res, err := NewCategoryRepository().FindMany(ctx, &countThenWrite{Querier: s.db, write: addCategory(t, other, "Savings")}, nil, page)
		require.NoError(t, err)
		assert.Equal(t, 2, res.TotalRecords)
		assert.Len(t, res.Records, 3)
		assert.Equal(t, 1, res.TotalPages)
	})

	t.Run("transaction view in a read unit of work", func(t *testing.T) {
		s, other := newSharedStores(t)
		seedTaxonomy(t, s)
		addTransactions(t, s, salary(10, 1000))

		tq := core.TransactionQuery{Paginate: true, Page: page}
		var res core.PageResult[core.TransactionView]
		require.NoError(t, s.Read(ctx, func(q Querier) error {
			var err error
			res, err = NewTransactionRepository().FindTransactions(ctx, &countThenWrite{Querier: q, write: addSalary(t, other, 11)}, tq)
			return err
		}))
		assert.Equal(t, 1, res.TotalRecords)
		assert.Len(t, res.Records, 1)
		assert.Equal(t, 2, countRows(t, s, "transactions"))
	})

	t.Run("transaction view without a unit of work", func(t *testing.T) {
		s, other := newSharedStores(t)
		seedTaxonomy(t, s)
		addTransactions(t, s, salary(10, 1000))

		tq := core.TransactionQuery{Paginate: true, Page: page}
		res, err := NewTransactionRepository().FindTransactions(ctx, &countThenWrite{Querier: s.db, write: addSalary(t, other, 11)}, tq)
		require.NoError(t, err)
		assert.Equal(t, 1, res.TotalRecords)
		assert.Len(t, res.Records, 2)
	})
}
