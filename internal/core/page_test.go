package core

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 5, 5},
		{26, 5, 6},
		{7, 1, 7},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.size), func(t *testing.T) {
			got := TotalPages(tt.total, tt.size)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total == 0, got == 0)
		})
	}
}

func TestPageValidateAndOffset(t *testing.T) {
	require.NoError(t, Page{Number: 1, Size: 10}.Validate())
	assert.Equal(t, 0, Page{Number: 1, Size: 10}.Offset())
	assert.Equal(t, 20, Page{Number: 3, Size: 10}.Offset())

	for _, p := range []Page{{0, 10}, {-1, 10}, {1, 0}, {1, -5}} {
		err := p.Validate()
		require.Error(t, err, "%+v", p)
		assert.Equal(t, KindValidation, KindOf(err))
	}
}

func TestEnvelopes(t *testing.T) {
	paged := Paged([]int{1, 2}, 12, Page{Number: 2, Size: 2})
	require.NotNil(t, paged.Page)
	assert.Equal(t, 2, *paged.Page)
	assert.Equal(t, 6, paged.TotalPages)
	assert.Equal(t, 12, paged.TotalRecords)

	empty := Paged[int](nil, 0, Page{Number: 1, Size: 10})
	assert.Empty(t, empty.Records)
	assert.NotNil(t, empty.Records)
	assert.Equal(t, 0, empty.TotalPages)

	all := Unpaged(make([]int, 57))
	assert.Nil(t, all.Page)
	assert.Equal(t, 57, all.TotalRecords)
	assert.Equal(t, 1, all.TotalPages)
	assert.Equal(t, 1, Unpaged[int](nil).TotalPages)
}

func TestFiltersKeysSorted(t *testing.T) {
	f := Filters{"name": "x", "category_id": 1, "id": 3}
	assert.Equal(t, []string{"category_id", "id", "name"}, f.Keys())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(&NotFoundError{Entity: "Wallet"}))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("wrap: %w", Invalid("page", "bad"))))
	assert.Equal(t, KindStorage, KindOf(&StorageError{Op: "insert", Err: fmt.Errorf("boom")}))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("other")))

	se := &StorageError{Op: "insert", Entity: "Transaction", Err: fmt.Errorf("FOREIGN KEY constraint failed")}
	assert.Equal(t, "storage: insert Transaction: FOREIGN KEY constraint failed", se.Error())
	assert.Equal(t, `entity "Wallet" not found`, (&NotFoundError{Entity: "Wallet"}).Error())
}

func TestSummarize(t *testing.T) {
	rows := []TransactionView{
		{CategoryName: CategoryIncome, SubcategoryName: "Salary", Amount: decimal.NewFromInt(1000)},
		{CategoryName: CategoryExpense, SubcategoryName: "Food", Amount: decimal.RequireFromString("12.50")},
		{CategoryName: CategoryExpense, SubcategoryName: "Food", Amount: decimal.RequireFromString("7.50")},
	}
	s := Summarize(rows)
	assert.Equal(t, 3, s.Count)
	assert.True(t, s.Income.Equal(decimal.NewFromInt(1000)))
	assert.True(t, s.Expense.Equal(decimal.NewFromInt(20)))
	assert.True(t, s.Balance().Equal(decimal.NewFromInt(980)))
	require.Len(t, s.ByCategory, 2)
	assert.Equal(t, "Food", s.ByCategory[1].Name)
	assert.True(t, s.ByCategory[1].Amount.Equal(decimal.NewFromInt(20)))
}
