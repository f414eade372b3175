package core

import "github.com/shopspring/decimal"

// Default category names created by the seed command. The sign of an amount
// is implied by which of the two it belongs to.
const (
	CategoryIncome  = "Income"
	CategoryExpense = "Expense"
)

// CategoryAmount represents an amount aggregated by subcategory name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// ReportSummary aggregates a set of transaction rows.
type ReportSummary struct {
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Count      int
	ByCategory []CategoryAmount
}

// Balance is income minus expense.
func (s ReportSummary) Balance() decimal.Decimal {
	return s.Income.Sub(s.Expense)
}

// Summarize totals rows by category. Rows whose category is not
// CategoryIncome count as expenses.
func Summarize(rows []TransactionView) ReportSummary {
	var s ReportSummary
	index := map[string]int{}
	for _, r := range rows {
		s.Count++
		if r.CategoryName == CategoryIncome {
			s.Income = s.Income.Add(r.Amount)
		} else {
			s.Expense = s.Expense.Add(r.Amount)
		}
		i, ok := index[r.SubcategoryName]
		if !ok {
			i = len(s.ByCategory)
			index[r.SubcategoryName] = i
			s.ByCategory = append(s.ByCategory, CategoryAmount{Name: r.SubcategoryName})
		}
		s.ByCategory[i].Amount = s.ByCategory[i].Amount.Add(r.Amount)
	}
	return s
}
