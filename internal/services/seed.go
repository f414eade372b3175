package services

import (
	"context"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// Taxonomy maps a category name to its subcategory names.
type Taxonomy struct {
	Category      string
	Subcategories []string
}

// DefaultTaxonomy is the category tree created by Seed.
var DefaultTaxonomy = []Taxonomy{
	{
		Category:      core.CategoryIncome,
		Subcategories: []string{"Salary", "Investments", "Freelance", "Gifts", "Other"},
	},
	{
		Category: core.CategoryExpense,
		Subcategories: []string{
			"Food", "Transport", "Housing", "Clothing", "Health", "Entertainment",
			"Gifts", "Communication", "Travel", "Debts", "Other",
		},
	},
}

// Seed inserts tree in one unit of work. It does nothing when any category
// already exists and reports whether rows were written.
func (s *LedgerService) Seed(ctx context.Context, tree []Taxonomy) (bool, error) {
	seeded := false
	err := s.store.Write(ctx, func(q storage.Querier) error {
		existing, err := s.categories.FindMany(ctx, q, nil, core.Page{Number: 1, Size: 1})
		if err != nil {
			return err
		}
		if existing.TotalRecords > 0 {
			return nil
		}

		categories := make([]core.Category, len(tree))
		for i, node := range tree {
			categories[i] = core.Category{Name: node.Category}
		}
		created, err := s.categories.AddMany(ctx, q, categories)
		if err != nil {
			return err
		}

		var subs []core.Subcategory
		for i, node := range tree {
			for _, name := range node.Subcategories {
				subs = append(subs, core.Subcategory{CategoryID: created[i].ID, Name: name})
			}
		}
		if _, err := s.subcategories.AddMany(ctx, q, subs); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.invalidateTaxonomy("Category")
	}

	slog.InfoContext(ctx, "Seed finished",
		log.FieldOperation, log.OpSeed,
		"seeded", seeded)
	return seeded, nil
}
