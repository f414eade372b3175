package storage

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

// Entity is a type-erased repository, used where the entity is chosen by
// name at runtime (HTTP routes, CLI). decode fills the pointer it is given
// with the caller's input.
type Entity interface {
	Name() string
	Table() string
	FindMany(ctx context.Context, q Querier, f core.Filters, p core.Page) (core.PageResult[any], error)
	AddOne(ctx context.Context, q Querier, decode func(any) error) (any, error)
	AddMany(ctx context.Context, q Querier, decode func(any) error) ([]any, error)
}

type erased[T any] struct {
	repo Repository[T]
}

func (e erased[T]) Name() string  { return e.repo.e.entity }
func (e erased[T]) Table() string { return e.repo.e.name }

func (e erased[T]) FindMany(ctx context.Context, q Querier, f core.Filters, p core.Page) (core.PageResult[any], error) {
	res, err := e.repo.FindMany(ctx, q, f, p)
	if err != nil {
		return core.PageResult[any]{}, err
	}
	return core.PageResult[any]{
		Records:      toAny(res.Records),
		TotalRecords: res.TotalRecords,
		TotalPages:   res.TotalPages,
		Page:         res.Page,
	}, nil
}

func (e erased[T]) AddOne(ctx context.Context, q Querier, decode func(any) error) (any, error) {
	var v T
	if err := decode(&v); err != nil {
		return nil, &core.ValidationError{Field: e.Name(), Reason: "decode record: " + err.Error()}
	}
	created, err := e.repo.AddOne(ctx, q, v)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (e erased[T]) AddMany(ctx context.Context, q Querier, decode func(any) error) ([]any, error) {
	var vs []T
	if err := decode(&vs); err != nil {
		return nil, &core.ValidationError{Field: e.Name(), Reason: "decode records: " + err.Error()}
	}
	created, err := e.repo.AddMany(ctx, q, vs)
	if err != nil {
		return nil, err
	}
	return toAny(created), nil
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

var registry = []Entity{
	erased[core.User]{NewUserRepository().Repository},
	erased[core.Category]{NewCategoryRepository()},
	erased[core.Subcategory]{NewSubcategoryRepository()},
	erased[core.Transaction]{NewTransactionRepository().Repository},
}

// Lookup resolves an entity by name or table name, case-insensitively.
func Lookup(name string) (Entity, error) {
	for _, e := range registry {
		if strings.EqualFold(e.Name(), name) || strings.EqualFold(e.Table(), name) {
			return e, nil
		}
	}
	return nil, &core.NotFoundError{Entity: name}
}

// EntityNames lists the registered entities in dependency order.
func EntityNames() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.Name()
	}
	return names
}
