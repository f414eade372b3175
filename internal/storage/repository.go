package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// refreshChunk bounds the IN list used to read back a batch.
const refreshChunk = 500

// Repository implements the generic operations for one entity. It holds no
// state beyond its descriptor; the unit of work is passed to every call.
type Repository[T any] struct {
	e *entity[T]
}

// Name is the entity name, e.g. "Transaction".
func (r Repository[T]) Name() string { return r.e.entity }

func (r Repository[T]) storageErr(op string, err error) error {
	return &core.StorageError{Op: op, Entity: r.e.entity, Err: err}
}

// FindMany returns one page of records matching f, ordered by id.
func (r Repository[T]) FindMany(ctx context.Context, q Querier, f core.Filters, p core.Page) (core.PageResult[T], error) {
	if err := p.Validate(); err != nil {
		return core.PageResult[T]{}, err
	}
	conds, args, err := predicates(f, r.e.entity, r.e.resolveOwn)
	if err != nil {
		return core.PageResult[T]{}, err
	}
	cond := where(conds)

	var total int
	countSQL := "SELECT COUNT(*) FROM " + r.e.name + cond
	if err := q.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return core.PageResult[T]{}, r.storageErr("count", err)
	}

	pageSQL := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY id ASC LIMIT ? OFFSET ?", r.e.selectList(false), r.e.name, cond)
	rows, err := q.QueryContext(ctx, pageSQL, append(args, p.Size, p.Offset())...)
	if err != nil {
		return core.PageResult[T]{}, r.storageErr("list", err)
	}
	records, err := collect(rows, r.e.scan)
	if err != nil {
		return core.PageResult[T]{}, r.storageErr("list", err)
	}

	slog.DebugContext(ctx, "Records listed",
		"entity", r.e.entity,
		"total", total,
		"page", p.Number,
		"page_size", p.Size,
		log.FieldOperation, log.OpList)

	return core.Paged(records, total, p), nil
}

// Get reads one record by primary key.
func (r Repository[T]) Get(ctx context.Context, q Querier, id int64) (T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", r.e.selectList(false), r.e.name)
	v, err := r.e.scan(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return v, &core.NotFoundError{Entity: r.e.entity, Key: fmt.Sprintf("id=%d", id)}
	}
	if err != nil {
		return v, r.storageErr("get", err)
	}
	return v, nil
}

// AddOne inserts v and returns it as stored, generated id included.
func (r Repository[T]) AddOne(ctx context.Context, q Querier, v T) (T, error) {
	var zero T
	if err := r.e.validate(v); err != nil {
		return zero, &core.ValidationError{Field: r.e.entity, Reason: err.Error()}
	}

	res, err := q.ExecContext(ctx, r.e.insertSQL(), r.e.values(v)...)
	if err != nil {
		slog.ErrorContext(ctx, "Insert failed",
			"entity", r.e.entity,
			"error", err,
			"error_type", log.ErrorTypeDatabase)
		return zero, r.storageErr("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return zero, r.storageErr("insert", err)
	}

	created, err := r.Get(ctx, q, id)
	if err != nil {
		return zero, err
	}

	slog.InfoContext(ctx, "Record inserted", "entity", r.e.entity, "id", id, log.FieldOperation, log.OpCreate)
	return created, nil
}

// AddMany inserts vs in order. The caller's unit of work makes the batch
// atomic: on error nothing of it must be committed.
func (r Repository[T]) AddMany(ctx context.Context, q Querier, vs []T) ([]T, error) {
	if len(vs) == 0 {
		return []T{}, nil
	}
	for i, v := range vs {
		if err := r.e.validate(v); err != nil {
			return nil, &core.ValidationError{Field: fmt.Sprintf("%s[%d]", r.e.entity, i), Reason: err.Error()}
		}
	}

	stmt, err := q.PrepareContext(ctx, r.e.insertSQL())
	if err != nil {
		return nil, r.storageErr("prepare insert", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(vs))
	for i, v := range vs {
		res, err := stmt.ExecContext(ctx, r.e.values(v)...)
		if err != nil {
			slog.ErrorContext(ctx, "Batch insert failed",
				"entity", r.e.entity,
				"row", i,
				"batch_size", len(vs),
				"error", err,
				"error_type", log.ErrorTypeDatabase)
			return nil, r.storageErr(fmt.Sprintf("insert row %d", i), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, r.storageErr("insert", err)
		}
		ids = append(ids, id)
	}

	created, err := r.refresh(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Records inserted", "entity", r.e.entity, "count", len(created), log.FieldOperation, log.OpCreate)
	return created, nil
}

// refresh reads back ids, returning records in the order of ids.
func (r Repository[T]) refresh(ctx context.Context, q Querier, ids []int64) ([]T, error) {
	byID := make(map[int64]T, len(ids))
	for start := 0; start < len(ids); start += refreshChunk {
		end := min(start+refreshChunk, len(ids))
		chunk := ids[start:end]

		marks := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := fmt.Sprintf("SELECT %s FROM %s WHERE id IN (%s)", r.e.selectList(false), r.e.name, marks)
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, r.storageErr("refresh", err)
		}
		records, err := collect(rows, r.e.scan)
		if err != nil {
			return nil, r.storageErr("refresh", err)
		}
		for _, rec := range records {
			byID[r.e.id(rec)] = rec
		}
	}

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			return nil, r.storageErr("refresh", fmt.Errorf("inserted row %d not readable", id))
		}
		out = append(out, rec)
	}
	return out, nil
}

// UserRepository adds the lookup by Telegram id.
type UserRepository struct {
	Repository[core.User]
}

func NewUserRepository() UserRepository {
	return UserRepository{Repository[core.User]{e: userEntity}}
}

// FindUser looks a user up by Telegram id. A missing user is reported with
// found == false, not an error.
func (r UserRepository) FindUser(ctx context.Context, q Querier, telegramID int64) (core.User, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE telegram_id = ?", r.e.selectList(false))
	u, err := r.e.scan(q.QueryRowContext(ctx, query, telegramID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, r.storageErr("find user", err)
	}
	return u, true, nil
}

func NewCategoryRepository() Repository[core.Category] {
	return Repository[core.Category]{e: categoryEntity}
}

func NewSubcategoryRepository() Repository[core.Subcategory] {
	return Repository[core.Subcategory]{e: subcategoryEntity}
}
