package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const transactionViewSQL = `SELECT t.id AS id, t.date AS date, u.username AS user_name,
	c.name AS category_name, s.name AS subcategory_name, t.amount AS amount, t.comment AS comment
FROM transactions t
JOIN users u ON u.telegram_id = t.user_telegram_id
JOIN categories c ON c.id = t.category_id
JOIN subcategories s ON s.id = t.subcategory_id`

const viewColumns = "id, date, user_name, category_name, subcategory_name, amount, comment"

// TransactionRepository adds the joined listing and reports.
type TransactionRepository struct {
	Repository[core.Transaction]
}

func NewTransactionRepository() TransactionRepository {
	return TransactionRepository{Repository[core.Transaction]{e: transactionEntity}}
}

func scanView(r rowScanner) (core.TransactionView, error) {
	var (
		v        core.TransactionView
		date     timestamp
		userName sql.NullString
		comment  sql.NullString
	)
	err := r.Scan(&v.ID, &date, &userName, &v.CategoryName, &v.SubcategoryName, &v.Amount, &comment)
	v.Date = date.Time
	v.UserName = userName.String
	v.Comment = comment.String
	return v, err
}

// FindTransactions lists transactions joined with their user, category and
// subcategory names, ordered by date. Filter keys are resolved against
// transactions, users, categories and subcategories in that order.
//
// Unpaginated results carry every row and TotalPages == 1. Paginated
// results count and slice one CTE over the joined rows.
func (r TransactionRepository) FindTransactions(ctx context.Context, q Querier, tq core.TransactionQuery) (core.PageResult[core.TransactionView], error) {
	conds, args, err := predicates(tq.Filters, "transaction view", resolveJoined)
	if err != nil {
		return core.PageResult[core.TransactionView]{}, err
	}
	if !tq.Start.IsZero() && !tq.End.IsZero() && tq.Start.After(tq.End) {
		return core.PageResult[core.TransactionView]{}, core.Invalid("start_date", "after end_date")
	}
	if !tq.Start.IsZero() {
		conds = append(conds, "t.date >= ?")
		args = append(args, bindTime(tq.Start))
	}
	if !tq.End.IsZero() {
		conds = append(conds, "t.date <= ?")
		args = append(args, bindTime(tq.End))
	}
	base := transactionViewSQL + where(conds)

	if !tq.Paginate {
		rows, err := q.QueryContext(ctx, base+" ORDER BY t.date ASC, t.id ASC", args...)
		if err != nil {
			return core.PageResult[core.TransactionView]{}, r.storageErr("list view", err)
		}
		views, err := collect(rows, scanView)
		if err != nil {
			return core.PageResult[core.TransactionView]{}, r.storageErr("list view", err)
		}
		return core.Unpaged(views), nil
	}

	if err := tq.Page.Validate(); err != nil {
		return core.PageResult[core.TransactionView]{}, err
	}

	cte := "WITH filtered AS (" + base + ") "
	var total int
	if err := q.QueryRowContext(ctx, cte+"SELECT COUNT(*) FROM filtered", args...).Scan(&total); err != nil {
		return core.PageResult[core.TransactionView]{}, r.storageErr("count view", err)
	}

	pageSQL := cte + "SELECT " + viewColumns + " FROM filtered ORDER BY date ASC, id ASC LIMIT ? OFFSET ?"
	rows, err := q.QueryContext(ctx, pageSQL, append(args, tq.Page.Size, tq.Page.Offset())...)
	if err != nil {
		return core.PageResult[core.TransactionView]{}, r.storageErr("list view", err)
	}
	views, err := collect(rows, scanView)
	if err != nil {
		return core.PageResult[core.TransactionView]{}, r.storageErr("list view", err)
	}

	slog.DebugContext(ctx, "Transactions listed",
		"total", total,
		"page", tq.Page.Number,
		"page_size", tq.Page.Size,
		log.FieldOperation, log.OpList)

	return core.Paged(views, total, tq.Page), nil
}

// GetReport is the paginated transaction listing bounded by [start, end].
func (r TransactionRepository) GetReport(ctx context.Context, q Querier, start, end time.Time, f core.Filters, p core.Page) (core.PageResult[core.TransactionView], error) {
	return r.FindTransactions(ctx, q, core.TransactionQuery{
		Filters:  f,
		Paginate: true,
		Page:     p,
		Start:    start,
		End:      end,
	})
}
