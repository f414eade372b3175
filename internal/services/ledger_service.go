package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// EventPublisher announces committed transactions. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, tx core.Transaction) error
	Close() error
}

// LedgerService opens one unit of work per call and runs a single engine
// operation inside it. Events are published only after the commit.
type LedgerService struct {
	store     *storage.Store
	publisher EventPublisher
	now       core.Clock

	users         storage.UserRepository
	categories    storage.Repository[core.Category]
	subcategories storage.Repository[core.Subcategory]
	transactions  storage.TransactionRepository

	// Taxonomy lookups made by the bot on every category choice.
	categoryCache    *cache.LRUCache[core.Category]
	subcategoryCache *cache.LRUCache[[]core.Subcategory]
}

const (
	taxonomyCacheSize = 64
	taxonomyCacheTTL  = 10 * time.Minute
)

// NewLedgerService wires the repositories around store. publisher may be nil.
func NewLedgerService(store *storage.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:         store,
		publisher:     publisher,
		now:           time.Now,
		users:         storage.NewUserRepository(),
		categories:    storage.NewCategoryRepository(),
		subcategories: storage.NewSubcategoryRepository(),
		transactions:  storage.NewTransactionRepository(),

		categoryCache:    cache.NewLRUCache[core.Category](taxonomyCacheSize, taxonomyCacheTTL),
		subcategoryCache: cache.NewLRUCache[[]core.Subcategory](taxonomyCacheSize, taxonomyCacheTTL),
	}
}

// Caches lists the service's caches for periodic expiry.
func (s *LedgerService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.categoryCache, s.subcategoryCache}
}

// invalidateTaxonomy drops cached lookups after a write to entity.
func (s *LedgerService) invalidateTaxonomy(entity string) {
	switch entity {
	case "Category", "Subcategory":
		s.categoryCache.Clear()
		s.subcategoryCache.Clear()
	}
}

// WithClock replaces the time source used to resolve periods and to date
// transactions recorded without a date.
func (s *LedgerService) WithClock(clock core.Clock) *LedgerService {
	s.now = clock
	return s
}

// Entities lists the entity names accepted by List, AddOne and AddMany.
func (s *LedgerService) Entities() []string {
	return storage.EntityNames()
}

// List returns one page of the named entity's records.
func (s *LedgerService) List(ctx context.Context, entity string, f core.Filters, p core.Page) (core.PageResult[any], error) {
	e, err := storage.Lookup(entity)
	if err != nil {
		return core.PageResult[any]{}, err
	}

	var res core.PageResult[any]
	err = s.store.Read(ctx, func(q storage.Querier) error {
		var err error
		res, err = e.FindMany(ctx, q, f, p)
		return err
	})
	return res, err
}

// FindUser reports whether a user with telegramID exists.
func (s *LedgerService) FindUser(ctx context.Context, telegramID int64) (core.User, bool, error) {
	var (
		user  core.User
		found bool
	)
	err := s.store.Read(ctx, func(q storage.Querier) error {
		var err error
		user, found, err = s.users.FindUser(ctx, q, telegramID)
		return err
	})
	return user, found, err
}

// AddOne decodes and inserts a single record of the named entity.
func (s *LedgerService) AddOne(ctx context.Context, entity string, decode func(any) error) (any, error) {
	e, err := storage.Lookup(entity)
	if err != nil {
		return nil, err
	}

	var created any
	err = s.store.Write(ctx, func(q storage.Querier) error {
		var err error
		created, err = e.AddOne(ctx, q, decode)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateTaxonomy(e.Name())

	if tx, ok := created.(core.Transaction); ok {
		s.announce(ctx, tx)
	}
	return created, nil
}

// AddMany decodes and inserts a batch of the named entity. Either every
// record is stored or none is.
func (s *LedgerService) AddMany(ctx context.Context, entity string, decode func(any) error) ([]any, error) {
	e, err := storage.Lookup(entity)
	if err != nil {
		return nil, err
	}

	var created []any
	err = s.store.Write(ctx, func(q storage.Querier) error {
		var err error
		created, err = e.AddMany(ctx, q, decode)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateTaxonomy(e.Name())

	for _, rec := range created {
		if tx, ok := rec.(core.Transaction); ok {
			s.announce(ctx, tx)
		}
	}
	return created, nil
}

// TransactionRequest selects transactions either by period token or by
// explicit bounds. Zero bounds are open.
type TransactionRequest struct {
	Period   string
	Start    time.Time
	End      time.Time
	Filters  core.Filters
	Paginate bool
	Page     core.Page
}

func (s *LedgerService) bounds(req TransactionRequest) (time.Time, time.Time, error) {
	if req.Period == "" {
		return req.Start, req.End, nil
	}
	if !req.Start.IsZero() || !req.End.IsZero() {
		return time.Time{}, time.Time{}, core.Invalid("period", "cannot be combined with start_date or end_date")
	}
	return core.ResolvePeriod(req.Period, s.now())
}

// Transactions lists joined transaction rows ordered by date.
func (s *LedgerService) Transactions(ctx context.Context, req TransactionRequest) (core.PageResult[core.TransactionView], error) {
	start, end, err := s.bounds(req)
	if err != nil {
		return core.PageResult[core.TransactionView]{}, err
	}

	var res core.PageResult[core.TransactionView]
	err = s.store.Read(ctx, func(q storage.Querier) error {
		var err error
		res, err = s.transactions.FindTransactions(ctx, q, core.TransactionQuery{
			Filters:  req.Filters,
			Paginate: req.Paginate,
			Page:     req.Page,
			Start:    start,
			End:      end,
		})
		return err
	})
	return res, err
}

// Report returns one page of transactions dated within period.
func (s *LedgerService) Report(ctx context.Context, period string, f core.Filters, p core.Page) (core.PageResult[core.TransactionView], error) {
	start, end, err := core.ResolvePeriod(period, s.now())
	if err != nil {
		return core.PageResult[core.TransactionView]{}, err
	}

	var res core.PageResult[core.TransactionView]
	err = s.store.Read(ctx, func(q storage.Querier) error {
		var err error
		res, err = s.transactions.GetReport(ctx, q, start, end, f, p)
		return err
	})
	if err == nil {
		slog.DebugContext(ctx, "Report generated",
			log.FieldOperation, log.OpReport,
			log.FieldPeriod, period,
			"total", res.TotalRecords)
	}
	return res, err
}

// Summary totals every transaction in period and returns the rows it read,
// oldest first.
func (s *LedgerService) Summary(ctx context.Context, period string, f core.Filters) (core.ReportSummary, []core.TransactionView, error) {
	res, err := s.Transactions(ctx, TransactionRequest{Period: period, Filters: f})
	if err != nil {
		return core.ReportSummary{}, nil, err
	}
	return core.Summarize(res.Records), res.Records, nil
}

// RegisterUser returns the user with telegramID, creating it when absent.
// created reports whether a row was inserted.
func (s *LedgerService) RegisterUser(ctx context.Context, telegramID int64, username string) (user core.User, created bool, err error) {
	err = s.store.Write(ctx, func(q storage.Querier) error {
		existing, found, err := s.users.FindUser(ctx, q, telegramID)
		if err != nil {
			return err
		}
		if found {
			user = existing
			return nil
		}
		user, err = s.users.AddOne(ctx, q, core.User{TelegramID: telegramID, Username: username})
		created = err == nil
		return err
	})
	return user, created, err
}

// CategoryByName returns the category called name.
func (s *LedgerService) CategoryByName(ctx context.Context, name string) (core.Category, error) {
	if c, ok := s.categoryCache.Get(name); ok {
		return c, nil
	}

	var res core.PageResult[core.Category]
	err := s.store.Read(ctx, func(q storage.Querier) error {
		var err error
		res, err = s.categories.FindMany(ctx, q, core.Filters{"name": name}, core.Page{Number: 1, Size: 1})
		return err
	})
	if err != nil {
		return core.Category{}, err
	}
	if len(res.Records) == 0 {
		return core.Category{}, &core.NotFoundError{Entity: "Category", Key: name}
	}
	s.categoryCache.Set(name, res.Records[0])
	return res.Records[0], nil
}

// Subcategories lists every subcategory of categoryID ordered by id.
func (s *LedgerService) Subcategories(ctx context.Context, categoryID int64) ([]core.Subcategory, error) {
	const pageSize = 100

	key := strconv.FormatInt(categoryID, 10)
	if subs, ok := s.subcategoryCache.Get(key); ok {
		return subs, nil
	}

	var out []core.Subcategory
	err := s.store.Read(ctx, func(q storage.Querier) error {
		for page := 1; ; page++ {
			res, err := s.subcategories.FindMany(ctx, q, core.Filters{"category_id": categoryID}, core.Page{Number: page, Size: pageSize})
			if err != nil {
				return err
			}
			out = append(out, res.Records...)
			if page >= res.TotalPages {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	s.subcategoryCache.Set(key, out)
	return out, nil
}

// RecordTransaction stores tx, dating it now when it has no date.
func (s *LedgerService) RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.Date.IsZero() {
		tx.Date = s.now().UTC().Truncate(time.Second)
	}

	var created core.Transaction
	err := s.store.Write(ctx, func(q storage.Querier) error {
		var err error
		created, err = s.transactions.AddOne(ctx, q, tx)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.announce(ctx, created)
	return created, nil
}

// Ready reports whether the database answers.
func (s *LedgerService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// announce logs a committed transaction and publishes it. Publishing is
// best-effort: the row is already stored.
func (s *LedgerService) announce(ctx context.Context, tx core.Transaction) {
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionCreated(ctx,
		tx.ID, tx.UserTelegramID, tx.CategoryID, tx.SubcategoryID, tx.Amount.String())

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping transaction event",
			log.FieldRecordID, tx.ID)
		return
	}

	if err := s.publisher.PublishTransactionCreated(ctx, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldRecordID, tx.ID,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}

// Close closes both storage and AMQP connections
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
