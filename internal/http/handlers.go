package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// Ledger is the engine surface served over HTTP.
type Ledger interface {
	Entities() []string
	List(ctx context.Context, entity string, f core.Filters, p core.Page) (core.PageResult[any], error)
	FindUser(ctx context.Context, telegramID int64) (core.User, bool, error)
	AddOne(ctx context.Context, entity string, decode func(any) error) (any, error)
	AddMany(ctx context.Context, entity string, decode func(any) error) ([]any, error)
	Transactions(ctx context.Context, req services.TransactionRequest) (core.PageResult[core.TransactionView], error)
	Report(ctx context.Context, period string, f core.Filters, p core.Page) (core.PageResult[core.TransactionView], error)
	Ready(ctx context.Context) error
}

var _ Ledger = (*services.LedgerService)(nil)

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"entities": s.ledger.Entities()})
}

// handleFindMany lists one page of an entity. Non-reserved query keys are
// equality filters.
func (s *Server) handleFindMany(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := ParsePage(query, s.opts.DefaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.ledger.List(r.Context(), r.PathValue("entity"), ParseFilters(query, pageKeys...), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageBody(res, identity[any]))
}

func (s *Server) handleAddOne(w http.ResponseWriter, r *http.Request) {
	body := NewJSONBody(w, r)
	created, err := s.ledger.AddOne(r.Context(), r.PathValue("entity"), body.Decode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleAddMany inserts a JSON array of records atomically.
func (s *Server) handleAddMany(w http.ResponseWriter, r *http.Request) {
	body := NewJSONBody(w, r)
	created, err := s.ledger.AddMany(r.Context(), r.PathValue("entity"), body.Decode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created == nil {
		created = []any{}
	}
	writeJSON(w, http.StatusCreated, batchBody{Records: created})
}

func (s *Server) handleFindUser(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.PathValue("telegram_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, r, core.Invalid("telegram_id", "must be an integer, got %q", raw))
		return
	}

	user, found, err := s.ledger.FindUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := userLookup{Found: found}
	if found {
		out.Record = &user
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTransactions lists joined transactions. Without a period or bounds
// the whole history is returned.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req, err := s.transactionRequest(query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.ledger.Transactions(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageBody(res, toTransactionRow))
}

func (s *Server) transactionRequest(query url.Values) (services.TransactionRequest, error) {
	var (
		req services.TransactionRequest
		err error
	)

	if req.Start, err = ParseBound(query, "start_date"); err != nil {
		return req, err
	}
	if req.End, err = ParseBound(query, "end_date"); err != nil {
		return req, err
	}
	req.Period = strings.TrimSpace(query.Get("period"))
	if req.Period == "" && req.Start.IsZero() && req.End.IsZero() {
		req.Period = "all"
	}

	if req.Paginate, err = ParseBool(query, "paginate", true); err != nil {
		return req, err
	}
	if req.Page, err = ParsePage(query, s.opts.ReportPageSize); err != nil {
		return req, err
	}
	req.Filters = ParseFilters(query, transactionKeys...)
	return req, nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := ParsePage(query, s.opts.ReportPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.ledger.Report(r.Context(), r.PathValue("period"), ParseFilters(query, pageKeys...), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageBody(res, toTransactionRow))
}
