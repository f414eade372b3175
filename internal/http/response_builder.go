// Package http provides the JSON API over the ledger.
//
// This file builds response bodies and maps engine errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// pageBody is the wire form of core.PageResult. Page is null for
// unpaginated listings.
type pageBody[T any] struct {
	Records      []T  `json:"records"`
	TotalRecords int  `json:"total_records"`
	TotalPages   int  `json:"total_pages"`
	Page         *int `json:"page"`
}

func newPageBody[S, T any](res core.PageResult[S], convert func(S) T) pageBody[T] {
	records := make([]T, len(res.Records))
	for i, r := range res.Records {
		records[i] = convert(r)
	}
	return pageBody[T]{
		Records:      records,
		TotalRecords: res.TotalRecords,
		TotalPages:   res.TotalPages,
		Page:         res.Page,
	}
}

func identity[T any](v T) T { return v }

// transactionRow renders a joined transaction with a fixed date layout and
// a numeric amount.
type transactionRow struct {
	ID              int64       `json:"id"`
	Date            string      `json:"date"`
	UserName        string      `json:"user_name"`
	CategoryName    string      `json:"category_name"`
	SubcategoryName string      `json:"subcategory_name"`
	Amount          json.Number `json:"amount"`
	Comment         string      `json:"comment,omitempty"`
}

func toTransactionRow(v core.TransactionView) transactionRow {
	return transactionRow{
		ID:              v.ID,
		Date:            core.FormatTimestamp(v.Date),
		UserName:        v.UserName,
		CategoryName:    v.CategoryName,
		SubcategoryName: v.SubcategoryName,
		Amount:          json.Number(v.Amount.String()),
		Comment:         v.Comment,
	}
}

type userLookup struct {
	Found  bool       `json:"found"`
	Record *core.User `json:"record"`
}

type batchBody struct {
	Records []any `json:"records"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the error envelope. Storage failures carry
// the store's message; internal failures are answered generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)
	logger := log.FromContext(r.Context())

	message := err.Error()
	switch kind {
	case core.KindStorage:
		logger.ErrorContext(r.Context(), "Storage failure",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldPath, r.URL.Path)
		var storageErr *core.StorageError
		if errors.As(err, &storageErr) {
			message = storageErr.Error()
		}
	case core.KindInternal:
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldPath, r.URL.Path)
		message = "internal server error"
	default:
		logger.WarnContext(r.Context(), "Request rejected",
			log.FieldError, err,
			log.FieldErrorType, errorType(kind),
			log.FieldPath, r.URL.Path)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Kind: string(kind), Message: message}})
}

func errorType(kind core.ErrorKind) string {
	if kind == core.KindNotFound {
		return log.ErrorTypeNotFound
	}
	return log.ErrorTypeValidation
}
