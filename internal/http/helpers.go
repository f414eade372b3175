package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// chain wraps h so that the first middleware listed runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// recoverPanics turns a handler panic into a 500 response.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.ErrorContext(r.Context(), "Handler panic",
				log.FieldComponent, log.ComponentHTTP,
				log.FieldErrorType, log.ErrorTypeInternal,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
				Kind:    string(core.KindInternal),
				Message: "internal server error",
			}})
		}()
		next.ServeHTTP(w, r)
	})
}
