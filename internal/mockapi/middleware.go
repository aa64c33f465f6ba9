package mockapi

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type ctxKey int

const accountKey ctxKey = iota

// accountFrom returns the account KeyMiddleware resolved
func accountFrom(r *http.Request) account {
	acc, _ := r.Context().Value(accountKey).(account)
	return acc
}

// KeyMiddleware resolves the {key} path segment to an account
func (h *Handler) KeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := h.backend.account(mux.Vars(r)["key"])
		if !ok {
			respondErrors(w, MsgInvalidKey)
			return
		}
		ctx := context.WithValue(r.Context(), accountKey, acc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CountingMiddleware records the matched route and serves queued failures
func (h *Handler) CountingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				h.backend.hit(strings.TrimPrefix(tpl, APIPrefix))
			}
		}
		if status, ok := h.backend.takeFailure(); ok {
			respondStatus(w, status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs every request when verbose
func LoggingMiddleware(verbose bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verbose {
				log.Printf("mockapi: %s %s", r.Method, r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("mockapi: panic serving %s: %v", r.URL.Path, err)
				respondStatus(w, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
