package api

import (
	"log/slog"
	"net/http"
)

// Recoverer recovers from handler panics and returns the same JSON 500 body
// the error mapping produces, so panicking requests stay indistinguishable
// from ordinary server failures.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				slog.Error("panic recovered", "method", r.Method, "path", r.URL.Path, "panic", rvr)
				writeError(w, r, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
