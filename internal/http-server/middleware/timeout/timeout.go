package timeout

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds every request context by the given number of seconds.
// Handlers observe the deadline through the context; the response
// status stays theirs to choose.
func Timeout(seconds int) func(next http.Handler) http.Handler {
	d := time.Duration(seconds) * time.Second
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}
