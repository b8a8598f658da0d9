// Package requesttime provides middleware for request-scoped time.
// All vesting computations within a single HTTP request use the same "now"
// timestamp, so a batch unlock observes one consistent instant and audit
// timestamps line up with ledger arithmetic.
package requesttime

import (
	"net/http"
	"time"

	"trustee/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
