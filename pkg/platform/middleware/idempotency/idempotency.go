// Package idempotency dedupes mutating requests with an Idempotency-Key
// header backed by Redis SETNX. A replayed key is rejected with a conflict
// rather than re-running the ledger operation; callers that crashed before
// seeing a response retry with a fresh key after reconciling state via the
// read endpoints.
package idempotency

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "trustee/pkg/domain-errors"
	"trustee/pkg/platform/httputil"
	"trustee/pkg/requestcontext"
)

const (
	// Header carries the caller-chosen dedupe key.
	Header = "Idempotency-Key"

	keyPrefix  = "trustee:idem:"
	defaultTTL = 24 * time.Hour
)

// Middleware returns a chi-compatible middleware. Requests without the
// header pass through untouched; the header is opt-in for callers that
// retry.
func Middleware(client *redis.Client, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if key == "" || client == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fresh, err := client.SetNX(ctx, keyPrefix+key, requestcontext.RequestID(ctx), defaultTTL).Result()
			if err != nil {
				// Redis being down must not take the ledger down with it.
				if logger != nil {
					logger.WarnContext(ctx, "idempotency check unavailable, allowing request",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !fresh {
				httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "idempotency key already used"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
