// Package requestid assigns a correlation ID to every request so logs and
// audit events can be stitched together across the pipeline.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"trustee/pkg/requestcontext"
)

// Header is the inbound/outbound correlation header.
const Header = "X-Request-Id"

// Middleware reuses the caller-supplied request ID when present, otherwise
// generates a fresh UUID. The ID is echoed back on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(Header)
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), rid)
		w.Header().Set(Header, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
