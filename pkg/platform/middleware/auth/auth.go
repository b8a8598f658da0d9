// Package auth authenticates callers via signed bearer tokens. The token's
// "addr" claim carries the caller's ledger address; downstream owner checks
// compare that address against the configured system owner.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "trustee/pkg/domain"
	dErrors "trustee/pkg/domain-errors"
	"trustee/pkg/platform/httputil"
	"trustee/pkg/requestcontext"
)

// Claims are the JWT claims issued to API callers.
type Claims struct {
	Address string `json:"addr"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	signingKey []byte
}

// NewVerifier builds a verifier for the shared signing key.
func NewVerifier(signingKey string) *Verifier {
	return &Verifier{signingKey: []byte(signingKey)}
}

// ValidateToken parses the token and returns the caller address.
func (v *Verifier) ValidateToken(tokenString string) (id.Address, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return id.Address{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return id.Address{}, fmt.Errorf("token is not valid")
	}
	return id.ParseAddress(claims.Address)
}

// IssueToken mints a token for the given address. Used by tests and local
// tooling; production callers bring tokens from the issuing service.
func (v *Verifier) IssueToken(addr id.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Address: addr.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller address in the request context.
func RequireAuth(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token required"))
				return
			}
			caller, err := verifier.ValidateToken(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}
