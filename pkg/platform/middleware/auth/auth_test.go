package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trustee/pkg/domain"
	"trustee/pkg/requestcontext"
)

func testAddr() id.Address {
	a, err := id.ParseAddress("00112233445566778899aabbccddeeff00112233")
	if err != nil {
		panic(err)
	}
	return a
}

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("test-signing-key")
	addr := testAddr()

	token, err := v.IssueToken(addr, time.Minute)
	require.NoError(t, err)

	got, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func TestVerifierRejections(t *testing.T) {
	v := NewVerifier("test-signing-key")

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.ValidateToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewVerifier("different-key")
		token, err := other.IssueToken(testAddr(), time.Minute)
		require.NoError(t, err)

		_, err = v.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := v.IssueToken(testAddr(), -time.Minute)
		require.NoError(t, err)

		_, err = v.ValidateToken(token)
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	v := NewVerifier("test-signing-key")
	addr := testAddr()

	var gotCaller id.Address
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller = requestcontext.Caller(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := RequireAuth(v, nil)(next)

	t.Run("missing header is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token passes the caller through", func(t *testing.T) {
		token, err := v.IssueToken(addr, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, addr, gotCaller)
	})
}
