package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/suite"

	"trustee/internal/token"
	"trustee/internal/vesting"
	id "trustee/pkg/domain"
	"trustee/pkg/requestcontext"
)

// =============================================================================
// Vesting Handler Test Suite
// =============================================================================
// Handler tests validate HTTP concerns: parsing, auth extraction, status
// mapping. Built on real in-memory components rather than mocks.

type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	ledger  *token.Ledger
	service *vesting.Service

	owner       id.Address
	reserveAddr id.Address
	now         time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func testAddr(b byte) id.Address {
	var a id.Address
	a[19] = b
	return a
}

func (s *HandlerSuite) SetupTest() {
	s.owner = testAddr(0x01)
	s.reserveAddr = testAddr(0x02)
	s.now = time.Unix(500, 0).UTC()

	s.ledger = token.NewLedger()
	s.ledger.Mint(s.reserveAddr, uint256.NewInt(10_000))

	var err error
	s.service, err = vesting.New(
		vesting.NewInMemoryStore(),
		token.NewReserve(s.ledger, s.reserveAddr),
		s.owner,
		testAddr(0x03),
	)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(s.service, logger)

	r := chi.NewRouter()
	handler.Register(r)
	s.router = r
}

// do issues a request with the given caller authenticated and the clock
// pinned, mirroring what the middleware chain provides in production.
func (s *HandlerSuite) do(method, path string, caller id.Address, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	ctx := requestcontext.WithTime(req.Context(), s.now)
	if !caller.IsZero() {
		ctx = requestcontext.WithCaller(ctx, caller)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) grantBody(beneficiary id.Address, value string) map[string]any {
	return map[string]any{
		"beneficiary":         beneficiary.String(),
		"value":               value,
		"start":               0,
		"cliff":               250,
		"end":                 1000,
		"installment_seconds": 1,
		"revokable":           true,
	}
}

// =============================================================================
// POST /grants
// =============================================================================

func (s *HandlerSuite) TestCreateGrant() {
	beneficiary := testAddr(0x10)

	s.Run("unauthenticated request is rejected", func() {
		rec := s.do(http.MethodPost, "/grants", id.ZeroAddress, s.grantBody(beneficiary, "100"))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("invalid json is rejected", func() {
		req := httptest.NewRequest(http.MethodPost, "/grants", bytes.NewReader([]byte("not json")))
		req = req.WithContext(requestcontext.WithCaller(req.Context(), s.owner))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed beneficiary is rejected", func() {
		body := s.grantBody(beneficiary, "100")
		body["beneficiary"] = "not-an-address"
		rec := s.do(http.MethodPost, "/grants", s.owner, body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("non-owner gets forbidden", func() {
		rec := s.do(http.MethodPost, "/grants", testAddr(0x99), s.grantBody(beneficiary, "100"))
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("owner creates a grant", func() {
		rec := s.do(http.MethodPost, "/grants", s.owner, s.grantBody(beneficiary, "1000"))
		s.Require().Equal(http.StatusCreated, rec.Code)

		var resp GrantResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(beneficiary.String(), resp.Beneficiary)
		s.Equal("1000", resp.Value)
		s.Equal("0", resp.Transferred)
	})

	s.Run("duplicate beneficiary conflicts", func() {
		rec := s.do(http.MethodPost, "/grants", s.owner, s.grantBody(beneficiary, "100"))
		s.Equal(http.StatusConflict, rec.Code)
	})
}

// =============================================================================
// POST /grants/deposit
// =============================================================================

func (s *HandlerSuite) TestDepositGrant() {
	funder := testAddr(0x20)
	s.ledger.Mint(funder, uint256.NewInt(500))

	rec := s.do(http.MethodPost, "/grants/deposit", funder, s.grantBody(testAddr(0x21), "300"))
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.Equal(uint64(200), s.ledger.BalanceOf(funder).Uint64())
}

// =============================================================================
// GET /grants/{beneficiary}
// =============================================================================

func (s *HandlerSuite) TestGetGrant() {
	beneficiary := testAddr(0x30)

	s.Run("missing grant returns 404", func() {
		rec := s.do(http.MethodGet, "/grants/"+beneficiary.String(), id.ZeroAddress, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("live grant includes schedule position", func() {
		created := s.do(http.MethodPost, "/grants", s.owner, s.grantBody(beneficiary, "1000"))
		s.Require().Equal(http.StatusCreated, created.Code)

		rec := s.do(http.MethodGet, "/grants/"+beneficiary.String(), id.ZeroAddress, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp GrantResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		// Clock pinned at t=500 on a 0..1000 schedule.
		s.Equal("500", resp.Vested)
		s.Equal("500", resp.Ready)
	})
}

// =============================================================================
// POST /unlock and POST /unlock/batch
// =============================================================================

func (s *HandlerSuite) TestUnlock() {
	beneficiary := testAddr(0x40)
	created := s.do(http.MethodPost, "/grants", s.owner, s.grantBody(beneficiary, "1000"))
	s.Require().Equal(http.StatusCreated, created.Code)

	s.Run("vested slice is paid out", func() {
		rec := s.do(http.MethodPost, "/unlock", testAddr(0x99), map[string]any{
			"beneficiary": beneficiary.String(),
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp UnlockResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("unlocked", resp.Status)
		s.Equal("500", resp.Amount)
	})

	s.Run("missing grant is a soft outcome, not an error status", func() {
		rec := s.do(http.MethodPost, "/unlock", testAddr(0x99), map[string]any{
			"beneficiary": testAddr(0x41).String(),
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp UnlockResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("not_found", resp.Status)
		s.Equal(10001, resp.Code)
	})
}

func (s *HandlerSuite) TestBatchUnlock() {
	beneficiary := testAddr(0x50)
	created := s.do(http.MethodPost, "/grants", s.owner, s.grantBody(beneficiary, "1000"))
	s.Require().Equal(http.StatusCreated, created.Code)

	s.Run("mixed batch reports per-beneficiary outcomes", func() {
		rec := s.do(http.MethodPost, "/unlock/batch", testAddr(0x99), map[string]any{
			"beneficiaries": []string{beneficiary.String(), testAddr(0x51).String()},
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp BatchUnlockResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Require().Len(resp.Results, 2)
		s.Equal("unlocked", resp.Results[0].Status)
		s.Equal("not_found", resp.Results[1].Status)
	})

	s.Run("empty batch is rejected", func() {
		rec := s.do(http.MethodPost, "/unlock/batch", testAddr(0x99), map[string]any{
			"beneficiaries": []string{},
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("oversized batch is rejected", func() {
		list := make([]string, maxBatchSize+1)
		for i := range list {
			list[i] = testAddr(byte(i%250 + 1)).String()
		}
		rec := s.do(http.MethodPost, "/unlock/batch", testAddr(0x99), map[string]any{
			"beneficiaries": list,
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// DELETE /grants/{beneficiary}
// =============================================================================

func (s *HandlerSuite) TestRevoke() {
	beneficiary := testAddr(0x60)
	created := s.do(http.MethodPost, "/grants", s.owner, s.grantBody(beneficiary, "1000"))
	s.Require().Equal(http.StatusCreated, created.Code)

	s.Run("non-owner gets forbidden", func() {
		rec := s.do(http.MethodDelete, "/grants/"+beneficiary.String(), testAddr(0x99), nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("owner revokes and receives the refund", func() {
		rec := s.do(http.MethodDelete, "/grants/"+beneficiary.String(), s.owner, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp RevokeResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("1000", resp.Refunded)
	})

	s.Run("second revocation returns 404", func() {
		rec := s.do(http.MethodDelete, "/grants/"+beneficiary.String(), s.owner, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

// =============================================================================
// POST /withdrawals
// =============================================================================

func (s *HandlerSuite) TestWithdraw() {
	s.Run("surplus withdrawal succeeds", func() {
		rec := s.do(http.MethodPost, "/withdrawals", s.owner, map[string]any{
			"asset":  testAddr(0x03).String(),
			"amount": "10000",
		})
		s.Equal(http.StatusNoContent, rec.Code)
		s.Equal(uint64(10_000), s.ledger.BalanceOf(s.owner).Uint64())
	})

	s.Run("over-withdrawal maps to 422", func() {
		rec := s.do(http.MethodPost, "/withdrawals", s.owner, map[string]any{
			"asset":  testAddr(0x03).String(),
			"amount": "1",
		})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})

	s.Run("negative amount is rejected", func() {
		rec := s.do(http.MethodPost, "/withdrawals", s.owner, map[string]any{
			"asset":  testAddr(0x03).String(),
			"amount": "-5",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
