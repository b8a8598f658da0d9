package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustee/internal/vesting"
	id "trustee/pkg/domain"
	dErrors "trustee/pkg/domain-errors"
	"trustee/pkg/platform/httputil"
	"trustee/pkg/requestcontext"
)

// Service defines the interface for vesting operations.
type Service interface {
	CreateGrant(ctx context.Context, caller id.Address, req vesting.GrantRequest) (*vesting.Grant, error)
	DepositGrant(ctx context.Context, funder id.Address, req vesting.GrantRequest) (*vesting.Grant, error)
	Unlock(ctx context.Context, beneficiary id.Address) (vesting.UnlockResult, error)
	BatchUnlock(ctx context.Context, beneficiaries []id.Address) ([]vesting.UnlockResult, error)
	Revoke(ctx context.Context, caller, beneficiary id.Address) (*id.Amount, error)
	WithdrawOther(ctx context.Context, caller, asset id.Address, amount *id.Amount) error
	GrantOf(ctx context.Context, beneficiary id.Address) (*vesting.Grant, error)
}

// Handler wires vesting endpoints to the vesting service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a vesting handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts vesting endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/grants", h.HandleCreateGrant)
	r.Post("/grants/deposit", h.HandleDepositGrant)
	r.Get("/grants/{beneficiary}", h.HandleGetGrant)
	r.Delete("/grants/{beneficiary}", h.HandleRevoke)
	r.Post("/unlock", h.HandleUnlock)
	r.Post("/unlock/batch", h.HandleBatchUnlock)
	r.Post("/withdrawals", h.HandleWithdraw)
}

// HandleCreateGrant handles POST /grants requests.
func (h *Handler) HandleCreateGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.requireCaller(ctx, w)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	grant, err := h.service.CreateGrant(ctx, caller, req.Domain())
	if err != nil {
		h.logger.ErrorContext(ctx, "grant creation failed",
			"request_id", requestID,
			"caller", caller,
			"beneficiary", req.Beneficiary,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "grant created",
		"request_id", requestID,
		"beneficiary", req.Beneficiary,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromGrant(grant))
}

// HandleDepositGrant handles POST /grants/deposit requests.
func (h *Handler) HandleDepositGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.requireCaller(ctx, w)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	grant, err := h.service.DepositGrant(ctx, caller, req.Domain())
	if err != nil {
		h.logger.ErrorContext(ctx, "deposit grant failed",
			"request_id", requestID,
			"funder", caller,
			"beneficiary", req.Beneficiary,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "deposit grant created",
		"request_id", requestID,
		"funder", caller,
		"beneficiary", req.Beneficiary,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromGrant(grant))
}

// HandleGetGrant handles GET /grants/{beneficiary} requests.
func (h *Handler) HandleGetGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	beneficiary, err := id.ParseAddress(chi.URLParam(r, "beneficiary"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	grant, err := h.service.GrantOf(ctx, beneficiary)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "grant lookup failed",
				"request_id", requestID,
				"beneficiary", beneficiary,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromGrantAt(grant, requestcontext.Now(ctx)))
}

// HandleRevoke handles DELETE /grants/{beneficiary} requests.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(ctx, w)
	if !ok {
		return
	}

	beneficiary, err := id.ParseAddress(chi.URLParam(r, "beneficiary"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	refund, err := h.service.Revoke(ctx, caller, beneficiary)
	if err != nil {
		h.logger.ErrorContext(ctx, "grant revocation failed",
			"request_id", requestID,
			"beneficiary", beneficiary,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "grant revoked",
		"request_id", requestID,
		"beneficiary", beneficiary,
		"refund", refund.Dec(),
	)
	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{
		Beneficiary: beneficiary.String(),
		Refunded:    refund.Dec(),
	})
}

// HandleUnlock handles POST /unlock requests.
func (h *Handler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UnlockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Unlock(ctx, req.ParsedBeneficiary())
	if err != nil {
		h.logger.ErrorContext(ctx, "unlock failed",
			"request_id", requestID,
			"beneficiary", req.Beneficiary,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromUnlockResult(result))
}

// HandleBatchUnlock handles POST /unlock/batch requests.
func (h *Handler) HandleBatchUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchUnlockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.BatchUnlock(ctx, req.ParsedBeneficiaries())
	if err != nil {
		h.logger.ErrorContext(ctx, "batch unlock failed",
			"request_id", requestID,
			"batch_size", len(req.Beneficiaries),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch unlock processed",
		"request_id", requestID,
		"batch_size", len(req.Beneficiaries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromUnlockResults(results))
}

// HandleWithdraw handles POST /withdrawals requests.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(ctx, w)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[WithdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.WithdrawOther(ctx, caller, req.ParsedAsset(), req.ParsedAmount()); err != nil {
		h.logger.ErrorContext(ctx, "withdrawal failed",
			"request_id", requestID,
			"asset", req.Asset,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "withdrawal completed",
		"request_id", requestID,
		"asset", req.Asset,
		"amount", req.Amount,
	)
	w.WriteHeader(http.StatusNoContent)
}

// requireCaller extracts the authenticated caller or rejects the request.
func (h *Handler) requireCaller(ctx context.Context, w http.ResponseWriter) (id.Address, bool) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Address{}, false
	}
	return caller, true
}
