package vesting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trustee/internal/token"
	"trustee/internal/vesting/metrics"
	id "trustee/pkg/domain"
	dErrors "trustee/pkg/domain-errors"
	"trustee/pkg/platform/audit"
	"trustee/pkg/platform/sentinel"
	"trustee/pkg/requestcontext"
)

// AuditPublisher emits audit events for ledger operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the grant registry plus its lifecycle operations. All ledger
// operations run serially under one mutex: every call validates and mutates
// shared state (reserve balance, totalReserved) inside the same critical
// section, so no read/write race window exists by construction.
type Service struct {
	mu sync.Mutex

	owner        id.Address
	vestingAsset id.Address
	store        GrantStore
	reserve      token.Reserve

	assets         token.AssetRegistry
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAssets enables rescue of foreign assets mistakenly sent to the system.
func WithAssets(registry token.AssetRegistry) Option {
	return func(s *Service) { s.assets = registry }
}

// New constructs the vesting service.
//
// owner is the only identity allowed to grant directly, revoke, and
// withdraw. vestingAsset names the vesting token itself for rescue-ceiling
// decisions.
func New(store GrantStore, reserve token.Reserve, owner, vestingAsset id.Address, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("grant store is required")
	}
	if reserve == nil {
		return nil, fmt.Errorf("reserve accessor is required")
	}
	if owner.IsZero() {
		return nil, fmt.Errorf("owner address is required")
	}

	svc := &Service{
		owner:        owner,
		vestingAsset: vestingAsset,
		store:        store,
		reserve:      reserve,
		tracer:       otel.Tracer("trustee/vesting"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Owner returns the system owner's address.
func (s *Service) Owner() id.Address {
	return s.owner
}

// CreateGrant is the direct, owner-gated admission path. The reserve is
// assumed pre-funded; the value is checked against the free reserve at call
// time.
func (s *Service) CreateGrant(ctx context.Context, caller id.Address, req GrantRequest) (*Grant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.CreateGrant")
	defer span.End()

	if caller != s.owner {
		return nil, ErrNotOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	grant, err := s.admit(ctx, caller, req, "owner")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return grant, nil
}

// DepositGrant is the self-funded admission path. Any token holder may call
// it: the value is pulled from the funder into the reserve, then admission
// runs with funder as the recorded grantor. Self-funding substitutes for
// the owner gate. The pull is returned when admission fails, keeping the
// pair atomic from the funder's point of view.
func (s *Service) DepositGrant(ctx context.Context, funder id.Address, req GrantRequest) (*Grant, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.DepositGrant")
	defer span.End()

	if req.Value == nil || req.Value.IsZero() {
		return nil, ErrInvalidValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reserve.Pull(ctx, funder, req.Value); err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "deposit transfer failed")
	}
	grant, err := s.admit(ctx, funder, req, "deposit")
	if err != nil {
		if refundErr := s.reserve.Transfer(ctx, funder, req.Value); refundErr != nil {
			s.logCritical(ctx, "deposit refund failed after rejected admission",
				"funder", funder, "error", refundErr)
		}
		span.RecordError(err)
		return nil, err
	}
	return grant, nil
}

// depositInstruction is the payload attached to deposit-with-instructions
// pushes from the token ledger.
type depositInstruction struct {
	Beneficiary string `json:"beneficiary"`
	Start       int64  `json:"start"`
	Cliff       int64  `json:"cliff"`
	End         int64  `json:"end"`
	Installment int64  `json:"installment_seconds"`
	Revokable   bool   `json:"revokable"`
}

// OnDeposit implements token.DepositReceiver: the ledger has already moved
// the deposit into the reserve and hands over the instruction payload. A
// returned error makes the ledger roll the transfer back.
func (s *Service) OnDeposit(ctx context.Context, from id.Address, amount *id.Amount, payload []byte) error {
	ctx, span := s.tracer.Start(ctx, "vesting.OnDeposit")
	defer span.End()

	var instr depositInstruction
	if err := json.Unmarshal(payload, &instr); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed deposit instruction")
	}
	beneficiary, err := id.ParseAddress(instr.Beneficiary)
	if err != nil {
		return err
	}
	req := GrantRequest{
		Beneficiary: beneficiary,
		Value:       amount,
		Start:       time.Unix(instr.Start, 0).UTC(),
		Cliff:       time.Unix(instr.Cliff, 0).UTC(),
		End:         time.Unix(instr.End, 0).UTC(),
		Installment: time.Duration(instr.Installment) * time.Second,
		Revokable:   instr.Revokable,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.admit(ctx, from, req, "deposit"); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// admit is the single admission operation both authorization paths converge
// on. Requires s.mu held.
func (s *Service) admit(ctx context.Context, funder id.Address, req GrantRequest, path string) (*Grant, error) {
	if req.Beneficiary.IsZero() || req.Beneficiary == s.reserve.Account() {
		return nil, ErrInvalidBeneficiary
	}
	if req.Value == nil || req.Value.IsZero() {
		return nil, ErrInvalidValue
	}
	if req.Cliff.Before(req.Start) || req.Cliff.After(req.End) {
		return nil, ErrInvalidSchedule
	}
	// Vesting arithmetic is second-granular; a fractional-second
	// installment would truncate to zero inside the calculator.
	if req.Installment < time.Second || req.Installment%time.Second != 0 ||
		req.Installment > req.End.Sub(req.Start) {
		return nil, ErrInvalidInstallment
	}

	// The slot is exhausted forever, even by a revoked grant.
	used, err := s.store.SlotUsed(ctx, req.Beneficiary)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check grant slot")
	}
	if used {
		return nil, ErrDuplicateGrant
	}

	free, err := s.freeReserve(ctx)
	if err != nil {
		return nil, err
	}
	if free.Lt(req.Value) {
		return nil, ErrInsufficientReserve
	}

	grant := &Grant{
		Beneficiary: req.Beneficiary,
		Value:       req.Value.Clone(),
		Start:       req.Start,
		Cliff:       req.Cliff,
		End:         req.End,
		Installment: req.Installment,
		Transferred: uint256.NewInt(0),
		Revokable:   req.Revokable,
	}
	if err := s.store.Create(ctx, grant); err != nil {
		if dErrors.Is(err, sentinel.ErrConflict) {
			return nil, ErrDuplicateGrant
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist grant")
	}

	s.metrics.IncGrantsCreated(path)
	s.updateReservedGauge(ctx)
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventGrantCreated),
		Funder:      funder,
		Beneficiary: grant.Beneficiary,
		Actor:       funder,
		Amount:      grant.Value.Dec(),
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "grant created",
			"request_id", requestcontext.RequestID(ctx),
			"path", path,
			"funder", funder,
			"beneficiary", grant.Beneficiary,
			"value", grant.Value.Dec(),
		)
	}
	return grant.Clone(), nil
}

// Unlock releases whatever has vested beyond the recorded progress for one
// beneficiary. A missing or revoked grant is a reported soft outcome, not
// an error, so batches can keep going.
func (s *Service) Unlock(ctx context.Context, beneficiary id.Address) (UnlockResult, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.Unlock",
		trace.WithAttributes(attribute.String("beneficiary", beneficiary.String())))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.unlockLocked(ctx, beneficiary)
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

// BatchUnlock applies Unlock to each beneficiary independently within one
// critical section, amortizing the fixed per-call overhead. Soft outcomes
// never block the rest of the list; only infrastructure failures abort, and
// the results accumulated before the failure are returned with the error so
// the caller can reconcile what already moved.
func (s *Service) BatchUnlock(ctx context.Context, beneficiaries []id.Address) ([]UnlockResult, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.BatchUnlock",
		trace.WithAttributes(attribute.Int("batch_size", len(beneficiaries))))
	defer span.End()

	s.metrics.ObserveBatchSize(len(beneficiaries))

	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]UnlockResult, 0, len(beneficiaries))
	for _, beneficiary := range beneficiaries {
		res, err := s.unlockLocked(ctx, beneficiary)
		if err != nil {
			span.RecordError(err)
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// unlockLocked requires s.mu held.
func (s *Service) unlockLocked(ctx context.Context, beneficiary id.Address) (UnlockResult, error) {
	grant, err := s.store.Get(ctx, beneficiary)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncUnlockOutcome(string(UnlockStatusNotFound))
			s.emit(ctx, audit.Event{
				Action:      string(audit.EventUnlockRejected),
				Beneficiary: beneficiary,
				Code:        int(SoftErrInvalidValue),
				Reason:      "no live grant",
			})
			return UnlockResult{
				Beneficiary: beneficiary,
				Status:      UnlockStatusNotFound,
				Code:        SoftErrInvalidValue,
			}, nil
		}
		return UnlockResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}

	now := requestcontext.Now(ctx)
	ready := ReadyAmount(grant, now)
	if ready.IsZero() {
		s.metrics.IncUnlockOutcome(string(UnlockStatusNoOp))
		return UnlockResult{Beneficiary: beneficiary, Status: UnlockStatusNoOp}, nil
	}

	if err := s.reserve.Transfer(ctx, beneficiary, ready); err != nil {
		return UnlockResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "unlock transfer failed")
	}
	if err := s.store.ApplyUnlock(ctx, beneficiary, ready); err != nil {
		// Tokens moved but progress did not persist. Surface loudly: the
		// next unlock would double-pay this slice.
		s.logCritical(ctx, "unlock progress not persisted after transfer",
			"beneficiary", beneficiary, "amount", ready.Dec(), "error", err)
		return UnlockResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist unlock progress")
	}

	s.metrics.IncUnlockOutcome(string(UnlockStatusUnlocked))
	s.updateReservedGauge(ctx)
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventTokensUnlocked),
		Beneficiary: beneficiary,
		Amount:      ready.Dec(),
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "tokens unlocked",
			"request_id", requestcontext.RequestID(ctx),
			"beneficiary", beneficiary,
			"amount", ready.Dec(),
		)
	}
	return UnlockResult{
		Beneficiary: beneficiary,
		Status:      UnlockStatusUnlocked,
		Amount:      ready,
	}, nil
}

// Revoke tears down a revokable grant and refunds the unpaid remainder to
// the owner. Anything vested but not yet unlocked is forfeited with it:
// unlocking before revocation is the beneficiary's responsibility.
func (s *Service) Revoke(ctx context.Context, caller, beneficiary id.Address) (*id.Amount, error) {
	ctx, span := s.tracer.Start(ctx, "vesting.Revoke",
		trace.WithAttributes(attribute.String("beneficiary", beneficiary.String())))
	defer span.End()

	if caller != s.owner {
		return nil, ErrNotOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.store.Get(ctx, beneficiary)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrNoSuchGrant
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}
	if !grant.Revokable {
		return nil, ErrNotRevokable
	}

	refund := grant.Remaining()
	if err := s.store.Remove(ctx, beneficiary, refund); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove grant")
	}
	if err := s.reserve.Transfer(ctx, s.owner, refund); err != nil {
		s.logCritical(ctx, "revocation refund transfer failed",
			"beneficiary", beneficiary, "refund", refund.Dec(), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "refund transfer failed")
	}

	s.metrics.IncGrantsRevoked()
	s.updateReservedGauge(ctx)
	s.emit(ctx, audit.Event{
		Action:      string(audit.EventGrantRevoked),
		Beneficiary: beneficiary,
		Actor:       caller,
		Amount:      refund.Dec(),
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "grant revoked",
			"request_id", requestcontext.RequestID(ctx),
			"beneficiary", beneficiary,
			"refund", refund.Dec(),
		)
	}
	return refund, nil
}

// WithdrawOther rescues tokens that do not back live grants. For the
// vesting token the ceiling is the untracked surplus above totalReserved;
// for any other asset the ceiling is the full balance held, independent of
// the reserve bookkeeping.
func (s *Service) WithdrawOther(ctx context.Context, caller, asset id.Address, amount *id.Amount) error {
	ctx, span := s.tracer.Start(ctx, "vesting.WithdrawOther",
		trace.WithAttributes(attribute.String("asset", asset.String())))
	defer span.End()

	if caller != s.owner {
		return ErrNotOwner
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if asset == s.vestingAsset {
		surplus, err := s.freeReserve(ctx)
		if err != nil {
			return err
		}
		if surplus.Lt(amount) {
			return ErrInsufficientSurplus
		}
		if err := s.reserve.Transfer(ctx, s.owner, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "surplus transfer failed")
		}
		s.emit(ctx, audit.Event{
			Action: string(audit.EventSurplusWithdrawn),
			Actor:  caller,
			Amount: amount.Dec(),
		})
		return nil
	}

	var accessor token.Accessor
	if s.assets != nil {
		accessor, _ = s.assets.Asset(asset)
	}
	if accessor == nil {
		// Unknown asset means the system holds none of it.
		return ErrInsufficientBalance
	}
	balance, err := accessor.Balance(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read asset balance")
	}
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if err := accessor.Transfer(ctx, s.owner, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "rescue transfer failed")
	}
	s.emit(ctx, audit.Event{
		Action: string(audit.EventAssetRescued),
		Actor:  caller,
		Amount: amount.Dec(),
		Reason: asset.String(),
	})
	return nil
}

// GrantOf returns a copy of the live grant for a beneficiary.
func (s *Service) GrantOf(ctx context.Context, beneficiary id.Address) (*Grant, error) {
	grant, err := s.store.Get(ctx, beneficiary)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrNoSuchGrant
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}
	return grant, nil
}

// TotalReserved exposes the aggregate counter for ops and conservation
// checks.
func (s *Service) TotalReserved(ctx context.Context) (*id.Amount, error) {
	total, err := s.store.TotalReserved(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total reserved")
	}
	return total, nil
}

// freeReserve returns reserve balance minus totalReserved, clamped at zero.
func (s *Service) freeReserve(ctx context.Context) (*id.Amount, error) {
	balance, err := s.reserve.Balance(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read reserve balance")
	}
	total, err := s.store.TotalReserved(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total reserved")
	}
	if balance.Lt(total) {
		// Solvency invariant breached; never hand out more.
		s.logCritical(ctx, "reserve balance below total reserved",
			"balance", balance.Dec(), "total_reserved", total.Dec())
		return uint256.NewInt(0), nil
	}
	return balance.Sub(balance, total), nil
}

func (s *Service) updateReservedGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if total, err := s.store.TotalReserved(ctx); err == nil {
		s.metrics.SetTotalReserved(total.Dec())
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) logCritical(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		args = append([]any{"request_id", requestcontext.RequestID(ctx)}, args...)
		s.logger.ErrorContext(ctx, "CRITICAL: "+msg, args...)
	}
}
