// Package vesting implements the grant lifecycle ledger: admission through
// two authorization paths, time-based release with cliff and fixed
// installments, revocation with forfeiture, and rescue of mistaken deposits.
package vesting

import (
	"time"

	"github.com/holiman/uint256"

	id "trustee/pkg/domain"
)

// Grant is one beneficiary's vesting schedule and progress record.
//
// Invariants: Start <= Cliff <= End; 0 < Installment <= End-Start;
// Value > 0; Transferred <= Value. Value and the schedule are immutable
// after admission; only Transferred advances, and only through unlock.
type Grant struct {
	Beneficiary id.Address
	Value       *id.Amount // issued total
	Start       time.Time
	Cliff       time.Time
	End         time.Time
	Installment time.Duration
	Transferred *id.Amount // cumulative paid out
	Revokable   bool
}

// Remaining returns value minus transferred, the unpaid portion backing the
// reserve invariant.
func (g *Grant) Remaining() *id.Amount {
	return new(uint256.Int).Sub(g.Value, g.Transferred)
}

// Clone deep-copies the grant so store internals never leak mutable amounts.
func (g *Grant) Clone() *Grant {
	cp := *g
	cp.Value = g.Value.Clone()
	cp.Transferred = g.Transferred.Clone()
	return &cp
}

// GrantRequest carries the schedule parameters for admission. Both the
// owner-gated and the self-funded path build one of these.
type GrantRequest struct {
	Beneficiary id.Address
	Value       *id.Amount
	Start       time.Time
	Cliff       time.Time
	End         time.Time
	Installment time.Duration
	Revokable   bool
}

// UnlockStatus is the typed per-beneficiary outcome of an unlock attempt.
// Batch processing inspects these instead of unwinding on errors.
type UnlockStatus string

const (
	// UnlockStatusUnlocked means tokens were pushed to the beneficiary.
	UnlockStatusUnlocked UnlockStatus = "unlocked"
	// UnlockStatusNoOp means nothing new had vested; no transfer, no event.
	UnlockStatusNoOp UnlockStatus = "noop"
	// UnlockStatusNotFound means no live grant exists; reported via a soft
	// error event rather than aborting, so batches keep going.
	UnlockStatusNotFound UnlockStatus = "not_found"
)

// UnlockResult reports what one unlock attempt did.
type UnlockResult struct {
	Beneficiary id.Address
	Status      UnlockStatus
	Amount      *id.Amount    // paid out this attempt, nil unless unlocked
	Code        SoftErrorCode // non-zero only for soft failures
}

// SoftErrorCode identifies recoverable conditions surfaced through events
// instead of aborting the call.
type SoftErrorCode int

const (
	// SoftErrInvalidValue: unlock against a missing or revoked grant.
	SoftErrInvalidValue SoftErrorCode = 10001
	// SoftErrInvalidVested: computed progress would exceed the grant value.
	SoftErrInvalidVested SoftErrorCode = 10002
	// SoftErrInvalidTransferable: the ledger refused the push transfer.
	SoftErrInvalidTransferable SoftErrorCode = 10003
)
