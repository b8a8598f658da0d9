package vesting

import (
	dErrors "trustee/pkg/domain-errors"
)

// Precondition violations. Each aborts its whole call; no partial state is
// ever observable. Services return these directly or wrapped, so callers can
// match with errors.Is.
var (
	// ErrInvalidBeneficiary: null identity or the reserve's own address.
	ErrInvalidBeneficiary = dErrors.New(dErrors.CodeValidation, "invalid beneficiary")
	// ErrInvalidValue: grant value must be positive.
	ErrInvalidValue = dErrors.New(dErrors.CodeValidation, "grant value must be positive")
	// ErrInvalidSchedule: cliff must fall between start and end.
	ErrInvalidSchedule = dErrors.New(dErrors.CodeValidation, "cliff must fall between start and end")
	// ErrInvalidInstallment: installment must be positive and fit the span.
	ErrInvalidInstallment = dErrors.New(dErrors.CodeValidation, "installment must be positive and no longer than the vesting span")
	// ErrDuplicateGrant: the beneficiary slot was used before, live or revoked.
	ErrDuplicateGrant = dErrors.New(dErrors.CodeConflict, "beneficiary already had a grant")
	// ErrInsufficientReserve: free reserve cannot back the new grant.
	ErrInsufficientReserve = dErrors.New(dErrors.CodeInvariantViolation, "reserve cannot back the grant")
	// ErrNotOwner: operation restricted to the system owner.
	ErrNotOwner = dErrors.New(dErrors.CodeForbidden, "caller is not the owner")
	// ErrNoSuchGrant: no live grant for the beneficiary.
	ErrNoSuchGrant = dErrors.New(dErrors.CodeNotFound, "no live grant for beneficiary")
	// ErrNotRevokable: the grant was issued without the revocation flag.
	ErrNotRevokable = dErrors.New(dErrors.CodeForbidden, "grant is not revokable")
	// ErrInsufficientSurplus: withdrawal exceeds the untracked surplus.
	ErrInsufficientSurplus = dErrors.New(dErrors.CodeInvariantViolation, "amount exceeds untracked surplus")
	// ErrInsufficientBalance: withdrawal exceeds the asset balance held.
	ErrInsufficientBalance = dErrors.New(dErrors.CodeInvariantViolation, "amount exceeds asset balance")
)
