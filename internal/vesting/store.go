package vesting

import (
	"context"

	id "trustee/pkg/domain"
)

// GrantStore owns grant records and the aggregate reserved-balance counter.
// Nothing else mutates grants. Each method is atomic: the record change and
// the counter change commit together or not at all.
//
// Stores return pkg/platform/sentinel errors; the service translates them
// into domain errors.
type GrantStore interface {
	// Create inserts a new grant and raises totalReserved by its value.
	// Returns sentinel.ErrConflict when the beneficiary slot was ever
	// used, including by a since-revoked grant.
	Create(ctx context.Context, grant *Grant) error

	// Get returns a copy of the live grant for the beneficiary.
	// Returns sentinel.ErrNotFound when none exists or it was revoked.
	Get(ctx context.Context, beneficiary id.Address) (*Grant, error)

	// SlotUsed reports whether the beneficiary ever had a grant, live or
	// revoked. Slots are exhausted permanently.
	SlotUsed(ctx context.Context, beneficiary id.Address) (bool, error)

	// ApplyUnlock advances transferred by amount and lowers totalReserved
	// by the same amount. Returns sentinel.ErrNotFound for a dead slot.
	ApplyUnlock(ctx context.Context, beneficiary id.Address, amount *id.Amount) error

	// Remove tombstones the grant and lowers totalReserved by the refund
	// (the unpaid remainder at revocation time).
	Remove(ctx context.Context, beneficiary id.Address, refund *id.Amount) error

	// TotalReserved returns the aggregate unpaid remainder across live
	// grants.
	TotalReserved(ctx context.Context) (*id.Amount, error)

	// List returns copies of all live grants.
	List(ctx context.Context) ([]*Grant, error)
}
