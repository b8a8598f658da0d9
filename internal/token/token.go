// Package token defines the narrow interface the vesting core consumes from
// the fungible-token ledger, plus an in-memory ledger for dev mode and
// tests. Balance storage and transfer semantics live behind these
// interfaces; the vesting core never touches them directly.
package token

import (
	"context"
	"errors"

	id "trustee/pkg/domain"
)

// Ledger-level failures surfaced through the accessor interfaces.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransfersDisabled   = errors.New("transfers disabled")
)

// Accessor reads and moves a single asset held by the system. Rescue of
// mistakenly deposited foreign assets only needs this much.
type Accessor interface {
	// Balance returns the asset balance held by the system.
	Balance(ctx context.Context) (*id.Amount, error)
	// Transfer pushes amount from the system's holding to the recipient.
	Transfer(ctx context.Context, to id.Address, amount *id.Amount) error
}

// Reserve is the vesting token's accessor with the hooks the admission
// paths need.
type Reserve interface {
	Accessor
	// Account is the ledger identity of the reserve itself. A grant naming
	// it as beneficiary would pay the reserve back to itself and is
	// rejected at admission.
	Account() id.Address
	// Pull moves amount from the funder into the reserve. Self-funded
	// admission uses this in place of the owner gate.
	Pull(ctx context.Context, from id.Address, amount *id.Amount) error
	// TransfersEnabled reports the ledger's global transfer switch.
	TransfersEnabled(ctx context.Context) (bool, error)
}

// AssetRegistry resolves rescue targets by asset identifier.
type AssetRegistry interface {
	Asset(asset id.Address) (Accessor, bool)
}

// DepositReceiver is implemented by components that accept
// deposit-with-payload pushes from a ledger.
type DepositReceiver interface {
	OnDeposit(ctx context.Context, from id.Address, amount *id.Amount, payload []byte) error
}
