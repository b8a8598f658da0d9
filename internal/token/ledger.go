package token

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	id "trustee/pkg/domain"
)

// Ledger is an in-memory fungible token ledger. It backs dev mode and tests;
// production deployments adapt a real ledger to the Reserve interface.
type Ledger struct {
	mu               sync.RWMutex
	balances         map[id.Address]*uint256.Int
	transfersEnabled bool
}

// NewLedger creates an empty ledger with transfers enabled.
func NewLedger() *Ledger {
	return &Ledger{
		balances:         make(map[id.Address]*uint256.Int),
		transfersEnabled: true,
	}
}

// Mint credits an account out of thin air. Test and bootstrap convenience.
func (l *Ledger) Mint(account id.Address, amount *id.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
}

// SetTransfersEnabled flips the global transfer switch.
func (l *Ledger) SetTransfersEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfersEnabled = enabled
}

// BalanceOf returns a copy of the account balance.
func (l *Ledger) BalanceOf(account id.Address) *id.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[account]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// Transfer moves amount between accounts, honoring the transfer switch.
func (l *Ledger) Transfer(from, to id.Address, amount *id.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.transfersEnabled {
		return ErrTransfersDisabled
	}
	return l.move(from, to, amount)
}

// TransferAndCall moves amount and then hands the payload to the receiver,
// mirroring deposit-with-instructions hooks on token ledgers. The transfer
// is rolled back when the receiver rejects the payload, so the pair is
// atomic from the caller's point of view.
func (l *Ledger) TransferAndCall(ctx context.Context, from, to id.Address, amount *id.Amount, payload []byte, receiver DepositReceiver) error {
	l.mu.Lock()
	if !l.transfersEnabled {
		l.mu.Unlock()
		return ErrTransfersDisabled
	}
	if err := l.move(from, to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	if err := receiver.OnDeposit(ctx, from, amount, payload); err != nil {
		l.mu.Lock()
		_ = l.move(to, from, amount)
		l.mu.Unlock()
		return err
	}
	return nil
}

// move requires l.mu held.
func (l *Ledger) move(from, to id.Address, amount *id.Amount) error {
	b, ok := l.balances[from]
	if !ok || b.Lt(amount) {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	l.credit(to, amount)
	return nil
}

// credit requires l.mu held.
func (l *Ledger) credit(account id.Address, amount *id.Amount) {
	if b, ok := l.balances[account]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[account] = amount.Clone()
}

// reserveAccount adapts one ledger account to the Reserve interface.
type reserveAccount struct {
	ledger  *Ledger
	account id.Address
}

// NewReserve binds a ledger account as the vesting reserve.
func NewReserve(ledger *Ledger, account id.Address) Reserve {
	return &reserveAccount{ledger: ledger, account: account}
}

func (r *reserveAccount) Account() id.Address {
	return r.account
}

func (r *reserveAccount) Balance(_ context.Context) (*id.Amount, error) {
	return r.ledger.BalanceOf(r.account), nil
}

func (r *reserveAccount) Transfer(_ context.Context, to id.Address, amount *id.Amount) error {
	return r.ledger.Transfer(r.account, to, amount)
}

func (r *reserveAccount) Pull(_ context.Context, from id.Address, amount *id.Amount) error {
	return r.ledger.Transfer(from, r.account, amount)
}

func (r *reserveAccount) TransfersEnabled(_ context.Context) (bool, error) {
	l := r.ledger
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.transfersEnabled, nil
}

// assetAccount adapts a foreign asset's holding to the rescue Accessor.
type assetAccount struct {
	ledger *Ledger
	holder id.Address
}

// NewAsset exposes the holder's balance of a foreign asset ledger.
func NewAsset(ledger *Ledger, holder id.Address) Accessor {
	return &assetAccount{ledger: ledger, holder: holder}
}

func (a *assetAccount) Balance(_ context.Context) (*id.Amount, error) {
	return a.ledger.BalanceOf(a.holder), nil
}

func (a *assetAccount) Transfer(_ context.Context, to id.Address, amount *id.Amount) error {
	return a.ledger.Transfer(a.holder, to, amount)
}

// Registry is a static asset lookup for rescue operations.
type Registry struct {
	mu     sync.RWMutex
	assets map[id.Address]Accessor
}

// NewRegistry creates an empty asset registry.
func NewRegistry() *Registry {
	return &Registry{assets: make(map[id.Address]Accessor)}
}

// Register binds an asset identifier to its accessor.
func (r *Registry) Register(asset id.Address, accessor Accessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset] = accessor
}

// Asset resolves an accessor for the asset identifier.
func (r *Registry) Asset(asset id.Address) (Accessor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[asset]
	return a, ok
}
