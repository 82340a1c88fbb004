package issuance

import (
	"errors"
	"math/big"

	"curvemint/native/token"
)

var errNilTokenLedger = errors.New("issuance pool: token ledger not configured")

// AccountPool is the default ReservePool: the custodied reserve asset lives
// on a dedicated vault account in the same account store as every other
// balance, so deposits and payouts are ordinary reserve transfers.
type AccountPool struct {
	ledger *token.Ledger
	vault  [20]byte
}

// NewAccountPool binds the pool to the ledger and the vault account.
func NewAccountPool(ledger *token.Ledger, vault [20]byte) *AccountPool {
	return &AccountPool{ledger: ledger, vault: vault}
}

// Collect moves a buyer's deposit into the vault.
func (p *AccountPool) Collect(from [20]byte, amount *big.Int) error {
	if p == nil || p.ledger == nil {
		return errNilTokenLedger
	}
	return p.ledger.MoveReserve(from, p.vault, amount)
}

// Payout moves reserve asset from the vault to a seller. It fails when the
// vault cannot cover the amount, which the engine surfaces as PayoutFailed.
func (p *AccountPool) Payout(to [20]byte, amount *big.Int) error {
	if p == nil || p.ledger == nil {
		return errNilTokenLedger
	}
	return p.ledger.MoveReserve(p.vault, to, amount)
}

// Held returns the vault's live reserve balance.
func (p *AccountPool) Held() (*big.Int, error) {
	if p == nil || p.ledger == nil {
		return nil, errNilTokenLedger
	}
	return p.ledger.ReserveBalanceOf(p.vault)
}
