package types

import "math/big"

// Account is the per-address record held in state. Both sides of the market
// live on the same record: BalanceReserve is the custodied reserve asset and
// BalanceToken is the curve-issued token.
type Account struct {
	Nonce          uint64   `json:"nonce"`
	BalanceReserve *big.Int `json:"balanceReserve"`
	BalanceToken   *big.Int `json:"balanceToken"`
}

// Clone returns a deep copy so callers cannot mutate shared big.Int pointers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.BalanceReserve != nil {
		clone.BalanceReserve = new(big.Int).Set(a.BalanceReserve)
	}
	if a.BalanceToken != nil {
		clone.BalanceToken = new(big.Int).Set(a.BalanceToken)
	}
	return &clone
}
