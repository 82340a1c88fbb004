package token

import (
	"errors"
	"math/big"

	"curvemint/core/types"
)

var (
	errNilState           = errors.New("token ledger: state not configured")
	errInvalidAmount      = errors.New("token ledger: amount must be positive")
	errInsufficientTokens = errors.New("token ledger: insufficient token balance")
	errInsufficientFunds  = errors.New("token ledger: insufficient reserve balance")
	errSupplyUnderflow    = errors.New("token ledger: redemption exceeds total supply")
)

var totalSupplyKey = []byte("token/totalSupply")

// ledgerState is the subset of state manager functionality the ledger needs.
type ledgerState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks the curve token and the custodied reserve asset over the
// account store. Token issuance and redemption always move total supply in
// lockstep with the holder balance.
type Ledger struct {
	state ledgerState
}

// NewLedger constructs a ledger bound to the provided state backend.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceReserve: big.NewInt(0), BalanceToken: big.NewInt(0)}
	}
	if acc.BalanceReserve == nil {
		acc.BalanceReserve = big.NewInt(0)
	}
	if acc.BalanceToken == nil {
		acc.BalanceToken = big.NewInt(0)
	}
	return acc
}

func (l *Ledger) account(addr [20]byte) (*types.Account, error) {
	acc, err := l.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return ensureAccount(acc), nil
}

// TotalSupply returns the tracked token supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	var stored string
	ok, err := l.state.KVGet(totalSupplyKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored == "" {
		return big.NewInt(0), nil
	}
	supply, valid := new(big.Int).SetString(stored, 10)
	if !valid {
		return nil, errors.New("token ledger: corrupt total supply record")
	}
	return supply, nil
}

func (l *Ledger) putTotalSupply(supply *big.Int) error {
	return l.state.KVPut(totalSupplyKey, supply.String())
}

// BalanceOf returns the token balance held by addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.account(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.BalanceToken), nil
}

// Issue credits amount tokens to holder and grows the total supply.
func (l *Ledger) Issue(holder [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	acc, err := l.account(holder)
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	acc.BalanceToken = new(big.Int).Add(acc.BalanceToken, amount)
	if err := l.state.PutAccount(holder[:], acc); err != nil {
		return err
	}
	return l.putTotalSupply(new(big.Int).Add(supply, amount))
}

// Redeem burns amount tokens from holder and shrinks the total supply.
func (l *Ledger) Redeem(holder [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	acc, err := l.account(holder)
	if err != nil {
		return err
	}
	if acc.BalanceToken.Cmp(amount) < 0 {
		return errInsufficientTokens
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return errSupplyUnderflow
	}
	acc.BalanceToken = new(big.Int).Sub(acc.BalanceToken, amount)
	if err := l.state.PutAccount(holder[:], acc); err != nil {
		return err
	}
	return l.putTotalSupply(new(big.Int).Sub(supply, amount))
}

// Transfer moves tokens between holders without touching the total supply.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	sender, err := l.account(from)
	if err != nil {
		return err
	}
	if sender.BalanceToken.Cmp(amount) < 0 {
		return errInsufficientTokens
	}
	recipient, err := l.account(to)
	if err != nil {
		return err
	}
	sender.BalanceToken = new(big.Int).Sub(sender.BalanceToken, amount)
	recipient.BalanceToken = new(big.Int).Add(recipient.BalanceToken, amount)
	if err := l.state.PutAccount(from[:], sender); err != nil {
		return err
	}
	return l.state.PutAccount(to[:], recipient)
}

// ReserveBalanceOf returns the reserve asset balance held by addr.
func (l *Ledger) ReserveBalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.account(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.BalanceReserve), nil
}

// CreditReserve adds reserve asset to addr. Used to fund test and genesis accounts.
func (l *Ledger) CreditReserve(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	acc, err := l.account(addr)
	if err != nil {
		return err
	}
	acc.BalanceReserve = new(big.Int).Add(acc.BalanceReserve, amount)
	return l.state.PutAccount(addr[:], acc)
}

// MoveReserve moves reserve asset between accounts, failing when the source
// balance cannot cover the transfer.
func (l *Ledger) MoveReserve(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	sender, err := l.account(from)
	if err != nil {
		return err
	}
	if sender.BalanceReserve.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	recipient, err := l.account(to)
	if err != nil {
		return err
	}
	sender.BalanceReserve = new(big.Int).Sub(sender.BalanceReserve, amount)
	recipient.BalanceReserve = new(big.Int).Add(recipient.BalanceReserve, amount)
	if err := l.state.PutAccount(from[:], sender); err != nil {
		return err
	}
	return l.state.PutAccount(to[:], recipient)
}
