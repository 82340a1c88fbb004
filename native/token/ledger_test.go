package token

import (
	"errors"
	"math/big"
	"testing"

	"curvemint/state"
	"curvemint/storage"
)

func newTestLedger() *Ledger {
	return NewLedger(state.NewManager(storage.NewMemDB()))
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestIssueGrowsSupplyAndBalance(t *testing.T) {
	ledger := newTestLedger()
	holder := addr(0x01)

	if err := ledger.Issue(holder, big.NewInt(500)); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := ledger.Issue(holder, big.NewInt(250)); err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	balance, err := ledger.BalanceOf(holder)
	if err != nil {
		t.Fatalf("balance lookup failed: %v", err)
	}
	if balance.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}
	supply, err := ledger.TotalSupply()
	if err != nil {
		t.Fatalf("supply lookup failed: %v", err)
	}
	if supply.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("unexpected supply: %s", supply)
	}
}

func TestRedeemShrinksSupplyAndBalance(t *testing.T) {
	ledger := newTestLedger()
	holder := addr(0x02)

	if err := ledger.Issue(holder, big.NewInt(100)); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := ledger.Redeem(holder, big.NewInt(40)); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	balance, _ := ledger.BalanceOf(holder)
	if balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}
	supply, _ := ledger.TotalSupply()
	if supply.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected supply: %s", supply)
	}
}

func TestRedeemRejectsOverdraw(t *testing.T) {
	ledger := newTestLedger()
	holder := addr(0x03)

	if err := ledger.Issue(holder, big.NewInt(30)); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := ledger.Redeem(holder, big.NewInt(50)); !errors.Is(err, errInsufficientTokens) {
		t.Fatalf("expected insufficient tokens, got %v", err)
	}
	balance, _ := ledger.BalanceOf(holder)
	if balance.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("balance mutated on failed redeem: %s", balance)
	}
}

func TestTransferPreservesSupply(t *testing.T) {
	ledger := newTestLedger()
	from, to := addr(0x04), addr(0x05)

	if err := ledger.Issue(from, big.NewInt(100)); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(35)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	fromBal, _ := ledger.BalanceOf(from)
	toBal, _ := ledger.BalanceOf(to)
	if fromBal.Cmp(big.NewInt(65)) != 0 || toBal.Cmp(big.NewInt(35)) != 0 {
		t.Fatalf("unexpected balances: %s / %s", fromBal, toBal)
	}
	supply, _ := ledger.TotalSupply()
	if supply.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("supply changed on transfer: %s", supply)
	}
}

func TestMoveReserveRejectsOverdraw(t *testing.T) {
	ledger := newTestLedger()
	from, to := addr(0x06), addr(0x07)

	if err := ledger.CreditReserve(from, big.NewInt(20)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if err := ledger.MoveReserve(from, to, big.NewInt(25)); !errors.Is(err, errInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := ledger.MoveReserve(from, to, big.NewInt(15)); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	fromBal, _ := ledger.ReserveBalanceOf(from)
	toBal, _ := ledger.ReserveBalanceOf(to)
	if fromBal.Cmp(big.NewInt(5)) != 0 || toBal.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("unexpected reserve balances: %s / %s", fromBal, toBal)
	}
}
